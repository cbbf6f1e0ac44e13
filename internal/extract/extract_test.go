package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/indicator-feed/internal/indicator"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func htmlDescriptor(min, max float64, hints indicator.Hints) indicator.Descriptor {
	return indicator.Descriptor{
		ID:         "test",
		Title:      "Test",
		Kind:       indicator.KindHTML,
		SourceName: "Test Source",
		Range:      indicator.Range{Min: min, Max: max},
		Hints:      hints,
	}
}

func TestParseJSONChart(t *testing.T) {
	t.Parallel()

	d := indicator.Descriptor{ID: "usdkrw", Kind: indicator.KindJSON}
	raw := []byte(`{"chart":{"result":[{"meta":{"regularMarketPrice":4.25,"previousClose":4.17}}]}}`)

	res, err := New().Parse(raw, d)
	require.NoError(t, err)
	require.InDelta(t, 4.25, res.Value, 1e-9)
	require.NotNil(t, res.Previous)
	require.InDelta(t, 4.17, *res.Previous, 1e-9)
	require.Equal(t, indicator.TacticJSON, res.Tactic)
}

func TestParseJSONChartPreviousCloseFallback(t *testing.T) {
	t.Parallel()

	d := indicator.Descriptor{ID: "gold", Kind: indicator.KindJSON}
	raw := []byte(`{"chart":{"result":[{"meta":{"regularMarketPrice":2650.5,"chartPreviousClose":2640}}]}}`)

	res, err := New().Parse(raw, d)
	require.NoError(t, err)
	require.NotNil(t, res.Previous)
	require.InDelta(t, 2640.0, *res.Previous, 1e-9)
}

func TestParseJSONFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		rng  indicator.Range
		want error
	}{
		{name: "malformed", raw: `{"chart":`, want: indicator.ErrParse},
		{name: "chart error", raw: `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`, want: indicator.ErrParse},
		{name: "empty result", raw: `{"chart":{"result":[]}}`, want: indicator.ErrParse},
		{name: "shape mismatch", raw: `{"chart":{"result":"nope"}}`, want: indicator.ErrParse},
		{name: "missing price", raw: `{"chart":{"result":[{"meta":{"previousClose":1}}]}}`, want: indicator.ErrExtractionMiss},
		{name: "out of range", raw: `{"chart":{"result":[{"meta":{"regularMarketPrice":99}}]}}`, rng: indicator.Range{Min: 0, Max: 10}, want: indicator.ErrExtractionMiss},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := indicator.Descriptor{ID: "x", Kind: indicator.KindJSON, Range: tt.rng}
			_, err := New().Parse([]byte(tt.raw), d)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseJSONFallsBackToLatestClose(t *testing.T) {
	t.Parallel()

	d := indicator.Descriptor{ID: "kospi", Kind: indicator.KindJSON}
	raw := []byte(`{"chart":{"result":[{"meta":{"previousClose":2544.44},
"indicators":{"quote":[{"close":[2540.1,null,2567.89,null]}]}}]}}`)

	res, err := New().Parse(raw, d)
	require.NoError(t, err)
	require.InDelta(t, 2567.89, res.Value, 1e-9)
	require.InDelta(t, 2544.44, *res.Previous, 1e-9)
}

func TestParseJSONReturnSeries(t *testing.T) {
	t.Parallel()

	d := indicator.Descriptor{
		ID:     "spx-3m",
		Kind:   indicator.KindJSON,
		Series: indicator.SeriesReturn,
		Range:  indicator.Range{Min: -100, Max: 300},
	}

	raw := []byte(`{"chart":{"result":[{"meta":{"regularMarketPrice":4567.89},
"indicators":{"quote":[{"close":[null,5881.63,5000,4600]}]}}]}}`)
	res, err := New().Parse(raw, d)
	require.NoError(t, err)
	require.InDelta(t, -22.34, res.Value, 1e-9)
	require.Nil(t, res.Previous)

	// Without a market price the last close is the end of the range.
	raw = []byte(`{"chart":{"result":[{"meta":{},"indicators":{"quote":[{"close":[100,null,108.456]}]}}]}}`)
	res, err = New().Parse(raw, d)
	require.NoError(t, err)
	require.InDelta(t, 8.46, res.Value, 1e-9)

	raw = []byte(`{"chart":{"result":[{"meta":{"regularMarketPrice":10},"indicators":{"quote":[{"close":[10]}]}}]}}`)
	_, err = New().Parse(raw, d)
	require.ErrorIs(t, err, indicator.ErrExtractionMiss)
}

func TestParseEmptyPayload(t *testing.T) {
	t.Parallel()

	_, err := New().Parse(nil, htmlDescriptor(0, 10, indicator.Hints{}))
	require.ErrorIs(t, err, indicator.ErrParse)

	_, ok := New().Extract([]byte{}, indicator.Descriptor{Kind: indicator.KindJSON})
	require.False(t, ok)
}

func TestNoisyHTMLPrefersInRangeKeywordValue(t *testing.T) {
	t.Parallel()

	raw := []byte(`<html><head><title>Core Inflation Rate 2024</title></head><body>
<h1>Core Inflation Rate</h1>
<p>The core inflation rate in the US was 3.2% in 2024.</p>
<footer>Change 0.05%</footer>
</body></html>`)
	d := htmlDescriptor(0.1, 20, indicator.Hints{Keywords: []string{"Core Inflation Rate"}})

	res, err := New().Parse(raw, d)
	require.NoError(t, err)
	require.InDelta(t, 3.2, res.Value, 1e-9)
	require.Equal(t, indicator.TacticKeyword, res.Tactic)
}

func TestGlobalTacticFiltersByRange(t *testing.T) {
	t.Parallel()

	raw := []byte(`<html><body><p>The core inflation rate was 3.2% in 2024.</p><p>footer 0.05%</p></body></html>`)
	d := htmlDescriptor(0.1, 20, indicator.Hints{Tactics: []indicator.Tactic{indicator.TacticGlobal}})

	res, err := New().Parse(raw, d)
	require.NoError(t, err)
	require.InDelta(t, 3.2, res.Value, 1e-9)
	require.Equal(t, indicator.TacticGlobal, res.Tactic)
}

func TestFallsThroughToLaterTactic(t *testing.T) {
	t.Parallel()

	raw := []byte(`<html><body><p>Yield today: 4.12</p></body></html>`)
	d := htmlDescriptor(0, 20, indicator.Hints{Keywords: []string{"no such keyword"}})

	res, err := New().Parse(raw, d)
	require.NoError(t, err)
	require.InDelta(t, 4.12, res.Value, 1e-9)
	require.Equal(t, indicator.TacticGlobal, res.Tactic)
}

func TestKeywordWithPreviousValue(t *testing.T) {
	t.Parallel()

	raw := []byte(`<html><body><div class="stat">Citi Surprise Index</div>
<div>Latest: -15.2 <span>Prev: -10.3</span></div></body></html>`)
	d := htmlDescriptor(-200, 200, indicator.Hints{
		Keywords:         []string{"Latest:"},
		PreviousKeywords: []string{"Prev:"},
	})

	res, err := New().Parse(raw, d)
	require.NoError(t, err)
	require.InDelta(t, -15.2, res.Value, 1e-9)
	require.NotNil(t, res.Previous)
	require.InDelta(t, -10.3, *res.Previous, 1e-9)
}

func TestPercentOnly(t *testing.T) {
	t.Parallel()

	raw := []byte(`<html><body><p>Rate 4.5% on volume of 7 contracts</p></body></html>`)
	d := htmlDescriptor(0, 20, indicator.Hints{
		PercentOnly: true,
		Tactics:     []indicator.Tactic{indicator.TacticGlobal},
	})

	res, err := New().Parse(raw, d)
	require.NoError(t, err)
	require.InDelta(t, 4.5, res.Value, 1e-9)
}

func TestPickerChoice(t *testing.T) {
	t.Parallel()

	raw := []byte(`<html><body><p>values 5.5 and 7.5</p></body></html>`)
	d := htmlDescriptor(0, 20, indicator.Hints{Tactics: []indicator.Tactic{indicator.TacticGlobal}})

	res, err := New().Parse(raw, d)
	require.NoError(t, err)
	require.InDelta(t, 7.5, res.Value, 1e-9)

	res, err = New(WithPicker(First)).Parse(raw, d)
	require.NoError(t, err)
	require.InDelta(t, 5.5, res.Value, 1e-9)
}

func TestLargestPrefersNegativeHeadline(t *testing.T) {
	t.Parallel()

	raw := []byte(`<html><body><p>Citi surprise index -42.5 today, weekly move 3.1</p></body></html>`)
	d := htmlDescriptor(-300, 300, indicator.Hints{Tactics: []indicator.Tactic{indicator.TacticGlobal}})

	res, err := New().Parse(raw, d)
	require.NoError(t, err)
	require.InDelta(t, -42.5, res.Value, 1e-9)

	v, ok := Largest.Pick([]float64{3.1, -42.5, 42.5})
	require.True(t, ok)
	require.InDelta(t, -42.5, v, 1e-9)
}

func TestTableTactic(t *testing.T) {
	t.Parallel()

	raw := []byte(`<html><body>
<table><tr><td>Population 51</td></tr></table>
<table><tr><th>Country</th><th>Last</th></tr><tr><td>South Korea</td><td>2.75</td></tr></table>
</body></html>`)
	d := htmlDescriptor(0, 20, indicator.Hints{
		TableMarkers: []string{"Country", "Last"},
		Tactics:      []indicator.Tactic{indicator.TacticTable},
	})

	res, err := New().Parse(raw, d)
	require.NoError(t, err)
	require.InDelta(t, 2.75, res.Value, 1e-9)
	require.Equal(t, indicator.TacticTable, res.Tactic)
}

const calendarHead = `<html><body><table>
<thead><tr><th>Calendar</th><th>GMT</th><th>Reference</th><th>Actual</th><th>Previous</th><th>Consensus</th><th>TEForecast</th></tr></thead>
<tbody>`

func calendarDescriptor() indicator.Descriptor {
	return htmlDescriptor(0.1, 20, indicator.Hints{
		TableMarkers: []string{"Calendar", "GMT"},
		Tactics:      []indicator.Tactic{indicator.TacticCalendar},
	})
}

func TestCalendarSkipsFutureRows(t *testing.T) {
	t.Parallel()

	raw := []byte(calendarHead + `
<tr><td>2025-01-01</td><td>02:00 PM</td><td>Jan</td><td></td><td>4.37%</td><td>4.25%</td><td>4.2%</td></tr>
<tr><td>2024-12-01</td><td>02:00 PM</td><td>Dec</td><td>4.37%</td><td>4.62%</td><td>4.5%</td><td></td></tr>
</tbody></table></body></html>`)
	clk := fixedClock{now: time.Date(2024, 12, 15, 9, 0, 0, 0, time.UTC)}

	res, err := New(WithClock(clk)).Parse(raw, calendarDescriptor())
	require.NoError(t, err)
	require.InDelta(t, 4.37, res.Value, 1e-9)
	require.Equal(t, indicator.TacticCalendar, res.Tactic)
}

func TestCalendarPrefersForecastOfLatestReportedRow(t *testing.T) {
	t.Parallel()

	raw := []byte(calendarHead + `
<tr><td>2024-11-01</td><td>02:00 PM</td><td>Nov</td><td>4.62%</td><td>4.83%</td><td></td><td>4.6%</td></tr>
<tr><td>2024-12-01</td><td>02:00 PM</td><td>Dec</td><td>4.37%</td><td>4.62%</td><td>4.5%</td><td>4.4%</td></tr>
<tr><td>2025-01-01</td><td>02:00 PM</td><td>Jan</td><td>9.99%</td><td>4.37%</td><td></td><td>9.8%</td></tr>
</tbody></table></body></html>`)
	clk := fixedClock{now: time.Date(2024, 12, 15, 0, 0, 0, 0, time.UTC)}

	res, err := New(WithClock(clk)).Parse(raw, calendarDescriptor())
	require.NoError(t, err)
	require.InDelta(t, 4.4, res.Value, 1e-9)
}

func TestCalendarWithoutActualUsesLatestRowNumbers(t *testing.T) {
	t.Parallel()

	raw := []byte(calendarHead + `
<tr><td>2024-12-01</td><td>02:00 PM</td><td>Dec</td><td></td><td>4.62%</td><td>4.5%</td><td></td></tr>
</tbody></table></body></html>`)
	clk := fixedClock{now: time.Date(2024, 12, 15, 0, 0, 0, 0, time.UTC)}

	res, err := New(WithClock(clk)).Parse(raw, calendarDescriptor())
	require.NoError(t, err)
	require.InDelta(t, 4.62, res.Value, 1e-9)
}

func TestHTMLMissNeverPanics(t *testing.T) {
	t.Parallel()

	inputs := [][]byte{
		[]byte("\x00\xff\xfe garbage"),
		[]byte("<html><body><p>nothing numeric here</p></body></html>"),
		[]byte("<table><tr><td>2024-12-01</td></tr>"),
		[]byte("<<<<>>>>"),
	}
	d := htmlDescriptor(0.1, 20, indicator.Hints{Keywords: []string{"rate"}, TableMarkers: []string{"Calendar"}})

	for _, raw := range inputs {
		_, err := New().Parse(raw, d)
		require.ErrorIs(t, err, indicator.ErrExtractionMiss)
	}
}

func TestScanNumbers(t *testing.T) {
	t.Parallel()

	got := scanNumbers("released 2024-12-01 at 14:30: 1,234.5 units, 10y note 3.5 %, m2 growth -0.4")
	require.Equal(t, []number{
		{value: 1234.5},
		{value: 3.5, percent: true},
		{value: -0.4},
	}, got)
}

func TestFindDate(t *testing.T) {
	t.Parallel()

	d, ok := findDate("published december 1, 2024 02:00 pm")
	require.True(t, ok)
	require.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), d)

	for text, want := range map[string]time.Time{
		"updated dec. 1, 2024":   time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC),
		"as of Sept 5, 2024":     time.Date(2024, 9, 5, 0, 0, 0, 0, time.UTC),
		"as of sept. 5 2024":     time.Date(2024, 9, 5, 0, 0, 0, 0, time.UTC),
		"as of September 5 2024": time.Date(2024, 9, 5, 0, 0, 0, 0, time.UTC),
		"release 2024/03/15":     time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
	} {
		d, ok := findDate(text)
		require.True(t, ok, text)
		require.Equal(t, want, d, text)
	}

	_, ok = findDate("no date")
	require.False(t, ok)
}

func TestPickerByName(t *testing.T) {
	t.Parallel()

	p, err := PickerByName("")
	require.NoError(t, err)
	v, ok := p.Pick([]float64{1, 3, 2})
	require.True(t, ok)
	require.InDelta(t, 3.0, v, 1e-9)

	p, err = PickerByName("first")
	require.NoError(t, err)
	v, ok = p.Pick([]float64{1, 3, 2})
	require.True(t, ok)
	require.InDelta(t, 1.0, v, 1e-9)

	_, ok = p.Pick(nil)
	require.False(t, ok)

	_, err = PickerByName("median")
	require.Error(t, err)
}
