package extract

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/indicator-feed/internal/indicator"
)

// Economic calendar tables list Calendar, GMT, Reference, Actual, Previous,
// Consensus, TEForecast. These positions apply when the header is missing.
const (
	defaultDateColumn     = 0
	defaultActualColumn   = 3
	defaultForecastColumn = 6
)

type calendarColumns struct {
	date, actual, forecast int
}

type calendarRow struct {
	date  time.Time
	cells []string
}

// calendarCandidates selects the most recent non-future row that has a populated
// Actual cell and returns its forecast (or actual) value. Without such a row it
// returns every in-range number from the most recent non-future row.
func (e *Extractor) calendarCandidates(p *page, d indicator.Descriptor) []float64 {
	markers := d.Hints.TableMarkers
	if len(markers) == 0 {
		markers = []string{"Calendar", "GMT"}
	}
	table := markedTable(p.doc, markers)
	if table == nil {
		return nil
	}

	cols := locateColumns(table)
	today := truncateDay(e.clock.Now())

	var (
		best   *calendarRow
		bestV  float64
		latest *calendarRow
	)
	for _, row := range calendarRows(table, cols) {
		if row.date.After(today) {
			continue
		}
		if latest == nil || row.date.After(latest.date) {
			latest = &row
		}
		v, ok := rowValue(row, cols, d)
		if !ok {
			continue
		}
		if best == nil || row.date.After(best.date) {
			best = &row
			bestV = v
		}
	}

	if best != nil {
		return []float64{bestV}
	}
	if latest == nil {
		return nil
	}
	var out []float64
	for i, cell := range latest.cells {
		if i == cols.date {
			continue
		}
		out = append(out, inRange(scanNumbers(cell), d)...)
	}
	return out
}

// rowValue reports the row's value when its Actual cell is populated: the forecast
// when it is in range, otherwise the actual.
func rowValue(row calendarRow, cols calendarColumns, d indicator.Descriptor) (float64, bool) {
	actual, ok := firstIn(row.cells, cols.actual)
	if !ok {
		return 0, false
	}
	if forecast, ok := firstIn(row.cells, cols.forecast); ok && d.Range.Contains(forecast) {
		return forecast, true
	}
	if d.Range.Contains(actual) {
		return actual, true
	}
	return 0, false
}

func firstIn(cells []string, idx int) (float64, bool) {
	if idx < 0 || idx >= len(cells) {
		return 0, false
	}
	nums := scanNumbers(cells[idx])
	if len(nums) == 0 {
		return 0, false
	}
	return nums[0].value, true
}

func calendarRows(table *goquery.Selection, cols calendarColumns) []calendarRow {
	var rows []calendarRow
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		tds := tr.Find("td")
		if tds.Length() == 0 {
			return
		}
		cells := make([]string, 0, tds.Length())
		tds.Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, visibleText(td))
		})
		date, ok := time.Time{}, false
		if cols.date < len(cells) {
			date, ok = findDate(cells[cols.date])
		}
		if !ok {
			date, ok = findDate(strings.Join(cells, " "))
		}
		if !ok {
			return
		}
		rows = append(rows, calendarRow{date: truncateDay(date), cells: cells})
	})
	return rows
}

// locateColumns reads header cells when present and falls back to the fixed layout.
func locateColumns(table *goquery.Selection) calendarColumns {
	cols := calendarColumns{
		date:     defaultDateColumn,
		actual:   defaultActualColumn,
		forecast: defaultForecastColumn,
	}
	headers := table.Find("thead th")
	if headers.Length() == 0 {
		headers = table.Find("tr").First().Find("th")
	}
	if headers.Length() == 0 {
		return cols
	}
	forecastFound := false
	headers.Each(func(i int, th *goquery.Selection) {
		label := strings.ToLower(visibleText(th))
		switch {
		case strings.Contains(label, "calendar") || label == "date":
			cols.date = i
		case strings.Contains(label, "actual"):
			cols.actual = i
		case strings.Contains(label, "teforecast"):
			cols.forecast = i
			forecastFound = true
		case strings.Contains(label, "forecast") && !forecastFound:
			cols.forecast = i
		}
	})
	return cols
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
