package provenance

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/indicator-feed/internal/indicator"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var testNow = time.Date(2024, 12, 15, 12, 0, 0, 0, time.UTC)

func ptr(v float64) *float64 { return &v }

func descriptor() indicator.Descriptor {
	return indicator.Descriptor{
		ID:             "us10y",
		Title:          "US 10Y Treasury",
		SourceName:     "Trading Economics",
		Range:          indicator.Range{Min: 0.1, Max: 20},
		Unit:           "%",
		Link:           "https://tradingeconomics.com/united-states/government-bond-yield",
		Fallback:       ptr(2.50),
		FallbackChange: -0.03,
	}
}

func TestResolveRealValueWithPrevious(t *testing.T) {
	t.Parallel()

	r := New(fixedClock{now: testNow})
	got := r.Resolve(Outcome{Value: ptr(4.25), Previous: ptr(4.17)}, descriptor(), nil)

	require.True(t, got.IsRealData)
	require.Equal(t, "Trading Economics", got.DataSource)
	require.InDelta(t, 4.25, *got.Value, 1e-9)
	require.Equal(t, 0.08, *got.Change)
	require.True(t, got.IsPositive)
	require.Equal(t, testNow, got.Timestamp)
	require.Equal(t, "%", got.Unit)
	require.Equal(t, "US 10Y Treasury", got.Title)
}

func TestResolveUsesLastRealValue(t *testing.T) {
	t.Parallel()

	r := New(fixedClock{now: testNow})
	got := r.Resolve(Outcome{Value: ptr(4.0)}, descriptor(), ptr(4.1))

	require.True(t, got.IsRealData)
	require.Equal(t, -0.1, *got.Change)
	require.False(t, got.IsPositive)
}

func TestResolveNoPreviousMeansZeroChange(t *testing.T) {
	t.Parallel()

	got := New(nil).Resolve(Outcome{Value: ptr(4.0)}, descriptor(), nil)
	require.True(t, got.IsRealData)
	require.Zero(t, *got.Change)
	require.True(t, got.IsPositive)
}

func TestResolvePlaceholders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		out   Outcome
		label string
	}{
		{
			name:  "proxies exhausted",
			out:   Outcome{Err: fmt.Errorf("fetch: %w", indicator.ErrAllProxiesExhausted)},
			label: indicator.LabelFallback,
		},
		{
			name:  "parse failure",
			out:   Outcome{Err: indicator.ErrParse},
			label: indicator.LabelEstimated,
		},
		{
			name:  "extraction miss",
			out:   Outcome{Err: indicator.ErrExtractionMiss},
			label: indicator.LabelEstimated,
		},
		{
			name:  "no value and no error",
			out:   Outcome{},
			label: indicator.LabelEstimated,
		},
		{
			name:  "out of range value",
			out:   Outcome{Value: ptr(45)},
			label: indicator.LabelEstimated,
		},
		{
			name:  "nan value",
			out:   Outcome{Value: ptr(math.NaN())},
			label: indicator.LabelEstimated,
		},
		{
			name:  "unexpected error",
			out:   Outcome{Err: errors.New("boom")},
			label: indicator.LabelError,
		},
		{
			name:  "panic",
			out:   Outcome{Err: indicator.ErrPipelinePanic},
			label: indicator.LabelError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := New(fixedClock{now: testNow}).Resolve(tt.out, descriptor(), ptr(3.0))
			require.False(t, got.IsRealData)
			require.Equal(t, tt.label, got.DataSource)
			require.True(t, indicator.IsFallbackLabel(got.DataSource))
			require.InDelta(t, 2.50, *got.Value, 1e-9)
			require.InDelta(t, -0.03, *got.Change, 1e-9)
			require.False(t, got.IsPositive)
		})
	}
}

func TestResolvePlaceholderWithoutFallbackValue(t *testing.T) {
	t.Parallel()

	d := descriptor()
	d.Fallback = nil
	got := New(nil).Resolve(Outcome{Err: indicator.ErrAllProxiesExhausted}, d, nil)

	require.Nil(t, got.Value)
	require.Equal(t, indicator.LabelFallback, got.DataSource)
}

func TestResolveDoesNotAliasInputs(t *testing.T) {
	t.Parallel()

	d := descriptor()
	got := New(nil).Resolve(Outcome{Err: indicator.ErrAllProxiesExhausted}, d, nil)
	*got.Value = 99

	require.InDelta(t, 2.50, *d.Fallback, 1e-9)
}
