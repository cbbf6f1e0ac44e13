package indicator

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRangeContains(t *testing.T) {
	t.Parallel()

	bounded := Range{Min: 0.1, Max: 20}
	require.True(t, bounded.Bounded())
	require.True(t, bounded.Contains(3.2))
	require.True(t, bounded.Contains(20))
	require.False(t, bounded.Contains(0.05))
	require.False(t, bounded.Contains(2024))
	require.False(t, bounded.Contains(math.NaN()))

	open := Range{}
	require.False(t, open.Bounded())
	require.True(t, open.Contains(-1e9))
	require.False(t, open.Contains(math.Inf(1)))
}

func TestLabelFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"exhausted", fmt.Errorf("fetch: %w", ErrAllProxiesExhausted), LabelFallback},
		{"parse", fmt.Errorf("decode: %w", ErrParse), LabelEstimated},
		{"miss", ErrExtractionMiss, LabelEstimated},
		{"panic", ErrPipelinePanic, LabelError},
		{"unknown", errors.New("boom"), LabelError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, LabelFor(tt.err))
			require.True(t, IsFallbackLabel(LabelFor(tt.err)))
		})
	}
	require.False(t, IsFallbackLabel("Yahoo Finance"))
}

func TestReadingCloneDetachesPointers(t *testing.T) {
	t.Parallel()

	v, c := 4.25, 0.08
	orig := []Reading{{Title: "US 10Y", Value: &v, Change: &c}}
	cp := CloneReadings(orig)
	*cp[0].Value = 1

	require.InDelta(t, 4.25, *orig[0].Value, 1e-9)
	require.Nil(t, CloneReadings(nil))
}

func TestDescriptorTacticOrder(t *testing.T) {
	t.Parallel()

	require.Equal(t, DefaultTactics, Descriptor{}.TacticOrder())
	d := Descriptor{Hints: Hints{Tactics: []Tactic{TacticCalendar}}}
	require.Equal(t, []Tactic{TacticCalendar}, d.TacticOrder())
}
