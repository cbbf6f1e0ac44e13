// Package provenance turns a pipeline outcome into a dashboard reading, tagging it as
// real source data or as a labelled placeholder.
package provenance

import (
	"fmt"
	"math"

	"github.com/JakeFAU/indicator-feed/internal/clock/system"
	"github.com/JakeFAU/indicator-feed/internal/indicator"
)

// Outcome is what one descriptor pipeline produced. Err is nil only when Value was
// extracted from a real payload.
type Outcome struct {
	Value    *float64
	Previous *float64
	Err      error
}

// Resolver builds readings. It is stateless apart from its clock.
type Resolver struct {
	clock indicator.Clock
}

// New creates a Resolver. A nil clock uses the system clock.
func New(clock indicator.Clock) *Resolver {
	if clock == nil {
		clock = system.New()
	}
	return &Resolver{clock: clock}
}

// Resolve always returns a reading for d. lastReal is the most recent real value seen
// for the descriptor and is used for the change when the outcome carries no previous.
func (r *Resolver) Resolve(o Outcome, d indicator.Descriptor, lastReal *float64) indicator.Reading {
	reading := indicator.Reading{
		ID:        d.ID,
		Title:     d.Title,
		Unit:      d.Unit,
		Symbol:    d.Symbol,
		Link:      d.Link,
		Timestamp: r.clock.Now(),
	}

	err := o.Err
	if err == nil && o.Value == nil {
		err = indicator.ErrExtractionMiss
	}
	if err == nil && !d.Range.Contains(*o.Value) {
		err = fmt.Errorf("%w: %v outside [%v, %v]", indicator.ErrExtractionMiss, *o.Value, d.Range.Min, d.Range.Max)
	}
	if err != nil {
		return placeholder(reading, d, indicator.LabelFor(err))
	}

	value := *o.Value
	change := 0.0
	switch {
	case o.Previous != nil && isFinite(*o.Previous):
		change = round2(value - *o.Previous)
	case lastReal != nil && isFinite(*lastReal):
		change = round2(value - *lastReal)
	}

	reading.Value = &value
	reading.Change = &change
	reading.IsPositive = change >= 0
	reading.IsRealData = true
	reading.DataSource = d.SourceName
	return reading
}

func placeholder(reading indicator.Reading, d indicator.Descriptor, label string) indicator.Reading {
	if d.Fallback != nil {
		v := *d.Fallback
		reading.Value = &v
	}
	change := d.FallbackChange
	reading.Change = &change
	reading.IsPositive = change >= 0
	reading.IsRealData = false
	reading.DataSource = label
	return reading
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
