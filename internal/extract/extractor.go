// Package extract pulls a single numeric reading out of a validated payload.
//
// JSON payloads are decoded as Yahoo chart responses. HTML payloads are scanned with
// an ordered list of tactics; the first tactic that produces an in-range candidate
// wins, and a Picker chooses among that tactic's candidates.
package extract

import (
	"fmt"

	"github.com/JakeFAU/indicator-feed/internal/clock/system"
	"github.com/JakeFAU/indicator-feed/internal/indicator"
)

// DefaultWindow is how many characters after a keyword are searched for its value.
const DefaultWindow = 120

// Result is a successful extraction.
type Result struct {
	Value    float64
	Previous *float64
	Tactic   indicator.Tactic
}

// Extractor is safe for concurrent use.
type Extractor struct {
	picker Picker
	clock  indicator.Clock
	window int
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithPicker replaces the default Largest picker.
func WithPicker(p Picker) Option {
	return func(e *Extractor) {
		if p != nil {
			e.picker = p
		}
	}
}

// WithClock sets the clock used to drop future calendar rows.
func WithClock(c indicator.Clock) Option {
	return func(e *Extractor) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithWindow sets the keyword search window.
func WithWindow(chars int) Option {
	return func(e *Extractor) {
		if chars > 0 {
			e.window = chars
		}
	}
}

// New builds an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		picker: Largest,
		clock:  system.New(),
		window: DefaultWindow,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the descriptor's value from raw, or false when none can be found.
func (e *Extractor) Extract(raw []byte, d indicator.Descriptor) (Result, bool) {
	res, err := e.Parse(raw, d)
	return res, err == nil
}

// Parse is Extract with the reason for a miss. Errors wrap indicator.ErrParse or
// indicator.ErrExtractionMiss.
func (e *Extractor) Parse(raw []byte, d indicator.Descriptor) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = Result{}, fmt.Errorf("%w: recovered: %v", indicator.ErrParse, r)
		}
	}()
	if len(raw) == 0 {
		return Result{}, fmt.Errorf("%w: empty payload", indicator.ErrParse)
	}
	if d.Kind == indicator.KindJSON {
		return e.parseJSON(raw, d)
	}
	return e.parseHTML(raw, d)
}

func inRange(nums []number, d indicator.Descriptor) []float64 {
	out := make([]float64, 0, len(nums))
	for _, n := range nums {
		if d.Hints.PercentOnly && !n.percent {
			continue
		}
		if d.Range.Contains(n.value) {
			out = append(out, n.value)
		}
	}
	return out
}
