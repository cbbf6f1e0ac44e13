package extract

import (
	"fmt"
	"math"
)

// Picker chooses one value among in-range candidates.
type Picker interface {
	Pick(candidates []float64) (float64, bool)
}

// PickerFunc adapts a function to Picker.
type PickerFunc func(candidates []float64) (float64, bool)

// Pick implements Picker.
func (f PickerFunc) Pick(candidates []float64) (float64, bool) {
	return f(candidates)
}

// Largest picks the candidate with the greatest magnitude, so a negative headline such
// as -42.5 beats a minor 3.1. Ties keep the earlier candidate.
var Largest Picker = PickerFunc(func(candidates []float64) (float64, bool) {
	if len(candidates) == 0 {
		return 0, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if math.Abs(c) > math.Abs(best) {
			best = c
		}
	}
	return best, true
})

// First picks the candidate that appeared first in the document.
var First Picker = PickerFunc(func(candidates []float64) (float64, bool) {
	if len(candidates) == 0 {
		return 0, false
	}
	return candidates[0], true
})

// PickerByName resolves a configured picker name.
func PickerByName(name string) (Picker, error) {
	switch name {
	case "", "largest":
		return Largest, nil
	case "first":
		return First, nil
	default:
		return nil, fmt.Errorf("unknown picker %q", name)
	}
}
