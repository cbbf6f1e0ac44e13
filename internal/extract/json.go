package extract

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/JakeFAU/indicator-feed/internal/indicator"
)

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta       chartMeta `json:"meta"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

// closes returns the non-null, positive closes in chart order.
func (r chartResult) closes() []float64 {
	if len(r.Indicators.Quote) == 0 {
		return nil
	}
	raw := r.Indicators.Quote[0].Close
	out := make([]float64, 0, len(raw))
	for _, c := range raw {
		if c != nil && *c > 0 && !math.IsInf(*c, 0) {
			out = append(out, *c)
		}
	}
	return out
}

type chartMeta struct {
	Symbol             string   `json:"symbol"`
	Currency           string   `json:"currency"`
	RegularMarketPrice *float64 `json:"regularMarketPrice"`
	PreviousClose      *float64 `json:"previousClose"`
	ChartPreviousClose *float64 `json:"chartPreviousClose"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *Extractor) parseJSON(raw []byte, d indicator.Descriptor) (Result, error) {
	var resp chartResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Result{}, fmt.Errorf("%w: decode chart: %w", indicator.ErrParse, err)
	}
	if resp.Chart.Error != nil {
		return Result{}, fmt.Errorf("%w: chart error %s: %s", indicator.ErrParse, resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return Result{}, fmt.Errorf("%w: chart has no result", indicator.ErrParse)
	}
	result := resp.Chart.Result[0]
	if d.Series == indicator.SeriesReturn {
		return chartReturn(result, d)
	}

	meta := result.Meta
	var price float64
	switch closes := result.closes(); {
	case meta.RegularMarketPrice != nil:
		price = *meta.RegularMarketPrice
	case len(closes) > 0:
		price = closes[len(closes)-1]
	default:
		return Result{}, fmt.Errorf("%w: regularMarketPrice missing", indicator.ErrExtractionMiss)
	}
	if !d.Range.Contains(price) {
		return Result{}, fmt.Errorf("%w: price %v outside [%v, %v]", indicator.ErrExtractionMiss, price, d.Range.Min, d.Range.Max)
	}

	res := Result{Value: price, Tactic: indicator.TacticJSON}
	prev := meta.PreviousClose
	if prev == nil {
		prev = meta.ChartPreviousClose
	}
	if prev != nil {
		p := *prev
		res.Previous = &p
	}
	return res, nil
}

// chartReturn is the percent change from the first close of the chart range to the
// latest price, rounded to two decimals.
func chartReturn(result chartResult, d indicator.Descriptor) (Result, error) {
	closes := result.closes()
	if len(closes) < 2 {
		return Result{}, fmt.Errorf("%w: %d closes, need 2 for a return", indicator.ErrExtractionMiss, len(closes))
	}
	base, last := closes[0], closes[len(closes)-1]
	if p := result.Meta.RegularMarketPrice; p != nil && *p > 0 {
		last = *p
	}
	ret := math.Round((last-base)/base*10000) / 100
	if !d.Range.Contains(ret) {
		return Result{}, fmt.Errorf("%w: return %v outside [%v, %v]", indicator.ErrExtractionMiss, ret, d.Range.Min, d.Range.Max)
	}
	return Result{Value: ret, Tactic: indicator.TacticJSON}, nil
}
