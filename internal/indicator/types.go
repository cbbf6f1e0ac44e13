// Package indicator defines core types shared across the fetch pipeline.
package indicator

import (
	"math"
	"net/http"
	"time"
)

// Kind identifies the payload format a descriptor's source returns.
type Kind string

// Payload kinds understood by the validator and extractor.
const (
	KindJSON Kind = "json"
	KindHTML Kind = "html"
)

// Series selects what a JSON chart descriptor reports.
type Series string

// Chart series. SeriesReturn is the percent change from the first to the last close of
// the requested chart range, so a 3mo chart yields a three-month return.
const (
	SeriesPrice  Series = "price"
	SeriesReturn Series = "return"
)

// Tactic names one HTML extraction technique.
type Tactic string

// Extraction tactics, in their default order of preference.
const (
	TacticJSON     Tactic = "json"
	TacticKeyword  Tactic = "keyword"
	TacticTable    Tactic = "table"
	TacticCalendar Tactic = "calendar"
	TacticGlobal   Tactic = "global"
)

// DefaultTactics is the HTML tactic order used when a descriptor does not set one.
var DefaultTactics = []Tactic{TacticKeyword, TacticTable, TacticCalendar, TacticGlobal}

// Provenance labels for synthesized readings. A real source name never equals one of these.
const (
	LabelFallback  = "Fallback"
	LabelEstimated = "Estimated"
	LabelError     = "Dummy Data (Error)"
)

// IsFallbackLabel reports whether source is one of the synthesized provenance labels.
func IsFallbackLabel(source string) bool {
	switch source {
	case LabelFallback, LabelEstimated, LabelError:
		return true
	default:
		return false
	}
}

// Range bounds plausible values for an indicator. A zero Range accepts any finite value.
type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Bounded reports whether the range constrains values at all.
func (r Range) Bounded() bool {
	return r.Max > r.Min
}

// Contains reports whether v is finite and, for bounded ranges, inside [Min, Max].
func (r Range) Contains(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	if !r.Bounded() {
		return true
	}
	return v >= r.Min && v <= r.Max
}

// Hints steer the HTML extractor for one descriptor.
type Hints struct {
	Keywords         []string `json:"keywords,omitempty" yaml:"keywords"`
	PreviousKeywords []string `json:"previous_keywords,omitempty" yaml:"previous_keywords"`
	TableMarkers     []string `json:"table_markers,omitempty" yaml:"table_markers"`
	Tactics          []Tactic `json:"tactics,omitempty" yaml:"tactics" validate:"dive,oneof=keyword table calendar global"`
	PercentOnly      bool     `json:"percent_only,omitempty" yaml:"percent_only"`
	// WaitSelector is the CSS selector a rendered page must show before its DOM is read.
	WaitSelector string `json:"wait_selector,omitempty" yaml:"wait_selector"`
}

// Descriptor is the static configuration for one dashboard indicator.
type Descriptor struct {
	ID             string   `json:"id" yaml:"id" validate:"required"`
	Title          string   `json:"title" yaml:"title" validate:"required"`
	Symbol         string   `json:"symbol,omitempty" yaml:"symbol"`
	URLs           []string `json:"urls" yaml:"urls" validate:"required,min=1,dive,url"`
	Kind           Kind     `json:"kind" yaml:"kind" default:"html" validate:"oneof=json html"`
	Series         Series   `json:"series,omitempty" yaml:"series" default:"price" validate:"oneof=price return"`
	SourceName     string   `json:"source_name" yaml:"source_name" validate:"required,realsource"`
	Range          Range    `json:"range" yaml:"range"`
	Hints          Hints    `json:"hints" yaml:"hints"`
	Unit           string   `json:"unit,omitempty" yaml:"unit"`
	Link           string   `json:"link,omitempty" yaml:"link"`
	Fallback       *float64 `json:"fallback,omitempty" yaml:"fallback" validate:"required"`
	FallbackChange float64  `json:"fallback_change" yaml:"fallback_change"`
	Render         bool     `json:"render,omitempty" yaml:"render"`
}

// TacticOrder returns the HTML tactics to try, in order.
func (d Descriptor) TacticOrder() []Tactic {
	if len(d.Hints.Tactics) == 0 {
		return DefaultTactics
	}
	return d.Hints.Tactics
}

// Reading is the per-indicator output handed to the dashboard.
type Reading struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Value      *float64  `json:"value"`
	Change     *float64  `json:"change"`
	IsPositive bool      `json:"isPositive"`
	IsRealData bool      `json:"isRealData"`
	DataSource string    `json:"dataSource"`
	Unit       string    `json:"unit,omitempty"`
	Symbol     string    `json:"symbol,omitempty"`
	Link       string    `json:"link,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Clone returns a deep copy so callers never share pointer fields.
func (r Reading) Clone() Reading {
	cp := r
	if r.Value != nil {
		v := *r.Value
		cp.Value = &v
	}
	if r.Change != nil {
		c := *r.Change
		cp.Change = &c
	}
	return cp
}

// CloneReadings deep copies a slice of readings.
func CloneReadings(src []Reading) []Reading {
	if src == nil {
		return nil
	}
	dst := make([]Reading, len(src))
	for i, r := range src {
		dst[i] = r.Clone()
	}
	return dst
}

// Outcome classifies a single cascade attempt.
type Outcome string

// Attempt outcomes recorded by the cascade.
const (
	OutcomeOK           Outcome = "ok"
	OutcomeNetworkError Outcome = "network_error"
	OutcomeHTTPStatus   Outcome = "http_status"
	OutcomeTimeout      Outcome = "timeout"
	OutcomeRejected     Outcome = "rejected"
	OutcomeRateLimited  Outcome = "rate_limited"
)

// FetchAttempt records one proxy attempt inside a cascade call.
type FetchAttempt struct {
	Proxy        string        `json:"proxy"`
	URL          string        `json:"url"`
	Outcome      Outcome       `json:"outcome"`
	StatusCode   int           `json:"status_code,omitempty"`
	Latency      time.Duration `json:"latency"`
	PayloadBytes int           `json:"payload_bytes"`
	Err          error         `json:"-"`
}

// FetchRequest is the input to a single transport call.
type FetchRequest struct {
	URL     string
	Headers http.Header
	Timeout time.Duration
	// WaitSelector overrides the renderer's default ready selector. Plain HTTP
	// transports ignore it.
	WaitSelector string
}

// FetchResponse captures a transport result.
type FetchResponse struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}
