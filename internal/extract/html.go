package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/JakeFAU/indicator-feed/internal/indicator"
)

// page is a parsed HTML payload plus its lowercased visible text.
type page struct {
	doc  *goquery.Document
	text string
}

func newPage(raw []byte) (*page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %w", indicator.ErrParse, err)
	}
	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	return &page{doc: doc, text: strings.ToLower(visibleText(body))}, nil
}

func (e *Extractor) parseHTML(raw []byte, d indicator.Descriptor) (Result, error) {
	p, err := newPage(raw)
	if err != nil {
		return Result{}, err
	}
	tactics := d.TacticOrder()
	for _, tactic := range tactics {
		candidates := e.candidates(p, tactic, d)
		v, ok := e.picker.Pick(candidates)
		if !ok || !d.Range.Contains(v) {
			continue
		}
		return Result{Value: v, Previous: e.previous(p, d), Tactic: tactic}, nil
	}
	return Result{}, fmt.Errorf("%w: tactics %v", indicator.ErrExtractionMiss, tactics)
}

func (e *Extractor) candidates(p *page, tactic indicator.Tactic, d indicator.Descriptor) []float64 {
	switch tactic {
	case indicator.TacticKeyword:
		return e.keywordCandidates(p, d)
	case indicator.TacticTable:
		return tableCandidates(p, d)
	case indicator.TacticCalendar:
		return e.calendarCandidates(p, d)
	case indicator.TacticGlobal:
		return inRange(scanNumbers(p.text), d)
	default:
		return nil
	}
}

// keywordCandidates takes the number nearest each keyword occurrence: the first one
// after it within the window, else the last one before it.
func (e *Extractor) keywordCandidates(p *page, d indicator.Descriptor) []float64 {
	var out []float64
	for _, kw := range d.Hints.Keywords {
		for _, n := range e.numbersNear(p.text, kw) {
			if d.Hints.PercentOnly && !n.percent {
				continue
			}
			if d.Range.Contains(n.value) {
				out = append(out, n.value)
			}
		}
	}
	return out
}

func (e *Extractor) previous(p *page, d indicator.Descriptor) *float64 {
	for _, kw := range d.Hints.PreviousKeywords {
		for _, n := range e.numbersNear(p.text, kw) {
			if d.Range.Contains(n.value) {
				v := n.value
				return &v
			}
		}
	}
	return nil
}

func (e *Extractor) numbersNear(text, keyword string) []number {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	if kw == "" {
		return nil
	}
	var out []number
	for from := 0; from < len(text); {
		idx := strings.Index(text[from:], kw)
		if idx < 0 {
			break
		}
		kwStart := from + idx
		kwEnd := kwStart + len(kw)
		from = kwEnd

		after := scanNumbers(text[kwEnd:windowEnd(text, kwEnd+e.window)])
		if len(after) > 0 {
			out = append(out, after[0])
			continue
		}
		before := scanNumbers(text[windowStart(text, kwStart-e.window):kwStart])
		if len(before) > 0 {
			out = append(out, before[len(before)-1])
		}
	}
	return out
}

// windowEnd extends end so a number straddling the window edge is kept whole.
func windowEnd(text string, end int) int {
	if end >= len(text) {
		return len(text)
	}
	for end < len(text) && isNumberByte(text[end]) {
		end++
	}
	return end
}

func windowStart(text string, start int) int {
	if start <= 0 {
		return 0
	}
	for start > 0 && isNumberByte(text[start-1]) {
		start--
	}
	return start
}

func isNumberByte(b byte) bool {
	return (b >= '0' && b <= '9') || b == '.' || b == ','
}

func tableCandidates(p *page, d indicator.Descriptor) []float64 {
	table := markedTable(p.doc, d.Hints.TableMarkers)
	if table == nil {
		return nil
	}
	var out []float64
	table.Find("td").Each(func(_ int, cell *goquery.Selection) {
		out = append(out, inRange(scanNumbers(visibleText(cell)), d)...)
	})
	return out
}

// markedTable returns the first table whose text contains every marker. With no
// markers it returns the first table that contains a date.
func markedTable(doc *goquery.Document, markers []string) *goquery.Selection {
	var found *goquery.Selection
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		text := visibleText(table)
		if len(markers) == 0 {
			if datePattern.MatchString(text) {
				found = table
				return false
			}
			return true
		}
		lower := strings.ToLower(text)
		for _, marker := range markers {
			if !strings.Contains(lower, strings.ToLower(marker)) {
				return true
			}
		}
		found = table
		return false
	})
	return found
}

// visibleText joins the text nodes under sel with single spaces, skipping script-like
// elements so adjacent cells never run together.
func visibleText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		writeText(&b, n)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		b.WriteByte(' ')
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "template", "head":
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
}
