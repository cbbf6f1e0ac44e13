package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	numberPattern = regexp.MustCompile(`-?(?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?(\s*%)?`)
	datePattern   = regexp.MustCompile(`\d{4}-\d{2}-\d{2}|\d{4}/\d{2}/\d{2}|(?i:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]{0,6}\.? \d{1,2},? \d{4}`)
	timePattern   = regexp.MustCompile(`\d{1,2}:\d{2}(?::\d{2})?`)
)

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"Jan 2 2006",
	"Jan 2, 2006",
	"Jan. 2 2006",
	"Jan. 2, 2006",
	"January 2 2006",
	"January 2, 2006",
}

type number struct {
	value   float64
	percent bool
}

// scanNumbers returns every standalone number in text. Dates and clock times are
// skipped, as are numbers glued to letters such as "10Y" or "M2".
func scanNumbers(text string) []number {
	text = blank(text, datePattern)
	text = blank(text, timePattern)

	matches := numberPattern.FindAllStringSubmatchIndex(text, -1)
	out := make([]number, 0, len(matches))
	for _, m := range matches {
		start, end := m[0], m[1]
		percent := m[2] >= 0
		digitsEnd := end
		if percent {
			digitsEnd = m[2]
		}
		raw := text[start:digitsEnd]
		if raw[0] == '-' && start > 0 && isWordByte(text[start-1]) {
			raw = raw[1:]
			start++
		}
		if start > 0 && isLetterByte(text[start-1]) {
			continue
		}
		if !percent && digitsEnd < len(text) && isLetterByte(text[digitsEnd]) {
			continue
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
		if err != nil {
			continue
		}
		out = append(out, number{value: v, percent: percent})
	}
	return out
}

func blank(text string, pattern *regexp.Regexp) string {
	return pattern.ReplaceAllStringFunc(text, func(s string) string {
		return strings.Repeat(" ", len(s))
	})
}

// findDate returns the first recognizable calendar date in text.
func findDate(text string) (time.Time, bool) {
	for _, match := range datePattern.FindAllString(text, -1) {
		normalized := strings.Join(strings.Fields(match), " ")
		// time.Parse only knows the three-letter "Sep".
		if len(normalized) > 5 && strings.EqualFold(normalized[:4], "sept") && (normalized[4] == '.' || normalized[4] == ' ') {
			normalized = normalized[:3] + normalized[4:]
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, normalized); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func isLetterByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isWordByte(b byte) bool {
	return isLetterByte(b) || (b >= '0' && b <= '9')
}
