package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/JakeFAU/indicator-feed/internal/indicator"
)

var (
	positive    = color.New(color.FgGreen).SprintFunc()
	negative    = color.New(color.FgRed).SprintFunc()
	placeholder = color.New(color.FgYellow).SprintFunc()
	faint       = color.New(color.Faint).SprintFunc()
)

func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{ShowHeader: tw.Off},
			},
		}),
	)
}

func renderReadings(w io.Writer, readings []indicator.Reading) error {
	table := newTable(w)
	table.Header([]string{"Indicator", "Value", "Change", "Unit", "Source"})
	rows := make([][]string, 0, len(readings))
	for _, r := range readings {
		source := r.DataSource
		if !r.IsRealData {
			source = placeholder(source)
		}
		rows = append(rows, []string{r.Title, formatValue(r.Value), formatChange(r), r.Unit, source})
	}
	if err := table.Bulk(rows); err != nil {
		return fmt.Errorf("render readings: %w", err)
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("render readings: %w", err)
	}
	return nil
}

func formatValue(v *float64) string {
	if v == nil {
		return faint("n/a")
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func formatChange(r indicator.Reading) string {
	if r.Change == nil {
		return faint("n/a")
	}
	s := strconv.FormatFloat(*r.Change, 'f', 2, 64)
	switch {
	case *r.Change > 0:
		return positive("+" + s)
	case *r.Change < 0:
		return negative(s)
	default:
		return s
	}
}

func writeJSON(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
