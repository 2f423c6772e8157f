package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"squeeze/internal/pipeline"
)

type SummaryRow struct {
	Label string
	Value string
	Warn  bool
}

func RenderSummary(rows []SummaryRow) string {
	labelWidth := 0
	valueWidth := 0
	for _, row := range rows {
		if len(row.Label) > labelWidth {
			labelWidth = len(row.Label)
		}
		if len(row.Value) > valueWidth {
			valueWidth = len(row.Value)
		}
	}

	hline := strings.Repeat("-", labelWidth+valueWidth+3)
	lines := []string{hline}

	for _, row := range rows {
		label := padRight(row.Label, labelWidth)
		value := padRight(row.Value, valueWidth)
		style := valueStyle
		if row.Warn {
			style = warnStyle
		}
		line := fmt.Sprintf("%s | %s", labelStyle.Render(label), style.Render(value))
		lines = append(lines, line)
	}

	lines = append(lines, hline)
	return strings.Join(lines, "\n")
}

// BatchRows builds the summary table for a batch run.
func BatchRows(res pipeline.Result) []SummaryRow {
	over := 0
	for _, f := range res.Files {
		if !f.WithinBudget {
			over++
		}
	}
	rows := []SummaryRow{
		{Label: "Images found", Value: fmt.Sprintf("%d", res.Summary.Total)},
		{Label: "Converted", Value: fmt.Sprintf("%d", res.Summary.Processed)},
		{Label: "Failed", Value: fmt.Sprintf("%d", res.Summary.Errors), Warn: res.Summary.Errors > 0},
		{Label: "Over budget", Value: fmt.Sprintf("%d", over), Warn: over > 0},
		{Label: "Input size", Value: FormatBytes(res.Summary.BytesIn)},
		{Label: "Output size", Value: FormatBytes(res.Summary.BytesOut)},
		{Label: "Space saved", Value: FormatBytes(res.Summary.BytesSaved())},
	}
	if res.Archive != "" {
		rows = append(rows, SummaryRow{Label: "Archive", Value: res.Archive})
	}
	if res.Summary.LooseLeft > 0 {
		rows = append(rows, SummaryRow{Label: "Loose copies left", Value: fmt.Sprintf("%d", res.Summary.LooseLeft), Warn: true})
	}
	return rows
}

// FileRows describes a single conversion.
func FileRows(f pipeline.ProcessedFile) []SummaryRow {
	return []SummaryRow{
		{Label: "Output", Value: f.Path},
		{Label: "Dimensions", Value: fmt.Sprintf("%dx%d", f.Width, f.Height)},
		{Label: "Size", Value: FormatBytes(f.Size), Warn: !f.WithinBudget},
		{Label: "Quality", Value: fmt.Sprintf("%d (%d attempts)", f.Quality, f.Attempts)},
		{Label: "BLAKE3", Value: f.Digest},
	}
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

var (
	valueStyle = lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(ColorWarn).Bold(true)
)
