package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/ahrav/docgavel/infrastructure/compare"
	"github.com/ahrav/docgavel/internal/domain"
)

// newTable creates a markdown-style table with left-aligned cells.
func newTable(w io.Writer, headers []string) *tablewriter.Table {
	cfg := tablewriter.Config{
		Header: tw.CellConfig{
			Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
		},
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
		MaxWidth: 120,
		Behavior: tw.Behavior{TrimSpace: tw.Off},
	}
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(cfg),
		tablewriter.WithHeader(headers),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleMarkdown),
			Borders: tw.Border{Left: tw.On, Top: tw.Off, Right: tw.On, Bottom: tw.Off},
		}),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)
}

// writeTable renders the leaf results followed by the document metrics.
func writeTable(w io.Writer, doc domain.DocumentResult) error {
	if _, err := fmt.Fprintf(w, "Document %s (%d sections, %s)\n\n", doc.DocumentID, len(doc.Sections), doc.ExecutionTime); err != nil {
		return err
	}

	leaves := newTable(w, []string{"Section", "Path", "Method", "Expected", "Actual", "Matched", "Score"})
	for _, row := range leafRows(doc) {
		if err := leaves.Append(row); err != nil {
			return err
		}
	}
	if err := leaves.Render(); err != nil {
		return err
	}

	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}

	m := doc.Metrics
	metrics := newTable(w, []string{"Metric", "Value"})
	for _, row := range [][]string{
		{"precision", formatRate(m.Precision)},
		{"recall", formatRate(m.Recall)},
		{"f1_score", formatRate(m.F1Score)},
		{"accuracy", formatRate(m.Accuracy)},
		{"false_alarm_rate", formatRate(m.FalseAlarmRate)},
		{"true_positives", strconv.Itoa(m.TruePositives)},
		{"false_positives", strconv.Itoa(m.FalsePositives)},
		{"false_negatives", strconv.Itoa(m.FalseNegatives)},
		{"true_negatives", strconv.Itoa(m.TrueNegatives)},
	} {
		if err := metrics.Append(row); err != nil {
			return err
		}
	}
	return metrics.Render()
}

func formatRate(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }

// leafRows flattens a document into one row per leaf result.
func leafRows(doc domain.DocumentResult) [][]string {
	var rows [][]string
	for _, s := range doc.Sections {
		for _, leaf := range s.Leaves() {
			status := "no"
			if leaf.Matched {
				status = "yes"
			}
			if leaf.ErrorDetails != "" {
				status = "error"
			}
			rows = append(rows, []string{
				s.SectionID,
				leaf.Path,
				string(leaf.Method),
				compare.Stringify(leaf.Expected),
				compare.Stringify(leaf.Actual),
				status,
				strconv.FormatFloat(leaf.Score, 'f', 3, 64),
			})
		}
	}
	return rows
}
