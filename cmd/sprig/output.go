package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/FranksOps/sprig/internal/keyword"
)

// newTable returns a borderless, left-aligned table writing to w.
func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{
					AutoWrap: tw.WrapNone,
				},
				Alignment: tw.CellAlignment{
					Global: tw.AlignLeft,
				},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{
					AutoFormat: tw.On,
				},
				Alignment: tw.CellAlignment{
					Global: tw.AlignLeft,
				},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{
					ShowHeader: tw.Off,
				},
			},
		}),
	)
}

// renderTable writes header and rows as a table.
func renderTable(w io.Writer, header []string, rows [][]string) error {
	t := newTable(w)
	t.Header(header)
	if err := t.Bulk(rows); err != nil {
		return fmt.Errorf("building table: %w", err)
	}
	if err := t.Render(); err != nil {
		return fmt.Errorf("rendering table: %w", err)
	}
	return nil
}

var keywordHeader = []string{"keyword", "volume", "cpc", "competition", "level", "intent", "difficulty", "trend"}

func keywordRow(r keyword.Record) []string {
	return []string{
		r.Keyword,
		strconv.Itoa(r.SearchVolume),
		strconv.FormatFloat(r.CPC, 'f', 2, 64),
		strconv.FormatFloat(r.Competition, 'f', 2, 64),
		string(r.CompetitionLevel),
		string(r.Intent),
		strconv.Itoa(r.Difficulty),
		sparkline(r.Trend[:]),
	}
}

// writeKeywords prints records as a table, JSON or CSV.
func writeKeywords(w io.Writer, format string, records []keyword.Record) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("encoding json: %w", err)
		}
		return nil
	case "csv":
		cw := csv.NewWriter(w)
		if err := cw.Write(keywordHeader); err != nil {
			return fmt.Errorf("writing csv: %w", err)
		}
		for _, r := range records {
			row := keywordRow(r)
			row[len(row)-1] = joinTrend(r.Trend[:])
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("writing csv: %w", err)
			}
		}
		cw.Flush()
		return cw.Error()
	case "", "table":
		rows := make([][]string, 0, len(records))
		for _, r := range records {
			rows = append(rows, keywordRow(r))
		}
		return renderTable(w, keywordHeader, rows)
	default:
		return fmt.Errorf("unknown format %q (must be table, json, or csv)", format)
	}
}

// joinTrend renders a trend series as "12;15;9" for spreadsheets.
func joinTrend(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ";")
}

var sparks = []rune("▁▂▃▄▅▆▇█")

// sparkline renders a trend series as block characters scaled to its peak.
func sparkline(values []int) string {
	peak := 0
	for _, v := range values {
		peak = max(peak, v)
	}
	out := make([]rune, len(values))
	for i, v := range values {
		idx := 0
		if peak > 0 {
			idx = v * (len(sparks) - 1) / peak
		}
		out[i] = sparks[idx]
	}
	return string(out)
}
