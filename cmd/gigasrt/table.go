package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"gigasrt/internal/batch"
	"gigasrt/internal/discovery"
	"gigasrt/internal/domain"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// maxCellWidth keeps long error messages from blowing up the table.
const maxCellWidth = 72

func renderTable(headers []string, rows [][]string, aligns []columnAlignment, footer string) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}
	if footer != "" {
		tw.SetCaption(footer)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
			WidthMax:    maxCellWidth,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// renderSummary lists every planned job in order, followed by skipped inputs.
func renderSummary(jobs []domain.Job, summary batch.Summary, skipped []discovery.Skip) string {
	reports := make(map[string]batch.Report, len(summary.Succeeded)+len(summary.Failed))
	for _, r := range summary.Succeeded {
		reports[r.Job.ID] = r
	}
	for _, r := range summary.Failed {
		reports[r.Job.ID] = r
	}

	rows := make([][]string, 0, len(jobs)+len(skipped))
	for _, job := range jobs {
		report, ran := reports[job.ID]
		switch {
		case !ran:
			rows = append(rows, []string{filepath.Base(job.InputPath), "not run", "", "", ""})
		case report.Err != nil:
			rows = append(rows, []string{
				filepath.Base(job.InputPath), "failed", "", formatElapsed(report.Elapsed), firstLine(report.Err.Error()),
			})
		default:
			rows = append(rows, []string{
				filepath.Base(job.InputPath), "done", strconv.Itoa(report.Segments), formatElapsed(report.Elapsed), job.OutputPath,
			})
		}
	}
	for _, skip := range skipped {
		rows = append(rows, []string{skip.Path, "skipped", "", "", skip.Reason})
	}

	footer := fmt.Sprintf("%d done, %d failed, %d skipped in %s",
		len(summary.Succeeded), len(summary.Failed), len(skipped), formatElapsed(summary.Elapsed))
	return renderTable(
		[]string{"File", "Status", "Segments", "Time", "Output / reason"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
		footer,
	)
}

// renderDiagnostics prints a dependency report.
func renderDiagnostics(report domain.DiagnosticReport) string {
	rows := make([][]string, 0, len(report.Items))
	for _, item := range report.Items {
		detail := item.Message
		if item.Hint != "" && item.Status != domain.DiagnosticStatusPass {
			detail += "\n" + item.Hint
		}
		rows = append(rows, []string{item.Name, strings.ToUpper(string(item.Status)), detail})
	}
	return renderTable([]string{"Check", "Status", "Details"}, rows, nil, "")
}

func formatElapsed(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
