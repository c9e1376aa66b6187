// Package report exports verification history as Excel workbooks.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Imaginary-Space/linear-stagehand-tests/internal/history"
)

const (
	// RunsSheet holds one row per run
	RunsSheet = "Runs"
	// CriteriaSheet holds one row per checked criterion
	CriteriaSheet = "Criteria"
)

var (
	runsHeader = []any{
		"Run ID", "Ticket ID", "Identifier", "Status", "Passed", "Failed",
		"Errored", "Target URL", "Started", "Finished", "Duration (s)", "Error",
	}
	criteriaHeader = []any{
		"Run ID", "Identifier", "#", "Criterion", "Verdict", "Reasoning",
		"Screenshot", "Error", "Duration (ms)",
	}
)

// WriteHistory writes entries as a workbook with a Runs and a Criteria sheet.
func WriteHistory(w io.Writer, entries []history.Entry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", RunsSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(CriteriaSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeHeader(f, RunsSheet, runsHeader, headerStyle); err != nil {
		return err
	}
	if err := writeHeader(f, CriteriaSheet, criteriaHeader, headerStyle); err != nil {
		return err
	}

	criteriaRow := 2
	for i, e := range entries {
		row := []any{
			e.RunID,
			e.TicketID,
			e.Identifier,
			string(e.Status),
			e.Passed,
			e.Failed,
			e.Errored,
			e.TargetURL,
			formatTime(e.StartedAt),
			formatTime(e.FinishedAt),
			e.FinishedAt.Sub(e.StartedAt).Seconds(),
			e.Error,
		}
		if err := setRow(f, RunsSheet, i+2, row); err != nil {
			return err
		}

		for _, c := range e.Criteria {
			row := []any{
				e.RunID,
				e.Identifier,
				c.Index + 1,
				c.Criterion,
				string(c.Verdict),
				c.Reasoning,
				c.ScreenshotKey,
				c.Error,
				c.DurationMs,
			}
			if err := setRow(f, CriteriaSheet, criteriaRow, row); err != nil {
				return err
			}
			criteriaRow++
		}
	}

	_ = f.SetColWidth(RunsSheet, "A", "C", 38)
	_ = f.SetColWidth(RunsSheet, "H", "J", 28)
	_ = f.SetColWidth(CriteriaSheet, "D", "D", 60)
	_ = f.SetColWidth(CriteriaSheet, "F", "F", 80)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, header []any, style int) error {
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheet, 1, 1, style); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
