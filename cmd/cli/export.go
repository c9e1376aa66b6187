package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Imaginary-Space/linear-stagehand-tests/internal/database"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/history"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/report"
)

var (
	exportOutput string
	exportTicket string
	exportSince  string
	exportLimit  int
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export run history to an Excel workbook",
	Long: `Export recorded verification runs from the history database to an xlsx
workbook with one sheet of runs and one sheet of individual criteria.`,
	Example: `  linear-stagehand export --output runs.xlsx
  linear-stagehand export --ticket 9f1c2a --since 2026-01-01T00:00:00Z`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{needsDatabase: "history"},
	RunE:        runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "history.xlsx", "Output file")
	exportCmd.Flags().StringVar(&exportTicket, "ticket", "", "Only runs for this ticket id")
	exportCmd.Flags().StringVar(&exportSince, "since", "", "Only runs finished after this RFC3339 time")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 500, "Maximum number of runs")
}

func runExport(cmd *cobra.Command, args []string) error {
	defer database.Close()

	filter := history.Filter{TicketID: exportTicket, Limit: exportLimit}
	if exportSince != "" {
		since, err := time.Parse(time.RFC3339, exportSince)
		if err != nil {
			return fmt.Errorf("invalid --since: %w", err)
		}
		filter.Since = &since
	}

	entries, err := history.NewStore(database.Pool()).List(cmd.Context(), filter)
	if err != nil {
		return err
	}

	f, err := os.Create(exportOutput)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", exportOutput, err)
	}
	defer f.Close()

	if err := report.WriteHistory(f, entries); err != nil {
		return err
	}

	logger.Info().
		Int("runs", len(entries)).
		Str("file", exportOutput).
		Msg("Exported run history")
	return nil
}
