package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Imaginary-Space/linear-stagehand-tests/internal/criteria"
)

var (
	extractSection bool
	extractOutput  string
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Extract acceptance criteria from a ticket description",
	Long: `Extract acceptance criteria from a ticket description read from a file, or
from stdin when no file (or "-") is given. Checkbox, numbered and, inside an
"Acceptance Criteria" section, bulleted items are recognised.`,
	Example: `  linear-stagehand extract ./ticket.md
  linear-stagehand extract --section < ticket.md
  linear-stagehand extract ./ticket.md --output json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().BoolVar(&extractSection, "section", false, "Also print the located Acceptance Criteria section")
	extractCmd.Flags().StringVar(&extractOutput, "output", "text", "Output format: text or json")
}

func runExtract(cmd *cobra.Command, args []string) error {
	var (
		content []byte
		err     error
	)
	if len(args) == 0 || args[0] == "-" {
		content, err = io.ReadAll(cmd.InOrStdin())
	} else {
		content, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to read description: %w", err)
	}

	return printExtraction(cmd.OutOrStdout(), string(content), extractSection, extractOutput)
}

// extraction is the JSON shape of the extract command
type extraction struct {
	criteria.Result
	Section *criteria.Section `json:"section,omitempty"`
}

func printExtraction(w io.Writer, description string, withSection bool, format string) error {
	result := criteria.Analyze(description)

	var section *criteria.Section
	if withSection {
		if s, ok := criteria.ExtractSection(description); ok {
			section = &s
		}
	}

	switch strings.ToLower(format) {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(extraction{Result: result, Section: section})
	case "text":
	default:
		return fmt.Errorf("invalid output format: %s (use 'text' or 'json')", format)
	}

	if withSection {
		if section == nil {
			fmt.Fprintln(w, "Section: not found, searched the whole description")
		} else {
			fmt.Fprintf(w, "Section: %s %s\n", strings.Repeat("#", section.Level), section.Heading)
			fmt.Fprintln(w, strings.Repeat("-", 60))
			fmt.Fprintln(w, strings.TrimRight(section.Body, "\n"))
			fmt.Fprintln(w, strings.Repeat("-", 60))
		}
	}

	if len(result.Criteria) == 0 {
		fmt.Fprintln(w, "No acceptance criteria found")
		return nil
	}

	fmt.Fprintf(w, "%d criteria (%s):\n", len(result.Criteria), result.Style)
	for i, c := range result.Criteria {
		fmt.Fprintf(w, "%2d. %s\n", i+1, c)
	}
	return nil
}
