package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Imaginary-Space/linear-stagehand-tests/internal/handlers"
	httpclient "github.com/Imaginary-Space/linear-stagehand-tests/internal/http"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/http/ratelimit"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/middleware"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/taskqueue"
)

var (
	statusServer string
	statusAPIKey string
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status [ticketId]",
	Short: "Show the queue of a running server",
	Long: `Query a running verification server for its queue. With a ticket id, show
that ticket's run record and queue position instead.`,
	Example: `  linear-stagehand status
  linear-stagehand status 9f1c2a --server http://verifier:3000`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusServer, "server", "", "Server base URL (default http://localhost:<server.port>)")
	statusCmd.Flags().StringVar(&statusAPIKey, "api-key", "", "Internal API key (default from config)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	server := statusServer
	apiKey := statusAPIKey
	if server == "" {
		port := 3000
		if cfg != nil && cfg.Server.Port != 0 {
			port = cfg.Server.Port
		}
		server = fmt.Sprintf("http://localhost:%d", port)
	}
	if apiKey == "" && cfg != nil {
		apiKey = cfg.Server.InternalAPIKey
	}

	client := httpclient.NewClient(ratelimit.Config{MaxRetries: 1, InitialBackoffMs: 200, MaxBackoffMs: 1000},
		httpclient.WithTimeout(10*time.Second))
	header := http.Header{}
	header.Set(middleware.InternalAPIKeyHeader, apiKey)

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	base := strings.TrimRight(server, "/") + "/internal"
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		var run handlers.RunStatusResponse
		if err := client.DoJSON(ctx, http.MethodGet, base+"/runs/"+args[0], header, nil, &run); err != nil {
			return fmt.Errorf("failed to fetch run: %w", err)
		}
		printRun(out, run)
		return nil
	}

	var status taskqueue.Status
	if err := client.DoJSON(ctx, http.MethodGet, base+"/queue", header, nil, &status); err != nil {
		return fmt.Errorf("failed to fetch queue status: %w", err)
	}
	printQueue(out, status, time.Now())
	return nil
}

func printRun(out io.Writer, run handlers.RunStatusResponse) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintf(w, "Ticket\t%s\n", run.Run.TicketID)
	fmt.Fprintf(w, "Run\t%s\n", run.Run.RunID)
	fmt.Fprintf(w, "Status\t%s\n", run.Run.Status)
	if run.Position > 0 {
		fmt.Fprintf(w, "Position\t%d\n", run.Position)
	}
	fmt.Fprintf(w, "Queued\t%s\n", run.Run.QueuedAt.Format(time.RFC3339))
	if run.Run.StartedAt != nil {
		fmt.Fprintf(w, "Started\t%s\n", run.Run.StartedAt.Format(time.RFC3339))
	}
	if run.Run.CompletedAt != nil {
		fmt.Fprintf(w, "Completed\t%s\n", run.Run.CompletedAt.Format(time.RFC3339))
	}
	if run.Run.Error != "" {
		fmt.Fprintf(w, "Error\t%s\n", run.Run.Error)
	}
	w.Flush()
}

func printQueue(out io.Writer, status taskqueue.Status, now time.Time) {
	fmt.Fprintf(out, "Running %d/%d, waiting %d\n\n", status.RunningCount, status.Concurrency, status.QueuedCount)

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintf(w, "Ticket\tState\tSince\n")
	fmt.Fprintf(w, "------\t-----\t-----\n")
	for _, t := range status.Running {
		since := t.EnqueuedAt
		if t.StartedAt != nil {
			since = *t.StartedAt
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", t.ID, t.State, now.Sub(since).Round(time.Second))
	}
	for _, t := range status.Queued {
		fmt.Fprintf(w, "%s\t%s\t%s\n", t.ID, t.State, now.Sub(t.EnqueuedAt).Round(time.Second))
	}
	w.Flush()
}
