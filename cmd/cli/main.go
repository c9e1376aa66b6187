package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Imaginary-Space/linear-stagehand-tests/config"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/database"
)

// needsDatabase marks commands that read run history
const needsDatabase = "database"

var (
	cfgFile string
	verbose bool
	cfg     *config.Config
	logger  *zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "linear-stagehand",
	Short: "Acceptance criteria verification CLI",
	Long: `A CLI for the ticket verification service. Extracts acceptance criteria
from ticket descriptions, inspects the queue of a running server, and exports
run history to Excel.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// setup loads config and opens the database for commands annotated with needsDatabase.
// Config is optional for the rest.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
	}
	logger = newLogger(cfg, verbose)

	if cmd.Annotations[needsDatabase] == "" {
		return nil
	}
	if cfg == nil || cfg.Database.URL == "" {
		return fmt.Errorf("%s needs DATABASE_URL", cmd.Name())
	}

	if err := database.Connect(cmd.Context(), database.Config{
		URL:             cfg.Database.URL,
		MaxConns:        cfg.Database.MaxConnections,
		MinConns:        cfg.Database.MinConnections,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	}); err != nil {
		return fmt.Errorf("database initialization failed: %w", err)
	}
	logger.Debug().Msg("Database connected")
	return nil
}

// newLogger writes to stderr so command output on stdout stays clean
func newLogger(cfg *config.Config, verbose bool) *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level := zerolog.InfoLevel
	if cfg != nil {
		if parsed, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil && cfg.Logging.Level != "" {
			level = parsed
		}
	}
	if verbose {
		level = zerolog.DebugLevel
	}

	var output io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, NoColor: cfg != nil && cfg.Logging.NoColor}
	if cfg != nil && cfg.Logging.Format == "json" {
		output = os.Stderr
	}

	l := zerolog.New(output).Level(level).With().Timestamp().Logger()
	return &l
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
