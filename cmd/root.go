package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"kaigen/internal/config"
	"kaigen/internal/logger"
	"kaigen/internal/permit"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "kaigen",
	Short: "Kaigen CLI - accounts payable automation for import documents",
	Long: `Kaigen CLI automates bookkeeping for import shipments: it downloads
invoices and import permits from the vendor portal, extracts their data,
writes balanced journal rows to the accounting spreadsheet and archives
the PDFs in Google Drive.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Info().
			Str("version", version).
			Msg("Kaigen CLI executed")

		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

// commandContext returns a context with a timeout that is also canceled
// on SIGINT or SIGTERM.
func commandContext(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Warn().Str("signal", sig.String()).Msg("Received signal, canceling")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// newOracle builds the permit extraction oracle named by provider.
func newOracle(ctx context.Context, provider string) (permit.Oracle, error) {
	switch provider {
	case "openai":
		return permit.NewOpenAIOracle()
	case "documentai":
		return permit.NewDocumentAIOracle(ctx)
	default:
		return nil, fmt.Errorf("unknown oracle provider %q (want openai or documentai)", provider)
	}
}

// oracleCleanup returns a function releasing the oracle's underlying
// client, a no-op for oracles that hold none.
func oracleCleanup(o permit.Oracle) func() {
	closer, ok := o.(io.Closer)
	if !ok {
		return func() {}
	}
	return func() {
		if err := closer.Close(); err != nil {
			log := logger.WithComponent("cmd")
			log.Warn().Err(err).Msg("Failed to close oracle client")
		}
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, nil
}
