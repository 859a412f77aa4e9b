package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kaigen/internal/logger"
	"kaigen/internal/portal"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download invoice and permit PDFs from the vendor portal",
	Long: `Sign in to the vendor's member portal with a headless browser and
download every linked invoice and import permit PDF into a local
directory. With --process the downloaded documents are immediately
booked and archived, equivalent to running "kaigen sync" on the
download directory afterwards.

Required environment variables:
  KAIGEN_USERNAME - Portal login name
  KAIGEN_PASSWORD - Portal password
  KAIGEN_BASE_URL - Portal base URL (optional)`,
	Example: `  # Download into ./downloads
  kaigen fetch --dir ./downloads

  # Download and process in one run
  kaigen fetch --dir ./downloads --process`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().String("dir", "", "Download directory (default: a temporary directory)")
	fetchCmd.Flags().Bool("process", false, "Book and archive the downloaded documents")
	fetchCmd.Flags().Int("timeout", 600, "Processing timeout in seconds")
}

func runFetch(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("fetch-cmd")

	dir, _ := cmd.Flags().GetString("dir")
	process, _ := cmd.Flags().GetBool("process")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.PortalUsername == "" || cfg.PortalPassword == "" {
		return fmt.Errorf("KAIGEN_USERNAME and KAIGEN_PASSWORD are required")
	}

	if dir == "" {
		dir, err = os.MkdirTemp("", "kaigen-downloads-")
		if err != nil {
			return fmt.Errorf("creating download directory: %w", err)
		}
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating download directory %s: %w", dir, err)
	}

	ctx, cancel := commandContext(timeoutSecs, log)
	defer cancel()

	downloader := portal.NewDownloader(portal.Credentials{
		Username: cfg.PortalUsername,
		Password: cfg.PortalPassword,
	}, cfg.PortalBaseURL, dir, cfg.MaxDownloadLinks)

	if err := downloader.Start(); err != nil {
		return fmt.Errorf("starting portal session: %w", err)
	}
	defer func() {
		if closeErr := downloader.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close browser session")
		}
	}()

	docs, err := downloader.Fetch()
	if err != nil {
		return fmt.Errorf("downloading documents: %w", err)
	}

	log.Info().Int("documents", len(docs)).Str("dir", dir).Msg("Download finished")
	fmt.Fprintf(cmd.OutOrStdout(), "Downloaded %d documents to %s\n", len(docs), dir)

	if !process || len(docs) == 0 {
		return nil
	}

	w, cleanup, err := buildWorkflow(ctx, cfg, true, true)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := w.Run(ctx, docs)
	if err != nil {
		return fmt.Errorf("processing documents: %w", err)
	}

	printResult(cmd, result)
	if result.Failed > 0 {
		return fmt.Errorf("%d of %d documents failed", result.Failed, len(docs))
	}
	return nil
}
