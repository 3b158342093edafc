package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/PVL-Linh/LegalBot-AI/internal/daemon"
	"github.com/PVL-Linh/LegalBot-AI/internal/logger"
	"github.com/PVL-Linh/LegalBot-AI/pkg/retrieval"
)

var ingestWatch bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [paths...]",
	Short: "Index legal documents into the corpus",
	Long: `Chunk, embed and store legal documents (.pdf, .txt, .md) in the vector
index. Directories are walked recursively. Without arguments the configured
corpus directory is used. With --watch the command keeps running and
re-indexes files as they change.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestWatch, "watch", false, "keep watching the first directory for changes")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	paths := args
	if len(paths) == 0 && cfg.Corpus.Dir != "" {
		paths = []string{cfg.Corpus.Dir}
	}
	if len(paths) == 0 {
		return fmt.Errorf("no paths given and corpus.dir is not configured")
	}

	log, err := logger.New(logger.Config{Level: cfg.Logging.Level, Console: true, Pretty: true})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()
	zl := log.Zerolog()

	resources := daemon.NewRetrievalResources(cfg, zl)
	defer resources.Close()

	ingester, err := retrieval.NewIngester(resources, cfg.Index.Namespace, zl)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := ingester.IngestPaths(ctx, paths...)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d files (%d chunks, %d skipped)\n", stats.Files, stats.Chunks, stats.Skipped)

	if !ingestWatch {
		return nil
	}
	return watchCorpus(ctx, ingester, paths[0], zl)
}

func watchCorpus(ctx context.Context, ingester *retrieval.Ingester, dir string, logger zerolog.Logger) error {
	watcher, err := retrieval.NewCorpusWatcher(logger, 0, func(paths []string) {
		for _, path := range paths {
			if err := ingester.Sync(ctx, path); err != nil {
				logger.Warn().Err(err).Str("path", path).Msg("Corpus sync failed")
			} else {
				logger.Info().Str("path", path).Msg("Corpus file synced")
			}
		}
	})
	if err != nil {
		return err
	}
	defer watcher.Stop()

	if err := watcher.Watch(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	logger.Info().Str("dir", dir).Msg("Watching corpus for changes")

	<-ctx.Done()
	return nil
}
