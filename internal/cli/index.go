package cli

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kirillkom/news-retriever/internal/bootstrap"
	"github.com/kirillkom/news-retriever/internal/infrastructure/dataset"
	"github.com/kirillkom/news-retriever/internal/observability/metrics"
)

var (
	indexMetricsFile string
	indexQuiet       bool
)

var indexCmd = &cobra.Command{
	Use:   "index [table]",
	Short: "Rebuild the vector index from a corpus table",
	Long: `Embeds every article of the corpus table and replaces the vector index with
the result. The table needs the columns text, category, date and link; rows
without an id get one assigned. When Postgres is configured the table is stored
there as well, so articles can be looked up by id.

Examples:
  newsctl index
  newsctl index data/news_rag_table.xlsx --metrics-file /var/lib/node_exporter/news_index.prom`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().StringVar(&indexMetricsFile, "metrics-file", "", "write Prometheus textfile metrics here")
	indexCmd.Flags().BoolVar(&indexQuiet, "quiet", false, "disable the progress bar")
}

func runIndex(cmd *cobra.Command, args []string) error {
	table := "data/news_rag_table.csv"
	if len(args) > 0 {
		table = args[0]
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	articles, err := dataset.LoadTable(table)
	if err != nil {
		return fmt.Errorf("load corpus table: %w", err)
	}

	ctx := cmd.Context()
	app, err := bootstrap.New(ctx, cfg, bootstrap.Build)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	m := metrics.NewIndexMetrics(serviceName)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Indexing %d articles from %s into %s...\n", len(articles), table, cfg.VectorBackend)

	var (
		bar   *progressbar.ProgressBar
		barMu sync.Mutex
	)
	progress := func(done, total int) {
		m.ObserveBatch()
		if indexQuiet {
			return
		}
		barMu.Lock()
		defer barMu.Unlock()
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(cmd.ErrOrStderr())
				}),
			)
		}
		_ = bar.Set(done)
	}

	start := time.Now()
	report, buildErr := app.Indexer.Build(ctx, articles, progress)
	m.FinishBuild(serviceName, report.Articles, time.Since(start), buildErr)
	if indexMetricsFile != "" {
		if err := m.WriteTextfile(indexMetricsFile); err != nil {
			slog.Warn("index_metrics_write_failed", "path", indexMetricsFile, "error", err)
		}
	}
	if buildErr != nil {
		return fmt.Errorf("indexing failed: %w", buildErr)
	}

	count, err := app.IndexSize(ctx)
	if err != nil {
		return fmt.Errorf("count indexed articles: %w", err)
	}
	fmt.Fprintf(out, "Indexed %d articles (dimension %d, %d batches) in %s; index now holds %d items.\n",
		report.Articles, report.Dimension, report.Batches, report.Duration.Round(time.Millisecond), count)
	return nil
}
