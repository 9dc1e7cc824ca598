package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kirillkom/news-retriever/internal/config"
	"github.com/kirillkom/news-retriever/internal/observability/logging"
)

const serviceName = "newsctl"

var (
	envFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "newsctl",
	Short: "Build and query the news semantic-search index",
	Long: `newsctl prepares the news corpus, rebuilds the vector index and runs queries
against it from the terminal or as an MCP tool server.

Example usage:
  newsctl convert -i News_Category_Dataset_v3.json -o data/news_rag_table.csv
  newsctl index data/news_rag_table.csv
  newsctl query -q "travel hotels"
  newsctl query                     # interactive loop
  newsctl mcp                       # MCP server on stdio`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile != "" {
			if err := os.Setenv("ENV_FILE", envFile); err != nil {
				return fmt.Errorf("set env file: %w", err)
			}
		}
		// Logs go to stderr: stdout carries results and the MCP protocol.
		logging.SetDefault(logging.NewJSONLoggerTo(os.Stderr, serviceName, logLevel))
		return nil
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file to load (default is ./.env)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	slog.Debug("config_loaded", "embedding_provider", cfg.EmbeddingProvider, "vector_backend", cfg.VectorBackend)
	return cfg, nil
}
