package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	mcpadapter "github.com/kirillkom/news-retriever/internal/adapters/mcp"
	"github.com/kirillkom/news-retriever/internal/bootstrap"
)

// version is set at build time via -ldflags.
var version = "dev"

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the search_news tool over MCP stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		app, err := bootstrap.New(ctx, cfg, bootstrap.Search)
		if err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
		defer app.Close()

		slog.Info("mcp_server_starting", "tool", mcpadapter.ToolSearchNews)
		return mcpadapter.NewServer(app.Retriever, version, slog.Default()).ServeStdio(ctx, os.Stdin, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
