package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/news-retriever/internal/bootstrap"
	"github.com/kirillkom/news-retriever/internal/core/domain"
	"github.com/kirillkom/news-retriever/internal/core/ports"
)

var (
	queryText string
	queryJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search the news index",
	Long: `Runs one query with -q, or reads queries line by line until EOF or "exit".

Examples:
  newsctl query -q "politics guns"
  newsctl query -q travel --json`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search query (interactive when empty)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
}

func runQuery(cmd *cobra.Command, args []string) error {
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

	if cmd.Flags().Changed("query") {
		return answer(ctx, cmd.OutOrStdout(), app.Retriever, queryText, queryJSON)
	}
	return interactive(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), app.Retriever, queryJSON)
}

// interactive reads queries until EOF or "exit". Retrieval failures are
// reported and the loop continues.
func interactive(ctx context.Context, in io.Reader, out io.Writer, retriever ports.ArticleRetriever, asJSON bool) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "query> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "exit" || line == "quit" {
			return nil
		}
		if err := answer(ctx, out, retriever, line, asJSON); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func answer(ctx context.Context, out io.Writer, retriever ports.ArticleRetriever, query string, asJSON bool) error {
	outcome, err := retriever.Retrieve(ctx, query)
	if err != nil {
		if domain.IsKind(err, domain.ErrEmptyQuery) {
			fmt.Fprintln(out, outcome.Message)
			return nil
		}
		return err
	}
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(outcome)
	}
	printOutcome(out, outcome)
	return nil
}

func printOutcome(out io.Writer, outcome domain.RetrievalOutcome) {
	fmt.Fprintln(out, outcome.Message)
	for _, r := range outcome.Results {
		fmt.Fprintf(out, "\n#%d  similarity %.3f\n", r.Rank, r.Similarity)
		fmt.Fprintf(out, "    %s\n", r.Article.Text)
		if r.Article.Link != "" {
			fmt.Fprintf(out, "    %s\n", r.Article.Link)
		}
	}
}
