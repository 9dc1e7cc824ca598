package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/news-retriever/internal/core/domain"
	"github.com/kirillkom/news-retriever/internal/core/ports"
)

const ToolSearchNews = "search_news"

// Server exposes the retriever as an MCP tool so assistants can search the
// news corpus without going through HTTP.
type Server struct {
	retriever ports.ArticleRetriever
	logger    *slog.Logger
	mcp       *server.MCPServer
}

func NewServer(retriever ports.ArticleRetriever, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		retriever: retriever,
		logger:    logger,
		mcp:       server.NewMCPServer("news-retriever", version, server.WithToolCapabilities(false)),
	}
	s.mcp.AddTool(searchNewsTool(), s.handleSearchNews)
	return s
}

func searchNewsTool() mcp.Tool {
	return mcp.NewTool(ToolSearchNews,
		mcp.WithDescription("Semantic search over the news corpus. One-word queries explore around a keyword "+
			"with a relaxed threshold; longer queries return at most three close matches."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search text, e.g. 'travel hotels' or 'politics'."),
		),
	)
}

// ServeStdio speaks MCP over the given streams until ctx is cancelled or
// the input closes.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	return stdio.Listen(ctx, in, out)
}

func (s *Server) handleSearchNews(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	outcome, err := s.retriever.Retrieve(ctx, query)
	if err != nil {
		if domain.IsKind(err, domain.ErrInvalidInput) {
			return mcp.NewToolResultError(outcome.Message), nil
		}
		s.logger.Error("mcp_search_failed", "error", err)
		return mcp.NewToolResultError("retrieval temporarily unavailable"), nil
	}

	s.logger.Info("mcp_search_completed", "mode", outcome.Mode, "reason", outcome.Reason, "results", len(outcome.Results))
	payload, err := json.Marshal(outcome)
	if err != nil {
		return nil, fmt.Errorf("marshal outcome: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(renderOutcome(outcome)),
			mcp.NewTextContent(string(payload)),
		},
	}, nil
}

// renderOutcome is the human-readable part of a tool result.
func renderOutcome(outcome domain.RetrievalOutcome) string {
	var b strings.Builder
	b.WriteString(outcome.Message)
	for _, r := range outcome.Results {
		fmt.Fprintf(&b, "\n%d. [%.3f] %s", r.Rank, r.Similarity, r.Article.Text)
		if r.Article.Link != "" {
			fmt.Fprintf(&b, " (%s)", r.Article.Link)
		}
	}
	return b.String()
}
