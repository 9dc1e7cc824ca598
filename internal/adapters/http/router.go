package httpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/kirillkom/news-retriever/internal/core/domain"
	"github.com/kirillkom/news-retriever/internal/core/ports"
	"github.com/kirillkom/news-retriever/internal/observability/metrics"
)

const (
	defaultServiceName     = "news-api"
	defaultMaxInFlight     = 32
	defaultBackpressureTTL = 250 * time.Millisecond
	eventPublishTimeout    = 2 * time.Second
)

type Options struct {
	ServiceName string

	// RateLimitRPS <= 0 disables the limiter.
	RateLimitRPS   float64
	RateLimitBurst int

	MaxInFlight      int
	BackpressureWait time.Duration

	Metrics   *metrics.HTTPServerMetrics
	Publisher ports.RetrievalEventPublisher
	// Articles is optional; without it the article lookup route is not served.
	Articles ports.ArticleReader
}

type Router struct {
	retriever ports.ArticleRetriever
	opts      Options
}

func NewRouter(retriever ports.ArticleRetriever, opts Options) *Router {
	if opts.ServiceName == "" {
		opts.ServiceName = defaultServiceName
	}
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = defaultMaxInFlight
	}
	if opts.BackpressureWait <= 0 {
		opts.BackpressureWait = defaultBackpressureTTL
	}
	return &Router{retriever: retriever, opts: opts}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("POST /v1/search", rt.searchJSON)
	mux.HandleFunc("GET /v1/search", rt.searchJSON)
	if rt.opts.Articles != nil {
		mux.HandleFunc("GET /v1/articles/{id}", rt.getArticleByID)
	}
	mux.HandleFunc("GET /{$}", rt.searchPage)
	mux.HandleFunc("POST /search", rt.searchPage)
	if rt.opts.Metrics != nil {
		mux.Handle("GET /metrics", rt.opts.Metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.opts.MaxInFlight, rt.opts.BackpressureWait)
	handler = rt.rateLimitMiddleware(handler)
	if rt.opts.Metrics != nil {
		handler = rt.opts.Metrics.Middleware(rt.opts.ServiceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) getArticleByID(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "article id is required"})
		return
	}

	article, err := rt.opts.Articles.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, article)
}

// retrieve runs one query and records its side effects: metrics, the
// outcome log line and the audit event.
func (rt *Router) retrieve(ctx context.Context, endpoint, query string) (domain.RetrievalOutcome, error) {
	start := time.Now()
	outcome, err := rt.retriever.Retrieve(ctx, query)
	duration := time.Since(start)
	requestID := requestIDFromContext(ctx)

	if err != nil {
		if rt.opts.Metrics != nil {
			rt.opts.Metrics.RecordRetrievalError(rt.opts.ServiceName, endpoint, errorKind(err))
		}
		if !domain.IsKind(err, domain.ErrInvalidInput) {
			slog.Error("retrieval_failed", "request_id", requestID, "endpoint", endpoint, "error", err)
		}
		return outcome, err
	}

	if rt.opts.Metrics != nil {
		rt.opts.Metrics.RecordRetrieval(rt.opts.ServiceName, endpoint, string(outcome.Mode), string(outcome.Reason),
			len(outcome.Results), outcome.TopSimilarity(), duration)
	}
	slog.Info("retrieval_completed",
		"request_id", requestID,
		"endpoint", endpoint,
		"mode", outcome.Mode,
		"reason", outcome.Reason,
		"results", len(outcome.Results),
		"top_similarity", outcome.TopSimilarity(),
		"duration_ms", float64(duration.Microseconds())/1000.0,
	)
	rt.publish(ctx, domain.NewRetrievalEvent(requestID, outcome, duration))
	return outcome, nil
}

// publish is best effort: a broker outage never fails a search.
func (rt *Router) publish(ctx context.Context, event domain.RetrievalEvent) {
	if rt.opts.Publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
	defer cancel()
	if err := rt.opts.Publisher.PublishRetrieval(pubCtx, event); err != nil {
		if rt.opts.Metrics != nil {
			rt.opts.Metrics.RecordEventPublishFailure(rt.opts.ServiceName)
		}
		slog.Warn("retrieval_event_publish_failed", "request_id", event.RequestID, "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": publicErrorMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("write_json_failed", "error", err)
	}
}
