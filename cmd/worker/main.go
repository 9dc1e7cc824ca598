package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/news-retriever/internal/bootstrap"
	"github.com/kirillkom/news-retriever/internal/config"
	"github.com/kirillkom/news-retriever/internal/core/domain"
	"github.com/kirillkom/news-retriever/internal/observability/logging"
)

const serviceName = "news-audit-worker"

// The worker drains retrieval events from the broker into the audit table.
// It wires no components: no embedder, no vector index.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_error", "error", err)
		os.Exit(1)
	}
	logger := logging.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		logger.Error("bootstrap_error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if app.Broker == nil || app.Events == nil {
		logger.Error("worker_requires_nats_and_postgres", "nats_url_set", cfg.NATSURL != "", "postgres_dsn_set", cfg.PostgresDSN != "")
		os.Exit(1)
	}

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Broker.SubscribeRetrieval(ctx, logger, func(handlerCtx context.Context, event domain.RetrievalEvent) error {
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(handlerCtx), 5*time.Second)
		defer cancel()
		return app.Events.Save(saveCtx, event)
	})
	if err != nil {
		logger.Error("worker_subscribe_error", "error", err)
		os.Exit(1)
	}
}
