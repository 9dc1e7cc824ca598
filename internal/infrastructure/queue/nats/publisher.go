package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/news-retriever/internal/core/domain"
	"github.com/kirillkom/news-retriever/internal/infrastructure/resilience"
)

const (
	DefaultSubject = "news.retrieval.completed"
	// AuditQueue is the queue group audit workers join, so each event is
	// stored once however many workers run.
	AuditQueue = "news-audit"

	requestIDHeader = "Request-Id"
)

// Publisher emits retrieval audit events as JSON messages on a subject.
type Publisher struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 2 * time.Second
	}
	if o.ReconnectWait <= 0 {
		o.ReconnectWait = 2 * time.Second
	}
	if o.MaxReconnects <= 0 {
		o.MaxReconnects = 60
	}
	if o.RetryOnFailedConnect == nil {
		retry := true
		o.RetryOnFailedConnect = &retry
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

func New(url, subject string) (*Publisher, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Publisher, error) {
	opts := options.withDefaults()
	if subject == "" {
		subject = DefaultSubject
	}
	logger := opts.Logger

	conn, err := nats.Connect(
		url,
		nats.Name("news-retriever"),
		nats.Timeout(opts.ConnectTimeout),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.RetryOnFailedConnect(*opts.RetryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Publisher{
		conn:     conn,
		subject:  subject,
		executor: opts.ResilienceExecutor,
	}, nil
}

func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

func (p *Publisher) PublishRetrieval(ctx context.Context, event domain.RetrievalEvent) error {
	msg, err := newEventMsg(p.subject, event)
	if err != nil {
		return err
	}
	call := func(_ context.Context) error {
		if err := p.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if p.executor != nil {
		err = p.executor.Execute(ctx, "nats.publish", call, classifyPublishError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return asTemporary(err)
	}
	return nil
}

// SubscribeRetrieval delivers events to handler until ctx is cancelled.
// Subscribers share the AuditQueue group. Undecodable messages are logged
// and skipped. On shutdown the subscription is drained: messages already
// delivered still reach handler, with a context that is not cancelled.
func (p *Publisher) SubscribeRetrieval(ctx context.Context, logger *slog.Logger, handler func(context.Context, domain.RetrievalEvent) error) error {
	if logger == nil {
		logger = slog.Default()
	}
	sub, err := p.conn.QueueSubscribe(p.subject, AuditQueue, eventHandler(context.WithoutCancel(ctx), logger, handler))
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := p.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if !waitDrained(sub, drainTimeout) {
		logger.Warn("retrieval_event_drain_timeout", "timeout", drainTimeout)
	}
	if err := p.conn.FlushTimeout(5 * time.Second); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

const drainTimeout = 10 * time.Second

func eventHandler(ctx context.Context, logger *slog.Logger, handler func(context.Context, domain.RetrievalEvent) error) nats.MsgHandler {
	return func(msg *nats.Msg) {
		event, err := decodeEventMsg(msg)
		if err != nil {
			logger.Warn("retrieval_event_decode_failed", "error", err)
			return
		}
		if err := handler(ctx, event); err != nil {
			logger.Error("retrieval_event_handler_failed", "request_id", event.RequestID, "error", err)
		}
	}
}

// waitDrained polls until a draining subscription has delivered its
// pending messages and closed.
func waitDrained(sub *nats.Subscription, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for sub.IsValid() {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(25 * time.Millisecond)
	}
	return true
}

func encodeEvent(event domain.RetrievalEvent) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal retrieval event: %w", err)
	}
	return payload, nil
}

func newEventMsg(subject string, event domain.RetrievalEvent) (*nats.Msg, error) {
	payload, err := encodeEvent(event)
	if err != nil {
		return nil, err
	}
	msg := nats.NewMsg(subject)
	msg.Data = payload
	if event.RequestID != "" {
		msg.Header.Set(requestIDHeader, event.RequestID)
	}
	return msg, nil
}

// decodeEventMsg falls back to the header for events published without a
// request id in the body.
func decodeEventMsg(msg *nats.Msg) (domain.RetrievalEvent, error) {
	event, err := decodeEvent(msg.Data)
	if err != nil {
		return domain.RetrievalEvent{}, err
	}
	if event.RequestID == "" && msg.Header != nil {
		event.RequestID = msg.Header.Get(requestIDHeader)
	}
	return event, nil
}

func decodeEvent(data []byte) (domain.RetrievalEvent, error) {
	var event domain.RetrievalEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return domain.RetrievalEvent{}, fmt.Errorf("unmarshal retrieval event: %w", err)
	}
	return event, nil
}

// NoopPublisher drops events. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishRetrieval(context.Context, domain.RetrievalEvent) error { return nil }
