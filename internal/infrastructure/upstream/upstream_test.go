package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/news-retriever/internal/core/domain"
)

func TestDoJSONSendsBodyAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Fatalf("unexpected method %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer k" {
			t.Fatalf("missing auth header, got %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Fatalf("unexpected content type %q", got)
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	err := DoJSON(context.Background(), srv.Client(), "svc", "op", Request{
		Method: http.MethodPut,
		URL:    srv.URL,
		Header: http.Header{"Authorization": {"Bearer k"}},
		Body:   map[string]int{"a": 1},
	}, &out)
	if err != nil {
		t.Fatalf("DoJSON() error = %v", err)
	}
	if !out.OK {
		t.Fatalf("response not decoded")
	}
}

func TestDoJSONReturnsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "collection missing", http.StatusNotFound)
	}))
	defer srv.Close()

	err := DoJSON(context.Background(), srv.Client(), "qdrant", "search", Request{Method: http.MethodGet, URL: srv.URL}, nil)
	if !IsStatus(err, http.StatusNotFound) {
		t.Fatalf("expected 404 status error, got %v", err)
	}
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Body != "collection missing" || statusErr.Service != "qdrant" {
		t.Fatalf("unexpected status error %+v", statusErr)
	}
}

func TestClassify(t *testing.T) {
	status := func(code int) error {
		return fmt.Errorf("wrapped: %w", &StatusError{Service: "s", Operation: "o", StatusCode: code, Status: http.StatusText(code)})
	}
	tests := []struct {
		name      string
		err       error
		retryable bool
		record    bool
	}{
		{name: "canceled", err: context.Canceled},
		{name: "circuit open", err: gobreaker.ErrOpenState, retryable: true, record: true},
		{name: "rate limited", err: status(http.StatusTooManyRequests), retryable: true, record: true},
		{name: "server error", err: status(http.StatusBadGateway), retryable: true, record: true},
		{name: "bad request", err: status(http.StatusBadRequest)},
		{name: "unknown", err: errors.New("boom"), record: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if got.Retryable != tt.retryable || got.RecordFailure != tt.record {
				t.Fatalf("Classify() = %+v, want retryable=%v record=%v", got, tt.retryable, tt.record)
			}
		})
	}
}

func TestAsTemporary(t *testing.T) {
	unavailable := &StatusError{StatusCode: http.StatusServiceUnavailable}
	if err := AsTemporary("embed", unavailable); !domain.IsKind(err, domain.ErrTemporary) || !errors.As(err, new(*StatusError)) {
		t.Fatalf("expected temporary wrapping that keeps the cause, got %v", err)
	}
	bad := &StatusError{StatusCode: http.StatusBadRequest}
	if err := AsTemporary("embed", bad); domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("400 must not become temporary")
	}
	if AsTemporary("embed", nil) != nil {
		t.Fatalf("nil must stay nil")
	}
}
