package qdrant

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/kirillkom/news-retriever/internal/core/domain"
)

func TestUpsertEnsuresCollectionOncePerVectorSize(t *testing.T) {
	var ensureCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/news":
			atomic.AddInt32(&ensureCalls, 1)
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/news/points":
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "news")
	articles := []domain.IndexedArticle{
		{Article: domain.Article{ID: "a1", Text: "a"}, Vector: []float32{0.1, 0.2}},
		{Article: domain.Article{ID: "a2", Text: "b"}, Vector: []float32{0.3, 0.4}},
	}

	if err := client.Upsert(context.Background(), articles); err != nil {
		t.Fatalf("first Upsert() error = %v", err)
	}
	if err := client.Upsert(context.Background(), articles); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}
	if got := atomic.LoadInt32(&ensureCalls); got != 1 {
		t.Fatalf("expected ensure collection called once, got %d", got)
	}
}

func TestUpsertSendsArticlePayload(t *testing.T) {
	var got struct {
		Points []point `json:"points"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/news":
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/news/points":
			_ = json.NewDecoder(r.Body).Decode(&got)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "news")
	err := client.Upsert(context.Background(), []domain.IndexedArticle{{
		Article: domain.Article{ID: "row-7", Text: "Hotels. Cheap stays", Category: "TRAVEL", Date: "2018-05-01", Link: "https://x/7"},
		Vector:  []float32{1, 0},
	}})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if len(got.Points) != 1 {
		t.Fatalf("expected one point, got %d", len(got.Points))
	}
	p := got.Points[0]
	if p.ID != pointID("row-7") {
		t.Fatalf("unexpected point id %q", p.ID)
	}
	if p.Payload["article_id"] != "row-7" || p.Payload["category"] != "TRAVEL" || p.Payload["link"] != "https://x/7" {
		t.Fatalf("unexpected payload %v", p.Payload)
	}
}

func TestSearchConvertsScoreToDistance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/collections/news/points/search" {
			http.NotFound(w, r)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["limit"] != float64(3) {
			t.Errorf("unexpected limit %v", body["limit"])
		}
		_, _ = w.Write([]byte(`{"result":[
			{"score":0.41,"payload":{"article_id":"a1","text":"politics","category":"POLITICS","date":"2018-01-01","link":"l1"}},
			{"score":0.12,"payload":{"article_id":"a2","text":"sports"}}
		]}`))
	}))
	defer server.Close()

	client := New(server.URL, "news")
	neighbors, err := client.Search(context.Background(), []float32{0.1, 0.2}, 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(neighbors) != 2 {
		t.Fatalf("expected 2 neighbours, got %d", len(neighbors))
	}
	if math.Abs(neighbors[0].Distance-0.59) > 1e-9 {
		t.Fatalf("expected distance 0.59, got %v", neighbors[0].Distance)
	}
	if neighbors[0].Article.ID != "a1" || neighbors[0].Article.Category != "POLITICS" || neighbors[1].Article.ID != "a2" {
		t.Fatalf("unexpected neighbours %+v", neighbors)
	}
}

func TestResetDeletesAndRecreatesCollection(t *testing.T) {
	var calls []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch r.Method {
		case http.MethodDelete:
			http.Error(w, "not found", http.StatusNotFound)
		case http.MethodPut:
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "news")
	if err := client.Reset(context.Background(), 768); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	want := []string{"DELETE /collections/news", "PUT /collections/news"}
	if strings.Join(calls, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected calls %v", calls)
	}
}

func TestCountReadsExactCount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/news/points/count" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"result":{"count":130}}`))
	}))
	defer server.Close()

	n, err := New(server.URL, "news").Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 130 {
		t.Fatalf("expected 130, got %d", n)
	}
}

func TestSearchUnavailableIsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := New(server.URL, "news").Search(context.Background(), []float32{1}, 3)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected error to include body, got %v", err)
	}
}

func TestPointIDKeepsUUIDs(t *testing.T) {
	id := "5b9f1c2e-8f53-4c6b-9b43-1f3a3c1f7e10"
	if got := pointID(id); got != id {
		t.Fatalf("expected uuid kept, got %s", got)
	}
	if pointID("row-1") != pointID("row-1") {
		t.Fatalf("expected deterministic point id")
	}
}
