package bolt

import (
	"cmp"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/kirillkom/news-retriever/internal/core/domain"
)

var (
	bucketMeta     = []byte("meta")
	bucketArticles = []byte("articles")

	keyDimension = []byte("dimension")
)

// Index is the writable, file-backed vector index for corpora small enough
// to scan. Vectors live in bbolt and are mirrored in memory; Search is a
// brute-force cosine scan in insertion order. Open holds bbolt's exclusive
// file lock until Close, so only index builds use it; query processes read
// through a Snapshot.
type Index struct {
	db *bbolt.DB

	mu        sync.RWMutex
	dimension int
	entries   []entry
}

type entry struct {
	article domain.Article
	vector  []float32
}

type storedArticle struct {
	Article domain.Article `json:"a"`
	Vector  []float32      `json:"v"`
}

func Open(path string) (*Index, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt index %s: %w", path, err)
	}
	idx, err := New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

func New(db *bbolt.DB) (*Index, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketMeta); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketArticles)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create index buckets: %w", err)
	}

	idx := &Index{db: db}
	if err := idx.load(); err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	return idx, nil
}

func (i *Index) Close() error {
	return i.db.Close()
}

func (i *Index) load() error {
	return i.db.View(func(tx *bbolt.Tx) error {
		dim, entries, err := readEntries(tx)
		if err != nil {
			return err
		}
		i.dimension, i.entries = dim, entries
		return nil
	})
}

// readEntries loads the stored dimension and articles in insertion order.
// Missing buckets read as an empty index.
func readEntries(tx *bbolt.Tx) (int, []entry, error) {
	dim := 0
	if meta := tx.Bucket(bucketMeta); meta != nil {
		if raw := meta.Get(keyDimension); raw != nil {
			parsed, err := strconv.Atoi(string(raw))
			if err != nil {
				return 0, nil, fmt.Errorf("parse dimension: %w", err)
			}
			dim = parsed
		}
	}
	articles := tx.Bucket(bucketArticles)
	if articles == nil {
		return dim, nil, nil
	}
	var entries []entry
	err := articles.ForEach(func(_, v []byte) error {
		var stored storedArticle
		if err := json.Unmarshal(v, &stored); err != nil {
			return fmt.Errorf("decode stored article: %w", err)
		}
		entries = append(entries, entry{article: stored.Article, vector: stored.Vector})
		return nil
	})
	return dim, entries, err
}

func (i *Index) Reset(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("bolt reset: invalid dimension %d", dimension)
	}
	i.mu.Lock()
	defer i.mu.Unlock()

	err := i.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketArticles); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		if _, err := tx.CreateBucket(bucketArticles); err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(keyDimension, []byte(strconv.Itoa(dimension)))
	})
	if err != nil {
		return fmt.Errorf("reset bolt index: %w", err)
	}
	i.dimension = dimension
	i.entries = nil
	return nil
}

func (i *Index) Upsert(_ context.Context, articles []domain.IndexedArticle) error {
	if len(articles) == 0 {
		return nil
	}
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.dimension == 0 {
		return fmt.Errorf("bolt upsert: index not initialised, call Reset first")
	}

	added := make([]entry, 0, len(articles))
	err := i.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketArticles)
		for _, a := range articles {
			if len(a.Vector) != i.dimension {
				return fmt.Errorf("vector dimension mismatch for %q: expected %d, got %d", a.Article.ID, i.dimension, len(a.Vector))
			}
			data, err := json.Marshal(storedArticle{Article: a.Article, Vector: a.Vector})
			if err != nil {
				return err
			}
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			if err := b.Put(sequenceKey(seq), data); err != nil {
				return err
			}
			added = append(added, entry{article: a.Article, vector: a.Vector})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert bolt index: %w", err)
	}
	i.entries = append(i.entries, added...)
	return nil
}

func (i *Index) Count(_ context.Context) (int, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.entries), nil
}

// Search returns the topK nearest articles by cosine distance. Equal
// distances keep insertion order.
func (i *Index) Search(ctx context.Context, queryVector []float32, topK int) ([]domain.Neighbor, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return nearest(ctx, i.entries, i.dimension, queryVector, topK)
}

func nearest(ctx context.Context, entries []entry, dimension int, queryVector []float32, topK int) ([]domain.Neighbor, error) {
	if topK <= 0 || len(entries) == 0 {
		return nil, nil
	}
	if len(queryVector) != dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", dimension, len(queryVector))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]domain.Neighbor, 0, len(entries))
	for _, e := range entries {
		out = append(out, domain.Neighbor{
			Distance: 1 - cosineSimilarity(queryVector, e.vector),
			Article:  e.article,
		})
	}
	slices.SortStableFunc(out, func(a, b domain.Neighbor) int {
		return cmp.Compare(a.Distance, b.Distance)
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func sequenceKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
