package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"

	"github.com/kirillkom/news-retriever/internal/core/domain"
)

const (
	DefaultSampleSize = 130
	DefaultSampleSeed = 42
)

// NewsRecord is one line of the News Category dataset (JSON Lines).
// ShortDescription is a pointer so a missing description can be told apart
// from an empty one.
type NewsRecord struct {
	Link             string  `json:"link"`
	Headline         string  `json:"headline"`
	Category         string  `json:"category"`
	ShortDescription *string `json:"short_description"`
	Authors          string  `json:"authors"`
	Date             string  `json:"date"`
}

func ReadNewsCategory(r io.Reader) ([]NewsRecord, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var out []NewsRecord
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		var rec NewsRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decode line %d: %w", line, err)
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan news dataset: %w", err)
	}
	return out, nil
}

// ConvertOptions controls which records become corpus articles.
type ConvertOptions struct {
	SampleSize int
	Seed       uint64
}

func DefaultConvertOptions() ConvertOptions {
	return ConvertOptions{SampleSize: DefaultSampleSize, Seed: DefaultSampleSeed}
}

// ConvertNewsCategory turns dataset records into articles. Records without a
// short description are dropped, then a seeded sample is taken. A sample size
// of zero or one larger than the input keeps everything in input order.
func ConvertNewsCategory(records []NewsRecord, opts ConvertOptions) []domain.Article {
	articles := make([]domain.Article, 0, len(records))
	for _, rec := range records {
		if rec.ShortDescription == nil {
			continue
		}
		date := normalizeDate(rec.Date)
		articles = append(articles, domain.Article{
			Text: domain.ComposeArticleText(
				strings.TrimSpace(rec.Headline),
				strings.TrimSpace(*rec.ShortDescription),
				rec.Category,
				date,
			),
			Category: rec.Category,
			Date:     date,
			Link:     rec.Link,
		})
	}
	return Sample(articles, opts.SampleSize, opts.Seed)
}

// Sample picks n articles pseudo-randomly. The same seed always yields the
// same rows in the same order.
func Sample(articles []domain.Article, n int, seed uint64) []domain.Article {
	if n <= 0 || n >= len(articles) {
		return articles
	}
	rng := rand.New(rand.NewPCG(seed, seed))
	picked := rng.Perm(len(articles))[:n]

	out := make([]domain.Article, 0, n)
	for _, i := range picked {
		out = append(out, articles[i])
	}
	return out
}

// normalizeDate keeps the calendar date of timestamps like "2022-09-23T00:00:00Z".
func normalizeDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, 'T'); i == len("2006-01-02") {
		return raw[:i]
	}
	return raw
}
