package usecase

import (
	"cmp"
	"slices"

	"github.com/kirillkom/news-retriever/internal/core/domain"
)

type candidate struct {
	similarity float64
	article    domain.Article
}

func toCandidates(neighbors []domain.Neighbor) []candidate {
	out := make([]candidate, 0, len(neighbors))
	for _, n := range neighbors {
		out = append(out, candidate{
			similarity: 1.0 - n.Distance,
			article:    n.Article,
		})
	}
	return out
}

// rankBySimilarity sorts a copy by similarity descending. Equal scores keep
// the index's original order.
func rankBySimilarity(in []candidate) []candidate {
	out := append([]candidate(nil), in...)
	slices.SortStableFunc(out, func(a, b candidate) int {
		return cmp.Compare(b.similarity, a.similarity)
	})
	return out
}

func filterByThreshold(in []candidate, threshold float64) []candidate {
	out := make([]candidate, 0, len(in))
	for _, c := range in {
		if c.similarity >= threshold {
			out = append(out, c)
		}
	}
	return out
}

func capTopK(in []candidate, k int) []candidate {
	if k <= 0 || len(in) <= k {
		return in
	}
	return in[:k]
}

func assignRanks(in []candidate) []domain.RetrievalResult {
	out := make([]domain.RetrievalResult, 0, len(in))
	for i, c := range in {
		out = append(out, domain.RetrievalResult{
			Rank:       i + 1,
			Similarity: c.similarity,
			Article:    c.article,
		})
	}
	return out
}
