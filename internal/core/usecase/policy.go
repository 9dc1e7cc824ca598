package usecase

import (
	"fmt"

	"github.com/kirillkom/news-retriever/internal/core/domain"
)

// RetrievalPolicy holds the thresholds and result caps applied per query mode.
type RetrievalPolicy struct {
	// SimilarityThreshold is the minimum similarity for focused matches.
	SimilarityThreshold float64
	FocusedTopK         int
	ExplorationTopK     int
	// ExplorationThreshold is the relaxed inclusion threshold for
	// exploratory queries. Never above SimilarityThreshold.
	ExplorationThreshold float64
	// ExplorationMinScore is the floor the best exploratory candidate must
	// reach for anything to be returned at all.
	ExplorationMinScore float64
}

func DefaultRetrievalPolicy() RetrievalPolicy {
	return RetrievalPolicy{
		SimilarityThreshold:  0.25,
		FocusedTopK:          3,
		ExplorationTopK:      6,
		ExplorationThreshold: 0.15,
		ExplorationMinScore:  0.20,
	}
}

func (p RetrievalPolicy) Validate() error {
	for name, v := range map[string]float64{
		"similarity threshold":  p.SimilarityThreshold,
		"exploration threshold": p.ExplorationThreshold,
		"exploration min score": p.ExplorationMinScore,
	} {
		if v < -1 || v > 1 {
			return domain.WrapError(domain.ErrInvalidInput, "validate retrieval policy", fmt.Errorf("%s %.3f outside [-1, 1]", name, v))
		}
	}
	if p.FocusedTopK < 0 || p.ExplorationTopK < 0 {
		return domain.WrapError(domain.ErrInvalidInput, "validate retrieval policy", fmt.Errorf("top-k must not be negative"))
	}
	if p.ExplorationThreshold > p.SimilarityThreshold {
		return domain.WrapError(domain.ErrInvalidInput, "validate retrieval policy",
			fmt.Errorf("exploration threshold %.3f above similarity threshold %.3f", p.ExplorationThreshold, p.SimilarityThreshold))
	}
	return nil
}

func (p RetrievalPolicy) normalize() RetrievalPolicy {
	out := p
	def := DefaultRetrievalPolicy()

	if out.FocusedTopK <= 0 {
		out.FocusedTopK = def.FocusedTopK
	}
	if out.ExplorationTopK <= 0 {
		out.ExplorationTopK = def.ExplorationTopK
	}
	if out.ExplorationThreshold > out.SimilarityThreshold {
		out.ExplorationThreshold = out.SimilarityThreshold
	}
	return out
}

func (p RetrievalPolicy) topK(mode domain.QueryMode) int {
	if mode == domain.QueryModeExploratory {
		return p.ExplorationTopK
	}
	return p.FocusedTopK
}

func (p RetrievalPolicy) threshold(mode domain.QueryMode) float64 {
	if mode == domain.QueryModeExploratory {
		return p.ExplorationThreshold
	}
	return p.SimilarityThreshold
}
