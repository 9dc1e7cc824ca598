package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/news-retriever/internal/core/domain"
	"github.com/kirillkom/news-retriever/internal/core/ports"
)

const (
	MessageEmptyQuery  = "Please enter a non-empty query."
	MessageFocusedHit  = "Showing the most relevant articles for your query."
	MessageFocusedMiss = "No relevant articles found for this query."
)

func exploratoryHitMessage(query string) string {
	return fmt.Sprintf("Exploring around keyword '%s'. Results may be broader and less precise.", query)
}

func exploratoryMissMessage(query string) string {
	return fmt.Sprintf(
		"No relevant information found around keyword '%s'. Try a more descriptive query (e.g. 'travel hotels', 'politics guns').",
		query,
	)
}

// Retriever embeds a query, searches the vector index and turns raw
// distances into a ranked, thresholded outcome. It keeps no per-call state.
type Retriever struct {
	embedder ports.Embedder
	index    ports.VectorIndex
	policy   RetrievalPolicy
}

func NewRetriever(
	embedder ports.Embedder,
	index ports.VectorIndex,
	policy RetrievalPolicy,
) *Retriever {
	return &Retriever{
		embedder: embedder,
		index:    index,
		policy:   policy.normalize(),
	}
}

func (r *Retriever) Policy() RetrievalPolicy {
	return r.policy
}

func (r *Retriever) Retrieve(ctx context.Context, query string) (domain.RetrievalOutcome, error) {
	return r.RetrieveWithPolicy(ctx, query, r.policy)
}

// RetrieveWithPolicy runs one query with a caller-supplied policy. An empty
// query fails with domain.ErrEmptyQuery and an out-of-range policy with
// domain.ErrInvalidInput, both before any external call. Embedding
// and index failures carry domain.ErrEmbedding / domain.ErrIndex; an outcome
// without results is not an error.
func (r *Retriever) RetrieveWithPolicy(
	ctx context.Context,
	query string,
	policy RetrievalPolicy,
) (domain.RetrievalOutcome, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.RetrievalOutcome{
			Results: []domain.RetrievalResult{},
			Reason:  domain.ReasonEmptyQuery,
			Message: MessageEmptyQuery,
		}, domain.ErrEmptyQuery
	}

	policy = policy.normalize()
	if err := policy.Validate(); err != nil {
		return domain.RetrievalOutcome{}, err
	}
	mode := ClassifyQuery(query)
	topK := policy.topK(mode)
	threshold := policy.threshold(mode)

	queryVector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return domain.RetrievalOutcome{}, domain.WrapError(domain.ErrEmbedding, "embed query", err)
	}
	if len(queryVector) == 0 {
		return domain.RetrievalOutcome{}, domain.WrapError(domain.ErrEmbedding, "embed query", fmt.Errorf("empty query vector"))
	}

	neighbors, err := r.index.Search(ctx, queryVector, topK)
	if err != nil {
		return domain.RetrievalOutcome{}, domain.WrapError(domain.ErrIndex, "search vector index", err)
	}

	kept := capTopK(filterByThreshold(rankBySimilarity(toCandidates(neighbors)), threshold), topK)

	outcome := domain.RetrievalOutcome{
		Query:     query,
		Mode:      mode,
		Threshold: threshold,
		Results:   []domain.RetrievalResult{},
	}

	if mode == domain.QueryModeExploratory && len(kept) > 0 && kept[0].similarity < policy.ExplorationMinScore {
		outcome.Reason = domain.ReasonBelowExplorationFloor
		outcome.Message = exploratoryMissMessage(query)
		return outcome, nil
	}

	if len(kept) == 0 {
		outcome.Reason = domain.ReasonBelowThreshold
		if mode == domain.QueryModeExploratory {
			outcome.Message = exploratoryMissMessage(query)
		} else {
			outcome.Message = MessageFocusedMiss
		}
		return outcome, nil
	}

	outcome.Results = assignRanks(kept)
	if mode == domain.QueryModeExploratory {
		outcome.Message = exploratoryHitMessage(query)
	} else {
		outcome.Message = MessageFocusedHit
	}
	return outcome, nil
}
