package domain

import "time"

type QueryMode string

const (
	QueryModeExploratory QueryMode = "exploratory"
	QueryModeFocused     QueryMode = "focused"
)

// EmptyReason explains why an outcome carries no results.
type EmptyReason string

const (
	ReasonNone                  EmptyReason = ""
	ReasonEmptyQuery            EmptyReason = "empty_query"
	ReasonBelowThreshold        EmptyReason = "below_threshold"
	ReasonBelowExplorationFloor EmptyReason = "below_exploration_floor"
)

type RetrievalResult struct {
	Rank       int     `json:"rank"`
	Similarity float64 `json:"similarity"`
	Article    Article `json:"article"`
}

// RetrievalOutcome is the full answer to one query. Either Results is
// non-empty and Reason is ReasonNone, or Results is empty and Reason says why.
type RetrievalOutcome struct {
	Query     string            `json:"query"`
	Mode      QueryMode         `json:"mode"`
	Threshold float64           `json:"threshold"`
	Results   []RetrievalResult `json:"results"`
	Reason    EmptyReason       `json:"reason,omitempty"`
	Message   string            `json:"message"`
}

func (o RetrievalOutcome) Empty() bool {
	return len(o.Results) == 0
}

// TopSimilarity returns the best similarity of the outcome, or 0 when empty.
func (o RetrievalOutcome) TopSimilarity() float64 {
	if len(o.Results) == 0 {
		return 0
	}
	return o.Results[0].Similarity
}

// RetrievalEvent is the audit record published after a query was served.
type RetrievalEvent struct {
	RequestID     string      `json:"request_id,omitempty"`
	Query         string      `json:"query"`
	Mode          QueryMode   `json:"mode"`
	Reason        EmptyReason `json:"reason,omitempty"`
	ResultCount   int         `json:"result_count"`
	TopSimilarity float64     `json:"top_similarity"`
	ArticleIDs    []string    `json:"article_ids,omitempty"`
	DurationMS    float64     `json:"duration_ms"`
	OccurredAt    time.Time   `json:"occurred_at"`
}

// NewRetrievalEvent summarizes an outcome for publishing.
func NewRetrievalEvent(requestID string, outcome RetrievalOutcome, duration time.Duration) RetrievalEvent {
	ids := make([]string, 0, len(outcome.Results))
	for _, r := range outcome.Results {
		ids = append(ids, r.Article.ID)
	}
	return RetrievalEvent{
		RequestID:     requestID,
		Query:         outcome.Query,
		Mode:          outcome.Mode,
		Reason:        outcome.Reason,
		ResultCount:   len(outcome.Results),
		TopSimilarity: outcome.TopSimilarity(),
		ArticleIDs:    ids,
		DurationMS:    float64(duration.Microseconds()) / 1000.0,
		OccurredAt:    time.Now().UTC(),
	}
}

// IndexReport summarizes a full index rebuild.
type IndexReport struct {
	Articles  int           `json:"articles"`
	Dimension int           `json:"dimension"`
	Batches   int           `json:"batches"`
	Duration  time.Duration `json:"duration"`
}
