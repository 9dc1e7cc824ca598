package usecase

import (
	"strings"

	"github.com/kirillkom/news-retriever/internal/core/domain"
)

// ClassifyQuery treats a single whitespace-delimited token as an exploratory
// keyword and anything longer as a focused query.
func ClassifyQuery(query string) domain.QueryMode {
	if len(strings.Fields(query)) == 1 {
		return domain.QueryModeExploratory
	}
	return domain.QueryModeFocused
}
