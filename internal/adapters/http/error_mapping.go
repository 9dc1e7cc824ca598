package httpadapter

import (
	"net/http"

	"github.com/kirillkom/news-retriever/internal/core/domain"
)

const (
	errorEmptyQuery           = "please enter a non-empty query."
	errorRetrievalUnavailable = "retrieval temporarily unavailable"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrArticleNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrRetrieval), domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicErrorMessage keeps upstream details out of responses.
func publicErrorMessage(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrEmptyQuery):
		return errorEmptyQuery
	case domain.IsKind(err, domain.ErrInvalidInput):
		return err.Error()
	case domain.IsKind(err, domain.ErrArticleNotFound):
		return "article not found"
	case domain.IsKind(err, domain.ErrRetrieval), domain.IsKind(err, domain.ErrTemporary):
		return errorRetrievalUnavailable
	default:
		return "internal error"
	}
}

func errorKind(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrEmptyQuery):
		return "empty_query"
	case domain.IsKind(err, domain.ErrInvalidInput):
		return "invalid_input"
	case domain.IsKind(err, domain.ErrEmbedding):
		return "embedding"
	case domain.IsKind(err, domain.ErrIndex):
		return "index"
	case domain.IsKind(err, domain.ErrTemporary):
		return "temporary"
	default:
		return "internal"
	}
}
