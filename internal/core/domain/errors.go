package domain

import (
	"errors"
	"fmt"
)

var (
	ErrArticleNotFound = errors.New("article not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrTemporary       = errors.New("temporary failure")

	// ErrRetrieval marks a failed retrieval, as opposed to a successful one
	// that found nothing relevant.
	ErrRetrieval = errors.New("retrieval failed")
)

var (
	ErrEmptyQuery = fmt.Errorf("%w: empty query", ErrInvalidInput)
	ErrEmbedding  = fmt.Errorf("%w: embedding provider", ErrRetrieval)
	ErrIndex      = fmt.Errorf("%w: vector index", ErrRetrieval)
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
