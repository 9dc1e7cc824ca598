package domain

import (
	"errors"
	"testing"
)

func TestEmbeddingAndIndexErrorsAreRetrievalErrors(t *testing.T) {
	embedErr := WrapError(ErrEmbedding, "embed query", errors.New("quota"))
	indexErr := WrapError(ErrIndex, "search", errors.New("io"))

	for _, err := range []error{embedErr, indexErr} {
		if !IsKind(err, ErrRetrieval) {
			t.Fatalf("expected %v to be a retrieval error", err)
		}
		if IsKind(err, ErrInvalidInput) {
			t.Fatalf("retrieval error must not be invalid input: %v", err)
		}
	}
	if IsKind(embedErr, ErrIndex) {
		t.Fatalf("embedding error must not match index kind")
	}
}

func TestEmptyQueryIsInvalidInput(t *testing.T) {
	if !IsKind(ErrEmptyQuery, ErrInvalidInput) {
		t.Fatalf("expected empty query to be invalid input")
	}
	if IsKind(ErrEmptyQuery, ErrRetrieval) {
		t.Fatalf("empty query must not be a retrieval failure")
	}
}

func TestWrapErrorNil(t *testing.T) {
	if err := WrapError(ErrIndex, "search", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
