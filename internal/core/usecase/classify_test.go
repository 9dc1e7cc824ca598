package usecase

import (
	"testing"

	"github.com/kirillkom/news-retriever/internal/core/domain"
)

func TestClassifyQuery(t *testing.T) {
	cases := map[string]domain.QueryMode{
		"travel":              domain.QueryModeExploratory,
		"  travel \n":         domain.QueryModeExploratory,
		"travel hotels":       domain.QueryModeFocused,
		"politics\tguns":      domain.QueryModeFocused,
		"best beaches in rio": domain.QueryModeFocused,
	}
	for query, want := range cases {
		if got := ClassifyQuery(query); got != want {
			t.Fatalf("ClassifyQuery(%q) = %s, want %s", query, got, want)
		}
	}
}
