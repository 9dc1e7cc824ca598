package domain

import "testing"

func TestComposeArticleText(t *testing.T) {
	got := ComposeArticleText("Best Hotels In Lisbon", "Where to stay this summer.", "TRAVEL", "2019-06-01")
	want := "Best Hotels In Lisbon. Where to stay this summer. [Category: TRAVEL, Date: 2019-06-01]"
	if got != want {
		t.Fatalf("ComposeArticleText() = %q, want %q", got, want)
	}
}
