package domain

import "fmt"

// Article is one news snippet of the corpus. Text is what gets embedded;
// category, date and link travel alongside as index metadata.
type Article struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Category string `json:"category"`
	Date     string `json:"date"`
	Link     string `json:"link"`
}

// ComposeArticleText builds the embeddable text of a news item:
// "<headline>. <short description> [Category: <category>, Date: <date>]".
func ComposeArticleText(headline, description, category, date string) string {
	return fmt.Sprintf("%s. %s [Category: %s, Date: %s]", headline, description, category, date)
}

// IndexedArticle pairs an article with its embedding for index builds.
type IndexedArticle struct {
	Article Article
	Vector  []float32
}

// Neighbor is a single nearest-neighbour hit as returned by a vector index.
// Distance is the cosine distance (0 means identical direction).
type Neighbor struct {
	Distance float64
	Article  Article
}
