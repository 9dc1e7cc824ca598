package httpadapter

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/kirillkom/news-retriever/internal/core/domain"
)

//go:embed templates/index.html
var templateFS embed.FS

var pageTemplate = template.Must(template.New("index.html").Funcs(template.FuncMap{
	"similarity": func(v float64) string {
		return strconv.FormatFloat(v, 'f', 3, 64)
	},
}).ParseFS(templateFS, "templates/index.html"))

const messagePrompt = "Enter a search query to find relevant news articles."

type pageData struct {
	Query   string
	Status  string
	IsError bool
	Outcome *domain.RetrievalOutcome
}

// searchPage serves the HTML form and, on POST, the ranked results.
func (rt *Router) searchPage(w http.ResponseWriter, r *http.Request) {
	data := pageData{Status: messagePrompt}
	status := http.StatusOK

	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			status = http.StatusBadRequest
			data.Status = "invalid form"
			data.IsError = true
		} else {
			data.Query = r.PostForm.Get("query")
			outcome, err := rt.retrieve(r.Context(), "page", data.Query)
			switch {
			case err != nil:
				status = mapErrorToHTTPStatus(err)
				data.IsError = true
				data.Status = outcome.Message
				if data.Status == "" {
					data.Status = publicErrorMessage(err)
				}
			default:
				data.Outcome = &outcome
				data.Status = outcome.Message
			}
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTemplate.Execute(w, data); err != nil {
		slog.Error("render_search_page_failed", "error", err)
	}
}
