package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/kirillkom/news-retriever/internal/core/domain"
)

const maxSearchBodyBytes = 16 << 10

type searchRequest struct {
	Query string `json:"query"`
}

type searchErrorResponse struct {
	Error   string             `json:"error"`
	Reason  domain.EmptyReason `json:"reason,omitempty"`
	Message string             `json:"message,omitempty"`
}

// searchJSON accepts {"query": "..."} on POST or ?q= on GET.
func (rt *Router) searchJSON(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if r.Method == http.MethodGet {
		req.Query = r.URL.Query().Get("q")
	} else {
		body := http.MaxBytesReader(w, r.Body, maxSearchBodyBytes)
		if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, searchErrorResponse{Error: "invalid json"})
			return
		}
	}

	outcome, err := rt.retrieve(r.Context(), "search", req.Query)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), searchErrorResponse{
			Error:   publicErrorMessage(err),
			Reason:  outcome.Reason,
			Message: outcome.Message,
		})
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}
