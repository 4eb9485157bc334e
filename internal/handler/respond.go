package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/samuelbaldasso/banking-core/internal/domain"
)

// Problem is an RFC 7807 problem details body. Kind carries the stable
// machine-readable error kind alongside the standard fields.
type Problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
	Kind   string `json:"kind,omitempty"`
}

// RespondJSON writes a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// RespondError writes a problem+json error response, mapping domain.AppError
// kinds to their HTTP status. Unknown errors become an opaque 500.
func RespondError(w http.ResponseWriter, err error) {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		RespondProblem(w, Problem{
			Type:   "about:blank",
			Title:  http.StatusText(appErr.Status),
			Status: appErr.Status,
			Detail: appErr.Message,
			Kind:   appErr.Kind,
		})
		return
	}
	RespondProblem(w, Problem{
		Type:   "about:blank",
		Title:  http.StatusText(http.StatusInternalServerError),
		Status: http.StatusInternalServerError,
		Detail: "internal server error",
		Kind:   "INTERNAL",
	})
}

// RespondProblem writes a Problem with the application/problem+json media
// type.
func RespondProblem(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	json.NewEncoder(w).Encode(p)
}

// DecodeJSON reads and decodes a JSON request body into dst.
func DecodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.ErrInvalidArg("invalid request body: " + err.Error())
	}
	return nil
}
