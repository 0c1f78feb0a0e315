package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hyperengineering/compass/internal/fetch"
	"github.com/hyperengineering/compass/internal/generation"
	"github.com/hyperengineering/compass/internal/narrative"
	"github.com/hyperengineering/compass/internal/redaction"
	"github.com/hyperengineering/compass/internal/report"
	"github.com/hyperengineering/compass/internal/store"
	"github.com/hyperengineering/compass/internal/validation"
)

// Problem represents an RFC 7807 Problem Details response.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

type problemType struct {
	typeURI string
	title   string
}

// problemTypes maps HTTP status codes to RFC 7807 type URIs and titles.
var problemTypes = map[int]problemType{
	http.StatusBadRequest:            {"https://compass.dev/errors/bad-request", "Bad Request"},
	http.StatusUnauthorized:          {"https://compass.dev/errors/unauthorized", "Unauthorized"},
	http.StatusNotFound:              {"https://compass.dev/errors/not-found", "Not Found"},
	http.StatusRequestEntityTooLarge: {"https://compass.dev/errors/payload-too-large", "Payload Too Large"},
	http.StatusUnprocessableEntity:   {"https://compass.dev/errors/validation-error", "Validation Error"},
	http.StatusInternalServerError:   {"https://compass.dev/errors/internal-error", "Internal Server Error"},
	http.StatusBadGateway:            {"https://compass.dev/errors/upstream-error", "Bad Gateway"},
	http.StatusServiceUnavailable:    {"https://compass.dev/errors/service-unavailable", "Service Unavailable"},
}

func lookupProblemType(status int) problemType {
	if pt, ok := problemTypes[status]; ok {
		return pt
	}
	return problemType{typeURI: "https://compass.dev/errors/unknown", title: http.StatusText(status)}
}

// WriteProblem writes an RFC 7807 Problem Details response.
func WriteProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	pt := lookupProblemType(status)
	writeProblemBody(w, status, Problem{
		Type:     pt.typeURI,
		Title:    pt.title,
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
	})
}

// ProblemWithErrors extends Problem with validation error details.
type ProblemWithErrors struct {
	Problem
	Errors []validation.ValidationError `json:"errors,omitempty"`
}

// WriteProblemWithErrors writes a 422 Problem Details response with field errors.
func WriteProblemWithErrors(w http.ResponseWriter, r *http.Request, detail string, errs []validation.ValidationError) {
	pt := problemTypes[http.StatusUnprocessableEntity]
	writeProblemBody(w, http.StatusUnprocessableEntity, ProblemWithErrors{
		Problem: Problem{
			Type:     pt.typeURI,
			Title:    pt.title,
			Status:   http.StatusUnprocessableEntity,
			Detail:   detail,
			Instance: r.URL.Path,
		},
		Errors: errs,
	})
}

func writeProblemBody(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode problem response", "error", err)
	}
}

// MapError converts domain errors to Problem Details responses.
// Internal details never reach the client.
func MapError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, fetch.ErrMissingEngagement):
		WriteProblem(w, r, http.StatusNotFound, "No engagement found for client")
	case errors.Is(err, store.ErrNotFound):
		WriteProblem(w, r, http.StatusNotFound, "Resource not found")
	case errors.Is(err, report.ErrInvalidWindow):
		WriteProblem(w, r, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, redaction.ErrUnknownAudience):
		WriteProblem(w, r, http.StatusUnprocessableEntity, "Unknown audience")
	case errors.Is(err, generation.ErrUpstream):
		WriteProblem(w, r, http.StatusBadGateway, "Generation service unavailable")
	case errors.Is(err, narrative.ErrMalformedOutput):
		WriteProblem(w, r, http.StatusBadGateway, "Generation service returned malformed output")
	default:
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
	}
}
