package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/custdesk/apiserver/internal/apierr"
	"github.com/custdesk/apiserver/internal/store"
)

type contextKey string

const contextSubjectKey contextKey = "sub"

// validate holds the request-level field rules (struct tags on types).
var validate = validator.New()

// APIError is the uniform error body returned for every failure.
type APIError struct {
	Path       string    `json:"path"`
	Message    string    `json:"message"`
	StatusCode int       `json:"statusCode"`
	Timestamp  time.Time `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, APIError{
		Path:       r.URL.Path,
		Message:    message,
		StatusCode: status,
		Timestamp:  time.Now(),
	})
}

// writeDomainError maps a service-layer error to its HTTP status. Anything
// outside the domain taxonomy becomes an opaque 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var domainErr *apierr.Error
	if errors.As(err, &domainErr) {
		writeError(w, r, domainErr.Status(), domainErr.Message)
		return
	}
	writeError(w, r, http.StatusInternalServerError, "internal server error")
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}

// parseSort splits a "field,dir" sort expression and checks it against the
// store's allow-list. Anything else is a validation failure, never query text.
func parseSort(raw string) (field string, dir store.SortDirection, err error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return "", "", errors.New("sort must be of the form field,dir")
	}

	field = strings.TrimSpace(parts[0])
	if _, ok := store.SortColumn(field); !ok {
		return "", "", errors.New("sort field is not allowed")
	}

	switch strings.ToLower(strings.TrimSpace(parts[1])) {
	case "asc":
		dir = store.SortAsc
	case "desc":
		dir = store.SortDesc
	default:
		return "", "", errors.New("sort direction must be asc or desc")
	}
	return field, dir, nil
}
