package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/custdesk/apiserver/internal/services"
	"github.com/custdesk/apiserver/types"
)

// AuthHandler provides the login endpoint.
type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, authService *services.AuthService) {
	handler := NewAuthHandler(authService)

	r.Post("/login", handler.Login)
}

// Login verifies credentials and returns a bearer token in both the response
// body and the Authorization header.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.Header().Set("Authorization", "Bearer "+result.Token)
	writeJSON(w, http.StatusOK, result)
}

// RequireAuth enforces a valid bearer token and injects its subject into the
// request context. Missing or invalid tokens map to 403, matching the
// insufficient-authentication semantics of the surrounding API.
func RequireAuth(authService *services.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeError(w, r, http.StatusForbidden, "insufficient authentication")
				return
			}

			subject, err := authService.Subject(tokenString)
			if err != nil || !authService.Validate(tokenString, subject) {
				writeError(w, r, http.StatusForbidden, "insufficient authentication")
				return
			}

			ctx := context.WithValue(r.Context(), contextSubjectKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SubjectFromContext returns the authenticated subject, when present.
func SubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(contextSubjectKey).(string)
	return subject, ok && subject != ""
}
