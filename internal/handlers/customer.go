package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/custdesk/apiserver/internal/services"
	"github.com/custdesk/apiserver/internal/store"
	"github.com/custdesk/apiserver/types"
)

const (
	defaultPageSize    = 10
	maxPageSize        = 100
	defaultSort        = "customer_id,asc"
	maxMultipartMemory = 16 << 20
	maxImageBytes      = 16 << 20
	formFieldFile      = "file"
)

// CustomerHandler provides HTTP handlers for the customer resource.
type CustomerHandler struct {
	customerService *services.CustomerService
	authService     *services.AuthService
}

func NewCustomerHandler(customerService *services.CustomerService, authService *services.AuthService) *CustomerHandler {
	return &CustomerHandler{
		customerService: customerService,
		authService:     authService,
	}
}

// CustomerRouter registers customer routes on the given router. Registration
// is open; everything else requires a bearer token.
func CustomerRouter(r chi.Router, customerService *services.CustomerService, authService *services.AuthService) {
	handler := NewCustomerHandler(customerService, authService)
	requireAuth := RequireAuth(authService)

	r.Post("/", handler.Register)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)

		r.Get("/", handler.ListLatest)
		r.Get("/page", handler.ListPage)
		r.Get("/email/{customerEmail}", handler.GetByEmail)
		r.Route("/{customerID}", func(r chi.Router) {
			r.Get("/", handler.GetByID)
			r.Patch("/", handler.Update)
			r.Delete("/", handler.Delete)
			r.Patch("/reset-password", handler.ResetPassword)
			r.Post("/profile-image", handler.UploadProfileImage)
			r.Get("/profile-image", handler.DownloadProfileImage)
		})
	})
}

// Register creates a customer and auto-logs it in by returning a bearer
// token in the Authorization header.
func (h *CustomerHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req types.RegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := types.ValidateGender(req.Gender); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	customer, err := h.customerService.Register(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	tokenString, err := h.authService.TokenFor(customer)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "failed to create token")
		return
	}

	w.Header().Set("Authorization", "Bearer "+tokenString)
	writeJSON(w, http.StatusOK, customer)
}

// ListLatest returns the newest customers, newest first.
func (h *CustomerHandler) ListLatest(w http.ResponseWriter, r *http.Request) {
	size := defaultPageSize
	if raw := strings.TrimSpace(r.URL.Query().Get("size")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, r, http.StatusBadRequest, "invalid size")
			return
		}
		size = parsed
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	customers, err := h.customerService.FindLatest(r.Context(), size)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, customers)
}

// ListPage returns one page of customers plus paging metadata.
func (h *CustomerHandler) ListPage(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page := 0
	if raw := strings.TrimSpace(query.Get("page")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, r, http.StatusBadRequest, "invalid page")
			return
		}
		page = parsed
	}

	size := defaultPageSize
	if raw := strings.TrimSpace(query.Get("size")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, r, http.StatusBadRequest, "invalid size")
			return
		}
		size = parsed
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	rawSort := strings.TrimSpace(query.Get("sort"))
	if rawSort == "" {
		rawSort = defaultSort
	}
	sortField, sortDir, err := parseSort(rawSort)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.customerService.FindPage(r.Context(), store.PageRequest{
		Page:      page,
		Size:      size,
		SortField: sortField,
		SortDir:   sortDir,
		Query:     strings.TrimSpace(query.Get("query")),
	}, rawSort)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetByID returns a single customer.
func (h *CustomerHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := parseCustomerID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	customer, err := h.customerService.FindByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

// GetByEmail returns a single customer looked up by email.
func (h *CustomerHandler) GetByEmail(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "customerEmail")
	if strings.TrimSpace(email) == "" {
		writeError(w, r, http.StatusBadRequest, "email is required")
		return
	}

	customer, err := h.customerService.FindByEmail(r.Context(), email)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, customer)
}

// Update applies a partial update to a customer.
func (h *CustomerHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseCustomerID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var req types.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Gender != nil {
		if err := types.ValidateGender(*req.Gender); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}

	if err := h.customerService.UpdateByID(r.Context(), id, req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Delete removes a customer.
func (h *CustomerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseCustomerID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.customerService.DeleteByID(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// ResetPassword replaces the customer's password.
func (h *CustomerHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id, err := parseCustomerID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var req types.ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.customerService.ResetPassword(r.Context(), id, req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// UploadProfileImage accepts a multipart image upload. The provider query
// parameter selects the storage backend ("s3" or the local mock).
func (h *CustomerHandler) UploadProfileImage(w http.ResponseWriter, r *http.Request) {
	id, err := parseCustomerID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, _, err := r.FormFile(formFieldFile)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "image file is required")
		return
	}
	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	_ = file.Close()
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "failed to read image file")
		return
	}
	if len(data) > maxImageBytes {
		writeError(w, r, http.StatusBadRequest, "image file is too large")
		return
	}

	provider := strings.TrimSpace(r.URL.Query().Get("provider"))
	if err := h.customerService.UploadProfileImage(r.Context(), id, data, provider); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// DownloadProfileImage streams the stored image bytes.
func (h *CustomerHandler) DownloadProfileImage(w http.ResponseWriter, r *http.Request) {
	id, err := parseCustomerID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	data, err := h.customerService.ProfileImage(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func parseCustomerID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "customerID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, errors.New("invalid customer id")
	}
	return id, nil
}
