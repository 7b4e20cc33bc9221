package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custdesk/apiserver/config"
	"github.com/custdesk/apiserver/internal/services"
	"github.com/custdesk/apiserver/internal/storage"
	"github.com/custdesk/apiserver/internal/store"
	"github.com/custdesk/apiserver/internal/token"
	"github.com/custdesk/apiserver/pkg/logger"
	"github.com/custdesk/apiserver/types"
)

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()

	local, err := storage.NewLocalClient(config.LocalConfig{Root: t.TempDir()})
	require.NoError(t, err)

	memStore := store.NewMemoryStore()
	customerService := services.NewCustomerService(memStore, nil, storage.NewStorage(local), nil, logger.NewNop())

	tokens, err := token.New("test-signing-secret", "localhost")
	require.NoError(t, err)
	authService := services.NewAuthService(memStore, tokens)

	r := chi.NewRouter()
	r.Route("/auth", func(r chi.Router) {
		AuthRouter(r, authService)
	})
	r.Route("/customers", func(r chi.Router) {
		CustomerRouter(r, customerService, authService)
	})
	return r
}

func doJSON(t *testing.T, router chi.Router, method, target, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func registrationBody(email string) types.RegistrationRequest {
	return types.RegistrationRequest{
		FirstName: "Ann",
		LastName:  "Lee",
		Email:     email,
		Password:  "password123",
		Age:       30,
		Gender:    types.GenderFemale,
	}
}

// register creates a customer and returns its DTO and bearer token.
func register(t *testing.T, router chi.Router, email string) (types.CustomerDTO, string) {
	t.Helper()

	rec := doJSON(t, router, http.MethodPost, "/customers", "", registrationBody(email))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	auth := rec.Header().Get("Authorization")
	require.True(t, strings.HasPrefix(auth, "Bearer "))

	var dto types.CustomerDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
	return dto, strings.TrimPrefix(auth, "Bearer ")
}

func decodeAPIError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var apiError APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiError))
	return apiError
}

func TestRegisterEndpoint(t *testing.T) {
	router := newTestRouter(t)

	dto, bearer := register(t, router, "ann.lee@x.com")
	assert.Equal(t, "ann.lee@x.com", dto.Email)
	assert.Equal(t, "ann.lee@x.com", dto.Username)
	assert.Equal(t, []string{types.DefaultRole}, dto.Roles)
	assert.NotEmpty(t, bearer)
}

func TestRegisterEndpointDuplicateEmail(t *testing.T) {
	router := newTestRouter(t)
	register(t, router, "ann.lee@x.com")

	rec := doJSON(t, router, http.MethodPost, "/customers", "", registrationBody("ann.lee@x.com"))
	assert.Equal(t, http.StatusConflict, rec.Code)

	apiError := decodeAPIError(t, rec)
	assert.Equal(t, "/customers", apiError.Path)
	assert.Equal(t, "Email already taken", apiError.Message)
	assert.Equal(t, http.StatusConflict, apiError.StatusCode)
	assert.False(t, apiError.Timestamp.IsZero())
}

func TestRegisterEndpointRejectsUnderage(t *testing.T) {
	router := newTestRouter(t)

	body := registrationBody("kid@x.com")
	body.Age = 17
	rec := doJSON(t, router, http.MethodPost, "/customers", "", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterEndpointRejectsGender(t *testing.T) {
	router := newTestRouter(t)

	body := registrationBody("ann.lee@x.com")
	body.Gender = types.GenderStraight
	rec := doJSON(t, router, http.MethodPost, "/customers", "", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router := newTestRouter(t)
	dto, _ := register(t, router, "ann.lee@x.com")

	for _, target := range []string{
		"/customers/",
		fmt.Sprintf("/customers/%d", dto.ID),
		fmt.Sprintf("/customers/%d/profile-image", dto.ID),
	} {
		rec := doJSON(t, router, http.MethodGet, target, "", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, target)
		assert.Equal(t, "insufficient authentication", decodeAPIError(t, rec).Message)
	}

	rec := doJSON(t, router, http.MethodGet, fmt.Sprintf("/customers/%d", dto.ID), "not-a-token", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetCustomerByID(t *testing.T) {
	router := newTestRouter(t)
	dto, bearer := register(t, router, "ann.lee@x.com")

	rec := doJSON(t, router, http.MethodGet, fmt.Sprintf("/customers/%d", dto.ID), bearer, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var fetched types.CustomerDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	assert.Equal(t, dto, fetched)

	rec = doJSON(t, router, http.MethodGet, "/customers/404", bearer, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Customer with id [404] was not found", decodeAPIError(t, rec).Message)
}

func TestGetCustomerByEmail(t *testing.T) {
	router := newTestRouter(t)
	dto, bearer := register(t, router, "ann.lee@x.com")

	rec := doJSON(t, router, http.MethodGet, "/customers/email/ann.lee@x.com", bearer, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var fetched types.CustomerDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	assert.Equal(t, dto.ID, fetched.ID)

	rec = doJSON(t, router, http.MethodGet, "/customers/email/nobody@x.com", bearer, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLoginEndpoint(t *testing.T) {
	router := newTestRouter(t)
	register(t, router, "ann.lee@x.com")

	rec := doJSON(t, router, http.MethodPost, "/auth/login", "", types.LoginRequest{
		Username: "ann.lee@x.com",
		Password: "password123",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Authorization"), "Bearer "))

	var result services.LoginResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "ann.lee@x.com", result.Customer.Email)
	assert.NotEmpty(t, result.Token)
}

func TestLoginEndpointBadCredentials(t *testing.T) {
	router := newTestRouter(t)
	register(t, router, "ann.lee@x.com")

	rec := doJSON(t, router, http.MethodPost, "/auth/login", "", types.LoginRequest{
		Username: "ann.lee@x.com",
		Password: "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/auth/login", "", types.LoginRequest{
		Username: "nobody@x.com",
		Password: "password123",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdateEndpoint(t *testing.T) {
	router := newTestRouter(t)
	dto, bearer := register(t, router, "ann.lee@x.com")

	name := "Bea"
	rec := doJSON(t, router, http.MethodPatch, fmt.Sprintf("/customers/%d", dto.ID), bearer, types.UpdateRequest{FirstName: &name})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, fmt.Sprintf("/customers/%d", dto.ID), bearer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched types.CustomerDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	assert.Equal(t, "Bea", fetched.FirstName)
	assert.Equal(t, dto.LastName, fetched.LastName)
}

func TestUpdateEndpointNoChanges(t *testing.T) {
	router := newTestRouter(t)
	dto, bearer := register(t, router, "ann.lee@x.com")

	name := "Ann"
	rec := doJSON(t, router, http.MethodPatch, fmt.Sprintf("/customers/%d", dto.ID), bearer, types.UpdateRequest{FirstName: &name})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No changes were found", decodeAPIError(t, rec).Message)
}

func TestResetPasswordEndpoint(t *testing.T) {
	router := newTestRouter(t)
	dto, bearer := register(t, router, "ann.lee@x.com")

	rec := doJSON(t, router, http.MethodPatch, fmt.Sprintf("/customers/%d/reset-password", dto.ID), bearer, types.ResetPasswordRequest{
		Password:        "newSecret99",
		ConfirmPassword: "newSecret99",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Confirmation mismatch never reaches the service.
	rec = doJSON(t, router, http.MethodPatch, fmt.Sprintf("/customers/%d/reset-password", dto.ID), bearer, types.ResetPasswordRequest{
		Password:        "anotherSecret",
		ConfirmPassword: "different",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Resetting to the active password is rejected.
	rec = doJSON(t, router, http.MethodPatch, fmt.Sprintf("/customers/%d/reset-password", dto.ID), bearer, types.ResetPasswordRequest{
		Password:        "newSecret99",
		ConfirmPassword: "newSecret99",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Password was used previously", decodeAPIError(t, rec).Message)
}

func TestDeleteEndpoint(t *testing.T) {
	router := newTestRouter(t)
	dto, bearer := register(t, router, "ann.lee@x.com")

	rec := doJSON(t, router, http.MethodDelete, fmt.Sprintf("/customers/%d", dto.ID), bearer, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/customers/%d", dto.ID), bearer, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListPageEndpoint(t *testing.T) {
	router := newTestRouter(t)
	var bearer string
	for _, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		_, bearer = register(t, router, email)
	}

	rec := doJSON(t, router, http.MethodGet, "/customers/page?page=0&size=2&sort=email,asc", bearer, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var page types.CustomerPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Customers, 2)
	assert.Equal(t, "a@x.com", page.Customers[0].Email)
	assert.Equal(t, 3, page.TotalItems)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, "email,asc", page.Sort)
}

func TestListPageEndpointRejectsBadSort(t *testing.T) {
	router := newTestRouter(t)
	_, bearer := register(t, router, "ann.lee@x.com")

	for _, sort := range []string{
		"password,asc",
		"email;DROP TABLE customer,asc",
		"email,sideways",
		"email",
	} {
		rec := doJSON(t, router, http.MethodGet, "/customers/page?sort="+url.QueryEscape(sort), bearer, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, sort)
	}
}

func TestProfileImageEndpoints(t *testing.T) {
	router := newTestRouter(t)
	dto, bearer := register(t, router, "ann.lee@x.com")

	image := []byte("jpeg bytes")
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", "avatar.jpg")
	require.NoError(t, err)
	_, err = part.Write(image)
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/customers/%d/profile-image", dto.ID), &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+bearer)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, fmt.Sprintf("/customers/%d/profile-image", dto.ID), bearer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, image, rec.Body.Bytes())
}

func TestProfileImageEndpointMissingImage(t *testing.T) {
	router := newTestRouter(t)
	dto, bearer := register(t, router, "ann.lee@x.com")

	rec := doJSON(t, router, http.MethodGet, fmt.Sprintf("/customers/%d/profile-image", dto.ID), bearer, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
