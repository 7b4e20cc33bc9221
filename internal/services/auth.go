package services

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/custdesk/apiserver/internal/apierr"
	"github.com/custdesk/apiserver/internal/store"
	"github.com/custdesk/apiserver/internal/token"
	"github.com/custdesk/apiserver/types"
)

// AuthService verifies credentials and issues bearer tokens.
type AuthService struct {
	store  store.CustomerStore
	tokens *token.Service
}

func NewAuthService(customerStore store.CustomerStore, tokens *token.Service) *AuthService {
	return &AuthService{store: customerStore, tokens: tokens}
}

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	Customer types.CustomerDTO `json:"customerDTO"`
	Token    string            `json:"token"`
}

// Login verifies the credentials and issues a token bound to the customer
// email and role list. Unknown emails and wrong passwords are
// indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, username, password string) (LoginResult, error) {
	customer, err := s.store.FindByEmail(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LoginResult{}, apierr.BadCredentials("invalid credentials")
		}
		return LoginResult{}, fmt.Errorf("load customer for login: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(customer.PasswordHash), []byte(password)) != nil {
		return LoginResult{}, apierr.BadCredentials("invalid credentials")
	}

	dto := types.NewCustomerDTO(customer)
	signed, err := s.tokens.Issue(dto.Email, dto.Roles)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}

	return LoginResult{Customer: dto, Token: signed}, nil
}

// TokenFor issues a token for an already-authenticated customer, used by
// the auto-login after registration.
func (s *AuthService) TokenFor(customer types.CustomerDTO) (string, error) {
	return s.tokens.Issue(customer.Email, customer.Roles)
}

// Validate checks a presented bearer token against its expected subject.
func (s *AuthService) Validate(tokenString, expectedSubject string) bool {
	return s.tokens.Validate(tokenString, expectedSubject)
}

// Subject extracts the subject of a presented bearer token.
func (s *AuthService) Subject(tokenString string) (string, error) {
	return s.tokens.Subject(tokenString)
}
