package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custdesk/apiserver/internal/apierr"
	"github.com/custdesk/apiserver/internal/token"
)

func newTestAuthService(t *testing.T) (*AuthService, *CustomerService) {
	t.Helper()

	customers, memStore := newTestService(t)
	tokens, err := token.New("test-signing-secret", "localhost")
	require.NoError(t, err)
	return NewAuthService(memStore, tokens), customers
}

func TestLogin(t *testing.T) {
	auth, customers := newTestAuthService(t)
	registerCustomer(t, customers, "ann.lee@x.com")

	result, err := auth.Login(context.Background(), "ann.lee@x.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, "ann.lee@x.com", result.Customer.Email)
	assert.NotEmpty(t, result.Token)

	assert.True(t, auth.Validate(result.Token, "ann.lee@x.com"))
	subject, err := auth.Subject(result.Token)
	require.NoError(t, err)
	assert.Equal(t, "ann.lee@x.com", subject)
}

func TestLoginWrongPassword(t *testing.T) {
	auth, customers := newTestAuthService(t)
	registerCustomer(t, customers, "ann.lee@x.com")

	_, err := auth.Login(context.Background(), "ann.lee@x.com", "wrong-password")
	assert.True(t, apierr.IsKind(err, apierr.KindBadCredentials))
}

func TestLoginUnknownEmail(t *testing.T) {
	auth, customers := newTestAuthService(t)
	registerCustomer(t, customers, "ann.lee@x.com")

	// An unknown email fails exactly the way a wrong password does.
	_, err := auth.Login(context.Background(), "nobody@x.com", "password123")
	assert.True(t, apierr.IsKind(err, apierr.KindBadCredentials))
	assert.EqualError(t, err, "invalid credentials")
}

func TestTokenForRegisteredCustomer(t *testing.T) {
	auth, customers := newTestAuthService(t)
	dto := registerCustomer(t, customers, "ann.lee@x.com")

	signed, err := auth.TokenFor(dto)
	require.NoError(t, err)
	assert.True(t, auth.Validate(signed, dto.Email))
	assert.False(t, auth.Validate(signed, "other@x.com"))
}
