package service

import (
	"context"
	"testing"

	"github.com/booksswap/booksswap-server/internal/domain"
	domainerrors "github.com/booksswap/booksswap-server/internal/errors"
	"github.com/booksswap/booksswap-server/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService_Register(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp, err := env.auth.Register(ctx, RegisterRequest{
		Email:    "  Alice@Example.COM ",
		Password: "correct horse battery",
		Name:     "  Alice ",
		Postcode: "sw1a 1aa",
	})
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", resp.User.Email)
	assert.Equal(t, "Alice", resp.User.Name)
	assert.Equal(t, "SW1A 1AA", resp.User.Postcode)
	assert.Equal(t, domain.SubscriptionInactive, resp.User.SubscriptionStatus)
	assert.NotEmpty(t, resp.AccessToken)
	assert.True(t, resp.ExpiresAt.After(resp.User.CreatedAt))

	userID, err := env.auth.VerifyAccessToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, userID)

	msgs := env.notifier.For(resp.User.ID)
	require.Len(t, msgs, 1)
	assert.Equal(t, notify.KindWelcome, msgs[0].Kind)
	assert.Equal(t, "alice@example.com", msgs[0].Recipient.Email)
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "SW1A 1AA", domain.SubscriptionInactive)

	_, err := env.auth.Register(context.Background(), RegisterRequest{
		Email:    "ALICE@example.com",
		Password: "another password",
		Name:     "Other Alice",
		Postcode: "SW1A 1AA",
	})
	assertCode(t, err, domainerrors.CodeAlreadyExists)
}

func TestAuthService_Register_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  RegisterRequest
	}{
		{"short password", RegisterRequest{Email: "a@example.com", Password: "short", Name: "A", Postcode: "SW1A 1AA"}},
		{"bad email", RegisterRequest{Email: "not-an-email", Password: "long enough", Name: "A", Postcode: "SW1A 1AA"}},
		{"blank name", RegisterRequest{Email: "a@example.com", Password: "long enough", Name: "   ", Postcode: "SW1A 1AA"}},
		{"bad postcode", RegisterRequest{Email: "a@example.com", Password: "long enough", Name: "A", Postcode: "12345"}},
	}

	env := newTestEnv(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.auth.Register(context.Background(), tt.req)
			assertCode(t, err, domainerrors.CodeValidation)
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	env := newTestEnv(t)
	user := env.register(t, "bob", "M1 1AE", domain.SubscriptionInactive)
	ctx := context.Background()

	resp, err := env.auth.Login(ctx, LoginRequest{Email: "BOB@example.com", Password: "correct horse battery"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, resp.User.ID)

	_, err = env.auth.Login(ctx, LoginRequest{Email: "bob@example.com", Password: "wrong password"})
	assertCode(t, err, domainerrors.CodeInvalidCredentials)

	_, err = env.auth.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "whatever"})
	assertCode(t, err, domainerrors.CodeInvalidCredentials)
}

func TestAuthService_VerifyAccessToken_Invalid(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.auth.VerifyAccessToken("v4.local.garbage")
	assertCode(t, err, domainerrors.CodeUnauthorized)
}

func TestUserService_Profile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice", "SW1A 1AA", domain.SubscriptionActive)
	env.listBook(t, alice, "Dune")

	profile, err := env.users.Profile(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Name)
	assert.Equal(t, []string{"Book Uploader"}, profile.Badges)

	_, err = env.users.Profile(ctx, "usr-missing")
	assertCode(t, err, domainerrors.CodeNotFound)
}

func TestUserService_UpdateProfile_KeepsBookSnapshot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice", "SW1A 1AA", domain.SubscriptionActive)
	book := env.listBook(t, alice, "Dune")

	name, postcode := "Alice B", "m1 1ae"
	updated, err := env.users.UpdateProfile(ctx, alice.ID, UpdateProfileRequest{Name: &name, Postcode: &postcode})
	require.NoError(t, err)
	assert.Equal(t, "Alice B", updated.Name)
	assert.Equal(t, "M1 1AE", updated.Postcode)

	got, err := env.books.Get(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.OwnerName)
	assert.Equal(t, "SW1A 1AA", got.Postcode)

	bad := "nowhere"
	_, err = env.users.UpdateProfile(ctx, alice.ID, UpdateProfileRequest{Postcode: &bad})
	assertCode(t, err, domainerrors.CodeValidation)
}
