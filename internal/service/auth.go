package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/booksswap/booksswap-server/internal/auth"
	"github.com/booksswap/booksswap-server/internal/domain"
	domainerrors "github.com/booksswap/booksswap-server/internal/errors"
	"github.com/booksswap/booksswap-server/internal/id"
	"github.com/booksswap/booksswap-server/internal/notify"
	"github.com/booksswap/booksswap-server/internal/store"
	"github.com/booksswap/booksswap-server/internal/validation"
)

// AuthService handles registration, login and token verification.
type AuthService struct {
	store     store.Store
	tokens    *auth.TokenService
	validator *validation.Validator
	notifier  notify.Notifier
	logger    *slog.Logger
}

// NewAuthService creates an AuthService.
func NewAuthService(
	s store.Store,
	tokens *auth.TokenService,
	v *validation.Validator,
	notifier notify.Notifier,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		store:     s,
		tokens:    tokens,
		validator: v,
		notifier:  notifier,
		logger:    logger,
	}
}

// RegisterRequest contains new account details.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=1024"`
	Name     string `json:"name" validate:"required,max=100"`
	Postcode string `json:"postcode" validate:"required,postcode"`
}

// LoginRequest contains user credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=1024"`
}

// AuthResponse is returned by Register and Login.
type AuthResponse struct {
	User        *domain.User `json:"user"`
	AccessToken string       `json:"access_token"`
	ExpiresAt   time.Time    `json:"expires_at"`
}

// Register creates an account with an inactive subscription and sends a
// welcome notification.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	userID, err := id.NewUser()
	if err != nil {
		return nil, fmt.Errorf("generate user ID: %w", err)
	}

	user := &domain.User{
		Email:              domain.NormalizeEmail(req.Email),
		PasswordHash:       passwordHash,
		Name:               req.Name,
		Postcode:           domain.NormalizePostcode(req.Postcode),
		SubscriptionStatus: domain.SubscriptionInactive,
	}
	user.ID = userID
	user.InitTimestamps()

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.AlreadyExists("email already registered")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user registered", "user_id", user.ID, "postcode", user.Postcode)
	s.notifier.Notify(ctx, notify.NewMessage(notify.KindWelcome, user.Contact()))

	return s.issue(user)
}

// Login verifies credentials and issues an access token. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByEmail(ctx, domain.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.InvalidCredentials("invalid email or password")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if !auth.VerifyPassword(user.PasswordHash, req.Password) {
		s.logger.Info("login failed", "user_id", user.ID)
		return nil, domainerrors.InvalidCredentials("invalid email or password")
	}

	return s.issue(user)
}

// VerifyAccessToken returns the user ID carried by token.
func (s *AuthService) VerifyAccessToken(token string) (string, error) {
	claims, err := s.tokens.VerifyAccessToken(token)
	if err != nil {
		return "", domainerrors.Unauthorized("invalid or expired token")
	}
	return claims.UserID, nil
}

func (s *AuthService) issue(user *domain.User) (*AuthResponse, error) {
	token, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	return &AuthResponse{
		User:        user,
		AccessToken: token,
		ExpiresAt:   time.Now().Add(s.tokens.Lifetime()).UTC(),
	}, nil
}
