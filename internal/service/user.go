package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/booksswap/booksswap-server/internal/domain"
	domainerrors "github.com/booksswap/booksswap-server/internal/errors"
	"github.com/booksswap/booksswap-server/internal/store"
	"github.com/booksswap/booksswap-server/internal/validation"
)

// UserService reads and edits accounts.
type UserService struct {
	store     store.Store
	validator *validation.Validator
	logger    *slog.Logger
}

// NewUserService creates a UserService.
func NewUserService(s store.Store, v *validation.Validator, logger *slog.Logger) *UserService {
	return &UserService{store: s, validator: v, logger: logger}
}

// PublicProfile is what other users may see about an account.
type PublicProfile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Postcode  string    `json:"postcode"`
	Swaps     int       `json:"swaps"`
	Badges    []string  `json:"badges"`
	CreatedAt time.Time `json:"created_at"`
}

// UpdateProfileRequest edits name and postcode. Nil fields are unchanged.
type UpdateProfileRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Postcode *string `json:"postcode,omitempty" validate:"omitempty,postcode"`
}

// Me returns the caller's own account.
func (s *UserService) Me(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, "user not found")
	}
	return user, nil
}

// Profile returns the public view of userID.
func (s *UserService) Profile(ctx context.Context, userID string) (*PublicProfile, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, "user not found")
	}
	badges, err := s.store.ListBadges(ctx, userID)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list badges")
	}

	names := make([]string, 0, len(badges))
	for _, b := range badges {
		names = append(names, b.Name)
	}
	return &PublicProfile{
		ID:        user.ID,
		Name:      user.Name,
		Postcode:  user.Postcode,
		Swaps:     user.Swaps,
		Badges:    names,
		CreatedAt: user.CreatedAt,
	}, nil
}

// UpdateProfile edits the caller's name and postcode. Existing listings keep
// the owner name and postcode they were created with.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (*domain.User, error) {
	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		req.Name = &trimmed
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, "user not found")
	}

	name, postcode := user.Name, user.Postcode
	if req.Name != nil {
		name = *req.Name
	}
	if req.Postcode != nil {
		postcode = domain.NormalizePostcode(*req.Postcode)
	}

	if err := s.store.UpdateUserProfile(ctx, userID, name, postcode); err != nil {
		return nil, notFoundOr(err, "user not found")
	}

	s.logger.Info("profile updated", "user_id", userID)
	user.Name, user.Postcode = name, postcode
	return user, nil
}
