package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/booksswap/booksswap-server/internal/domain"
	"github.com/booksswap/booksswap-server/internal/service"
)

func (s *Server) registerUserRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getCurrentUser",
		Method:      http.MethodGet,
		Path:        apiPrefix + "/users/me",
		Summary:     "Get current user",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetCurrentUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateCurrentUser",
		Method:      http.MethodPatch,
		Path:        apiPrefix + "/users/me",
		Summary:     "Update profile",
		Description: "Updates name and postcode. Existing listings keep their postcode.",
		Tags:        []string{"Users"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateCurrentUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "getUserProfile",
		Method:      http.MethodGet,
		Path:        apiPrefix + "/users/{id}",
		Summary:     "Get public profile",
		Tags:        []string{"Users"},
	}, s.handleGetUserProfile)

	huma.Register(s.api, huma.Operation{
		OperationID: "getUserBadges",
		Method:      http.MethodGet,
		Path:        apiPrefix + "/users/{id}/badges",
		Summary:     "List a user's badges",
		Tags:        []string{"Users"},
	}, s.handleGetUserBadges)
}

// === DTOs ===

// UserResponse is the caller's own account.
type UserResponse struct {
	ID                 string    `json:"id" doc:"User ID"`
	Email              string    `json:"email" doc:"Email address"`
	Name               string    `json:"name" doc:"Display name"`
	Postcode           string    `json:"postcode" doc:"Postcode"`
	SubscriptionStatus string    `json:"subscription_status" doc:"inactive, trialing, active or canceled"`
	Swaps              int       `json:"swaps" doc:"Completed swaps"`
	CreatedAt          time.Time `json:"created_at" doc:"Registration time"`
}

// UserOutput wraps a user for Huma.
type UserOutput struct {
	Body UserResponse
}

// UpdateUserInput wraps a profile update for Huma.
type UpdateUserInput struct {
	Body struct {
		Name     *string `json:"name,omitempty" doc:"New display name"`
		Postcode *string `json:"postcode,omitempty" doc:"New UK postcode"`
	}
}

// UserIDInput selects a user by path.
type UserIDInput struct {
	ID string `path:"id" doc:"User ID"`
}

// ProfileOutput wraps a public profile for Huma.
type ProfileOutput struct {
	Body *service.PublicProfile
}

// BadgeResponse is one awarded badge.
type BadgeResponse struct {
	Name      string    `json:"name" doc:"Badge name"`
	AwardedAt time.Time `json:"awarded_at" doc:"When the badge was earned"`
}

// BadgesOutput wraps a badge list for Huma.
type BadgesOutput struct {
	Body struct {
		Badges []BadgeResponse `json:"badges" doc:"Badges, oldest first"`
	}
}

// === Handlers ===

func (s *Server) handleGetCurrentUser(ctx context.Context, _ *struct{}) (*UserOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	user, err := s.services.User.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &UserOutput{Body: mapUser(user)}, nil
}

func (s *Server) handleUpdateCurrentUser(ctx context.Context, input *UpdateUserInput) (*UserOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	user, err := s.services.User.UpdateProfile(ctx, userID, service.UpdateProfileRequest{
		Name:     input.Body.Name,
		Postcode: input.Body.Postcode,
	})
	if err != nil {
		return nil, err
	}
	return &UserOutput{Body: mapUser(user)}, nil
}

func (s *Server) handleGetUserProfile(ctx context.Context, input *UserIDInput) (*ProfileOutput, error) {
	profile, err := s.services.User.Profile(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &ProfileOutput{Body: profile}, nil
}

func (s *Server) handleGetUserBadges(ctx context.Context, input *UserIDInput) (*BadgesOutput, error) {
	badges, err := s.services.Community.Badges(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	out := &BadgesOutput{}
	out.Body.Badges = mapBadges(badges)
	return out, nil
}

func mapUser(u *domain.User) UserResponse {
	return UserResponse{
		ID:                 u.ID,
		Email:              u.Email,
		Name:               u.Name,
		Postcode:           u.Postcode,
		SubscriptionStatus: string(u.SubscriptionStatus),
		Swaps:              u.Swaps,
		CreatedAt:          u.CreatedAt,
	}
}

func mapBadges(badges []domain.Badge) []BadgeResponse {
	out := make([]BadgeResponse, len(badges))
	for i, b := range badges {
		out[i] = BadgeResponse{Name: b.Name, AwardedAt: b.CreatedAt}
	}
	return out
}
