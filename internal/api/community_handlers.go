package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/booksswap/booksswap-server/internal/domain"
)

func (s *Server) registerCommunityRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getMyLeaderboard",
		Method:      http.MethodGet,
		Path:        apiPrefix + "/community/leaderboard",
		Summary:     "Leaderboard for my postcode",
		Tags:        []string{"Community"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetMyLeaderboard)

	huma.Register(s.api, huma.Operation{
		OperationID: "getLeaderboard",
		Method:      http.MethodGet,
		Path:        apiPrefix + "/community/leaderboard/{postcode}",
		Summary:     "Leaderboard for a postcode",
		Description: "Top swappers in a postcode, most swaps first",
		Tags:        []string{"Community"},
	}, s.handleGetLeaderboard)

	huma.Register(s.api, huma.Operation{
		OperationID: "getActiveAreas",
		Method:      http.MethodGet,
		Path:        apiPrefix + "/community/active-areas",
		Summary:     "Most active postcodes",
		Description: "Postcodes with the most available listings",
		Tags:        []string{"Community"},
	}, s.handleGetActiveAreas)

	huma.Register(s.api, huma.Operation{
		OperationID: "getDashboard",
		Method:      http.MethodGet,
		Path:        apiPrefix + "/community/dashboard",
		Summary:     "My dashboard",
		Description: "The caller's listing, swap and badge progress",
		Tags:        []string{"Community"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetDashboard)
}

// === DTOs ===

// LeaderboardOutput wraps leaderboard entries for Huma.
type LeaderboardOutput struct {
	Body struct {
		Postcode string                    `json:"postcode,omitempty" doc:"Postcode ranked"`
		Entries  []domain.LeaderboardEntry `json:"entries" doc:"Users, most swaps first"`
	}
}

// PostcodeInput selects a postcode by path.
type PostcodeInput struct {
	Postcode string `path:"postcode" doc:"UK postcode, any spacing or case"`
}

// ActiveAreasOutput wraps active areas for Huma.
type ActiveAreasOutput struct {
	Body struct {
		Areas []domain.ActiveArea `json:"areas" doc:"Postcodes, most listings first"`
	}
}

// DashboardResponse is the caller's progress summary.
type DashboardResponse struct {
	BooksUploaded      int             `json:"books_uploaded" doc:"Listings not deleted"`
	SwapsCompleted     int             `json:"swaps_completed" doc:"Completed swaps"`
	BadgesEarned       int             `json:"badges_earned" doc:"Number of badges"`
	Badges             []BadgeResponse `json:"badges" doc:"Badges, oldest first"`
	SubscriptionStatus string          `json:"subscription_status" doc:"Subscription status"`
}

// DashboardOutput wraps the dashboard for Huma.
type DashboardOutput struct {
	Body DashboardResponse
}

// === Handlers ===

func (s *Server) handleGetMyLeaderboard(ctx context.Context, _ *struct{}) (*LeaderboardOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	return s.leaderboard(ctx, userID, "")
}

func (s *Server) handleGetLeaderboard(ctx context.Context, input *PostcodeInput) (*LeaderboardOutput, error) {
	userID, _ := userFromContext(ctx)
	return s.leaderboard(ctx, userID, input.Postcode)
}

func (s *Server) leaderboard(ctx context.Context, userID, postcode string) (*LeaderboardOutput, error) {
	entries, err := s.services.Community.Leaderboard(ctx, userID, postcode)
	if err != nil {
		return nil, err
	}
	out := &LeaderboardOutput{}
	out.Body.Postcode = domain.NormalizePostcode(postcode)
	out.Body.Entries = entries
	if out.Body.Entries == nil {
		out.Body.Entries = []domain.LeaderboardEntry{}
	}
	return out, nil
}

func (s *Server) handleGetActiveAreas(ctx context.Context, _ *struct{}) (*ActiveAreasOutput, error) {
	areas, err := s.services.Community.ActiveAreas(ctx)
	if err != nil {
		return nil, err
	}
	out := &ActiveAreasOutput{}
	out.Body.Areas = areas
	if out.Body.Areas == nil {
		out.Body.Areas = []domain.ActiveArea{}
	}
	return out, nil
}

func (s *Server) handleGetDashboard(ctx context.Context, _ *struct{}) (*DashboardOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	d, err := s.services.Community.Dashboard(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &DashboardOutput{Body: DashboardResponse{
		BooksUploaded:      d.BooksUploaded,
		SwapsCompleted:     d.SwapsCompleted,
		BadgesEarned:       d.BadgesEarned,
		Badges:             mapBadges(d.Badges),
		SubscriptionStatus: string(d.SubscriptionStatus),
	}}, nil
}
