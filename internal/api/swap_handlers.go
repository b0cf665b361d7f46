package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/booksswap/booksswap-server/internal/domain"
	"github.com/booksswap/booksswap-server/internal/service"
)

func (s *Server) registerSwapRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "requestSwap",
		Method:        http.MethodPost,
		Path:          apiPrefix + "/swaps",
		Summary:       "Request a swap",
		Description:   "Requests another user's available book and reserves it. Requires an active or trialing subscription.",
		Tags:          []string{"Swaps"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleRequestSwap)

	huma.Register(s.api, huma.Operation{
		OperationID: "listIncomingSwaps",
		Method:      http.MethodGet,
		Path:        apiPrefix + "/swaps/incoming",
		Summary:     "List incoming swaps",
		Description: "Lists requests for the caller's books, newest first",
		Tags:        []string{"Swaps"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListIncomingSwaps)

	huma.Register(s.api, huma.Operation{
		OperationID: "listOutgoingSwaps",
		Method:      http.MethodGet,
		Path:        apiPrefix + "/swaps/outgoing",
		Summary:     "List outgoing swaps",
		Description: "Lists requests the caller made, newest first",
		Tags:        []string{"Swaps"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListOutgoingSwaps)

	huma.Register(s.api, huma.Operation{
		OperationID: "getSwap",
		Method:      http.MethodGet,
		Path:        apiPrefix + "/swaps/{id}",
		Summary:     "Get swap",
		Tags:        []string{"Swaps"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetSwap)

	huma.Register(s.api, huma.Operation{
		OperationID: "acceptSwap",
		Method:      http.MethodPost,
		Path:        apiPrefix + "/swaps/{id}/accept",
		Summary:     "Accept swap",
		Description: "Book owner accepts a pending request",
		Tags:        []string{"Swaps"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleAcceptSwap)

	huma.Register(s.api, huma.Operation{
		OperationID: "rejectSwap",
		Method:      http.MethodPost,
		Path:        apiPrefix + "/swaps/{id}/reject",
		Summary:     "Reject swap",
		Description: "Book owner rejects a pending request and the book becomes available again",
		Tags:        []string{"Swaps"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleRejectSwap)

	huma.Register(s.api, huma.Operation{
		OperationID: "completeSwap",
		Method:      http.MethodPost,
		Path:        apiPrefix + "/swaps/{id}/complete",
		Summary:     "Complete swap",
		Description: "Either participant marks an accepted swap as done. Both participants' swap counts increase.",
		Tags:        []string{"Swaps"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCompleteSwap)
}

// === DTOs ===

// SwapResponse is a swap request in API responses.
type SwapResponse struct {
	ID              string     `json:"id" doc:"Swap ID"`
	BookID          string     `json:"book_id" doc:"Requested book"`
	RequesterID     string     `json:"requester_id" doc:"Requesting user"`
	OwnerID         string     `json:"owner_id" doc:"Book owner"`
	Status          string     `json:"status" doc:"pending, accepted, rejected or completed"`
	MeetingLocation string     `json:"meeting_location,omitempty" doc:"Suggested meeting place"`
	MeetingDate     *time.Time `json:"meeting_date,omitempty" doc:"Suggested meeting time"`
	CompletedAt     *time.Time `json:"completed_at,omitempty" doc:"Completion time"`
	CreatedAt       time.Time  `json:"created_at" doc:"Request time"`
	UpdatedAt       time.Time  `json:"updated_at" doc:"Last transition time"`
}

// SwapDetailsResponse adds display names to a swap.
type SwapDetailsResponse struct {
	SwapResponse
	BookTitle     string `json:"book_title" doc:"Book title"`
	BookAuthor    string `json:"book_author" doc:"Book author"`
	OwnerName     string `json:"owner_name" doc:"Owner name"`
	RequesterName string `json:"requester_name" doc:"Requester name"`
}

// RequestSwapInput wraps a swap request for Huma.
type RequestSwapInput struct {
	Body struct {
		BookID          string     `json:"book_id" doc:"Book to request"`
		MeetingLocation string     `json:"meeting_location,omitempty" doc:"Suggested meeting place"`
		MeetingDate     *time.Time `json:"meeting_date,omitempty" doc:"Suggested meeting time"`
	}
}

// SwapOutput wraps a swap for Huma.
type SwapOutput struct {
	Body SwapResponse
}

// SwapIDInput selects a swap by path.
type SwapIDInput struct {
	ID string `path:"id" doc:"Swap ID"`
}

// SwapDetailsOutput wraps a described swap for Huma.
type SwapDetailsOutput struct {
	Body SwapDetailsResponse
}

// SwapListOutput wraps a swap list for Huma.
type SwapListOutput struct {
	Body struct {
		Swaps []SwapDetailsResponse `json:"swaps" doc:"Swaps, newest first"`
	}
}

// CompleteSwapOutput returns the completed swap and badges earned by it.
type CompleteSwapOutput struct {
	Body struct {
		Swap      SwapResponse        `json:"swap" doc:"The completed swap"`
		NewBadges map[string][]string `json:"new_badges" doc:"Badges earned, keyed by user ID"`
	}
}

// === Handlers ===

func (s *Server) handleRequestSwap(ctx context.Context, input *RequestSwapInput) (*SwapOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	swap, err := s.services.Swap.Request(ctx, userID, service.CreateSwapRequest{
		BookID:          input.Body.BookID,
		MeetingLocation: input.Body.MeetingLocation,
		MeetingDate:     input.Body.MeetingDate,
	})
	if err != nil {
		return nil, err
	}
	return &SwapOutput{Body: mapSwap(swap)}, nil
}

func (s *Server) handleListIncomingSwaps(ctx context.Context, _ *struct{}) (*SwapListOutput, error) {
	return s.listSwaps(ctx, s.services.Swap.ListIncoming)
}

func (s *Server) handleListOutgoingSwaps(ctx context.Context, _ *struct{}) (*SwapListOutput, error) {
	return s.listSwaps(ctx, s.services.Swap.ListOutgoing)
}

func (s *Server) listSwaps(
	ctx context.Context,
	list func(context.Context, string) ([]*service.SwapDetails, error),
) (*SwapListOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	swaps, err := list(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := &SwapListOutput{}
	out.Body.Swaps = make([]SwapDetailsResponse, len(swaps))
	for i, d := range swaps {
		out.Body.Swaps[i] = mapSwapDetails(d)
	}
	return out, nil
}

func (s *Server) handleGetSwap(ctx context.Context, input *SwapIDInput) (*SwapDetailsOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	details, err := s.services.Swap.Get(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}
	return &SwapDetailsOutput{Body: mapSwapDetails(details)}, nil
}

func (s *Server) handleAcceptSwap(ctx context.Context, input *SwapIDInput) (*SwapOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	swap, err := s.services.Swap.Accept(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}
	return &SwapOutput{Body: mapSwap(swap)}, nil
}

func (s *Server) handleRejectSwap(ctx context.Context, input *SwapIDInput) (*SwapOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	swap, err := s.services.Swap.Reject(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}
	return &SwapOutput{Body: mapSwap(swap)}, nil
}

func (s *Server) handleCompleteSwap(ctx context.Context, input *SwapIDInput) (*CompleteSwapOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.services.Swap.Complete(ctx, userID, input.ID)
	if err != nil {
		return nil, err
	}
	out := &CompleteSwapOutput{}
	out.Body.Swap = mapSwap(res.Swap)
	out.Body.NewBadges = res.NewBadges
	if out.Body.NewBadges == nil {
		out.Body.NewBadges = map[string][]string{}
	}
	return out, nil
}

func mapSwap(sw *domain.SwapRequest) SwapResponse {
	return SwapResponse{
		ID:              sw.ID,
		BookID:          sw.BookID,
		RequesterID:     sw.RequesterID,
		OwnerID:         sw.OwnerID,
		Status:          string(sw.Status),
		MeetingLocation: sw.MeetingLocation,
		MeetingDate:     sw.MeetingDate,
		CompletedAt:     sw.CompletedAt,
		CreatedAt:       sw.CreatedAt,
		UpdatedAt:       sw.UpdatedAt,
	}
}

func mapSwapDetails(d *service.SwapDetails) SwapDetailsResponse {
	return SwapDetailsResponse{
		SwapResponse:  mapSwap(d.SwapRequest),
		BookTitle:     d.BookTitle,
		BookAuthor:    d.BookAuthor,
		OwnerName:     d.OwnerName,
		RequesterName: d.RequesterName,
	}
}
