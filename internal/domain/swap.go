package domain

import "time"

// SwapStatus is the state of a swap request.
type SwapStatus string

const (
	SwapPending   SwapStatus = "pending"
	SwapAccepted  SwapStatus = "accepted"
	SwapRejected  SwapStatus = "rejected"
	SwapCompleted SwapStatus = "completed"
)

// swapTransitions lists the permitted target states for each source state.
var swapTransitions = map[SwapStatus][]SwapStatus{
	SwapPending:  {SwapAccepted, SwapRejected},
	SwapAccepted: {SwapCompleted},
}

// CanTransitionTo reports whether s may move to next.
func (s SwapStatus) CanTransitionTo(next SwapStatus) bool {
	for _, allowed := range swapTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s SwapStatus) IsTerminal() bool {
	return s == SwapRejected || s == SwapCompleted
}

// IsOpen reports whether s still holds its book.
func (s SwapStatus) IsOpen() bool {
	return s == SwapPending || s == SwapAccepted
}

// SwapRequest is a request by one user for another user's book.
type SwapRequest struct {
	Timestamps
	BookID      string     `json:"book_id"`
	RequesterID string     `json:"requester_id"`
	// OwnerID is the book owner at request time.
	OwnerID         string     `json:"owner_id"`
	Status          SwapStatus `json:"status"`
	MeetingLocation string     `json:"meeting_location,omitempty"`
	MeetingDate     *time.Time `json:"meeting_date,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// IsParticipant reports whether userID is the owner or the requester.
func (s *SwapRequest) IsParticipant(userID string) bool {
	return userID == s.OwnerID || userID == s.RequesterID
}

// Counterparty returns the other participant for userID.
func (s *SwapRequest) Counterparty(userID string) string {
	if userID == s.OwnerID {
		return s.RequesterID
	}
	return s.OwnerID
}
