package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/booksswap/booksswap-server/internal/badge"
	"github.com/booksswap/booksswap-server/internal/domain"
	domainerrors "github.com/booksswap/booksswap-server/internal/errors"
	"github.com/booksswap/booksswap-server/internal/id"
	"github.com/booksswap/booksswap-server/internal/notify"
	"github.com/booksswap/booksswap-server/internal/sse"
	"github.com/booksswap/booksswap-server/internal/store"
	"github.com/booksswap/booksswap-server/internal/validation"
)

// Swap operation names used as metric labels.
const (
	opRequest  = "request"
	opAccept   = "accept"
	opReject   = "reject"
	opComplete = "complete"
)

// SwapService runs the swap state machine.
//
// Every transition is written by the store as a guarded compare-and-swap
// over the swap and its book, so two concurrent requests for one book, or a
// reject racing an accept, leave exactly one winner. Losers see NOT_FOUND
// (for requests) or INVALID_OPERATION (for transitions).
type SwapService struct {
	store     store.Store
	gate      EntitlementChecker
	awarder   BadgeAwarder
	notifier  notify.Notifier
	events    EventEmitter
	recorder  Recorder
	validator *validation.Validator
	logger    *slog.Logger
	now       func() time.Time
}

// SwapServiceConfig holds the optional collaborators of a SwapService.
type SwapServiceConfig struct {
	Events   EventEmitter
	Recorder Recorder
}

// NewSwapService creates a SwapService.
func NewSwapService(
	s store.Store,
	gate EntitlementChecker,
	awarder BadgeAwarder,
	notifier notify.Notifier,
	v *validation.Validator,
	logger *slog.Logger,
	cfg SwapServiceConfig,
) *SwapService {
	svc := &SwapService{
		store:     s,
		gate:      gate,
		awarder:   awarder,
		notifier:  notifier,
		events:    cfg.Events,
		recorder:  cfg.Recorder,
		validator: v,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	if svc.events == nil {
		svc.events = noopEmitter{}
	}
	if svc.recorder == nil {
		svc.recorder = noopRecorder{}
	}
	return svc
}

// CreateSwapRequest asks for a book. Meeting details are free-text notes for
// the owner and are not validated against anything.
type CreateSwapRequest struct {
	BookID          string     `json:"book_id" validate:"required"`
	MeetingLocation string     `json:"meeting_location,omitempty" validate:"max=200"`
	MeetingDate     *time.Time `json:"meeting_date,omitempty"`
}

// SwapDetails is a swap with the names a client needs to display it.
type SwapDetails struct {
	*domain.SwapRequest
	BookTitle     string `json:"book_title"`
	BookAuthor    string `json:"book_author"`
	OwnerName     string `json:"owner_name"`
	RequesterName string `json:"requester_name"`
}

// CompleteResult is the completed swap plus the badges each participant
// earned from it, keyed by user ID.
type CompleteResult struct {
	Swap      *domain.SwapRequest `json:"swap"`
	NewBadges map[string][]string `json:"new_badges"`
}

// Request creates a pending swap for a book and reserves the book.
func (s *SwapService) Request(ctx context.Context, requesterID string, req CreateSwapRequest) (swap *domain.SwapRequest, err error) {
	defer func() { s.recorder.SwapOutcome(opRequest, outcome(err)) }()

	req.BookID = strings.TrimSpace(req.BookID)
	req.MeetingLocation = strings.TrimSpace(req.MeetingLocation)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	entitled, err := s.gate.IsEntitled(ctx, requesterID)
	if err != nil {
		return nil, notFoundOr(err, "user not found")
	}
	if !entitled {
		return nil, domainerrors.SubscriptionRequired("an active subscription is required to request swaps")
	}

	book, err := s.store.GetBook(ctx, req.BookID)
	if err != nil {
		return nil, notFoundOr(err, "book not found")
	}
	if book.Status != domain.BookAvailable {
		return nil, domainerrors.NotFound("book not available")
	}
	if book.OwnerID == requesterID {
		return nil, domainerrors.InvalidOperation("you cannot request your own book")
	}

	swapID, err := id.NewSwap()
	if err != nil {
		return nil, fmt.Errorf("generate swap ID: %w", err)
	}

	swap = &domain.SwapRequest{
		BookID:          book.ID,
		RequesterID:     requesterID,
		OwnerID:         book.OwnerID,
		Status:          domain.SwapPending,
		MeetingLocation: req.MeetingLocation,
		MeetingDate:     req.MeetingDate,
	}
	swap.ID = swapID
	swap.InitTimestamps()

	if err := s.store.CreateSwapRequest(ctx, swap); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, domainerrors.NotFound("book not available")
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "create swap request")
	}

	s.logger.Info("swap requested",
		"swap_id", swap.ID, "book_id", book.ID, "requester_id", requesterID, "owner_id", book.OwnerID)

	book.Status = domain.BookPending
	s.events.Emit(sse.NewBookStatusEvent(book))

	users := s.participants(ctx, swap)
	if owner, ok := users[swap.OwnerID]; ok {
		msg := notify.NewMessage(notify.KindSwapRequested, owner.Contact())
		msg.SwapID = swap.ID
		msg.BookID = book.ID
		msg.BookTitle = book.Title
		msg.CounterpartyName = nameOf(users, requesterID)
		s.notifier.Notify(ctx, msg)
	}

	return swap, nil
}

// Accept moves a pending swap to accepted. Only the owner may accept.
func (s *SwapService) Accept(ctx context.Context, actingUserID, swapID string) (swap *domain.SwapRequest, err error) {
	defer func() { s.recorder.SwapOutcome(opAccept, outcome(err)) }()

	swap, err = s.authorizeOwner(ctx, actingUserID, swapID)
	if err != nil {
		return nil, err
	}
	if swap.Status != domain.SwapPending {
		return nil, domainerrors.InvalidOperationf("cannot accept a swap that is %s", swap.Status)
	}

	err = s.transition(ctx, store.SwapTransition{
		SwapID: swap.ID,
		From:   domain.SwapPending,
		To:     domain.SwapAccepted,
	})
	if err != nil {
		return nil, err
	}
	swap.Status = domain.SwapAccepted
	swap.UpdatedAt = s.now()

	s.logger.Info("swap accepted", "swap_id", swap.ID, "owner_id", actingUserID)
	s.notifyRequester(ctx, swap, notify.KindSwapAccepted)

	return swap, nil
}

// Reject moves a pending swap to rejected and releases the book. Only the
// owner may reject.
func (s *SwapService) Reject(ctx context.Context, actingUserID, swapID string) (swap *domain.SwapRequest, err error) {
	defer func() { s.recorder.SwapOutcome(opReject, outcome(err)) }()

	swap, err = s.authorizeOwner(ctx, actingUserID, swapID)
	if err != nil {
		return nil, err
	}
	if swap.Status != domain.SwapPending {
		return nil, domainerrors.InvalidOperationf("cannot reject a swap that is %s", swap.Status)
	}

	err = s.transition(ctx, store.SwapTransition{
		SwapID:     swap.ID,
		From:       domain.SwapPending,
		To:         domain.SwapRejected,
		BookStatus: domain.BookAvailable,
	})
	if err != nil {
		return nil, err
	}
	swap.Status = domain.SwapRejected
	swap.UpdatedAt = s.now()

	s.logger.Info("swap rejected", "swap_id", swap.ID, "owner_id", actingUserID)
	s.emitBookStatus(ctx, swap.BookID)
	s.notifyRequester(ctx, swap, notify.KindSwapRejected)

	return swap, nil
}

// Complete finishes an accepted swap. Either participant may complete it.
// Both users' swap counters go up, badges are evaluated for both, and both
// are told which badges they earned.
func (s *SwapService) Complete(ctx context.Context, actingUserID, swapID string) (res *CompleteResult, err error) {
	defer func() { s.recorder.SwapOutcome(opComplete, outcome(err)) }()

	swap, err := s.store.GetSwapRequest(ctx, swapID)
	if err != nil {
		return nil, notFoundOr(err, "swap not found")
	}
	if !swap.IsParticipant(actingUserID) {
		return nil, domainerrors.Forbidden("only swap participants can complete a swap")
	}
	if swap.Status != domain.SwapAccepted {
		return nil, domainerrors.InvalidOperationf("cannot complete a swap that is %s", swap.Status)
	}

	completedAt := s.now()
	err = s.transition(ctx, store.SwapTransition{
		SwapID:         swap.ID,
		From:           domain.SwapAccepted,
		To:             domain.SwapCompleted,
		BookStatus:     domain.BookSwapped,
		CompletedAt:    &completedAt,
		IncrementSwaps: []string{swap.OwnerID, swap.RequesterID},
	})
	if err != nil {
		return nil, err
	}
	swap.Status = domain.SwapCompleted
	swap.CompletedAt = &completedAt
	swap.UpdatedAt = completedAt

	s.logger.Info("swap completed", "swap_id", swap.ID, "completed_by", actingUserID)

	book, bookErr := s.store.GetBook(ctx, swap.BookID)
	if bookErr == nil {
		s.events.Emit(sse.NewBookStatusEvent(book))
	}

	users := s.participants(ctx, swap)
	res = &CompleteResult{Swap: swap, NewBadges: make(map[string][]string, 2)}

	for _, userID := range []string{swap.OwnerID, swap.RequesterID} {
		user, ok := users[userID]
		if !ok {
			continue
		}
		awarded, err := s.awarder.Award(ctx, userID, badge.Counters{SwapsCompleted: user.Swaps})
		if err != nil {
			s.logger.Warn("badge evaluation failed", "user_id", userID, "error", err)
		}
		res.NewBadges[userID] = awarded

		msg := notify.NewMessage(notify.KindSwapCompleted, user.Contact())
		msg.SwapID = swap.ID
		msg.BookID = swap.BookID
		if book != nil {
			msg.BookTitle = book.Title
		}
		msg.CounterpartyName = nameOf(users, swap.Counterparty(userID))
		msg.Badges = awarded
		s.notifier.Notify(ctx, msg)
	}

	return res, nil
}

// Get returns a swap visible to userID.
func (s *SwapService) Get(ctx context.Context, userID, swapID string) (*SwapDetails, error) {
	swap, err := s.store.GetSwapRequest(ctx, swapID)
	if err != nil {
		return nil, notFoundOr(err, "swap not found")
	}
	if !swap.IsParticipant(userID) {
		return nil, domainerrors.Forbidden("only swap participants can view a swap")
	}

	details, err := s.describe(ctx, []*domain.SwapRequest{swap})
	if err != nil {
		return nil, err
	}
	return details[0], nil
}

// ListIncoming returns requests for the user's books, newest first.
func (s *SwapService) ListIncoming(ctx context.Context, userID string) ([]*SwapDetails, error) {
	swaps, err := s.store.ListSwapsByOwner(ctx, userID)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list swaps")
	}
	return s.describe(ctx, swaps)
}

// ListOutgoing returns requests the user made, newest first.
func (s *SwapService) ListOutgoing(ctx context.Context, userID string) ([]*SwapDetails, error) {
	swaps, err := s.store.ListSwapsByRequester(ctx, userID)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "list swaps")
	}
	return s.describe(ctx, swaps)
}

// authorizeOwner loads swapID and checks actingUserID owns its book.
func (s *SwapService) authorizeOwner(ctx context.Context, actingUserID, swapID string) (*domain.SwapRequest, error) {
	swap, err := s.store.GetSwapRequest(ctx, swapID)
	if err != nil {
		return nil, notFoundOr(err, "swap not found")
	}
	if swap.OwnerID != actingUserID {
		return nil, domainerrors.Forbidden("only the book owner can respond to this swap")
	}
	return swap, nil
}

// transition applies t and maps a lost race to INVALID_OPERATION.
func (s *SwapService) transition(ctx context.Context, t store.SwapTransition) error {
	err := s.store.TransitionSwap(ctx, t)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrConflict):
		s.logger.Info("swap transition lost race", "swap_id", t.SwapID, "from", t.From, "to", t.To)
		return domainerrors.InvalidOperationf("swap is no longer %s", t.From)
	default:
		return notFoundOr(err, "swap not found")
	}
}

func (s *SwapService) notifyRequester(ctx context.Context, swap *domain.SwapRequest, kind notify.Kind) {
	users := s.participants(ctx, swap)
	requester, ok := users[swap.RequesterID]
	if !ok {
		return
	}

	msg := notify.NewMessage(kind, requester.Contact())
	msg.SwapID = swap.ID
	msg.BookID = swap.BookID
	msg.CounterpartyName = nameOf(users, swap.OwnerID)
	if book, err := s.store.GetBook(ctx, swap.BookID); err == nil {
		msg.BookTitle = book.Title
	}
	s.notifier.Notify(ctx, msg)
}

func (s *SwapService) emitBookStatus(ctx context.Context, bookID string) {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		s.logger.Debug("book status event skipped", "book_id", bookID, "error", err)
		return
	}
	s.events.Emit(sse.NewBookStatusEvent(book))
}

// participants loads both users of a swap. A lookup failure only costs the
// notification, so it is logged and an empty map returned.
func (s *SwapService) participants(ctx context.Context, swap *domain.SwapRequest) map[string]*domain.User {
	users, err := s.store.GetUsersByIDs(ctx, []string{swap.OwnerID, swap.RequesterID})
	if err != nil {
		s.logger.Warn("load swap participants failed", "swap_id", swap.ID, "error", err)
		return map[string]*domain.User{}
	}
	return users
}

func (s *SwapService) describe(ctx context.Context, swaps []*domain.SwapRequest) ([]*SwapDetails, error) {
	userIDs := make([]string, 0, len(swaps)*2)
	for _, sw := range swaps {
		userIDs = append(userIDs, sw.OwnerID, sw.RequesterID)
	}
	users, err := s.store.GetUsersByIDs(ctx, userIDs)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "load swap participants")
	}

	details := make([]*SwapDetails, 0, len(swaps))
	for _, sw := range swaps {
		d := &SwapDetails{
			SwapRequest:   sw,
			OwnerName:     nameOf(users, sw.OwnerID),
			RequesterName: nameOf(users, sw.RequesterID),
		}
		// Deleted or missing books still show the swap.
		if book, err := s.store.GetBook(ctx, sw.BookID); err == nil {
			d.BookTitle = book.Title
			d.BookAuthor = book.Author
		}
		details = append(details, d)
	}
	return details, nil
}

func nameOf(users map[string]*domain.User, userID string) string {
	if u, ok := users[userID]; ok {
		return u.Name
	}
	return ""
}
