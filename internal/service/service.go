// Package service implements the BooksSwap business operations on top of
// the entity store. Services return coded errors from internal/errors; store
// sentinels never leak past this package.
package service

import (
	"context"
	"errors"

	"github.com/booksswap/booksswap-server/internal/badge"
	domainerrors "github.com/booksswap/booksswap-server/internal/errors"
	"github.com/booksswap/booksswap-server/internal/sse"
	"github.com/booksswap/booksswap-server/internal/store"
)

// EntitlementChecker is the billing gate.
type EntitlementChecker interface {
	IsEntitled(ctx context.Context, userID string) (bool, error)
}

// BadgeAwarder awards badges for counters. *badge.Awarder satisfies it.
type BadgeAwarder interface {
	Award(ctx context.Context, userID string, c badge.Counters) ([]string, error)
}

// EventEmitter broadcasts real-time events. *sse.Manager satisfies it.
type EventEmitter interface {
	Emit(event sse.Event) bool
}

// Recorder observes business outcomes. *metrics.Metrics satisfies it.
type Recorder interface {
	SwapOutcome(operation, outcome string)
	BillingEvent(eventType, outcome string)
}

type noopRecorder struct{}

func (noopRecorder) SwapOutcome(string, string)  {}
func (noopRecorder) BillingEvent(string, string) {}

type noopEmitter struct{}

func (noopEmitter) Emit(sse.Event) bool { return false }

// outcome labels err for metrics: "ok" or the domain error code.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var de *domainerrors.Error
	if errors.As(err, &de) {
		return string(de.Code)
	}
	return string(domainerrors.CodeInternal)
}

// notFoundOr maps store.ErrNotFound to a NOT_FOUND error with msg and wraps
// anything else as internal.
func notFoundOr(err error, msg string) error {
	if errors.Is(err, store.ErrNotFound) {
		return domainerrors.NotFound(msg)
	}
	return domainerrors.Wrap(err, domainerrors.CodeInternal, msg)
}
