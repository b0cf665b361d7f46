package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/booksswap/booksswap-server/internal/badge"
	"github.com/booksswap/booksswap-server/internal/logger"
	"github.com/booksswap/booksswap-server/internal/store"
)

type staticCounters struct {
	counters []store.UserCounters
	err      error
}

func (s staticCounters) ListUserCounters(context.Context) ([]store.UserCounters, error) {
	return s.counters, s.err
}

type fakeAwarder struct {
	mu    sync.Mutex
	calls map[string]badge.Counters
	fail  map[string]error
}

func (f *fakeAwarder) Award(_ context.Context, userID string, c badge.Counters) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]badge.Counters{}
	}
	f.calls[userID] = c
	if err := f.fail[userID]; err != nil {
		return nil, err
	}
	return badge.Qualifying(c), nil
}

type jobRecorder struct {
	mu   sync.Mutex
	runs map[string][]error
}

func (r *jobRecorder) JobRun(job string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.runs == nil {
		r.runs = map[string][]error{}
	}
	r.runs[job] = append(r.runs[job], err)
}

func TestBadgeReconciler_AwardsFromCounters(t *testing.T) {
	awarder := &fakeAwarder{}
	r := NewBadgeReconciler(staticCounters{counters: []store.UserCounters{
		{UserID: "u1", BooksUploaded: 5, SwapsCompleted: 1},
		{UserID: "u2"},
	}}, awarder, logger.Discard())

	require.NoError(t, r.Run(context.Background()))

	assert.Equal(t, badge.Counters{BooksUploaded: 5, SwapsCompleted: 1}, awarder.calls["u1"])
	assert.Contains(t, awarder.calls, "u2")
}

func TestBadgeReconciler_ContinuesPastUserFailure(t *testing.T) {
	boom := errors.New("boom")
	awarder := &fakeAwarder{fail: map[string]error{"u1": boom}}
	r := NewBadgeReconciler(staticCounters{counters: []store.UserCounters{
		{UserID: "u1", BooksUploaded: 1},
		{UserID: "u2", BooksUploaded: 1},
	}}, awarder, logger.Discard())

	err := r.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, awarder.calls, "u2")
}

func TestBadgeReconciler_ListError(t *testing.T) {
	r := NewBadgeReconciler(staticCounters{err: errors.New("db down")}, &fakeAwarder{}, logger.Discard())
	assert.Error(t, r.Run(context.Background()))
}

func TestScheduler_RunNowRecords(t *testing.T) {
	rec := &jobRecorder{}
	s := NewScheduler(rec, time.Second, logger.Discard())
	r := NewBadgeReconciler(staticCounters{}, &fakeAwarder{}, logger.Discard())

	s.RunNow(r)

	require.Len(t, rec.runs["badge_reconcile"], 1)
	assert.NoError(t, rec.runs["badge_reconcile"][0])
}

func TestScheduler_AddRejectsBadSpec(t *testing.T) {
	s := NewScheduler(nil, time.Second, logger.Discard())
	r := NewBadgeReconciler(staticCounters{}, &fakeAwarder{}, logger.Discard())

	assert.Error(t, s.Add("not a spec", r))
	assert.NoError(t, s.Add("@every 1h", r))
}

func TestScheduler_StartShutdown(t *testing.T) {
	s := NewScheduler(nil, time.Second, logger.Discard())
	require.NoError(t, s.Add("@hourly", NewBadgeReconciler(staticCounters{}, &fakeAwarder{}, logger.Discard())))
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Shutdown(ctx))
}
