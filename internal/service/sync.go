package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"monogest/backend/internal/monitoring"
)

// Refresher pulls fresh state from the store. The mailbox controller
// implements it; the scheduler only decides when to call it.
type Refresher interface {
	RefreshList(ctx context.Context) error
	RefreshConversation(ctx context.Context, conversationID string) error
}

// Scheduler drives the periodic reconciliation poll behind the push
// channel. Every interval it refreshes the conversation list; while Watch
// names an open conversation that conversation is refreshed too. A cycle
// still in flight when the ticker fires causes the new tick to be
// skipped, never stacked.
type Scheduler struct {
	refresher Refresher
	interval  time.Duration
	metrics   *monitoring.Metrics
	log       *zap.Logger

	mu      sync.Mutex
	watched string

	inFlight atomic.Bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a stopped scheduler. Call Start to launch the loop.
func NewScheduler(refresher Refresher, interval time.Duration, metrics *monitoring.Metrics, log *zap.Logger) *Scheduler {
	return &Scheduler{
		refresher: refresher,
		interval:  interval,
		metrics:   metrics,
		log:       log,
	}
}

// Start launches the ticker loop. It returns immediately. Starting an
// already-running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx)
}

// Stop halts the loop and waits for an in-flight cycle to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Watch marks a conversation as open in the client view. Watching the
// already-watched conversation is a no-op; watching another one replaces
// it, since the view shows a single open conversation at a time.
func (s *Scheduler) Watch(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watched = conversationID
}

// Unwatch returns the scheduler to the idle state. Unwatching a
// conversation that is not the watched one is a no-op.
func (s *Scheduler) Unwatch(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watched == conversationID {
		s.watched = ""
	}
}

// Watched reports the currently watched conversation, empty when idle.
func (s *Scheduler) Watched() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watched
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs one reconciliation cycle. The list is refreshed in both
// states; the watched conversation only while one is open. The
// CompareAndSwap guard means a slow cycle is never overlapped by the
// next tick.
func (s *Scheduler) tick(ctx context.Context) {
	watched := s.Watched()

	if !s.inFlight.CompareAndSwap(false, true) {
		s.metrics.SyncSkipped.Inc()
		s.log.Debug("sync cycle skipped, previous still running",
			zap.String("conversation_id", watched))
		return
	}
	defer s.inFlight.Store(false)

	// Poll failures are logged and counted, never surfaced: the next tick
	// or a push notification will catch the view up.
	result := "ok"
	if err := s.refresher.RefreshList(ctx); err != nil {
		result = "error"
		s.log.Warn("list refresh failed", zap.Error(err))
	}
	if watched != "" {
		if err := s.refresher.RefreshConversation(ctx, watched); err != nil {
			result = "error"
			s.log.Warn("conversation refresh failed",
				zap.String("conversation_id", watched),
				zap.Error(err))
		}
	}
	s.metrics.SyncCycles.WithLabelValues(result).Inc()
}
