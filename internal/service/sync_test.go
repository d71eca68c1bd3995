package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeRefresher struct {
	listCalls atomic.Int64
	convCalls atomic.Int64
	listErr   error
	block     chan struct{} // when set, RefreshList parks until closed
}

func (r *fakeRefresher) RefreshList(_ context.Context) error {
	r.listCalls.Add(1)
	if r.block != nil {
		<-r.block
	}
	return r.listErr
}

func (r *fakeRefresher) RefreshConversation(_ context.Context, _ string) error {
	r.convCalls.Add(1)
	return nil
}

func startScheduler(t *testing.T, refresher Refresher, interval time.Duration) *Scheduler {
	t.Helper()
	s := NewScheduler(refresher, interval, testMetrics, zap.NewNop())
	s.Start(context.Background())
	t.Cleanup(s.Stop)
	return s
}

func TestScheduler(t *testing.T) {
	t.Run("idle scheduler still refreshes the list", func(t *testing.T) {
		refresher := &fakeRefresher{}
		startScheduler(t, refresher, 10*time.Millisecond)

		assert.Eventually(t, func() bool {
			return refresher.listCalls.Load() >= 2
		}, 2*time.Second, 10*time.Millisecond)
		assert.Zero(t, refresher.convCalls.Load())
	})

	t.Run("watching triggers list and conversation refresh", func(t *testing.T) {
		refresher := &fakeRefresher{}
		s := startScheduler(t, refresher, 10*time.Millisecond)
		s.Watch("conv-1")

		assert.Eventually(t, func() bool {
			return refresher.listCalls.Load() >= 2 && refresher.convCalls.Load() >= 2
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("unwatch stops the conversation refresh but not the list", func(t *testing.T) {
		refresher := &fakeRefresher{}
		s := startScheduler(t, refresher, 10*time.Millisecond)

		s.Watch("conv-1")
		assert.Eventually(t, func() bool {
			return refresher.convCalls.Load() >= 1
		}, 2*time.Second, 10*time.Millisecond)

		s.Unwatch("conv-1")
		assert.Empty(t, s.Watched())

		settled := refresher.convCalls.Load()
		listBefore := refresher.listCalls.Load()
		assert.Eventually(t, func() bool {
			return refresher.listCalls.Load() >= listBefore+2
		}, 2*time.Second, 10*time.Millisecond)
		// one already-started cycle may still finish
		assert.LessOrEqual(t, refresher.convCalls.Load(), settled+1)
	})

	t.Run("unwatching a different conversation is a no-op", func(t *testing.T) {
		refresher := &fakeRefresher{}
		s := startScheduler(t, refresher, time.Hour)

		s.Watch("conv-1")
		s.Unwatch("conv-2")
		assert.Equal(t, "conv-1", s.Watched())
	})

	t.Run("a slow cycle is skipped, never overlapped", func(t *testing.T) {
		refresher := &fakeRefresher{block: make(chan struct{})}
		s := startScheduler(t, refresher, 10*time.Millisecond)
		s.Watch("conv-1")

		assert.Eventually(t, func() bool {
			return refresher.listCalls.Load() == 1
		}, 2*time.Second, 5*time.Millisecond)

		// several ticks pass while the first cycle is parked
		time.Sleep(100 * time.Millisecond)
		assert.EqualValues(t, 1, refresher.listCalls.Load())

		close(refresher.block)
		assert.Eventually(t, func() bool {
			return refresher.listCalls.Load() >= 2
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("a second start is a no-op", func(t *testing.T) {
		refresher := &fakeRefresher{}
		s := NewScheduler(refresher, 10*time.Millisecond, testMetrics, zap.NewNop())
		s.Start(context.Background())
		s.Start(context.Background())

		assert.Eventually(t, func() bool {
			return refresher.listCalls.Load() >= 1
		}, 2*time.Second, 10*time.Millisecond)

		s.Stop()
		settled := refresher.listCalls.Load()
		time.Sleep(100 * time.Millisecond)
		// a leaked second loop would keep polling past Stop
		assert.EqualValues(t, settled, refresher.listCalls.Load())
	})

	t.Run("refresh failures are swallowed and polling continues", func(t *testing.T) {
		refresher := &fakeRefresher{listErr: assert.AnError}
		s := startScheduler(t, refresher, 10*time.Millisecond)
		s.Watch("conv-1")

		assert.Eventually(t, func() bool {
			return refresher.listCalls.Load() >= 3
		}, 2*time.Second, 10*time.Millisecond)
	})
}
