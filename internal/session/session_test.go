package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempmail/ghostinbox/internal/domain"
	"tempmail/ghostinbox/internal/watcher"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry(watcher.PolicyCountdown, 10)

	_, ok := r.Lookup(1)
	assert.False(t, ok)

	s := r.Create(1)
	assert.Equal(t, int64(1), s.ChatID)
	assert.Equal(t, watcher.StateIdle, s.Machine.State())
	assert.Same(t, s, r.Create(1), "重复 Create 返回同一会话")
	assert.Equal(t, 1, r.Len())

	got, ok := r.Lookup(1)
	require.True(t, ok)
	assert.Same(t, s, got)

	assert.True(t, r.Evict(1))
	assert.False(t, r.Evict(1))
	assert.Equal(t, 0, r.Len())
}

func TestBindAndClear(t *testing.T) {
	r := NewRegistry(watcher.PolicyCountdown, 10)
	s := r.Create(7)

	s.Bind(&domain.Mailbox{Address: "user123@domain.test", Token: "tok1"})
	assert.True(t, s.HasInbox())
	assert.Equal(t, watcher.StateActive, s.Machine.State())
	assert.Equal(t, 10, s.Machine.Remaining())

	s.Bind(&domain.Mailbox{Address: "other@domain.test", Token: "tok2"})
	assert.Equal(t, "other@domain.test", s.Address)
	assert.Equal(t, "tok2", s.Token)

	s.Clear()
	assert.False(t, s.HasInbox())
	assert.Empty(t, s.Address)
	assert.Equal(t, watcher.StateIdle, s.Machine.State())
}

func TestWatcherLifecycle(t *testing.T) {
	sched := watcher.NewManualScheduler()
	r := NewRegistry(watcher.PolicyNotify, 1)
	s := r.Create(3)

	assert.False(t, s.StopWatcher(), "没有监视器时返回 false")
	gen := s.Generation()

	for i := 0; i < 3; i++ {
		s.StopWatcher()
		s.StartWatcher(sched.Every(time.Minute, func() {}))
	}

	assert.Len(t, sched.Live(), 1, "任意次重建后只保留一个监视器")
	assert.Equal(t, 1, r.Watchers())
	assert.Greater(t, s.Generation(), gen)

	r.Evict(3)
	assert.Empty(t, sched.Live())
	assert.Equal(t, 0, r.Watchers())
}

func TestCloseCancelsAll(t *testing.T) {
	sched := watcher.NewManualScheduler()
	r := NewRegistry(watcher.PolicyCountdown, 2)

	for id := int64(1); id <= 3; id++ {
		r.Create(id).StartWatcher(sched.Every(time.Minute, func() {}))
	}
	require.Len(t, sched.Live(), 3)

	r.Close()
	assert.Empty(t, sched.Live())
}

func TestExpireDropsToken(t *testing.T) {
	r := NewRegistry(watcher.PolicyCountdown, 1)
	s := r.Create(9)
	s.Bind(&domain.Mailbox{Address: "a@b.c", Token: "t"})
	s.SetPolling(true)

	s.Machine.Tick()
	s.Expire()

	assert.True(t, s.Expired())
	assert.False(t, s.HasInbox())
	assert.False(t, s.Polling())
	assert.Equal(t, "a@b.c", s.Address)
}

func TestGenerationSurvivesEviction(t *testing.T) {
	r := NewRegistry(watcher.PolicyCountdown, 10)

	old := r.Create(5)
	old.StopWatcher()
	oldGen := old.Generation()
	r.Evict(5)

	fresh := r.Create(5)
	fresh.StopWatcher()

	assert.Greater(t, fresh.Generation(), oldGen, "重建的会话不能复用被驱逐会话的代数")
}

func TestStartWatcherReplacesLiveHandle(t *testing.T) {
	sched := watcher.NewManualScheduler()
	r := NewRegistry(watcher.PolicyCountdown, 10)
	s := r.Create(6)

	first := sched.Every(time.Minute, func() {})
	s.StartWatcher(first)
	s.StartWatcher(sched.Every(time.Minute, func() {}))

	assert.True(t, first.(*watcher.ManualHandle).Cancelled())
	assert.Len(t, sched.Live(), 1)
	assert.Equal(t, 1, r.Watchers())
}
