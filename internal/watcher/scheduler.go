package watcher

import (
	"sync"
	"time"
)

// Handle 可取消的周期任务
type Handle interface {
	// Cancel 同步取消：返回后回调不会再被调用
	Cancel()
}

// Scheduler 产生周期 tick
type Scheduler interface {
	Every(interval time.Duration, fn func()) Handle
}

// TickerScheduler 基于 time.Ticker 的调度器，每个任务一个协程
type TickerScheduler struct{}

// NewTickerScheduler 创建调度器
func NewTickerScheduler() *TickerScheduler {
	return &TickerScheduler{}
}

// Every 每隔 interval 调用一次 fn，直到 Cancel
//
// fn 必须是非阻塞的，否则 Cancel 会等待它返回。
func (s *TickerScheduler) Every(interval time.Duration, fn func()) Handle {
	h := &tickerHandle{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go func() {
		defer close(h.done)
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-h.stop:
				return
			case <-t.C:
				select {
				case <-h.stop:
					return
				default:
				}
				fn()
			}
		}
	}()

	return h
}

type tickerHandle struct {
	once sync.Once
	stop chan struct{}
	done chan struct{}
}

func (h *tickerHandle) Cancel() {
	h.once.Do(func() { close(h.stop) })
	<-h.done
}

// ManualScheduler 手动驱动的调度器，用于测试
type ManualScheduler struct {
	mu    sync.Mutex
	tasks []*ManualHandle
}

// NewManualScheduler 创建手动调度器
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

func (s *ManualScheduler) Every(interval time.Duration, fn func()) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := &ManualHandle{fn: fn, interval: interval}
	s.tasks = append(s.tasks, h)
	return h
}

// Fire 触发所有未取消任务各一次
func (s *ManualScheduler) Fire() {
	for _, h := range s.Live() {
		h.fn()
	}
}

// Live 返回未取消的任务
func (s *ManualScheduler) Live() []*ManualHandle {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*ManualHandle
	for _, h := range s.tasks {
		if !h.Cancelled() {
			out = append(out, h)
		}
	}
	return out
}

// Created 返回创建过的任务总数
func (s *ManualScheduler) Created() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// ManualHandle ManualScheduler 创建的任务
type ManualHandle struct {
	mu        sync.Mutex
	fn        func()
	interval  time.Duration
	cancelled bool
}

func (h *ManualHandle) Cancel() {
	h.mu.Lock()
	h.cancelled = true
	h.mu.Unlock()
}

func (h *ManualHandle) Cancelled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled
}

// Interval 返回任务周期
func (h *ManualHandle) Interval() time.Duration { return h.interval }
