// Package session 保存每个会话（Telegram chat）的邮箱与监视状态。
//
// Registry 不加锁，只允许调度协程访问。
package session

import (
	"time"

	"tempmail/ghostinbox/internal/domain"
	"tempmail/ghostinbox/internal/watcher"
)

// Session 单个会话的状态
type Session struct {
	ChatID          int64
	Address         string
	Token           string
	StatusMessageID int
	Machine         *watcher.Machine
	CreatedAt       time.Time

	handle     watcher.Handle
	generation uint64
	gens       *uint64 // 注册表共享的代数计数器
	polling    bool
}

// HasInbox 是否持有可用令牌
func (s *Session) HasInbox() bool {
	return s.Token != ""
}

// Expired 邮箱是否已过期
func (s *Session) Expired() bool {
	return s.Machine.State() == watcher.StateExpired
}

// Generation 当前监视器代数，每次 StopWatcher 从注册表取一个更大的值
//
// 代数在同一注册表内单调递增，会话被驱逐后重建也不会复用旧值。
func (s *Session) Generation() uint64 { return s.generation }

// HasWatcher 是否有存活的监视器
func (s *Session) HasWatcher() bool { return s.handle != nil }

// Bind 同时替换地址与令牌并激活状态机
func (s *Session) Bind(mb *domain.Mailbox) {
	s.Address = mb.Address
	s.Token = mb.Token
	s.StatusMessageID = 0
	s.polling = false
	s.Machine.Activate()
}

// Clear 清除凭据并回到 Idle
func (s *Session) Clear() {
	s.Address = ""
	s.Token = ""
	s.StatusMessageID = 0
	s.polling = false
	s.Machine.Reset()
}

// Expire 过期后丢弃令牌，保留地址用于提示
func (s *Session) Expire() {
	s.Token = ""
	s.polling = false
}

// StartWatcher 记录新监视器，仍存活的旧监视器会先被取消
func (s *Session) StartWatcher(h watcher.Handle) {
	if s.handle != nil {
		s.handle.Cancel()
	}
	s.handle = h
}

// StopWatcher 同步取消监视器并递增代数，之后收到的旧代数事件应被丢弃
//
// 返回是否确实取消了一个存活的监视器。
func (s *Session) StopWatcher() bool {
	s.generation = s.nextGeneration()
	if s.handle == nil {
		return false
	}
	s.handle.Cancel()
	s.handle = nil
	return true
}

func (s *Session) nextGeneration() uint64 {
	if s.gens == nil {
		return s.generation + 1
	}
	*s.gens++
	return *s.gens
}

// Polling notify 策略下是否有未完成的拉取
func (s *Session) Polling() bool { return s.polling }

// SetPolling 标记拉取开始或结束
func (s *Session) SetPolling(v bool) { s.polling = v }

// Registry 会话注册表
type Registry struct {
	sessions map[int64]*Session
	policy   watcher.Policy
	ticks    int
	gens     uint64
	now      func() time.Time
}

// NewRegistry 创建注册表，新会话的状态机使用给定策略与 tick 数
func NewRegistry(policy watcher.Policy, ticks int) *Registry {
	return &Registry{
		sessions: make(map[int64]*Session),
		policy:   policy,
		ticks:    ticks,
		now:      time.Now,
	}
}

// Lookup 查找会话
func (r *Registry) Lookup(chatID int64) (*Session, bool) {
	s, ok := r.sessions[chatID]
	return s, ok
}

// Create 返回已有会话或新建一个
func (r *Registry) Create(chatID int64) *Session {
	if s, ok := r.sessions[chatID]; ok {
		return s
	}
	s := &Session{
		ChatID:    chatID,
		Machine:   watcher.NewMachine(r.policy, r.ticks),
		CreatedAt: r.now(),
		gens:      &r.gens,
	}
	r.sessions[chatID] = s
	return s
}

// Evict 移除会话并取消其监视器
func (r *Registry) Evict(chatID int64) bool {
	s, ok := r.sessions[chatID]
	if !ok {
		return false
	}
	s.StopWatcher()
	delete(r.sessions, chatID)
	return true
}

// Len 会话数量
func (r *Registry) Len() int { return len(r.sessions) }

// Watchers 存活监视器数量
func (r *Registry) Watchers() int {
	n := 0
	for _, s := range r.sessions {
		if s.handle != nil {
			n++
		}
	}
	return n
}

// Close 取消全部监视器
func (r *Registry) Close() {
	for _, s := range r.sessions {
		s.StopWatcher()
	}
}
