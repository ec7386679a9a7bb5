// Package watcher 实现临时邮箱的倒计时/新邮件监视状态机。
//
// 状态流转：Idle → Active → Expired。两种策略按部署选择，互不混用：
//   - countdown: 每次 tick 递减剩余次数，归零后过期
//   - notify: 每次 tick 拉取收件箱，数量增加时通知最新邮件
package watcher

import "fmt"

// Policy 监视策略
type Policy string

const (
	PolicyCountdown Policy = "countdown"
	PolicyNotify    Policy = "notify"
)

// ParsePolicy 解析策略名称
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyCountdown, PolicyNotify:
		return Policy(s), nil
	default:
		return "", fmt.Errorf("unknown watcher policy %q", s)
	}
}

// State 监视器状态
type State int

const (
	StateIdle State = iota
	StateActive
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateExpired:
		return "expired"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Machine 单个会话的监视状态机
//
// 只由调度协程访问，不加锁。
type Machine struct {
	policy    Policy
	ticks     int
	state     State
	remaining int
	lastSeen  int
}

// NewMachine 创建状态机，ticks 为 countdown 策略下的总 tick 数
func NewMachine(policy Policy, ticks int) *Machine {
	if ticks < 1 {
		ticks = 1
	}
	return &Machine{policy: policy, ticks: ticks}
}

func (m *Machine) Policy() Policy { return m.policy }

func (m *Machine) State() State { return m.state }

// Remaining 剩余 tick 数（countdown）
func (m *Machine) Remaining() int { return m.remaining }

// LastSeenCount 已通知过的收件箱数量（notify）
func (m *Machine) LastSeenCount() int { return m.lastSeen }

// Active 是否处于活跃状态
func (m *Machine) Active() bool { return m.state == StateActive }

// Activate 绑定新邮箱后重新开始计数
func (m *Machine) Activate() {
	m.state = StateActive
	m.remaining = m.ticks
	m.lastSeen = 0
}

// Reset 回到 Idle（申请失败或会话结束）
func (m *Machine) Reset() {
	m.state = StateIdle
	m.remaining = 0
	m.lastSeen = 0
}

// Tick 处理一次 countdown tick
//
// 返回剩余次数以及本次是否导致过期。非 Active 状态或 notify 策略下不做任何修改。
func (m *Machine) Tick() (remaining int, expired bool) {
	if m.state != StateActive || m.policy != PolicyCountdown {
		return m.remaining, false
	}
	m.remaining--
	if m.remaining <= 0 {
		m.remaining = 0
		m.state = StateExpired
		return 0, true
	}
	return m.remaining, false
}

// Observe 记录一次收件箱数量，数量严格大于上次记录时返回 true
//
// lastSeen 只增不减，用户删除邮件不会让它回退。
func (m *Machine) Observe(count int) bool {
	if m.state != StateActive || m.policy != PolicyNotify {
		return false
	}
	if count > m.lastSeen {
		m.lastSeen = count
		return true
	}
	return false
}
