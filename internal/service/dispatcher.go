package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"tempmail/ghostinbox/internal/domain"
	"tempmail/ghostinbox/internal/monitoring"
	"tempmail/ghostinbox/internal/session"
	"tempmail/ghostinbox/internal/watcher"
)

var (
	// ErrDispatcherStopped 调度循环已退出
	ErrDispatcherStopped = errors.New("dispatcher stopped")
	// ErrDispatcherRunning Run 被重复调用
	ErrDispatcherRunning = errors.New("dispatcher already running")
)

const defaultQueueSize = 256

// Renderer 把渲染指令发送到聊天，返回发送或编辑的消息 ID
type Renderer interface {
	Render(ctx context.Context, ri domain.RenderInstruction) (int, error)
}

// Executor 执行后台任务，队列满时返回 false
type Executor interface {
	TrySubmit(task func()) bool
}

// DispatcherOptions 调度器参数
type DispatcherOptions struct {
	Mailboxes      *MailboxService
	Messages       *MessageService
	Renderer       Renderer
	Executor       Executor
	Scheduler      watcher.Scheduler
	Policy         watcher.Policy
	Lifetime       time.Duration // countdown 邮箱寿命，仅用于展示
	Interval       time.Duration // countdown 的 tick 间隔或 notify 的轮询间隔
	CountdownTicks int
	PreviewLimit   int
	QueueSize      int
	Metrics        *monitoring.Metrics
	Logger         *zap.Logger
}

type eventKind int

const (
	evIntent eventKind = iota
	evTick
	evProvisioned
	evPolled
	evCardShown
)

type event struct {
	kind      eventKind
	intent    domain.Intent
	chatID    int64
	gen       uint64
	mailbox   *domain.Mailbox
	err       error
	messages  []domain.MessageSummary
	messageID int
}

// Dispatcher 意图调度器
//
// 单个协程消费事件队列（意图、tick、后台任务结果），会话注册表只在该协程中访问。
// 提供方调用和消息发送在 Executor 上执行，结果以事件形式送回。
type Dispatcher struct {
	mailboxes *MailboxService
	messages  *MessageService
	renderer  Renderer
	executor  Executor
	scheduler watcher.Scheduler
	policy    watcher.Policy
	lifetime  time.Duration
	interval  time.Duration
	ticks     int
	preview   int
	metrics   *monitoring.Metrics
	logger    *zap.Logger

	registry *session.Registry
	events   chan event
	stop     chan struct{}
	stopOnce sync.Once
	running  atomic.Bool
	ctx      context.Context
}

// NewDispatcher 创建调度器
func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		mailboxes: opts.Mailboxes,
		messages:  opts.Messages,
		renderer:  opts.Renderer,
		executor:  opts.Executor,
		scheduler: opts.Scheduler,
		policy:    opts.Policy,
		lifetime:  opts.Lifetime,
		interval:  opts.Interval,
		ticks:     opts.CountdownTicks,
		preview:   opts.PreviewLimit,
		metrics:   opts.Metrics,
		logger:    logger.Named("dispatcher"),
		registry:  session.NewRegistry(opts.Policy, opts.CountdownTicks),
		events:    make(chan event, queueSize),
		stop:      make(chan struct{}),
		ctx:       context.Background(),
	}
}

// Dispatch 提交一次用户意图，队列满时阻塞直到 ctx 结束
func (d *Dispatcher) Dispatch(ctx context.Context, in domain.Intent) error {
	select {
	case <-d.stop:
		return ErrDispatcherStopped
	default:
	}

	select {
	case d.events <- event{kind: evIntent, intent: in}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.stop:
		return ErrDispatcherStopped
	}
}

// Run 运行事件循环直到 ctx 结束，退出时取消全部监视器
func (d *Dispatcher) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return ErrDispatcherRunning
	}
	d.ctx = ctx
	d.logger.Info("dispatcher started", zap.String("policy", string(d.policy)))

	defer func() {
		d.stopOnce.Do(func() { close(d.stop) })
		d.registry.Close()
		d.updateGauges()
		d.running.Store(false)
		d.logger.Info("dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-d.events:
			d.handle(ev)
		}
	}
}

// Running 事件循环是否在运行
func (d *Dispatcher) Running() bool {
	return d.running.Load()
}

// drain 同步处理队列中已有的事件，返回处理数量
func (d *Dispatcher) drain() int {
	n := 0
	for {
		select {
		case ev := <-d.events:
			d.handle(ev)
			n++
		default:
			return n
		}
	}
}

func (d *Dispatcher) handle(ev event) {
	switch ev.kind {
	case evIntent:
		d.handleIntent(ev.intent)
	case evTick:
		d.handleTick(ev.chatID, ev.gen)
	case evProvisioned:
		d.handleProvisioned(ev)
	case evPolled:
		d.handlePolled(ev)
	case evCardShown:
		d.handleCardShown(ev)
	}
	d.updateGauges()
}

func (d *Dispatcher) handleIntent(in domain.Intent) {
	d.metrics.RecordIntent(string(in.Kind))

	switch in.Kind {
	case domain.IntentStart:
		d.submitRender(renderWelcome(in.ChatID, d.policy, d.lifetime))
	case domain.IntentGenerate:
		d.generate(in.ChatID)
	case domain.IntentCheckInbox:
		d.checkInbox(in.ChatID)
	case domain.IntentReadMessage:
		d.readMessage(in)
	case domain.IntentDeleteMessage:
		d.deleteMessage(in)
	case domain.IntentEnd:
		if d.registry.Evict(in.ChatID) {
			d.logger.Info("session evicted", zap.Int64("chat_id", in.ChatID))
		}
	default:
		d.logger.Warn("unknown intent", zap.String("kind", string(in.Kind)))
	}
}

// generate 取消旧监视器后在后台申请新邮箱
func (d *Dispatcher) generate(chatID int64) {
	s := d.registry.Create(chatID)
	s.StopWatcher()
	gen := s.Generation()

	ok := d.submit(func() {
		d.render(renderGenerating(chatID))
		mb, err := d.mailboxes.Provision(d.ctx)
		d.post(event{kind: evProvisioned, chatID: chatID, gen: gen, mailbox: mb, err: err})
	})
	if !ok {
		s.Clear()
	}
}

func (d *Dispatcher) handleProvisioned(ev event) {
	s, ok := d.registry.Lookup(ev.chatID)
	if !ok || s.Generation() != ev.gen {
		d.logger.Debug("stale provision result dropped", zap.Int64("chat_id", ev.chatID))
		return
	}

	if ev.err != nil {
		s.Clear()
		d.submitRender(renderBusy(ev.chatID))
		return
	}

	s.Bind(ev.mailbox)
	s.StartWatcher(d.scheduler.Every(d.interval, d.tickFunc(ev.chatID, ev.gen)))

	card := renderMailboxCard(ev.chatID, s.Address, d.initialStatus(), 0)
	chatID, gen := ev.chatID, ev.gen
	d.submit(func() {
		id := d.render(card)
		if id != 0 && d.policy == watcher.PolicyCountdown {
			d.post(event{kind: evCardShown, chatID: chatID, gen: gen, messageID: id})
		}
	})
}

func (d *Dispatcher) handleCardShown(ev event) {
	s, ok := d.registry.Lookup(ev.chatID)
	if !ok || s.Generation() != ev.gen {
		return
	}
	s.StatusMessageID = ev.messageID
}

func (d *Dispatcher) initialStatus() string {
	if d.policy == watcher.PolicyNotify {
		return notifyStatus()
	}
	return countdownStatus(time.Duration(d.ticks) * d.interval)
}

// tickFunc 返回监视器回调，队列满时丢弃 tick
func (d *Dispatcher) tickFunc(chatID int64, gen uint64) func() {
	return func() {
		select {
		case d.events <- event{kind: evTick, chatID: chatID, gen: gen}:
		default:
			d.metrics.RecordTickDropped()
		}
	}
}

func (d *Dispatcher) handleTick(chatID int64, gen uint64) {
	s, ok := d.registry.Lookup(chatID)
	if !ok || s.Generation() != gen || !s.Machine.Active() {
		return
	}

	switch s.Machine.Policy() {
	case watcher.PolicyCountdown:
		d.countdownTick(s)
	case watcher.PolicyNotify:
		d.notifyTick(s, gen)
	}
}

func (d *Dispatcher) countdownTick(s *session.Session) {
	remaining, expired := s.Machine.Tick()
	if expired {
		s.StopWatcher()
		s.Expire()
		d.metrics.RecordMailboxExpired()
		d.logger.Info("mailbox expired", zap.Int64("chat_id", s.ChatID))
		d.submitRender(renderExpired(s.ChatID, s.Address))
		return
	}

	if s.StatusMessageID != 0 {
		status := countdownStatus(time.Duration(remaining) * d.interval)
		d.submitRender(renderMailboxCard(s.ChatID, s.Address, status, s.StatusMessageID))
	}
}

// notifyTick 上一次拉取未完成时跳过本次 tick
func (d *Dispatcher) notifyTick(s *session.Session, gen uint64) {
	if s.Polling() {
		return
	}
	s.SetPolling(true)

	chatID, token := s.ChatID, s.Token
	ok := d.submit(func() {
		msgs := d.messages.List(d.ctx, token)
		d.post(event{kind: evPolled, chatID: chatID, gen: gen, messages: msgs})
	})
	if !ok {
		s.SetPolling(false)
	}
}

func (d *Dispatcher) handlePolled(ev event) {
	s, ok := d.registry.Lookup(ev.chatID)
	if !ok || s.Generation() != ev.gen {
		return
	}
	s.SetPolling(false)

	if s.Machine.Observe(len(ev.messages)) {
		d.metrics.RecordNotification()
		d.submitRender(renderNewMail(ev.chatID, ev.messages[0], d.messages.Capabilities()))
	}
}

// activeToken 返回会话令牌，没有时渲染提示并返回 false
func (d *Dispatcher) activeToken(chatID int64) (string, bool) {
	s, ok := d.registry.Lookup(chatID)
	if ok && s.HasInbox() {
		return s.Token, true
	}

	if ok && s.Expired() {
		d.submitRender(renderExpired(chatID, s.Address))
	} else {
		d.submitRender(renderNoInbox(chatID))
	}
	return "", false
}

// checkInbox 只读操作，不修改状态机
func (d *Dispatcher) checkInbox(chatID int64) {
	token, ok := d.activeToken(chatID)
	if !ok {
		return
	}

	caps, limit := d.messages.Capabilities(), d.preview
	d.submit(func() {
		msgs := d.messages.List(d.ctx, token)
		d.render(renderInbox(chatID, msgs, limit, caps))
	})
}

func (d *Dispatcher) readMessage(in domain.Intent) {
	token, ok := d.activeToken(in.ChatID)
	if !ok {
		return
	}

	caps := d.messages.Capabilities()
	if !caps.Read {
		d.submitRender(renderReadFailed(in.ChatID))
		return
	}

	d.submit(func() {
		body, ok := d.messages.Read(d.ctx, in.Ref, token)
		if !ok {
			d.render(renderReadFailed(in.ChatID))
			return
		}
		d.render(renderBody(in.ChatID, in.Ref, body, caps))
	})
}

func (d *Dispatcher) deleteMessage(in domain.Intent) {
	token, ok := d.activeToken(in.ChatID)
	if !ok {
		return
	}

	if !d.messages.Capabilities().Delete {
		d.submitRender(renderDeleteResult(in.ChatID, false, in.MessageID))
		return
	}

	d.submit(func() {
		deleted := d.messages.Delete(d.ctx, in.Ref, token)
		d.render(renderDeleteResult(in.ChatID, deleted, in.MessageID))
	})
}

// post 把后台任务结果送回事件循环
func (d *Dispatcher) post(ev event) {
	select {
	case d.events <- ev:
	case <-d.stop:
	}
}

func (d *Dispatcher) submit(task func()) bool {
	if d.executor.TrySubmit(task) {
		return true
	}
	d.metrics.RecordTaskRejected()
	d.logger.Warn("worker pool saturated, task dropped")
	return false
}

func (d *Dispatcher) submitRender(ri domain.RenderInstruction) {
	d.submit(func() { d.render(ri) })
}

// render 渲染失败只记录，不影响状态机
func (d *Dispatcher) render(ri domain.RenderInstruction) int {
	id, err := d.renderer.Render(d.ctx, ri)
	if err != nil {
		method := "send"
		if ri.IsEdit() {
			method = "edit"
		}
		d.metrics.RecordRenderFailure(method)
		d.logger.Debug("render failed",
			zap.Int64("chat_id", ri.ChatID),
			zap.String("method", method),
			zap.Error(err),
		)
		return 0
	}
	return id
}

func (d *Dispatcher) updateGauges() {
	d.metrics.UpdateSessions(d.registry.Len(), d.registry.Watchers())
}
