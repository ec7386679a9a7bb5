package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tempmail/ghostinbox/internal/domain"
	"tempmail/ghostinbox/internal/monitoring"
	"tempmail/ghostinbox/internal/provider"
	"tempmail/ghostinbox/internal/watcher"
)

// MockProvider 模拟提供方
type MockProvider struct {
	mock.Mock
	caps provider.Capabilities
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Capabilities() provider.Capabilities { return m.caps }

func (m *MockProvider) Provision(ctx context.Context) (*domain.Mailbox, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Mailbox), args.Error(1)
}

func (m *MockProvider) ListMessages(ctx context.Context, token string) ([]domain.MessageSummary, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.MessageSummary), args.Error(1)
}

func (m *MockProvider) FetchBody(ctx context.Context, id, token string) (string, error) {
	args := m.Called(ctx, id, token)
	return args.String(0), args.Error(1)
}

func (m *MockProvider) DeleteMessage(ctx context.Context, id, token string) error {
	args := m.Called(ctx, id, token)
	return args.Error(0)
}

// fakeRenderer 记录所有渲染指令，消息 ID 从 100 开始递增
type fakeRenderer struct {
	mu       sync.Mutex
	rendered []domain.RenderInstruction
	nextID   int
	failEdit bool
}

var errEditFailed = errors.New("message is not modified")

func (r *fakeRenderer) Render(ctx context.Context, ri domain.RenderInstruction) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rendered = append(r.rendered, ri)
	if ri.IsEdit() {
		if r.failEdit {
			return 0, errEditFailed
		}
		return ri.EditMessageID, nil
	}
	r.nextID++
	return 100 + r.nextID, nil
}

func (r *fakeRenderer) all() []domain.RenderInstruction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.RenderInstruction(nil), r.rendered...)
}

func (r *fakeRenderer) last() domain.RenderInstruction {
	all := r.all()
	if len(all) == 0 {
		return domain.RenderInstruction{}
	}
	return all[len(all)-1]
}

// inlineExecutor 在调用方协程中立即执行任务
type inlineExecutor struct{}

func (inlineExecutor) TrySubmit(task func()) bool {
	task()
	return true
}

// queueExecutor 暂存任务，由测试决定何时执行
type queueExecutor struct {
	tasks []func()
}

func (q *queueExecutor) TrySubmit(task func()) bool {
	q.tasks = append(q.tasks, task)
	return true
}

func (q *queueExecutor) runAll() {
	tasks := q.tasks
	q.tasks = nil
	for _, t := range tasks {
		t()
	}
}

// rejectExecutor 模拟协程池已满
type rejectExecutor struct{}

func (rejectExecutor) TrySubmit(func()) bool { return false }

type harness struct {
	d        *Dispatcher
	provider *MockProvider
	renderer *fakeRenderer
	sched    *watcher.ManualScheduler
	metrics  *monitoring.Metrics
}

type harnessOption func(*DispatcherOptions)

func withPolicy(p watcher.Policy) harnessOption {
	return func(o *DispatcherOptions) { o.Policy = p }
}

func withExecutor(e Executor) harnessOption {
	return func(o *DispatcherOptions) { o.Executor = e }
}

func withQueueSize(n int) harnessOption {
	return func(o *DispatcherOptions) { o.QueueSize = n }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	p := &MockProvider{caps: provider.Capabilities{Read: true, Delete: true}}
	r := &fakeRenderer{}
	sched := watcher.NewManualScheduler()
	metrics := monitoring.NewMetrics()
	logger := zap.NewNop()

	o := DispatcherOptions{
		Mailboxes:      NewMailboxService(p, metrics, logger),
		Messages:       NewMessageService(p, metrics, logger),
		Renderer:       r,
		Executor:       inlineExecutor{},
		Scheduler:      sched,
		Policy:         watcher.PolicyCountdown,
		Lifetime:       10 * time.Minute,
		Interval:       time.Minute,
		CountdownTicks: 10,
		PreviewLimit:   3,
		QueueSize:      64,
		Metrics:        metrics,
		Logger:         logger,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &harness{
		d:        NewDispatcher(o),
		provider: p,
		renderer: r,
		sched:    sched,
		metrics:  metrics,
	}
}

// send 提交意图并处理完所有后续事件
func (h *harness) send(t *testing.T, in domain.Intent) {
	t.Helper()
	require.NoError(t, h.d.Dispatch(context.Background(), in))
	h.d.drain()
}

// tick 触发一次所有监视器并处理结果
func (h *harness) tick() {
	h.sched.Fire()
	h.d.drain()
}

func intent(kind domain.IntentKind, chatID int64) domain.Intent {
	return domain.Intent{Kind: kind, ChatID: chatID}
}

func mailbox(address, token string) *domain.Mailbox {
	return &domain.Mailbox{Address: address, Token: token, Domain: "domain.test"}
}
