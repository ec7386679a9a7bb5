package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ghostinbox"

// Metrics 监控指标
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求指标（运维接口与 webhook）
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 邮箱指标
	MailboxesCreated  prometheus.Counter
	MailboxesExpired  prometheus.Counter
	ProvisionFailures prometheus.Counter
	SessionsActive    prometheus.Gauge
	WatchersActive    prometheus.Gauge
	NotificationsSent prometheus.Counter

	// 邮件指标
	MessagesRead    prometheus.Counter
	MessagesDeleted prometheus.Counter

	// 提供方指标
	ProviderRequests *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec

	// 调度指标
	IntentsTotal   *prometheus.CounterVec
	TicksDropped   prometheus.Counter
	TasksRejected  prometheus.Counter
	RenderFailures *prometheus.CounterVec

	// 错误指标
	PanicsTotal prometheus.Counter
}

// NewMetrics 在独立的 registry 上创建全部指标
//
// 每个实例使用自己的 registry，测试可以并行创建。
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	start := time.Now()

	f.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "uptime_seconds",
		Help:      "Process uptime in seconds",
	}, func() float64 { return time.Since(start).Seconds() })

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),

		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),

		MailboxesCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mailboxes_created_total",
			Help:      "Total number of mailboxes provisioned",
		}),

		MailboxesExpired: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mailboxes_expired_total",
			Help:      "Total number of mailboxes expired by countdown",
		}),

		ProvisionFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provision_failures_total",
			Help:      "Total number of failed mailbox provisions",
		}),

		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of conversations with a session",
		}),

		WatchersActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watchers_active",
			Help:      "Number of live mailbox watchers",
		}),

		NotificationsSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Total number of new-mail notifications",
		}),

		MessagesRead: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_read_total",
			Help:      "Total number of messages read",
		}),

		MessagesDeleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_deleted_total",
			Help:      "Total number of messages deleted",
		}),

		ProviderRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Mail provider calls by operation and outcome",
		}, []string{"op", "outcome"}),

		ProviderDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Mail provider call duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),

		IntentsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intents_total",
			Help:      "User intents dispatched by kind",
		}, []string{"kind"}),

		TicksDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_dropped_total",
			Help:      "Watcher ticks dropped because the event queue was full",
		}),

		TasksRejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_rejected_total",
			Help:      "Background tasks rejected because the worker pool was full",
		}),

		RenderFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_failures_total",
			Help:      "Failed chat renders by method",
		}, []string{"method"}),

		PanicsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "panics_total",
			Help:      "Total number of recovered panics",
		}),
	}
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordProviderCall 记录一次提供方调用
func (m *Metrics) RecordProviderCall(op, outcome string, duration time.Duration) {
	m.ProviderRequests.WithLabelValues(op, outcome).Inc()
	m.ProviderDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordIntent 记录一次用户意图
func (m *Metrics) RecordIntent(kind string) {
	m.IntentsTotal.WithLabelValues(kind).Inc()
}

// RecordRenderFailure 记录发送/编辑消息失败
func (m *Metrics) RecordRenderFailure(method string) {
	m.RenderFailures.WithLabelValues(method).Inc()
}

func (m *Metrics) RecordMailboxCreated() { m.MailboxesCreated.Inc() }

func (m *Metrics) RecordMailboxExpired() { m.MailboxesExpired.Inc() }

func (m *Metrics) RecordProvisionFailure() { m.ProvisionFailures.Inc() }

func (m *Metrics) RecordMessageRead() { m.MessagesRead.Inc() }

func (m *Metrics) RecordMessageDeleted() { m.MessagesDeleted.Inc() }

func (m *Metrics) RecordNotification() { m.NotificationsSent.Inc() }

func (m *Metrics) RecordTickDropped() { m.TicksDropped.Inc() }

func (m *Metrics) RecordTaskRejected() { m.TasksRejected.Inc() }

func (m *Metrics) RecordPanic() { m.PanicsTotal.Inc() }

// UpdateSessions 更新会话与监视器数量
func (m *Metrics) UpdateSessions(sessions, watchers int) {
	m.SessionsActive.Set(float64(sessions))
	m.WatchersActive.Set(float64(watchers))
}

// Registry 返回底层 registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
