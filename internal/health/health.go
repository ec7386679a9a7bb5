package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	defaultGoroutineLimit = 10000
	dnsTimeout            = 3 * time.Second
	readinessInterval     = 30 * time.Second
)

// ErrDispatcherStopped 调度循环未运行
var ErrDispatcherStopped = errors.New("dispatcher is not running")

// Probe 报告组件是否在运行
type Probe interface {
	Running() bool
}

// Options 健康检查参数
type Options struct {
	ProviderURL    string
	Dispatcher     Probe
	GoroutineLimit int
	Registry       prometheus.Registerer // 非空时把检查结果导出为指标
	Logger         *zap.Logger
}

// HealthChecker 健康检查器
type HealthChecker struct {
	health healthcheck.Handler
	logger *zap.Logger
}

// NewHealthChecker 创建健康检查器
//
// 存活检查：协程数量、调度循环；就绪检查：提供方域名解析（后台每 30 秒一次）。
func NewHealthChecker(ctx context.Context, opts Options) (*HealthChecker, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var h healthcheck.Handler
	if opts.Registry != nil {
		h = healthcheck.NewMetricsHandler(opts.Registry, "ghostinbox")
	} else {
		h = healthcheck.NewHandler()
	}

	hc := &HealthChecker{health: h, logger: logger.Named("health")}

	limit := opts.GoroutineLimit
	if limit <= 0 {
		limit = defaultGoroutineLimit
	}
	h.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(limit))

	if opts.Dispatcher != nil {
		h.AddLivenessCheck("dispatcher", DispatcherCheck(opts.Dispatcher))
	}

	if opts.ProviderURL != "" {
		host, err := providerHost(opts.ProviderURL)
		if err != nil {
			return nil, err
		}
		h.AddReadinessCheck("provider-dns", healthcheck.AsyncWithContext(
			ctx,
			healthcheck.DNSResolveCheck(host, dnsTimeout),
			readinessInterval,
		))
	}

	return hc, nil
}

// Handler 返回健康检查处理器（/live 与 /ready）
func (hc *HealthChecker) Handler() http.Handler {
	return hc.health
}

// LiveEndpoint 存活检查
func (hc *HealthChecker) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	hc.health.LiveEndpoint(w, r)
}

// ReadyEndpoint 就绪检查
func (hc *HealthChecker) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	hc.health.ReadyEndpoint(w, r)
}

// DispatcherCheck 调度循环存活检查
func DispatcherCheck(p Probe) healthcheck.Check {
	return func() error {
		if !p.Running() {
			return ErrDispatcherStopped
		}
		return nil
	}
}

// RunningFlag 简单的运行标记，实现 Probe
type RunningFlag struct {
	v atomic.Bool
}

func (f *RunningFlag) Set(running bool) { f.v.Store(running) }

func (f *RunningFlag) Running() bool { return f.v.Load() }

func providerHost(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse provider url: %w", err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("provider url %q has no host", raw)
	}
	return u.Hostname(), nil
}
