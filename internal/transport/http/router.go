package httptransport

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tempmail/ghostinbox/internal/health"
	"tempmail/ghostinbox/internal/middleware"
	"tempmail/ghostinbox/internal/monitoring"
)

const (
	livePath    = "/health/live"
	readyPath   = "/health/ready"
	metricsPath = "/metrics"
)

// WebhookReceiver 处理 Telegram 推送的更新
type WebhookReceiver interface {
	HandleWebhook(ctx context.Context, r *http.Request) error
}

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Health      *health.HealthChecker
	Metrics     *monitoring.Metrics
	Webhook     WebhookReceiver // 长轮询模式下为 nil
	WebhookPath string
	Logger      *zap.Logger
}

// NewRouter 创建运维接口路由：健康检查、指标以及可选的 webhook。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()
	logger := deps.Logger.Named("http")

	router.Use(middleware.RecoveryHandler(logger, deps.Metrics.RecordPanic))
	router.Use(middleware.RequestLogger(logger, livePath, readyPath, metricsPath))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.HTTPMetrics(deps.Metrics))

	router.GET(livePath, gin.WrapF(deps.Health.LiveEndpoint))
	router.GET(readyPath, gin.WrapF(deps.Health.ReadyEndpoint))
	router.GET(metricsPath, gin.WrapH(deps.Metrics.HTTPHandler()))

	if deps.Webhook != nil && deps.WebhookPath != "" {
		router.POST(deps.WebhookPath,
			middleware.BodySizeLimit(middleware.WebhookBodyLimit),
			webhookHandler(deps.Webhook, logger),
		)
	}

	router.NoRoute(func(c *gin.Context) {
		Error(c, http.StatusNotFound, "not found")
	})

	return router
}

// webhookHandler 解析失败返回 400，其余情况返回 200 以免 Telegram 重复推送
func webhookHandler(receiver WebhookReceiver, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := receiver.HandleWebhook(c.Request.Context(), c.Request); err != nil {
			logger.Warn("invalid webhook update", zap.Error(err))
			Error(c, http.StatusBadRequest, "invalid update")
			return
		}
		Success(c, nil)
	}
}
