package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"tempmail/ghostinbox/internal/domain"
	"tempmail/ghostinbox/internal/monitoring"
	"tempmail/ghostinbox/internal/provider"
)

var (
	// ErrNoActiveInbox 会话没有可用令牌
	ErrNoActiveInbox = errors.New("no active inbox")
	// ErrProvisionFailed 申请邮箱失败，调用方应提供重试按钮
	ErrProvisionFailed = errors.New("mailbox provisioning failed")
)

// MailboxService 封装邮箱申请操作。
type MailboxService struct {
	provider provider.Provider
	metrics  *monitoring.Metrics
	logger   *zap.Logger
}

// NewMailboxService 创建邮箱业务服务。
func NewMailboxService(p provider.Provider, metrics *monitoring.Metrics, logger *zap.Logger) *MailboxService {
	return &MailboxService{
		provider: p,
		metrics:  metrics,
		logger:   logger.Named("mailbox"),
	}
}

// Provision 申请新的临时邮箱。
//
// 失败时记录日志与指标，并返回包装了 ErrProvisionFailed 的错误。
func (s *MailboxService) Provision(ctx context.Context) (*domain.Mailbox, error) {
	start := time.Now()
	mb, err := s.provider.Provision(ctx)
	record(s.metrics, "provision", start, err)

	if err != nil {
		s.metrics.RecordProvisionFailure()
		s.logger.Warn("provision failed",
			zap.String("provider", s.provider.Name()),
			zap.String("kind", provider.KindOf(err)),
			zap.Error(err),
		)
		return nil, errors.Join(ErrProvisionFailed, err)
	}

	s.metrics.RecordMailboxCreated()
	s.logger.Info("mailbox provisioned",
		zap.String("provider", s.provider.Name()),
		zap.String("domain", mb.Domain),
	)
	return mb, nil
}

// record 按操作与错误分类记录一次提供方调用
func record(m *monitoring.Metrics, op string, start time.Time, err error) {
	m.RecordProviderCall(op, provider.KindOf(err), time.Since(start))
}
