package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tempmail/ghostinbox/internal/domain"
	"tempmail/ghostinbox/internal/monitoring"
	"tempmail/ghostinbox/internal/provider"
)

// MessageService 封装收件箱读取操作。
//
// 所有方法都不返回错误：提供方失败被记录后降级为空结果或 false。
type MessageService struct {
	provider provider.Provider
	metrics  *monitoring.Metrics
	logger   *zap.Logger
}

// NewMessageService 创建邮件业务服务。
func NewMessageService(p provider.Provider, metrics *monitoring.Metrics, logger *zap.Logger) *MessageService {
	return &MessageService{
		provider: p,
		metrics:  metrics,
		logger:   logger.Named("message"),
	}
}

// Capabilities 返回提供方支持的可选操作
func (s *MessageService) Capabilities() provider.Capabilities {
	return s.provider.Capabilities()
}

// List 拉取收件箱，失败时返回空列表
func (s *MessageService) List(ctx context.Context, token string) []domain.MessageSummary {
	start := time.Now()
	msgs, err := s.provider.ListMessages(ctx, token)
	record(s.metrics, "list_messages", start, err)
	if err != nil {
		s.warn("list messages failed", err)
		return []domain.MessageSummary{}
	}
	return msgs
}

// Read 读取正文，失败时返回 false
func (s *MessageService) Read(ctx context.Context, id, token string) (string, bool) {
	start := time.Now()
	body, err := s.provider.FetchBody(ctx, id, token)
	record(s.metrics, "fetch_message", start, err)
	if err != nil {
		s.warn("fetch message failed", err, zap.String("message_id", id))
		return "", false
	}
	s.metrics.RecordMessageRead()
	return body, true
}

// Delete 删除邮件，成功返回 true
func (s *MessageService) Delete(ctx context.Context, id, token string) bool {
	start := time.Now()
	err := s.provider.DeleteMessage(ctx, id, token)
	record(s.metrics, "delete_message", start, err)
	if err != nil {
		s.warn("delete message failed", err, zap.String("message_id", id))
		return false
	}
	s.metrics.RecordMessageDeleted()
	return true
}

func (s *MessageService) warn(msg string, err error, fields ...zap.Field) {
	fields = append(fields,
		zap.String("provider", s.provider.Name()),
		zap.String("kind", provider.KindOf(err)),
		zap.Error(err),
	)
	s.logger.Warn(msg, fields...)
}
