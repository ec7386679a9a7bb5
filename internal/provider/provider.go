// Package provider 定义临时邮箱服务提供方的访问契约以及共用的 HTTP 客户端。
//
// 提供方方法只返回分类后的错误（见 errors.go），是否降级为空结果由调用方决定。
package provider

import (
	"context"

	"tempmail/ghostinbox/internal/domain"
)

// Capabilities 描述提供方支持的可选操作。
type Capabilities struct {
	Read   bool // 支持按 ID 读取正文
	Delete bool // 支持按 ID 删除邮件
}

// Provider 是远程临时邮箱 API 的抽象。
type Provider interface {
	// Name 返回提供方名称，用于日志和指标标签
	Name() string

	// Capabilities 返回提供方支持的可选操作
	Capabilities() Capabilities

	// Provision 申请一个新的临时邮箱并换取访问令牌
	Provision(ctx context.Context) (*domain.Mailbox, error)

	// ListMessages 拉取收件箱邮件摘要，每次调用都会重新请求
	ListMessages(ctx context.Context, token string) ([]domain.MessageSummary, error)

	// FetchBody 读取邮件正文，正文缺失时返回预览文本
	FetchBody(ctx context.Context, id, token string) (string, error)

	// DeleteMessage 删除指定邮件
	DeleteMessage(ctx context.Context, id, token string) error
}
