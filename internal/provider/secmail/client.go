// Package secmail 实现 1secmail 风格的匿名临时邮箱 API。
//
// 该接口无需鉴权，只支持列出邮件；地址本身即作为会话令牌。
package secmail

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tempmail/ghostinbox/internal/domain"
	"tempmail/ghostinbox/internal/provider"
)

const (
	// Name 提供方名称
	Name = "secmail"

	// DefaultBaseURL 公共 API 地址
	DefaultBaseURL = "https://www.1secmail.com"

	apiPath = "/api/v1/"
)

// Options 创建 Client 的参数
type Options struct {
	BaseURL       string
	DefaultDomain string
	Logger        *zap.Logger
	HTTPOptions   []provider.ClientOption
}

// Client 访问 1secmail 风格 API 的提供方实现
type Client struct {
	http          *provider.Client
	defaultDomain string
	log           *zap.Logger
	now           func() time.Time
}

var _ provider.Provider = (*Client)(nil)

type messageItem struct {
	ID      int64  `json:"id"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Date    string `json:"date"`
}

// New 创建客户端
func New(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		http:          provider.NewClient(baseURL, opts.HTTPOptions...),
		defaultDomain: opts.DefaultDomain,
		log:           log.Named(Name),
		now:           time.Now,
	}
}

// Name 返回提供方名称
func (c *Client) Name() string { return Name }

// BaseURL API 根地址
func (c *Client) BaseURL() string { return c.http.BaseURL() }

// Capabilities 该接口不支持按 ID 读取和删除
func (c *Client) Capabilities() provider.Capabilities {
	return provider.Capabilities{}
}

// Provision 在可用域名上生成随机地址，令牌即地址本身
func (c *Client) Provision(ctx context.Context) (*domain.Mailbox, error) {
	mailDomain := c.resolveDomain(ctx)
	login := strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
	address := login + "@" + mailDomain

	return &domain.Mailbox{
		Address:   address,
		Token:     address,
		Domain:    mailDomain,
		CreatedAt: c.now().UTC(),
	}, nil
}

// ListMessages 拉取收件箱
func (c *Client) ListMessages(ctx context.Context, token string) ([]domain.MessageSummary, error) {
	login, mailDomain, ok := strings.Cut(token, "@")
	if !ok || login == "" || mailDomain == "" {
		return nil, provider.NewError("list_messages", provider.ErrAuth, 0, fmt.Errorf("malformed mailbox token"))
	}

	var items []messageItem
	err := c.http.Do(ctx, provider.Request{
		Op:     "list_messages",
		Method: http.MethodGet,
		Path:   apiPath,
		Query: url.Values{
			"action": {"getMessages"},
			"login":  {login},
			"domain": {mailDomain},
		},
	}, &items)
	if err != nil {
		return nil, err
	}

	out := make([]domain.MessageSummary, 0, len(items))
	for _, m := range items {
		out = append(out, domain.MessageSummary{
			ID:      strconv.FormatInt(m.ID, 10),
			From:    m.From,
			Subject: m.Subject,
		})
	}
	return out, nil
}

// FetchBody 不支持
func (c *Client) FetchBody(ctx context.Context, id, token string) (string, error) {
	return "", provider.NewError("fetch_message", provider.ErrUnsupported, 0, nil)
}

// DeleteMessage 不支持
func (c *Client) DeleteMessage(ctx context.Context, id, token string) error {
	return provider.NewError("delete_message", provider.ErrUnsupported, 0, nil)
}

// resolveDomain 取域名列表第一项，失败时返回兜底域名
func (c *Client) resolveDomain(ctx context.Context) string {
	var domains []string
	err := c.http.Do(ctx, provider.Request{
		Op:     "list_domains",
		Method: http.MethodGet,
		Path:   apiPath,
		Query:  url.Values{"action": {"getDomainList"}},
	}, &domains)
	if err != nil || len(domains) == 0 || strings.TrimSpace(domains[0]) == "" {
		c.log.Warn("domain lookup failed, using fallback domain",
			zap.String("fallback", c.defaultDomain),
			zap.Error(err),
		)
		return c.defaultDomain
	}
	return strings.ToLower(strings.TrimSpace(domains[0]))
}
