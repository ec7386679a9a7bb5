// Package mailtm 实现 mail.tm 临时邮箱 API 的访问。
package mailtm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"tempmail/ghostinbox/internal/cache"
	"tempmail/ghostinbox/internal/domain"
	"tempmail/ghostinbox/internal/provider"
)

const (
	// Name 提供方名称
	Name = "mailtm"

	// DefaultBaseURL mail.tm 公共 API 地址
	DefaultBaseURL = "https://api.mail.tm"

	domainCacheKey = "mailtm:domain"
	jsonLD         = "application/ld+json"
)

// Options 创建 Client 的参数
type Options struct {
	BaseURL        string
	Password       string        // 创建账户用的固定占位密码
	DefaultDomain  string        // 域名查询失败时的兜底域名
	DomainCacheTTL time.Duration // 域名查询结果缓存时间
	Cache          *cache.LocalCache
	Logger         *zap.Logger
	HTTPOptions    []provider.ClientOption
}

// Client 访问 mail.tm 的提供方实现
type Client struct {
	http          *provider.Client
	password      string
	defaultDomain string
	domainTTL     time.Duration
	domains       *cache.LocalCache
	lookups       singleflight.Group
	log           *zap.Logger
	now           func() time.Time
}

var _ provider.Provider = (*Client)(nil)

// New 创建 mail.tm 客户端
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
		password:      opts.Password,
		defaultDomain: opts.DefaultDomain,
		domainTTL:     opts.DomainCacheTTL,
		domains:       opts.Cache,
		log:           log.Named(Name),
		now:           time.Now,
	}
}

// Name 返回提供方名称
func (c *Client) Name() string { return Name }

// BaseURL API 根地址
func (c *Client) BaseURL() string { return c.http.BaseURL() }

// Capabilities mail.tm 支持读取与删除
func (c *Client) Capabilities() provider.Capabilities {
	return provider.Capabilities{Read: true, Delete: true}
}

// Provision 申请新邮箱
//
// 步骤：
//  1. 查询可用域名（失败时使用兜底域名）
//  2. 用随机 UUID 前 8 位作为本地部分
//  3. 以固定密码创建账户，服务端必须返回 201
//  4. 换取 Bearer 令牌
func (c *Client) Provision(ctx context.Context) (*domain.Mailbox, error) {
	mailDomain := c.resolveDomain(ctx)
	address := fmt.Sprintf("%s@%s", uuid.NewString()[:8], mailDomain)
	creds := credentials{Address: address, Password: c.password}

	err := c.http.Do(ctx, provider.Request{
		Op:     "create_account",
		Method: http.MethodPost,
		Path:   "/accounts",
		Body:   creds,
		Accept: jsonLD,
		Expect: http.StatusCreated,
	}, nil)
	if err != nil {
		return nil, err
	}

	var tok tokenResponse
	err = c.http.Do(ctx, provider.Request{
		Op:     "issue_token",
		Method: http.MethodPost,
		Path:   "/token",
		Body:   creds,
	}, &tok)
	if err != nil {
		return nil, err
	}
	if tok.Token == "" {
		return nil, provider.NewError("issue_token", provider.ErrParse, http.StatusOK, fmt.Errorf("token missing in response"))
	}

	return &domain.Mailbox{
		Address:   address,
		Token:     tok.Token,
		Domain:    mailDomain,
		CreatedAt: c.now().UTC(),
	}, nil
}

// ListMessages 拉取收件箱第一页（最新的在前）
func (c *Client) ListMessages(ctx context.Context, token string) ([]domain.MessageSummary, error) {
	if token == "" {
		return nil, provider.NewError("list_messages", provider.ErrAuth, 0, nil)
	}

	var items collection[messageItem]
	err := c.http.Do(ctx, provider.Request{
		Op:     "list_messages",
		Method: http.MethodGet,
		Path:   "/messages",
		Query:  url.Values{"page": {"1"}},
		Token:  token,
		Accept: jsonLD,
	}, &items)
	if err != nil {
		return nil, err
	}

	out := make([]domain.MessageSummary, 0, len(items))
	for _, m := range items {
		out = append(out, domain.MessageSummary{
			ID:      m.ID,
			From:    m.From.Address,
			Subject: m.Subject,
			Intro:   m.Intro,
		})
	}
	return out, nil
}

// FetchBody 读取邮件正文，text 为空时返回 intro
func (c *Client) FetchBody(ctx context.Context, id, token string) (string, error) {
	if token == "" {
		return "", provider.NewError("fetch_message", provider.ErrAuth, 0, nil)
	}

	var detail messageDetail
	err := c.http.Do(ctx, provider.Request{
		Op:     "fetch_message",
		Method: http.MethodGet,
		Path:   "/messages/" + url.PathEscape(id),
		Token:  token,
	}, &detail)
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(detail.Text) != "" {
		return detail.Text, nil
	}
	return detail.Intro, nil
}

// DeleteMessage 删除邮件，成功时服务端返回 204
func (c *Client) DeleteMessage(ctx context.Context, id, token string) error {
	if token == "" {
		return provider.NewError("delete_message", provider.ErrAuth, 0, nil)
	}

	return c.http.Do(ctx, provider.Request{
		Op:     "delete_message",
		Method: http.MethodDelete,
		Path:   "/messages/" + url.PathEscape(id),
		Token:  token,
		Expect: http.StatusNoContent,
	}, nil)
}

// resolveDomain 返回可注册的域名，查询失败或结果异常时返回兜底域名
func (c *Client) resolveDomain(ctx context.Context) string {
	if c.domains != nil {
		if d, ok := c.domains.GetString(domainCacheKey); ok {
			return d
		}
	}

	v, err, _ := c.lookups.Do(domainCacheKey, func() (any, error) {
		return c.fetchDomain(ctx)
	})
	if err != nil {
		c.log.Warn("domain lookup failed, using fallback domain",
			zap.String("fallback", c.defaultDomain),
			zap.Error(err),
		)
		return c.defaultDomain
	}

	d := v.(string)
	if c.domains != nil {
		c.domains.Set(domainCacheKey, d, c.domainTTL)
	}
	return d
}

// fetchDomain 请求 /domains 并返回第一个可用域名
func (c *Client) fetchDomain(ctx context.Context) (string, error) {
	var items collection[domainItem]
	err := c.http.Do(ctx, provider.Request{
		Op:     "list_domains",
		Method: http.MethodGet,
		Path:   "/domains",
		Accept: jsonLD,
	}, &items)
	if err != nil {
		return "", err
	}

	for _, d := range items {
		if d.usable() {
			return strings.ToLower(d.Domain), nil
		}
	}
	return "", provider.NewError("list_domains", provider.ErrParse, http.StatusOK, fmt.Errorf("no usable domain in response"))
}
