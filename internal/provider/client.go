package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// maxErrorBody 限制错误响应体的读取长度
const maxErrorBody = 4 << 10

// Client 是提供方共用的 JSON over HTTP 客户端。
//
// 所有请求先经过令牌桶限速；GET/DELETE 在传输错误或可重试状态码时按 RetryConfig 重试。
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      RetryConfig
	userAgent  string
}

// ClientOption 配置 Client
type ClientOption func(*Client)

// WithTimeout 设置单次请求超时
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithRateLimit 设置出站请求速率，rps <= 0 表示不限速
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithRetry 替换重试策略，负的重试次数按 0 处理
func WithRetry(cfg RetryConfig) ClientOption {
	return func(c *Client) {
		if cfg.MaxRetries < 0 {
			cfg.MaxRetries = 0
		}
		c.retry = cfg
	}
}

// WithMaxRetries 只修改最大重试次数
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		if n >= 0 {
			c.retry.MaxRetries = n
		}
	}
}

// WithHTTPClient 替换底层 http.Client（测试用）
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient 创建访问 baseURL 的客户端
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(8), 4),
		retry:      DefaultRetryConfig(),
		userAgent:  "ghostinbox-bot/1.0",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL 返回 API 根地址
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Request 描述一次 API 调用
type Request struct {
	Op     string     // 操作名，写入错误信息
	Method string     // HTTP 方法
	Path   string     // 相对 baseURL 的路径
	Query  url.Values // 查询参数
	Body   any        // JSON 请求体，nil 表示无
	Token  string     // Bearer 令牌，空表示匿名
	Accept string     // Accept 头，默认 application/json
	Expect int        // 要求的成功状态码，0 表示任意 2xx
}

// Do 执行请求并把 2xx 响应体解码到 out（out 为 nil 时丢弃响应体）。
//
// 返回的错误一律为 *Error。
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	var payload []byte
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return NewError(req.Op, ErrParse, 0, fmt.Errorf("marshal request body: %w", err))
		}
		payload = data
	}

	maxAttempts := 1
	if idempotent(req.Method) && c.retry.MaxRetries > 0 {
		maxAttempts += c.retry.MaxRetries
	}

	var lastErr *Error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := c.retry.Wait(ctx, attempt-1); err != nil {
				return NewError(req.Op, ErrTransport, 0, err)
			}
		}

		resp, err := c.send(ctx, req, payload)
		if err != nil {
			lastErr = NewError(req.Op, ErrTransport, 0, err)
			if ctx.Err() != nil {
				return lastErr
			}
			continue
		}

		lastErr = c.handleResponse(req, resp, out)
		if lastErr == nil {
			return nil
		}
		if !retryableStatus(lastErr.StatusCode) {
			return lastErr
		}
	}

	return lastErr
}

// send 发送单次请求
func (c *Client) send(ctx context.Context, req Request, payload []byte) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	accept := req.Accept
	if accept == "" {
		accept = "application/json"
	}
	httpReq.Header.Set("Accept", accept)
	httpReq.Header.Set("User-Agent", c.userAgent)
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}

	return c.httpClient.Do(httpReq)
}

// handleResponse 检查状态码并解码响应体
func (c *Client) handleResponse(req Request, resp *http.Response, out any) *Error {
	defer resp.Body.Close()
	op := req.Op

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var cause error
		if len(snippet) > 0 {
			cause = errors.New(string(bytes.TrimSpace(snippet)))
		}
		return NewError(op, classifyStatus(resp.StatusCode), resp.StatusCode, cause)
	}

	if req.Expect != 0 && resp.StatusCode != req.Expect {
		_, _ = io.Copy(io.Discard, resp.Body)
		return NewError(op, ErrParse, resp.StatusCode,
			fmt.Errorf("unexpected status %d, want %d", resp.StatusCode, req.Expect))
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return NewError(op, ErrParse, resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// idempotent 判断方法是否可安全重试
func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodDelete:
		return true
	default:
		return false
	}
}
