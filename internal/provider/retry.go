package provider

import (
	"context"
	"math"
	"math/rand"
	"net/http"
	"time"
)

// RetryConfig 定义幂等请求失败后的重试策略
type RetryConfig struct {
	MaxRetries int           // 最大重试次数，0 表示不重试
	BaseDelay  time.Duration // 首次重试前的等待时间
	MaxDelay   time.Duration // 单次等待上限
	Multiplier float64       // 每次重试等待时间的增长倍数
	Jitter     float64       // 随机抖动比例 (0.0 ~ 1.0)
}

// DefaultRetryConfig 返回默认重试策略
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 2,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.2,
	}
}

// retryableStatus 判断状态码是否值得重试
func retryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// Delay 计算第 attempt 次重试前的等待时间（含抖动）
func (r RetryConfig) Delay(attempt int) time.Duration {
	delay := float64(r.BaseDelay) * math.Pow(r.Multiplier, float64(attempt))
	if r.MaxDelay > 0 && delay > float64(r.MaxDelay) {
		delay = float64(r.MaxDelay)
	}

	if r.Jitter > 0 {
		jitterAmount := delay * r.Jitter
		delay = delay - jitterAmount + (rand.Float64() * 2 * jitterAmount)
	}

	return time.Duration(delay)
}

// Wait 等待重试间隔，ctx 取消时提前返回
func (r RetryConfig) Wait(ctx context.Context, attempt int) error {
	timer := time.NewTimer(r.Delay(attempt))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
