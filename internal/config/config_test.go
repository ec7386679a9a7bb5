package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"BOT_TOKEN",
	"GHOSTINBOX_TELEGRAM_TOKEN",
	"GHOSTINBOX_TELEGRAM_MODE",
	"GHOSTINBOX_TELEGRAM_WEBHOOK_URL",
	"GHOSTINBOX_PROVIDER_KIND",
	"GHOSTINBOX_PROVIDER_BASE_URL",
	"GHOSTINBOX_PROVIDER_TIMEOUT",
	"GHOSTINBOX_WATCHER_POLICY",
	"GHOSTINBOX_WATCHER_LIFETIME",
	"GHOSTINBOX_WATCHER_TICK_INTERVAL",
	"GHOSTINBOX_WATCHER_POLL_INTERVAL",
	"GHOSTINBOX_BOT_WORKERS",
	"GHOSTINBOX_BOT_INBOX_PREVIEW_LIMIT",
	"GHOSTINBOX_SERVER_PORT",
	"GHOSTINBOX_LOG_LEVEL",
	"GHOSTINBOX_LOG_DEVELOPMENT",
}

// resetEnv 清空测试相关的环境变量，并在测试结束后恢复
func resetEnv(t *testing.T) {
	t.Helper()

	originalEnvs := make(map[string]string)
	for _, key := range envKeys {
		originalEnvs[key] = os.Getenv(key)
		os.Unsetenv(key)
	}

	t.Cleanup(func() {
		for key, value := range originalEnvs {
			if value == "" {
				os.Unsetenv(key)
			} else {
				os.Setenv(key, value)
			}
		}
	})
}

func TestLoad(t *testing.T) {
	t.Run("加载默认配置成功", func(t *testing.T) {
		resetEnv(t)
		os.Setenv("BOT_TOKEN", "123:abc")

		cfg, err := Load()

		require.NoError(t, err)
		assert.Equal(t, "123:abc", cfg.Telegram.Token)
		assert.Equal(t, ModePolling, cfg.Telegram.Mode)
		assert.Equal(t, "/telegram/webhook", cfg.Telegram.WebhookPath)
		assert.Equal(t, 60, cfg.Telegram.UpdateTimeout)
		assert.Equal(t, ProviderMailTM, cfg.Provider.Kind)
		assert.Equal(t, "https://api.mail.tm", cfg.Provider.BaseURL)
		assert.Equal(t, "ez-mail.ws", cfg.Provider.DefaultDomain)
		assert.Equal(t, "DefaultPassword123", cfg.Provider.Password)
		assert.Equal(t, 15*time.Second, cfg.Provider.Timeout)
		assert.Equal(t, 8.0, cfg.Provider.RequestsPerSecond)
		assert.Equal(t, 10*time.Minute, cfg.Provider.DomainCacheTTL)
		assert.Equal(t, PolicyCountdown, cfg.Watcher.Policy)
		assert.Equal(t, 10, cfg.Watcher.CountdownTicks())
		assert.Equal(t, time.Minute, cfg.Watcher.Interval())
		assert.Equal(t, 8, cfg.Bot.Workers)
		assert.Equal(t, 3, cfg.Bot.InboxPreviewLimit)
		assert.True(t, cfg.Server.Enabled)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.False(t, cfg.Log.Development)
	})

	t.Run("加载自定义配置成功", func(t *testing.T) {
		resetEnv(t)
		os.Setenv("GHOSTINBOX_TELEGRAM_TOKEN", "999:xyz")
		os.Setenv("GHOSTINBOX_PROVIDER_KIND", "secmail")
		os.Setenv("GHOSTINBOX_WATCHER_POLICY", "notify")
		os.Setenv("GHOSTINBOX_WATCHER_POLL_INTERVAL", "30s")
		os.Setenv("GHOSTINBOX_BOT_WORKERS", "2")
		os.Setenv("GHOSTINBOX_BOT_INBOX_PREVIEW_LIMIT", "5")
		os.Setenv("GHOSTINBOX_SERVER_PORT", "9090")
		os.Setenv("GHOSTINBOX_LOG_LEVEL", "debug")
		os.Setenv("GHOSTINBOX_LOG_DEVELOPMENT", "true")

		cfg, err := Load()

		require.NoError(t, err)
		assert.Equal(t, "999:xyz", cfg.Telegram.Token)
		assert.Equal(t, ProviderSecMail, cfg.Provider.Kind)
		assert.Equal(t, "https://www.1secmail.com", cfg.Provider.BaseURL)
		assert.Equal(t, PolicyNotify, cfg.Watcher.Policy)
		assert.Equal(t, 30*time.Second, cfg.Watcher.Interval())
		assert.Equal(t, 2, cfg.Bot.Workers)
		assert.Equal(t, 5, cfg.Bot.InboxPreviewLimit)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.True(t, cfg.Log.Development)
	})

	t.Run("缺少令牌时返回错误", func(t *testing.T) {
		resetEnv(t)

		cfg, err := Load()

		assert.Error(t, err)
		assert.Nil(t, cfg)
	})

	t.Run("未知策略返回错误", func(t *testing.T) {
		resetEnv(t)
		os.Setenv("BOT_TOKEN", "123:abc")
		os.Setenv("GHOSTINBOX_WATCHER_POLICY", "both")

		_, err := Load()

		assert.ErrorContains(t, err, "watcher.policy")
	})

	t.Run("未知提供方返回错误", func(t *testing.T) {
		resetEnv(t)
		os.Setenv("BOT_TOKEN", "123:abc")
		os.Setenv("GHOSTINBOX_PROVIDER_KIND", "guerrilla")

		_, err := Load()

		assert.ErrorContains(t, err, "provider.kind")
	})

	t.Run("生存时间短于步长返回错误", func(t *testing.T) {
		resetEnv(t)
		os.Setenv("BOT_TOKEN", "123:abc")
		os.Setenv("GHOSTINBOX_WATCHER_LIFETIME", "30s")
		os.Setenv("GHOSTINBOX_WATCHER_TICK_INTERVAL", "1m")

		_, err := Load()

		assert.ErrorContains(t, err, "watcher.lifetime")
	})

	t.Run("webhook 模式缺少 URL 返回错误", func(t *testing.T) {
		resetEnv(t)
		os.Setenv("BOT_TOKEN", "123:abc")
		os.Setenv("GHOSTINBOX_TELEGRAM_MODE", "webhook")

		_, err := Load()

		assert.ErrorContains(t, err, "webhook_url")
	})
}

func TestWatcherConfig(t *testing.T) {
	t.Run("倒计时步数向下取整", func(t *testing.T) {
		cfg := WatcherConfig{Policy: PolicyCountdown, Lifetime: 150 * time.Second, TickInterval: time.Minute}
		assert.Equal(t, 2, cfg.CountdownTicks())
	})

	t.Run("步长为零时步数为零", func(t *testing.T) {
		cfg := WatcherConfig{Lifetime: time.Minute}
		assert.Equal(t, 0, cfg.CountdownTicks())
	})
}
