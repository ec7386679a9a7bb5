package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 支持的 Telegram 更新接收模式
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// 支持的邮箱服务提供方
const (
	ProviderMailTM  = "mailtm"
	ProviderSecMail = "secmail"
)

// 支持的会话监视策略
const (
	PolicyCountdown = "countdown"
	PolicyNotify    = "notify"
)

// TelegramConfig 定义机器人接入 Telegram 的参数
type TelegramConfig struct {
	Token         string // Bot API 令牌，必填
	Mode          string // 更新接收模式: "polling" 或 "webhook"
	WebhookURL    string // webhook 模式下对外暴露的完整 URL
	WebhookPath   string // webhook 在运维 HTTP 服务上的挂载路径
	UpdateTimeout int    // 长轮询超时（秒）
	Debug         bool   // 是否打开 tgbotapi 调试输出
}

// ProviderConfig 定义临时邮箱服务提供方的访问参数
type ProviderConfig struct {
	Kind              string        // 提供方类型: "mailtm" 或 "secmail"
	BaseURL           string        // API 根地址
	DefaultDomain     string        // 域名查询失败时使用的兜底域名
	Password          string        // 创建账户时使用的固定占位密码
	Timeout           time.Duration // 单次 HTTP 请求超时
	RequestsPerSecond float64       // 出站请求速率上限
	Burst             int           // 令牌桶容量
	MaxRetries        int           // 幂等请求的最大重试次数
	DomainCacheTTL    time.Duration // 域名查询结果的缓存时间
}

// WatcherConfig 定义会话监视器的调度参数
type WatcherConfig struct {
	Policy       string        // "countdown"（到期销毁）或 "notify"（新邮件提醒）
	Lifetime     time.Duration // countdown 策略下邮箱的生存时间
	TickInterval time.Duration // countdown 策略下的倒计时步长
	PollInterval time.Duration // notify 策略下的轮询间隔
}

// BotConfig 定义调度器和展示层的运行参数
type BotConfig struct {
	Workers           int // 执行外部调用的协程数
	QueueSize         int // 事件队列与任务队列长度
	InboxPreviewLimit int // 收件箱列表最多展示的邮件数
}

// ServerConfig 定义运维 HTTP 服务（健康检查、指标、webhook）的监听参数
type ServerConfig struct {
	Enabled bool
	Host    string // 监听地址，默认 "0.0.0.0"
	Port    int    // 监听端口，默认 8080
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	File        string // 日志文件路径，留空只输出到控制台
}

// Config 是机器人配置的根结构体
type Config struct {
	Telegram TelegramConfig
	Provider ProviderConfig
	Watcher  WatcherConfig
	Bot      BotConfig
	Server   ServerConfig
	Log      LogConfig
}

// CountdownTicks 返回 countdown 策略下邮箱可以存活的步数
func (c WatcherConfig) CountdownTicks() int {
	if c.TickInterval <= 0 {
		return 0
	}
	return int(c.Lifetime / c.TickInterval)
}

// Interval 返回当前策略下监视器的触发间隔
func (c WatcherConfig) Interval() time.Duration {
	if c.Policy == PolicyNotify {
		return c.PollInterval
	}
	return c.TickInterval
}

// Load 从环境变量和 .env 文件加载机器人配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: GHOSTINBOX_
// 例如: GHOSTINBOX_WATCHER_POLICY, GHOSTINBOX_PROVIDER_KIND
//
// Bot 令牌同时兼容 BOT_TOKEN 环境变量。
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetEnvPrefix("ghostinbox")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("telegram.token", "GHOSTINBOX_TELEGRAM_TOKEN", "BOT_TOKEN")

	v.SetDefault("telegram.mode", ModePolling)
	v.SetDefault("telegram.webhook_url", "")
	v.SetDefault("telegram.webhook_path", "/telegram/webhook")
	v.SetDefault("telegram.update_timeout", 60)
	v.SetDefault("telegram.debug", false)
	v.SetDefault("provider.kind", ProviderMailTM)
	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.default_domain", "ez-mail.ws")
	v.SetDefault("provider.password", "DefaultPassword123")
	v.SetDefault("provider.timeout", "15s")
	v.SetDefault("provider.requests_per_second", 8)
	v.SetDefault("provider.burst", 4)
	v.SetDefault("provider.max_retries", 2)
	v.SetDefault("provider.domain_cache_ttl", "10m")
	v.SetDefault("watcher.policy", PolicyCountdown)
	v.SetDefault("watcher.lifetime", "10m")
	v.SetDefault("watcher.tick_interval", "1m")
	v.SetDefault("watcher.poll_interval", "15s")
	v.SetDefault("bot.workers", 8)
	v.SetDefault("bot.queue_size", 256)
	v.SetDefault("bot.inbox_preview_limit", 3)
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.file", "")

	token := strings.TrimSpace(v.GetString("telegram.token"))
	if token == "" {
		return nil, fmt.Errorf("telegram token is required: set BOT_TOKEN or GHOSTINBOX_TELEGRAM_TOKEN")
	}

	mode := strings.ToLower(v.GetString("telegram.mode"))
	if mode != ModePolling && mode != ModeWebhook {
		return nil, fmt.Errorf("invalid telegram.mode %q", mode)
	}
	webhookURL := v.GetString("telegram.webhook_url")
	if mode == ModeWebhook && webhookURL == "" {
		return nil, fmt.Errorf("telegram.webhook_url is required in webhook mode")
	}

	kind := strings.ToLower(v.GetString("provider.kind"))
	baseURL := strings.TrimRight(v.GetString("provider.base_url"), "/")
	switch kind {
	case ProviderMailTM:
		if baseURL == "" {
			baseURL = "https://api.mail.tm"
		}
	case ProviderSecMail:
		if baseURL == "" {
			baseURL = "https://www.1secmail.com"
		}
	default:
		return nil, fmt.Errorf("invalid provider.kind %q", kind)
	}

	timeout, err := time.ParseDuration(v.GetString("provider.timeout"))
	if err != nil {
		return nil, fmt.Errorf("invalid provider.timeout: %w", err)
	}

	domainCacheTTL, err := time.ParseDuration(v.GetString("provider.domain_cache_ttl"))
	if err != nil {
		domainCacheTTL = 10 * time.Minute
	}

	policy := strings.ToLower(v.GetString("watcher.policy"))
	if policy != PolicyCountdown && policy != PolicyNotify {
		return nil, fmt.Errorf("invalid watcher.policy %q", policy)
	}

	lifetime, err := time.ParseDuration(v.GetString("watcher.lifetime"))
	if err != nil {
		return nil, fmt.Errorf("invalid watcher.lifetime: %w", err)
	}
	tickInterval, err := time.ParseDuration(v.GetString("watcher.tick_interval"))
	if err != nil || tickInterval <= 0 {
		return nil, fmt.Errorf("invalid watcher.tick_interval %q", v.GetString("watcher.tick_interval"))
	}
	pollInterval, err := time.ParseDuration(v.GetString("watcher.poll_interval"))
	if err != nil || pollInterval <= 0 {
		return nil, fmt.Errorf("invalid watcher.poll_interval %q", v.GetString("watcher.poll_interval"))
	}
	if policy == PolicyCountdown && lifetime < tickInterval {
		return nil, fmt.Errorf("watcher.lifetime (%s) must not be shorter than watcher.tick_interval (%s)", lifetime, tickInterval)
	}

	workers := v.GetInt("bot.workers")
	if workers <= 0 {
		workers = 8
	}
	queueSize := v.GetInt("bot.queue_size")
	if queueSize <= 0 {
		queueSize = 256
	}
	previewLimit := v.GetInt("bot.inbox_preview_limit")
	if previewLimit <= 0 {
		previewLimit = 3
	}

	cfg := &Config{
		Telegram: TelegramConfig{
			Token:         token,
			Mode:          mode,
			WebhookURL:    webhookURL,
			WebhookPath:   v.GetString("telegram.webhook_path"),
			UpdateTimeout: v.GetInt("telegram.update_timeout"),
			Debug:         v.GetBool("telegram.debug"),
		},
		Provider: ProviderConfig{
			Kind:              kind,
			BaseURL:           baseURL,
			DefaultDomain:     strings.ToLower(v.GetString("provider.default_domain")),
			Password:          v.GetString("provider.password"),
			Timeout:           timeout,
			RequestsPerSecond: v.GetFloat64("provider.requests_per_second"),
			Burst:             v.GetInt("provider.burst"),
			MaxRetries:        v.GetInt("provider.max_retries"),
			DomainCacheTTL:    domainCacheTTL,
		},
		Watcher: WatcherConfig{
			Policy:       policy,
			Lifetime:     lifetime,
			TickInterval: tickInterval,
			PollInterval: pollInterval,
		},
		Bot: BotConfig{
			Workers:           workers,
			QueueSize:         queueSize,
			InboxPreviewLimit: previewLimit,
		},
		Server: ServerConfig{
			Enabled: v.GetBool("server.enabled"),
			Host:    v.GetString("server.host"),
			Port:    v.GetInt("server.port"),
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
			File:        v.GetString("log.file"),
		},
	}

	return cfg, nil
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：
//  1. 当前目录的 .env
//  2. 父目录的 .env
//
// 文件不存在时静默跳过，已存在的环境变量不会被覆盖。
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
