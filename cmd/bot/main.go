package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tempmail/ghostinbox/internal/cache"
	"tempmail/ghostinbox/internal/config"
	"tempmail/ghostinbox/internal/health"
	"tempmail/ghostinbox/internal/logger"
	"tempmail/ghostinbox/internal/monitoring"
	"tempmail/ghostinbox/internal/pool"
	"tempmail/ghostinbox/internal/provider"
	"tempmail/ghostinbox/internal/provider/mailtm"
	"tempmail/ghostinbox/internal/provider/secmail"
	"tempmail/ghostinbox/internal/service"
	"tempmail/ghostinbox/internal/transport/telegram"
	httptransport "tempmail/ghostinbox/internal/transport/http"
	"tempmail/ghostinbox/internal/watcher"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式
	if cfg.Log.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化日志
	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     cfg.Log.File,
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to create logger: %v", err))
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting ghostinbox",
		zap.String("provider", cfg.Provider.Kind),
		zap.String("policy", cfg.Watcher.Policy),
		zap.String("mode", cfg.Telegram.Mode),
	)

	metrics := monitoring.NewMetrics()

	domainCache := cache.NewLocalCache(64, cfg.Provider.DomainCacheTTL)
	defer domainCache.Close()

	mailProvider := newProvider(cfg.Provider, domainCache, log)

	policy, err := watcher.ParsePolicy(cfg.Watcher.Policy)
	if err != nil {
		panic(fmt.Sprintf("invalid watcher policy: %v", err))
	}

	// 后台任务池
	workers := pool.NewWorkerPool(cfg.Bot.Workers, cfg.Bot.QueueSize,
		pool.WithLogger(log),
		pool.WithPanicHandler(func(any) { metrics.RecordPanic() }),
	)

	// Telegram 客户端
	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		panic(fmt.Sprintf("failed to connect telegram: %v", err))
	}
	bot.Debug = cfg.Telegram.Debug
	if err := tgbotapi.SetLogger(zap.NewStdLog(log.Named("tgbotapi"))); err != nil {
		log.Warn("failed to set telegram logger", zap.Error(err))
	}
	log.Info("authorized on telegram", zap.String("username", bot.Self.UserName))

	dispatcher := service.NewDispatcher(service.DispatcherOptions{
		Mailboxes:      service.NewMailboxService(mailProvider, metrics, log),
		Messages:       service.NewMessageService(mailProvider, metrics, log),
		Renderer:       telegram.NewRenderer(bot, log),
		Executor:       workers,
		Scheduler:      watcher.NewTickerScheduler(),
		Policy:         policy,
		Lifetime:       cfg.Watcher.Lifetime,
		Interval:       cfg.Watcher.Interval(),
		CountdownTicks: cfg.Watcher.CountdownTicks(),
		PreviewLimit:   cfg.Bot.InboxPreviewLimit,
		QueueSize:      cfg.Bot.QueueSize,
		Metrics:        metrics,
		Logger:         log,
	})
	listener := telegram.NewListener(bot, dispatcher, cfg.Telegram.UpdateTimeout, log)

	webhookMode := cfg.Telegram.Mode == config.ModeWebhook
	if webhookMode {
		if err := telegram.RegisterWebhook(bot, cfg.Telegram.WebhookURL); err != nil {
			panic(fmt.Sprintf("failed to register webhook: %v", err))
		}
		log.Info("webhook registered", zap.String("url", cfg.Telegram.WebhookURL))
	} else if err := telegram.RemoveWebhook(bot); err != nil {
		// 存在 webhook 时 getUpdates 会被拒绝
		panic(fmt.Sprintf("failed to remove webhook: %v", err))
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var httpServer *http.Server
	if cfg.Server.Enabled || webhookMode {
		checker, err := health.NewHealthChecker(ctx, health.Options{
			ProviderURL: mailProvider.BaseURL(),
			Dispatcher:  dispatcher,
			Registry:    metrics.Registry(),
			Logger:      log,
		})
		if err != nil {
			panic(fmt.Sprintf("failed to create health checker: %v", err))
		}

		deps := httptransport.RouterDependencies{
			Health:      checker,
			Metrics:     metrics,
			WebhookPath: cfg.Telegram.WebhookPath,
			Logger:      log,
		}
		if webhookMode {
			deps.Webhook = listener
		}

		httpServer = &http.Server{
			Addr:              cfg.Server.Host + ":" + strconv.Itoa(cfg.Server.Port),
			Handler:           httptransport.NewRouter(deps),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		}
	}

	workers.Start(ctx)
	group, groupCtx := errgroup.WithContext(ctx)

	// 调度器事件循环 goroutine
	group.Go(func() error {
		return dispatcher.Run(groupCtx)
	})

	// 长轮询 goroutine
	if !webhookMode {
		group.Go(func() error {
			return listener.Run(groupCtx)
		})
	}

	// HTTP 服务器 goroutine
	if httpServer != nil {
		group.Go(func() error {
			log.Info("starting HTTP server", zap.String("address", httpServer.Addr))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("HTTP server error", zap.Error(err))
				return err
			}
			return nil
		})

		group.Go(func() error {
			<-groupCtx.Done()
			log.Info("shutting down HTTP server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		})
	}

	if err := group.Wait(); err != nil {
		log.Error("server stopped with error", zap.Error(err))
	}

	workers.Stop()
	log.Info("ghostinbox stopped")
}

// newProvider 按配置创建邮箱服务提供方
func newProvider(cfg config.ProviderConfig, domainCache *cache.LocalCache, log *zap.Logger) providerWithURL {
	httpOpts := []provider.ClientOption{
		provider.WithTimeout(cfg.Timeout),
		provider.WithRateLimit(cfg.RequestsPerSecond, cfg.Burst),
		provider.WithMaxRetries(cfg.MaxRetries),
	}

	switch cfg.Kind {
	case config.ProviderSecMail:
		return secmail.New(secmail.Options{
			BaseURL:       cfg.BaseURL,
			DefaultDomain: cfg.DefaultDomain,
			Logger:        log,
			HTTPOptions:   httpOpts,
		})
	default:
		return mailtm.New(mailtm.Options{
			BaseURL:        cfg.BaseURL,
			Password:       cfg.Password,
			DefaultDomain:  cfg.DefaultDomain,
			DomainCacheTTL: cfg.DomainCacheTTL,
			Cache:          domainCache,
			Logger:         log,
			HTTPOptions:    httpOpts,
		})
	}
}

// providerWithURL 暴露 API 地址，供就绪检查解析主机名
type providerWithURL interface {
	provider.Provider
	BaseURL() string
}
