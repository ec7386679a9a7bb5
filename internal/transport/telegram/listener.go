package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"tempmail/ghostinbox/internal/domain"
)

// Dispatcher 接收用户意图
type Dispatcher interface {
	Dispatch(ctx context.Context, in domain.Intent) error
}

// Listener 把 Telegram 更新转换为意图
type Listener struct {
	bot        BotAPI
	dispatcher Dispatcher
	timeout    int
	logger     *zap.Logger
}

// NewListener 创建监听器，timeout 为长轮询超时秒数
func NewListener(bot BotAPI, dispatcher Dispatcher, timeout int, logger *zap.Logger) *Listener {
	return &Listener{
		bot:        bot,
		dispatcher: dispatcher,
		timeout:    timeout,
		logger:     logger.Named("listener"),
	}
}

// Run 长轮询接收更新直到 ctx 结束
func (l *Listener) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = l.timeout
	cfg.AllowedUpdates = allowedUpdates

	updates := l.bot.GetUpdatesChan(cfg)
	defer l.bot.StopReceivingUpdates()

	l.logger.Info("long polling started", zap.Int("timeout", l.timeout))
	for {
		select {
		case <-ctx.Done():
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			l.HandleUpdate(ctx, upd)
		}
	}
}

// HandleWebhook 解析 webhook 请求体并处理其中的更新
func (l *Listener) HandleWebhook(ctx context.Context, r *http.Request) error {
	var upd tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		return fmt.Errorf("decode update: %w", err)
	}
	l.HandleUpdate(ctx, upd)
	return nil
}

// HandleUpdate 处理单个更新，回调查询总会被应答
func (l *Listener) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if cq := upd.CallbackQuery; cq != nil {
		if _, err := l.bot.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
			l.logger.Debug("answer callback failed", zap.Error(err))
		}
	}

	in, ok := IntentFromUpdate(upd)
	if !ok {
		return
	}

	if err := l.dispatcher.Dispatch(ctx, in); err != nil {
		l.logger.Warn("dispatch failed",
			zap.Int64("chat_id", in.ChatID),
			zap.String("intent", string(in.Kind)),
			zap.Error(err),
		)
	}
}

// IntentFromUpdate 识别命令、按钮回调和会话结束
func IntentFromUpdate(upd tgbotapi.Update) (domain.Intent, bool) {
	switch {
	case upd.Message != nil && upd.Message.IsCommand():
		in, ok := domain.ParseCommand(upd.Message.Command())
		if !ok || upd.Message.Chat == nil {
			return domain.Intent{}, false
		}
		in.ChatID = upd.Message.Chat.ID
		return in, true

	case upd.CallbackQuery != nil:
		cq := upd.CallbackQuery
		if cq.Message == nil || cq.Message.Chat == nil {
			return domain.Intent{}, false
		}
		in, ok := domain.ParseCallbackData(cq.Data)
		if !ok {
			return domain.Intent{}, false
		}
		in.ChatID = cq.Message.Chat.ID
		in.MessageID = cq.Message.MessageID
		return in, true

	case upd.MyChatMember != nil:
		switch upd.MyChatMember.NewChatMember.Status {
		case "kicked", "left":
			return domain.Intent{Kind: domain.IntentEnd, ChatID: upd.MyChatMember.Chat.ID}, true
		}
	}

	return domain.Intent{}, false
}
