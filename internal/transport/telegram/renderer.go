package telegram

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"tempmail/ghostinbox/internal/domain"
)

// notModified 编辑内容与原消息相同时 Telegram 返回的错误片段
const notModified = "message is not modified"

// Renderer 通过 Bot API 发送或编辑消息
type Renderer struct {
	bot    BotAPI
	logger *zap.Logger
}

// NewRenderer 创建渲染器
func NewRenderer(bot BotAPI, logger *zap.Logger) *Renderer {
	return &Renderer{bot: bot, logger: logger.Named("renderer")}
}

// Render 发送新消息或编辑已有消息，返回消息 ID
func (r *Renderer) Render(ctx context.Context, ri domain.RenderInstruction) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	markup := keyboard(ri.Actions)

	if ri.IsEdit() {
		cfg := tgbotapi.NewEditMessageText(ri.ChatID, ri.EditMessageID, ri.Text)
		cfg.ParseMode = tgbotapi.ModeHTML
		cfg.DisableWebPagePreview = true
		cfg.ReplyMarkup = markup

		if _, err := r.bot.Send(cfg); err != nil && !strings.Contains(err.Error(), notModified) {
			return 0, err
		}
		return ri.EditMessageID, nil
	}

	msg := tgbotapi.NewMessage(ri.ChatID, ri.Text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if markup != nil {
		msg.ReplyMarkup = *markup
	}

	sent, err := r.bot.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// keyboard 把按钮行转换为内联键盘，没有按钮时返回 nil
func keyboard(rows [][]domain.Action) *tgbotapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}

	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, a := range row {
			if a.SwitchInlineQuery != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonSwitch(a.Label, a.SwitchInlineQuery))
				continue
			}
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(a.Label, a.Callback))
		}
		if len(buttons) > 0 {
			out = append(out, tgbotapi.NewInlineKeyboardRow(buttons...))
		}
	}
	if len(out) == 0 {
		return nil
	}

	markup := tgbotapi.NewInlineKeyboardMarkup(out...)
	return &markup
}
