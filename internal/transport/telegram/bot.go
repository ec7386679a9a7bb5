// Package telegram 把渲染指令转换为 Telegram Bot API 调用，并把更新转换为用户意图。
package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// allowedUpdates 只订阅需要处理的更新类型
var allowedUpdates = []string{"message", "callback_query", "my_chat_member"}

// BotAPI 是 *tgbotapi.BotAPI 中用到的方法
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

var _ BotAPI = (*tgbotapi.BotAPI)(nil)

// RegisterWebhook 设置 webhook 地址
func RegisterWebhook(bot BotAPI, link string) error {
	wh, err := tgbotapi.NewWebhook(link)
	if err != nil {
		return err
	}
	wh.AllowedUpdates = allowedUpdates
	_, err = bot.Request(wh)
	return err
}

// RemoveWebhook 删除 webhook，长轮询模式启动前调用
func RemoveWebhook(bot BotAPI) error {
	_, err := bot.Request(tgbotapi.DeleteWebhookConfig{})
	return err
}
