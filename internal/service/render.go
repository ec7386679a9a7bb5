package service

import (
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"tempmail/ghostinbox/internal/domain"
	"tempmail/ghostinbox/internal/provider"
	"tempmail/ghostinbox/internal/watcher"
)

const (
	shareQuery   = "Check out this cool Temp Mail bot for students! 👻"
	maxBodyRunes = 3500 // 转义后的正文上限，Telegram 单条消息不超过 4096 字符
	noSubject    = "(no subject)"
)

var (
	generateIntent = domain.Intent{Kind: domain.IntentGenerate}
	checkIntent    = domain.Intent{Kind: domain.IntentCheckInbox}
)

func generateRow(label string) []domain.Action {
	return []domain.Action{domain.IntentAction(label, generateIntent)}
}

func inboxRow() []domain.Action {
	return []domain.Action{domain.IntentAction("📬 Check Messages", checkIntent)}
}

func welcomeText(policy watcher.Policy, lifetime time.Duration) string {
	var b strings.Builder
	b.WriteString("👋 <b>Welcome to GhostInbox</b>\n\n")
	b.WriteString("Protect your privacy with instant temporary emails. ")
	if policy == watcher.PolicyNotify {
		b.WriteString("I'll notify you automatically when you receive a message!")
	} else {
		fmt.Fprintf(&b, "Each inbox self-destructs after %s.", humanDuration(lifetime))
	}
	return b.String()
}

func renderWelcome(chatID int64, policy watcher.Policy, lifetime time.Duration) domain.RenderInstruction {
	return domain.RenderInstruction{
		ChatID: chatID,
		Text:   welcomeText(policy, lifetime),
		Actions: [][]domain.Action{
			generateRow("📧 Generate Email"),
			{domain.ShareAction("🚀 Share with Friends", shareQuery)},
		},
	}
}

func renderGenerating(chatID int64) domain.RenderInstruction {
	return domain.RenderInstruction{ChatID: chatID, Text: "⏳ Generating secure inbox..."}
}

// renderMailboxCard 邮箱卡片，countdown 策略下作为状态消息被反复编辑
func renderMailboxCard(chatID int64, address, status string, editID int) domain.RenderInstruction {
	return domain.RenderInstruction{
		ChatID: chatID,
		Text: fmt.Sprintf("✅ <b>Your Temp Email:</b>\n<code>%s</code>\n\n%s",
			html.EscapeString(address), status),
		Actions: [][]domain.Action{
			inboxRow(),
			generateRow("🔄 New Email"),
		},
		EditMessageID: editID,
	}
}

func notifyStatus() string {
	return "I will notify you here when you get mail!"
}

func countdownStatus(remaining time.Duration) string {
	return fmt.Sprintf("⏳ This inbox expires in %s.", humanDuration(remaining))
}

func renderBusy(chatID int64) domain.RenderInstruction {
	return domain.RenderInstruction{
		ChatID:  chatID,
		Text:    "❌ Server busy. Please try again.",
		Actions: [][]domain.Action{generateRow("🔁 Try Again")},
	}
}

func renderNoInbox(chatID int64) domain.RenderInstruction {
	return domain.RenderInstruction{
		ChatID:  chatID,
		Text:    "❌ No active inbox. Use /new first.",
		Actions: [][]domain.Action{generateRow("📧 Generate Email")},
	}
}

func renderExpired(chatID int64, address string) domain.RenderInstruction {
	text := "⌛ Your inbox has expired."
	if address != "" {
		text = fmt.Sprintf("⌛ Your inbox <code>%s</code> has expired.", html.EscapeString(address))
	}
	return domain.RenderInstruction{
		ChatID:  chatID,
		Text:    text + "\n\nGenerate a new one to keep receiving mail.",
		Actions: [][]domain.Action{generateRow("📧 Generate Email")},
	}
}

func renderInbox(chatID int64, msgs []domain.MessageSummary, limit int, caps provider.Capabilities) domain.RenderInstruction {
	refresh := []domain.Action{domain.IntentAction("🔄 Refresh", checkIntent)}
	if len(msgs) == 0 {
		return domain.RenderInstruction{
			ChatID:  chatID,
			Text:    "📭 Inbox is empty. (Wait 10-30 seconds after sender hits send)",
			Actions: [][]domain.Action{refresh},
		}
	}

	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}

	var b strings.Builder
	b.WriteString("📬 <b>Incoming Mail:</b>\n\n")
	actions := make([][]domain.Action, 0, len(msgs)+1)
	for i, m := range msgs {
		fmt.Fprintf(&b, "%d. From: %s\nSub: %s\n---\n", i+1,
			html.EscapeString(m.From), html.EscapeString(subjectOf(m)))

		row := messageRow(i+1, m.ID, caps)
		if len(row) > 0 {
			actions = append(actions, row)
		}
	}
	actions = append(actions, refresh)

	return domain.RenderInstruction{ChatID: chatID, Text: b.String(), Actions: actions}
}

func messageRow(n int, id string, caps provider.Capabilities) []domain.Action {
	var row []domain.Action
	if caps.Read {
		row = append(row, domain.IntentAction(fmt.Sprintf("📖 Read #%d", n),
			domain.Intent{Kind: domain.IntentReadMessage, Ref: id}))
	}
	if caps.Delete {
		row = append(row, domain.IntentAction(fmt.Sprintf("🗑 Delete #%d", n),
			domain.Intent{Kind: domain.IntentDeleteMessage, Ref: id}))
	}
	return row
}

func renderBody(chatID int64, id, body string, caps provider.Capabilities) domain.RenderInstruction {
	body = strings.TrimSpace(body)
	if body == "" {
		body = "(empty message)"
	}

	actions := [][]domain.Action{}
	if caps.Delete {
		actions = append(actions, []domain.Action{domain.IntentAction("🗑 Delete",
			domain.Intent{Kind: domain.IntentDeleteMessage, Ref: id})})
	}
	actions = append(actions, []domain.Action{domain.IntentAction("📬 Inbox", checkIntent)})

	return domain.RenderInstruction{
		ChatID:  chatID,
		Text:    "📖 <b>Message</b>\n\n" + escapeTruncate(body, maxBodyRunes),
		Actions: actions,
	}
}

func renderReadFailed(chatID int64) domain.RenderInstruction {
	return domain.RenderInstruction{
		ChatID:  chatID,
		Text:    "❌ Could not load this message. It may have been deleted.",
		Actions: [][]domain.Action{inboxRow()},
	}
}

func renderDeleteResult(chatID int64, ok bool, editID int) domain.RenderInstruction {
	text := "🗑 Message deleted."
	if !ok {
		text = "❌ Could not delete this message."
	}
	return domain.RenderInstruction{
		ChatID:        chatID,
		Text:          text,
		Actions:       [][]domain.Action{inboxRow()},
		EditMessageID: editID,
	}
}

func renderNewMail(chatID int64, m domain.MessageSummary, caps provider.Capabilities) domain.RenderInstruction {
	actions := [][]domain.Action{}
	if row := messageRow(1, m.ID, caps); len(row) > 0 {
		actions = append(actions, row)
	}
	actions = append(actions, inboxRow())

	return domain.RenderInstruction{
		ChatID: chatID,
		Text: fmt.Sprintf("📩 <b>New mail!</b>\nFrom: %s\nSub: %s",
			html.EscapeString(m.From), html.EscapeString(subjectOf(m))),
		Actions: actions,
	}
}

func subjectOf(m domain.MessageSummary) string {
	if strings.TrimSpace(m.Subject) == "" {
		return noSubject
	}
	return m.Subject
}

// escapeTruncate 转义 HTML，转义后超过 n 个字符时按整个字符截断
func escapeTruncate(s string, n int) string {
	var b strings.Builder
	size := 0
	for _, r := range s {
		esc := html.EscapeString(string(r))
		w := utf8.RuneCountInString(esc)
		if size+w > n {
			b.WriteString("…")
			break
		}
		b.WriteString(esc)
		size += w
	}
	return b.String()
}

// humanDuration 整分钟显示为 "N min"，其余使用 Duration 默认格式
func humanDuration(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		return fmt.Sprintf("%d min", int(d/time.Minute))
	}
	return d.String()
}
