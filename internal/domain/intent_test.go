package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCallbackData(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		want   Intent
		wantOK bool
	}{
		{"生成邮箱", "gen_mail", Intent{Kind: IntentGenerate}, true},
		{"旧版别名", "new_mail", Intent{Kind: IntentGenerate}, true},
		{"查看收件箱", "check_mail", Intent{Kind: IntentCheckInbox}, true},
		{"阅读邮件", "read:65f1c0", Intent{Kind: IntentReadMessage, Ref: "65f1c0"}, true},
		{"删除邮件", "del:65f1c0", Intent{Kind: IntentDeleteMessage, Ref: "65f1c0"}, true},
		{"阅读缺少 ID", "read:", Intent{}, false},
		{"阅读没有分隔符", "read", Intent{}, false},
		{"无参意图带参数", "check_mail:1", Intent{}, false},
		{"未知数据", "check_sub", Intent{}, false},
		{"会话结束不可由按钮触发", "end", Intent{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseCallbackData(tt.data)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCallbackDataRoundTrip(t *testing.T) {
	intent := Intent{Kind: IntentDeleteMessage, Ref: "abc123"}

	got, ok := ParseCallbackData(intent.CallbackData())

	assert.True(t, ok)
	assert.Equal(t, intent, got)
}

func TestParseCommand(t *testing.T) {
	for command, kind := range map[string]IntentKind{
		"start":  IntentStart,
		"/new":   IntentGenerate,
		"check":  IntentCheckInbox,
		"/CHECK": IntentCheckInbox,
	} {
		got, ok := ParseCommand(command)
		assert.True(t, ok, command)
		assert.Equal(t, kind, got.Kind, command)
	}

	_, ok := ParseCommand("help")
	assert.False(t, ok)
}
