package domain

import "strings"

// IntentKind 表示用户意图的类型，取值同时作为按钮回调数据的前缀。
type IntentKind string

const (
	IntentStart         IntentKind = "start"
	IntentGenerate      IntentKind = "gen_mail"
	IntentCheckInbox    IntentKind = "check_mail"
	IntentReadMessage   IntentKind = "read"
	IntentDeleteMessage IntentKind = "del"
	IntentEnd           IntentKind = "end" // 会话结束（用户屏蔽了机器人）
)

// intentAliases 兼容旧版按钮上的回调数据
var intentAliases = map[string]IntentKind{
	"new_mail": IntentGenerate,
}

// callbackSeparator 分隔意图与其引用的邮件 ID
const callbackSeparator = ":"

// Intent 是展示层转交给调度器的一次用户意图。
type Intent struct {
	Kind      IntentKind
	ChatID    int64
	MessageID int    // 触发意图的按钮所在消息，命令触发时为 0
	Ref       string // ReadMessage / DeleteMessage 引用的邮件 ID
}

// CallbackData 将意图编码为按钮回调数据。
func (i Intent) CallbackData() string {
	if i.Ref == "" {
		return string(i.Kind)
	}
	return string(i.Kind) + callbackSeparator + i.Ref
}

// ParseCallbackData 解析按钮回调数据，无法识别时返回 false。
func ParseCallbackData(data string) (Intent, bool) {
	data = strings.TrimSpace(data)
	if kind, ok := intentAliases[data]; ok {
		return Intent{Kind: kind}, true
	}

	name, ref, hasRef := strings.Cut(data, callbackSeparator)
	kind := IntentKind(name)

	switch kind {
	case IntentStart, IntentGenerate, IntentCheckInbox:
		if hasRef {
			return Intent{}, false
		}
		return Intent{Kind: kind}, true
	case IntentReadMessage, IntentDeleteMessage:
		if !hasRef || ref == "" {
			return Intent{}, false
		}
		return Intent{Kind: kind, Ref: ref}, true
	default:
		return Intent{}, false
	}
}

// ParseCommand 将文本命令映射为意图。
func ParseCommand(command string) (Intent, bool) {
	switch strings.ToLower(strings.TrimPrefix(command, "/")) {
	case "start":
		return Intent{Kind: IntentStart}, true
	case "new":
		return Intent{Kind: IntentGenerate}, true
	case "check":
		return Intent{Kind: IntentCheckInbox}, true
	default:
		return Intent{}, false
	}
}
