package domain

// Action 是渲染到消息下方的一个按钮。
//
// Callback 与 SwitchInlineQuery 二选一：前者回传为意图，后者打开分享面板。
type Action struct {
	Label             string
	Callback          string
	SwitchInlineQuery string
}

// IntentAction 创建一个回传意图的按钮。
func IntentAction(label string, intent Intent) Action {
	return Action{Label: label, Callback: intent.CallbackData()}
}

// ShareAction 创建一个分享按钮。
func ShareAction(label, query string) Action {
	return Action{Label: label, SwitchInlineQuery: query}
}

// RenderInstruction 描述展示层需要发送或编辑的一条消息。
type RenderInstruction struct {
	ChatID        int64
	Text          string     // Telegram HTML 格式
	Actions       [][]Action // 按行排列的按钮
	EditMessageID int        // 非零时编辑该消息，否则发送新消息
}

// IsEdit 表示该指令是否编辑已有消息。
func (r RenderInstruction) IsEdit() bool {
	return r.EditMessageID != 0
}
