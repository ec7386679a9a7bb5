package domain

// MessageSummary 表示收件箱列表中的一封邮件摘要。
type MessageSummary struct {
	ID      string `json:"id"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Intro   string `json:"intro,omitempty"` // 正文预览，部分提供方不返回
}
