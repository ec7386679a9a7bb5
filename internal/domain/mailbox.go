package domain

import "time"

// Mailbox 表示由外部服务签发的一个临时邮箱及其访问凭证。
type Mailbox struct {
	Address   string    `json:"address"`
	Token     string    `json:"-"`
	Domain    string    `json:"domain"`
	CreatedAt time.Time `json:"createdAt"`
}
