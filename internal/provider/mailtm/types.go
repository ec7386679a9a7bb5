package mailtm

import (
	"bytes"
	"encoding/json"
	"errors"
)

// collection 兼容 mail.tm 的两种集合格式：
// JSON-LD 对象（hydra:member）和普通 JSON 数组。
type collection[T any] []T

func (c *collection[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		*c = items
		return nil
	}

	var wrapped struct {
		Members *[]T `json:"hydra:member"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return err
	}
	if wrapped.Members == nil {
		return errors.New("missing hydra:member")
	}
	*c = *wrapped.Members
	return nil
}

type domainItem struct {
	Domain    string `json:"domain"`
	IsActive  *bool  `json:"isActive"`
	IsPrivate bool   `json:"isPrivate"`
}

// usable 判断域名是否可用于注册；未返回 isActive 时视为可用
func (d domainItem) usable() bool {
	if d.Domain == "" || d.IsPrivate {
		return false
	}
	return d.IsActive == nil || *d.IsActive
}

type credentials struct {
	Address  string `json:"address"`
	Password string `json:"password"`
}

type tokenResponse struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

type addressee struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

type messageItem struct {
	ID      string    `json:"id"`
	From    addressee `json:"from"`
	Subject string    `json:"subject"`
	Intro   string    `json:"intro"`
}

type messageDetail struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Intro string `json:"intro"`
}
