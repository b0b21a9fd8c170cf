package model

import "time"

// User はサービス利用ユーザーを表す。
// Username と Email はそれぞれ全ユーザーで一意。
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string // 平文は保持しない
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
