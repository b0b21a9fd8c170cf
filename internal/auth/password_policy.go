package auth

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// minPasswordLength はパスワードの最小文字数（rune単位）。
const minPasswordLength = 8

// IsValidPassword はパスワードが複雑性要件を満たすかを判定する。
// 8文字以上で、英大文字・英小文字・数字・英数字以外の文字をそれぞれ1文字以上含む必要がある。
// 空文字や空白のみの文字列は常に不正。最大長は設けない。
func IsValidPassword(password string) bool {
	if strings.TrimSpace(password) == "" || utf8.RuneCountInString(password) < minPasswordLength {
		return false
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case !unicode.IsLetter(r):
			hasSymbol = true
		}
	}
	return hasUpper && hasLower && hasDigit && hasSymbol
}
