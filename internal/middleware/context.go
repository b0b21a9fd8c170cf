// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// userIDContextKey は認証済みユーザーIDを格納するキー。
	userIDContextKey = contextKey("user_id")
	// requestStateContextKey はロギングミドルウェアが共有するリクエスト状態のキー。
	requestStateContextKey = contextKey("request_state")
)

// requestState は内側のミドルウェアから外側のロギングミドルウェアへ値を戻すための共有状態。
// 1リクエストの処理中のみ使用する。
type requestState struct {
	userID string
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// ロギングミドルウェアの共有状態があれば、そちらにも記録する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	if st, ok := ctx.Value(requestStateContextKey).(*requestState); ok {
		st.userID = userID
	}
	return context.WithValue(ctx, userIDContextKey, userID)
}
