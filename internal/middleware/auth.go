package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/taskman/internal/auth"
	"github.com/hitoshi/taskman/internal/model"
)

// tokenQueryParam は互換性のためにトークンを受け付けるクエリパラメータ名。
const tokenQueryParam = "token"

// TokenVerifier はベアラートークンの検証に必要なインターフェース。
// auth.TokenIssuerの部分集合として定義する。
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// NewAuthMiddleware はベアラートークンを検証し、ユーザーIDをリクエストコンテキストに注入するミドルウェアを返す。
// トークンはAuthorizationヘッダー、なければtokenクエリパラメータから取得する。
// onFailureは検証失敗時に理由（"missing" / "invalid"）を受け取る。nilの場合は呼ばない。
// 未認証リクエストには401を返す。
func NewAuthMiddleware(verifier TokenVerifier, onFailure func(reason string)) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				rejectUnauthorized(w, onFailure, "missing")
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				slog.Debug("token verification failed",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				rejectUnauthorized(w, onFailure, "invalid")
				return
			}

			ctx := ContextWithUserID(r.Context(), claims.UserID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractToken は"Authorization: Bearer <token>"（スキームは大文字小文字を区別しない）、
// またはtokenクエリパラメータからトークンを取り出す。
func extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get(tokenQueryParam)
}

func rejectUnauthorized(w http.ResponseWriter, onFailure func(string), reason string) {
	if onFailure != nil {
		onFailure(reason)
	}
	w.Header().Set("WWW-Authenticate", `Bearer realm="taskman"`)
	WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
}
