package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, task, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUserAlreadyExists  = "USER_ALREADY_EXISTS"
	ErrCodeWeakPassword       = "WEAK_PASSWORD"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeInvalidQuery       = "INVALID_QUERY"
	ErrCodeInvalidPagination  = "INVALID_PAGINATION"
	ErrCodeInvalidTaskID      = "INVALID_TASK_ID"
	ErrCodeTaskNotFound       = "TASK_NOT_FOUND"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewUserAlreadyExistsError はユーザー名またはメールアドレスの重複エラーを生成する。
func NewUserAlreadyExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeUserAlreadyExists,
		Message:  "Username or Email already exists.",
		Category: "validation",
		Action:   "Choose a different username or email.",
	}
}

// NewWeakPasswordError はパスワードが複雑性要件を満たさない場合のエラーを生成する。
func NewWeakPasswordError() *APIError {
	return &APIError{
		Code:     ErrCodeWeakPassword,
		Message:  "Password does not meet complexity requirements.",
		Category: "validation",
		Action:   "Use at least 8 characters including upper and lower case letters, a digit and a symbol.",
	}
}

// NewInvalidCredentialsError は認証失敗エラーを生成する。
// ユーザー不在とパスワード不一致を区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid credentials",
		Category: "auth",
		Action:   "Check your username or email and password.",
	}
}

// NewUnauthorizedError はトークン未提示・無効時のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Authentication is required.",
		Category: "auth",
		Action:   "Log in and send the token as a Bearer credential.",
	}
}

// NewInvalidRequestError はリクエストボディの検証エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("Invalid request: %s", reason),
		Category: "validation",
		Action:   "Fix the request body and try again.",
	}
}

// NewInvalidQueryError はクエリパラメータの検証エラーを生成する。
func NewInvalidQueryError(param, value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidQuery,
		Message:  fmt.Sprintf("Invalid value for %s: %q", param, value),
		Category: "validation",
		Action:   "Check the query parameters.",
	}
}

// NewInvalidPaginationError はページ番号・ページサイズが不正な場合のエラーを生成する。
func NewInvalidPaginationError(page, pageSize int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPagination,
		Message:  fmt.Sprintf("Invalid pagination: page=%d, pageSize=%d", page, pageSize),
		Category: "validation",
		Action:   "page and pageSize must be 1 or greater.",
	}
}

// NewInvalidTaskIDError はタスクIDの形式が不正な場合のエラーを生成する。
func NewInvalidTaskIDError(taskID string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTaskID,
		Message:  fmt.Sprintf("Invalid task id: %s", taskID),
		Category: "validation",
		Action:   "Task ids are UUIDs.",
	}
}

// NewTaskNotFoundError はタスク未検出エラーを生成する。
// 他ユーザー所有のタスクも存在しないものとして扱うため、verbは操作名（view/update/delete）。
func NewTaskNotFoundError(verb string) *APIError {
	return &APIError{
		Code:     ErrCodeTaskNotFound,
		Message:  fmt.Sprintf("Task not found or you are not authorized to %s it.", verb),
		Category: "task",
		Action:   "Check the task id.",
	}
}

// NewInternalError は内部エラーの利用者向け表現を生成する。
// 詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "An internal error occurred.",
		Category: "system",
		Action:   "Please wait and try again later.",
	}
}
