package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/taskman/internal/auth"
	"github.com/hitoshi/taskman/internal/metrics"
	"github.com/hitoshi/taskman/internal/model"
)

// AccountServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	Register(ctx context.Context, username, email, password string) (*model.User, error)
	// Authenticate は資格情報が一致しない場合nil, nilを返す。
	Authenticate(ctx context.Context, usernameOrEmail, password string) (*model.User, error)
}

// TokenIssuerInterface はログイン成功時のトークン発行に必要なインターフェース。
type TokenIssuerInterface interface {
	Issue(user *model.User) (string, time.Time, error)
}

// UserHandler はユーザー登録・ログインのHTTPハンドラー。
type UserHandler struct {
	service AccountServiceInterface
	issuer  TokenIssuerInterface
	metrics metrics.MetricsCollector
}

// NewUserHandler はUserHandlerを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewUserHandler(service AccountServiceInterface, issuer TokenIssuerInterface, collector metrics.MetricsCollector) *UserHandler {
	if collector == nil {
		collector = nopCollector{}
	}
	return &UserHandler{
		service: service,
		issuer:  issuer,
		metrics: collector,
	}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail"`
	Password        string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Register はユーザー登録を処理する。
// POST /users/register
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.metrics.RecordAuthEvent("register", metrics.OutcomeRejected)
		handleServiceError(w, err)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" {
		h.metrics.RecordAuthEvent("register", metrics.OutcomeRejected)
		handleServiceError(w, model.NewInvalidRequestError("username and email are required"))
		return
	}

	if _, err := h.service.Register(r.Context(), req.Username, req.Email, req.Password); err != nil {
		h.metrics.RecordAuthEvent("register", outcomeOf(err))
		handleServiceError(w, err)
		return
	}

	h.metrics.RecordAuthEvent("register", metrics.OutcomeSuccess)
	writeJSON(w, http.StatusOK, messageResponse{Message: auth.RegisterSuccessMessage})
}

// Login は資格情報を検証し、アクセストークンを発行する。
// ユーザー不在とパスワード不一致は同じ401を返す。
// POST /users/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.metrics.RecordAuthEvent("login", metrics.OutcomeRejected)
		handleServiceError(w, err)
		return
	}

	user, err := h.service.Authenticate(r.Context(), strings.TrimSpace(req.UsernameOrEmail), req.Password)
	if err != nil {
		h.metrics.RecordAuthEvent("login", metrics.OutcomeError)
		handleServiceError(w, err)
		return
	}
	if user == nil {
		h.metrics.RecordAuthEvent("login", metrics.OutcomeRejected)
		handleServiceError(w, model.NewInvalidCredentialsError())
		return
	}

	token, expiresAt, err := h.issuer.Issue(user)
	if err != nil {
		h.metrics.RecordAuthEvent("login", metrics.OutcomeError)
		handleServiceError(w, err)
		return
	}

	h.metrics.RecordAuthEvent("login", metrics.OutcomeSuccess)
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt.UTC()})
}
