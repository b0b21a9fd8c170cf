package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/taskman/internal/metrics"
	"github.com/hitoshi/taskman/internal/middleware"
	"github.com/hitoshi/taskman/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// メトリクス（nilの場合は/metricsを公開しない）
	Metrics        *metrics.Collector
	MetricsHandler http.Handler

	// ユーザー
	AccountService AccountServiceInterface
	TokenIssuer    TokenIssuerInterface

	// タスク
	TaskService TaskServiceInterface

	// ヘルスチェック
	HealthChecker HealthChecker
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Logging → Recovery → SecurityHeaders → CORS → Metrics
//
// /users/* はIPごとのレート制限、/tasks/* は認証の後にユーザーごとのレート制限を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var collector metrics.MetricsCollector = nopCollector{}
	if deps.Metrics != nil {
		collector = deps.Metrics
	}

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(metrics.Middleware(collector))

	userHandler := NewUserHandler(deps.AccountService, deps.TokenIssuer, collector)
	taskHandler := NewTaskHandler(deps.TaskService, collector)

	// --- 認証不要のルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/users", func(r chi.Router) {
		r.Use(deps.RateLimiter.AuthMiddleware())
		r.Post("/register", userHandler.Register)
		r.Post("/login", userHandler.Login)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Route("/tasks", func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier, collector.RecordAuthFailure))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Post("/", taskHandler.CreateTask)
		r.Get("/", taskHandler.ListTasks)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", taskHandler.GetTask)
			r.Put("/", taskHandler.UpdateTask)
			r.Delete("/", taskHandler.DeleteTask)
		})
	})

	return r
}

// outcomeOf はエラーをメトリクスの結果ラベルに変換する。
// 利用者起因のAPIErrorはrejected、それ以外はerrorとする。
func outcomeOf(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && mapAPIErrorToHTTPStatus(apiErr) < http.StatusInternalServerError {
		return metrics.OutcomeRejected
	}
	return metrics.OutcomeError
}

// nopCollector はメトリクスを記録しないMetricsCollector。
type nopCollector struct{}

func (nopCollector) RecordHTTPRequest(string, string, int, time.Duration) {}
func (nopCollector) RecordAuthEvent(string, string)                       {}
func (nopCollector) RecordAuthFailure(string)                             {}
func (nopCollector) RecordTaskOperation(string, string)                   {}
func (nopCollector) RecordRateLimited(string)                             {}
