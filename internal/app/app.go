// Package app はサブコマンドの解析と依存関係のワイヤリングを行うアプリケーションのエントリーポイント。
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/taskman/internal/auth"
	"github.com/hitoshi/taskman/internal/config"
	"github.com/hitoshi/taskman/internal/database"
	"github.com/hitoshi/taskman/internal/handler"
	"github.com/hitoshi/taskman/internal/logger"
	"github.com/hitoshi/taskman/internal/metrics"
	"github.com/hitoshi/taskman/internal/middleware"
	"github.com/hitoshi/taskman/internal/repository"
	"github.com/hitoshi/taskman/internal/task"
)

const (
	shutdownTimeout = 30 * time.Second
	pingTimeout     = 5 * time.Second
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("storage_driver", cfg.StorageDriver),
	)

	switch cmd {
	case CommandMigrate:
		action, ok := ParseMigrateAction(args)
		if !ok {
			return fmt.Errorf("unknown migrate action: %q", args[1])
		}
		return runMigrate(cfg, action)
	default:
		return runServe(cfg)
	}
}

// stores はストレージドライバに応じて構築したリポジトリ群。
type stores struct {
	users  repository.UserRepository
	tasks  repository.TaskRepository
	health handler.HealthChecker
	close  func() error
}

// openStores はSTORAGE_DRIVERに応じてリポジトリを構築する。
// postgresの場合は接続確認とマイグレーションの適用まで行う。
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		slog.Warn("using in-memory storage; data is lost on restart")
		mem := repository.NewMemoryStore()
		return &stores{
			users:  mem,
			tasks:  mem.Tasks(),
			health: mem,
			close:  func() error { return nil },
		}, nil
	}

	db, err := database.Open(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}

	if err := database.Ping(ctx, db, pingTimeout); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &stores{
		users:  repository.NewPostgresUserRepo(db, cfg.DBQueryTimeout),
		tasks:  repository.NewPostgresTaskRepo(db, cfg.DBQueryTimeout),
		health: dbPinger{db: db},
		close:  db.Close,
	}, nil
}

// dbPinger は*sql.DBをヘルスチェックに適合させる。
type dbPinger struct {
	db *sql.DB
}

func (p dbPinger) Ping(ctx context.Context) error {
	return database.Ping(ctx, p.db, pingTimeout)
}

// newHandler は全依存関係をワイヤリングしたHTTPハンドラーを返す。
// 返却するRateLimiterはシャットダウン時に停止する。
func newHandler(cfg *config.Config, st *stores, reg *prometheus.Registry) (http.Handler, *middleware.RateLimiter) {
	// 1. メトリクス
	collector := metrics.NewCollector(reg)

	// 2. 認証
	issuer := auth.NewJWTIssuer(auth.JWTConfig{
		Key:      []byte(cfg.JWTKey),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	})
	accountService := auth.NewService(st.users, auth.NewBcryptHasher(cfg.BcryptCost))

	// 3. タスク
	taskService := task.NewService(st.tasks)

	// 4. レート制限（req/min -> req/sec に変換）
	limiterCfg := middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAuth)
	limiterCfg.OnLimited = collector.RecordRateLimited
	limiter := middleware.NewRateLimiter(limiterCfg)

	// 5. ルーター
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		TokenVerifier:     issuer,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       limiter,
		Metrics:           collector,
		MetricsHandler:    metrics.Handler(reg),
		AccountService:    accountService,
		TokenIssuer:       issuer,
		TaskService:       taskService,
		HealthChecker:     st.health,
	})

	return router, limiter
}

// newRegistry はアプリケーションメトリクスに加えてプロセスとGoランタイムのメトリクスを含むレジストリを返す。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// runServe はAPIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", ":"+cfg.ServerPort)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	return serve(ctx, cfg, ln)
}

// serve はリスナー上でAPIサーバーを起動し、ctxの終了でグレースフルシャットダウンする。
func serve(ctx context.Context, cfg *config.Config, ln net.Listener) error {
	st, err := openStores(ctx, cfg)
	if err != nil {
		ln.Close()
		return err
	}
	defer func() {
		if err := st.close(); err != nil {
			slog.Error("failed to close store", slog.String("error", err.Error()))
		}
	}()

	router, limiter := newHandler(cfg, st, newRegistry())
	defer limiter.Stop()

	server := &http.Server{
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", ln.Addr().String()))
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
func runMigrate(cfg *config.Config, action MigrateAction) error {
	if cfg.StorageDriver != config.StorageDriverPostgres {
		return fmt.Errorf("migrate requires STORAGE_DRIVER=%s", config.StorageDriverPostgres)
	}

	slog.Info("running database migrations",
		slog.String("action", string(action)),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch action {
	case MigrateDown:
		if err := database.RollbackMigration(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
	case MigrateVersion:
		version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to read migration version: %w", err)
		}
		slog.Info("current migration version",
			slog.Uint64("version", uint64(version)),
			slog.Bool("dirty", dirty),
		)
		return nil
	default:
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	endpoint := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
