// Package app はアプリケーションの起動とワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/labelman/internal/auth"
	"github.com/hitoshi/labelman/internal/config"
	"github.com/hitoshi/labelman/internal/database"
	"github.com/hitoshi/labelman/internal/handler"
	"github.com/hitoshi/labelman/internal/label"
	"github.com/hitoshi/labelman/internal/logger"
	"github.com/hitoshi/labelman/internal/metrics"
	"github.com/hitoshi/labelman/internal/repository"
	"github.com/hitoshi/labelman/internal/security"
	"github.com/hitoshi/labelman/internal/seed"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

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
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandSeed:
		return runSeed(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	imageRepo := repository.NewPostgresImageRepo(db)
	subRepo := repository.NewPostgresSubmissionRepo(db)

	// 3. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewLabelSanitizer()

	// 4. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 5. ドメインサービスの初期化
	verifier := auth.NewGoogleVerifier(cfg.GoogleClientID)
	tokenService, err := auth.NewTokenService(auth.TokenConfig{
		Secret:    cfg.JWTSecretKey,
		Algorithm: cfg.JWTAlgorithm,
		Lifetime:  cfg.JWTExpiry(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize token service: %w", err)
	}
	authService := auth.NewService(verifier, tokenService, userRepo)
	labelService := label.NewService(userRepo, imageRepo, subRepo, sanitizer, collector)

	// 6. シーディングをバックグラウンドで実行（ベストエフォート、失敗しても起動続行）
	seeder := seed.NewSeeder(
		imageRepo, ssrfGuard, sanitizer, collector,
		slog.Default(), cfg.ManifestFetchTimeout,
	)
	go seeder.Run(context.Background(), cfg.ManifestURL)

	// 7. ルーターの構築
	deps := &handler.RouterDeps{
		TokenValidator:    tokenService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		Logger:            slog.Default(),

		AuthService:  authService,
		LabelService: labelService,

		Metrics:         collector,
		MetricsGatherer: registry,
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runSeed はマニフェストからのシード投入のみを実行して終了する。
// サーバー起動前の手動投入やジョブ実行用のサブコマンド。
// serveモードのバックグラウンド投入と異なり、失敗をエラーとして報告するため、
// 投入結果を確認してから終了できる。
func runSeed(cfg *config.Config) error {
	if cfg.ManifestURL == "" {
		return fmt.Errorf("MANIFEST_URL is not set")
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	imageRepo := repository.NewPostgresImageRepo(db)
	seeder := seed.NewSeeder(
		imageRepo, security.NewSSRFGuard(), security.NewLabelSanitizer(),
		nil, slog.Default(), cfg.ManifestFetchTimeout,
	)

	count, err := seeder.RunStrict(context.Background(), cfg.ManifestURL)
	if err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}

	if count > 0 {
		slog.Info("seeding completed", slog.Int("count", count))
	} else {
		slog.Info("images table already populated, nothing to seed")
	}
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
