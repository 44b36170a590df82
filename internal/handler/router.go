package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/labelman/internal/metrics"
	"github.com/hitoshi/labelman/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenValidator    middleware.TokenValidator
	CORSAllowedOrigin string
	Logger            *slog.Logger

	// サービス
	AuthService  AuthServiceInterface
	LabelService LabelServiceInterface

	// 観測
	Metrics         metrics.MetricsCollector
	MetricsGatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Logging → Recovery → (認証ルートのみ) Auth
//
// ログインとヘルスチェック、/metricsは認証の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルート共通のミドルウェア
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Metrics))
	r.Use(middleware.NewRecoveryMiddleware())

	authHandler := NewAuthHandler(deps.AuthService, deps.Metrics)
	labelHandler := NewLabelHandler(deps.LabelService)

	// --- 認証不要のルート ---

	r.Get("/health", Health)
	r.Get("/api/health", Health)
	r.Post("/api/auth/google", authHandler.Login)

	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenValidator))

		r.Get("/api/me", authHandler.Me)
		r.Get("/api/images/next", labelHandler.NextImage)
		r.Post("/api/labels", labelHandler.SubmitLabel)
	})

	return r
}
