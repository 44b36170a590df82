// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hitoshi/labelman/internal/model"
)

const bearerScheme = "Bearer"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// subContextKey はリクエストコンテキストに認証済みsubject IDを格納するためのキー。
var subContextKey = contextKey("sub")

// TokenValidator はセッショントークン検証のインターフェース。
// auth.TokenServiceの部分集合として定義する。
type TokenValidator interface {
	Validate(tokenString string) (string, error)
}

// NewAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証する
// ミドルウェアを返す。認証済みsubject IDをリクエストコンテキストに注入する。
// ヘッダーの欠落、Bearer以外のスキーム、無効・期限切れトークンには
// 401 Unauthorizedを統一エラーフォーマットで返す。
func NewAuthMiddleware(validator TokenValidator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. AuthorizationヘッダーからBearerトークンを抽出
			tokenString, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewTokenInvalidError())
				return
			}

			// 2. トークンの検証。期限切れと不正は別コードで返す
			sub, err := validator.Validate(tokenString)
			if err != nil {
				var apiErr *model.APIError
				if !errors.As(err, &apiErr) {
					apiErr = model.NewTokenInvalidError()
				}
				WriteErrorResponse(w, http.StatusUnauthorized, apiErr)
				return
			}

			// 3. 認証済みsubject IDをコンテキストに注入
			ctx := context.WithValue(r.Context(), subContextKey, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearerToken はAuthorizationヘッダー値からBearerトークンを取り出す。
// スキーム名の大文字小文字は区別しない。トークンが空の場合はfalseを返す。
func extractBearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

// SubFromContext はリクエストコンテキストから認証済みsubject IDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func SubFromContext(ctx context.Context) (string, error) {
	sub, ok := ctx.Value(subContextKey).(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("subject not found in context")
	}
	return sub, nil
}

// ContextWithSub はコンテキストにsubject IDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSub(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, subContextKey, sub)
}
