// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/labelman/internal/middleware"
	"github.com/hitoshi/labelman/internal/model"
)

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeCredentialInvalid, model.ErrCodeTokenExpired, model.ErrCodeTokenInvalid:
		return http.StatusUnauthorized
	// トークンは有効でも対応するユーザー行が存在しない場合は認証エラーとして扱う
	case model.ErrCodeUserNotFound:
		return http.StatusUnauthorized
	case model.ErrCodeImageNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
