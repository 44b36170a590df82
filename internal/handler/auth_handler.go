package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/labelman/internal/middleware"
	"github.com/hitoshi/labelman/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// Login はGoogle認証情報を検証し、ユーザーをUPSERTしてセッショントークンを発行する。
	Login(ctx context.Context, credential string) (string, *model.User, error)
	// CurrentUser はsubject IDから現在のユーザーを取得する。
	CurrentUser(ctx context.Context, sub string) (*model.User, error)
}

// LoginMetricsRecorder はログインメトリクスの記録インターフェース。
type LoginMetricsRecorder interface {
	RecordLogin()
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	metrics LoginMetricsRecorder
}

// NewAuthHandler はAuthHandlerを生成する。metricsはnilを許容する。
func NewAuthHandler(service AuthServiceInterface, metrics LoginMetricsRecorder) *AuthHandler {
	return &AuthHandler{
		service: service,
		metrics: metrics,
	}
}

// loginRequest はGoogleログインリクエストのボディ。
type loginRequest struct {
	Credential *string `json:"credential"`
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	Sub        string `json:"sub"`
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Picture    string `json:"picture"`
}

// loginResponse はログイン成功時のAPIレスポンス。
type loginResponse struct {
	OK    bool         `json:"ok"`
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

// Login はGoogle認証情報を受け取りセッショントークンを発行する。
// POST /api/auth/google
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}
	if req.Credential == nil || *req.Credential == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("credentialは必須です"))
		return
	}

	token, user, err := h.service.Login(r.Context(), *req.Credential)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordLogin()
	}

	writeJSON(w, http.StatusOK, loginResponse{
		OK:    true,
		Token: token,
		User:  toUserResponse(user),
	})
}

// Me は現在のログインユーザー情報を返す。
// GET /api/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sub, err := middleware.SubFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewTokenInvalidError())
		return
	}

	user, err := h.service.CurrentUser(r.Context(), sub)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// toUserResponse はドメインのUserをAPIレスポンス型に変換する。
func toUserResponse(user *model.User) userResponse {
	return userResponse{
		Sub:        user.Sub,
		Email:      user.Email,
		GivenName:  user.GivenName,
		FamilyName: user.FamilyName,
		Picture:    user.Picture,
	}
}
