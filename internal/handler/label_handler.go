package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/labelman/internal/middleware"
	"github.com/hitoshi/labelman/internal/model"
)

// LabelServiceInterface はラベルハンドラーが必要とするサービスインターフェース。
type LabelServiceInterface interface {
	// NextImage はユーザーがまだラベル付けしていない画像を1枚返す。
	// 全画像にラベル付け済みの場合は(nil, nil)を返す。
	NextImage(ctx context.Context, sub string) (*model.Image, error)
	// SubmitLabel は(画像, ユーザー)ペアへのラベル送信をUPSERTする。
	SubmitLabel(ctx context.Context, sub, imageID, label string) (*model.LabelSubmission, error)
}

// LabelHandler は画像の割り当てとラベル送信のHTTPハンドラー。
type LabelHandler struct {
	service LabelServiceInterface
}

// NewLabelHandler はLabelHandlerを生成する。
func NewLabelHandler(service LabelServiceInterface) *LabelHandler {
	return &LabelHandler{service: service}
}

// nextImageResponse は次画像のAPIレスポンス。
// 全画像ラベル済みの場合は全フィールドnullで返す（200のまま）。
// フロントエンドはこれを「完了」表示の合図として扱う。
type nextImageResponse struct {
	ID             *string  `json:"id"`
	URL            *string  `json:"url"`
	SuggestedLabel *string  `json:"suggested_label"`
	Confidence     *float64 `json:"confidence"`
}

// submitLabelRequest はラベル送信リクエストのボディ。
type submitLabelRequest struct {
	ImageID *string `json:"image_id"`
	Label   *string `json:"label"`
}

// submitLabelResponse はラベル送信成功時のAPIレスポンス。
type submitLabelResponse struct {
	OK      bool   `json:"ok"`
	ImageID string `json:"image_id"`
	Label   string `json:"label"`
}

// NextImage はユーザーの次の未ラベル画像を返す。
// GET /api/images/next
func (h *LabelHandler) NextImage(w http.ResponseWriter, r *http.Request) {
	sub, err := middleware.SubFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewTokenInvalidError())
		return
	}

	image, err := h.service.NextImage(r.Context(), sub)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if image == nil {
		// 画像が尽きた: 404ではなく全フィールドnullの200を返す
		writeJSON(w, http.StatusOK, nextImageResponse{})
		return
	}

	writeJSON(w, http.StatusOK, nextImageResponse{
		ID:             &image.ID,
		URL:            &image.URL,
		SuggestedLabel: image.SuggestedLabel,
		Confidence:     image.Confidence,
	})
}

// SubmitLabel はラベル送信を処理する。
// POST /api/labels
func (h *LabelHandler) SubmitLabel(w http.ResponseWriter, r *http.Request) {
	sub, err := middleware.SubFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewTokenInvalidError())
		return
	}

	var req submitLabelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}
	if req.ImageID == nil || *req.ImageID == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("image_idは必須です"))
		return
	}
	if req.Label == nil || *req.Label == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("labelは必須です"))
		return
	}

	submission, err := h.service.SubmitLabel(r.Context(), sub, *req.ImageID, *req.Label)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, submitLabelResponse{
		OK:      true,
		ImageID: submission.ImageID,
		Label:   submission.Label,
	})
}
