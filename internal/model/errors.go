// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, label, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeCredentialInvalid = "CREDENTIAL_INVALID"
	ErrCodeTokenExpired      = "TOKEN_EXPIRED"
	ErrCodeTokenInvalid      = "TOKEN_INVALID"
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
	ErrCodeImageNotFound     = "IMAGE_NOT_FOUND"
)

// NewInvalidRequestError はリクエスト形式エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエストボディの形式を確認してください。",
	}
}

// NewCredentialInvalidError はGoogle認証情報の検証失敗エラーを生成する。
// 失敗理由（署名不正、期限切れ、audience不一致等）は呼び出し側に漏らさない。
func NewCredentialInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeCredentialInvalid,
		Message:  "Google認証情報を検証できませんでした。",
		Category: "auth",
		Action:   "再度サインインしてください。",
	}
}

// NewTokenExpiredError はセッショントークンの期限切れエラーを生成する。
func NewTokenExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenExpired,
		Message:  "セッションの有効期限が切れています。",
		Category: "auth",
		Action:   "再度サインインしてください。",
	}
}

// NewTokenInvalidError はセッショントークンの検証失敗エラーを生成する。
// 署名不正・形式不正など期限切れ以外のあらゆる失敗を含む。
func NewTokenInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenInvalid,
		Message:  "セッショントークンが不正です。",
		Category: "auth",
		Action:   "再度サインインしてください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "再度サインインしてください。",
	}
}

// NewImageNotFoundError は画像が見つからない場合のエラーを生成する。
func NewImageNotFoundError(imageID string) *APIError {
	return &APIError{
		Code:     ErrCodeImageNotFound,
		Message:  fmt.Sprintf("指定された画像が見つかりません: %s", imageID),
		Category: "label",
		Action:   "画像IDを確認してください。",
	}
}
