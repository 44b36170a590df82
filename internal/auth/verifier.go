package auth

import (
	"context"
	"fmt"

	"google.golang.org/api/idtoken"
)

// VerifiedClaims はIDトークン検証後のクレームセットを表す。
// Sub以外の項目はIDトークンに含まれない場合があり、その場合は空文字となる。
type VerifiedClaims struct {
	Sub        string
	Email      string
	GivenName  string
	FamilyName string
	Picture    string
}

// CredentialVerifier は外部IdPが発行した認証情報の検証インターフェース。
// 将来的に複数IdP（Google以外）に対応するための抽象化。
type CredentialVerifier interface {
	// Verify は認証情報文字列の署名・有効期限・audienceを検証し、
	// 検証済みクレームを返す。いかなる検証失敗もエラーとして返す。
	Verify(ctx context.Context, credential string) (*VerifiedClaims, error)
}

// GoogleVerifier はGoogleのIDトークンを検証するCredentialVerifier実装。
// 署名検証に必要なGoogleの公開鍵の取得・キャッシュはidtokenライブラリが行う。
type GoogleVerifier struct {
	audience string
}

// NewGoogleVerifier はGoogleVerifierを生成する。
// audienceにはGoogle CloudコンソールのOAuthクライアントIDを指定する。
func NewGoogleVerifier(audience string) *GoogleVerifier {
	return &GoogleVerifier{audience: audience}
}

// Verify はGoogleのIDトークンを検証し、検証済みクレームを返す。
// 署名不正・期限切れ・audience不一致・形式不正はすべてエラーとなる。
// 失敗理由の詳細は呼び出し側でログにのみ記録し、APIレスポンスには含めないこと。
func (v *GoogleVerifier) Verify(ctx context.Context, credential string) (*VerifiedClaims, error) {
	payload, err := idtoken.Validate(ctx, credential, v.audience)
	if err != nil {
		return nil, fmt.Errorf("failed to validate google id token: %w", err)
	}

	claims := &VerifiedClaims{
		Sub:        payload.Subject,
		Email:      stringClaim(payload.Claims, "email"),
		GivenName:  stringClaim(payload.Claims, "given_name"),
		FamilyName: stringClaim(payload.Claims, "family_name"),
		Picture:    stringClaim(payload.Claims, "picture"),
	}

	return claims, nil
}

// stringClaim はクレームマップから文字列値を取り出す。存在しない・文字列でない場合は空文字を返す。
func stringClaim(claims map[string]interface{}, key string) string {
	v, ok := claims[key].(string)
	if !ok {
		return ""
	}
	return v
}

// compile-time interface check
var _ CredentialVerifier = (*GoogleVerifier)(nil)
