package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/labelman/internal/model"
)

// TokenConfig はセッショントークンの発行・検証設定。
type TokenConfig struct {
	// Secret はHMAC署名に使用する共有シークレット。
	Secret string
	// Algorithm は署名アルゴリズム（HS256, HS384, HS512）。空の場合はHS256。
	Algorithm string
	// Lifetime は発行時刻からの有効期間。
	Lifetime time.Duration
	// Now は現在時刻の取得関数。テスト用にオーバーライド可能。nilの場合はtime.Now。
	Now func() time.Time
}

// TokenService はセッショントークンの発行と検証を提供する。
// トークンは subject と有効期限のみを含む自己完結型のJWT。
type TokenService struct {
	secret   []byte
	method   jwt.SigningMethod
	lifetime time.Duration
	now      func() time.Time
}

// NewTokenService はTokenServiceを生成する。
// サポート外のアルゴリズム指定はエラーを返す。
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("token secret is required")
	}

	method, err := signingMethod(cfg.Algorithm)
	if err != nil {
		return nil, err
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &TokenService{
		secret:   []byte(cfg.Secret),
		method:   method,
		lifetime: cfg.Lifetime,
		now:      now,
	}, nil
}

// Issue は検証済みのsubject IDを埋め込んだ署名付きセッショントークンを発行する。
// 有効期限は発行時刻 + 設定されたLifetime。
func (s *TokenService) Issue(sub string) (string, error) {
	if sub == "" {
		return "", fmt.Errorf("subject is required")
	}

	issuedAt := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.lifetime)),
	}

	token := jwt.NewWithClaims(s.method, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return signed, nil
}

// Validate はセッショントークンの署名と有効期限を検証し、subject IDを返す。
// 失敗は2種類に区別される:
//   - 期限切れ: model.ErrCodeTokenExpired
//   - それ以外の検証失敗（署名不正、形式不正等）: model.ErrCodeTokenInvalid
//
// どちらも認証拒否として扱われるが、ログ上は区別可能。
func (s *TokenService) Validate(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", model.NewTokenExpiredError()
		}
		return "", model.NewTokenInvalidError()
	}

	if claims.Subject == "" {
		return "", model.NewTokenInvalidError()
	}

	return claims.Subject, nil
}

// signingMethod はアルゴリズム名をHMAC署名メソッドに解決する。
func signingMethod(algorithm string) (jwt.SigningMethod, error) {
	switch algorithm {
	case "", "HS256":
		return jwt.SigningMethodHS256, nil
	case "HS384":
		return jwt.SigningMethodHS384, nil
	case "HS512":
		return jwt.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("unsupported signing algorithm: %s", algorithm)
	}
}
