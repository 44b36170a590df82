// Package auth はGoogle認証情報の検証、セッショントークン管理、
// ログイン時のユーザーUPSERTを提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/labelman/internal/model"
	"github.com/hitoshi/labelman/internal/repository"
)

// TokenIssuer はセッショントークン発行のインターフェース。
// TokenServiceの部分集合として定義する。
type TokenIssuer interface {
	Issue(sub string) (string, error)
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	verifier CredentialVerifier
	issuer   TokenIssuer
	userRepo repository.UserRepository
}

// NewService はServiceを生成する。
func NewService(verifier CredentialVerifier, issuer TokenIssuer, userRepo repository.UserRepository) *Service {
	return &Service{
		verifier: verifier,
		issuer:   issuer,
		userRepo: userRepo,
	}
}

// Login はGoogle認証情報を検証し、ユーザーをUPSERTしてセッショントークンを発行する。
//
// 初回ログインではユーザーを新規作成する。同一subjectの同時初回ログインでは
// 両リクエストが「未登録」判定を通過しうるが、INSERTはsubの一意制約で保護されており、
// 競合に負けた側は制約違反を検知して勝者が作成した行を再読込する。
// 登録済みユーザーはプロフィール項目に変更がある場合のみ更新する。
func (s *Service) Login(ctx context.Context, credential string) (string, *model.User, error) {
	// 1. Google認証情報の検証
	claims, err := s.verifier.Verify(ctx, credential)
	if err != nil {
		// 失敗理由の詳細はログのみに記録し、呼び出し側には漏らさない
		slog.Warn("google credential verification failed",
			slog.String("error", err.Error()),
		)
		return "", nil, model.NewCredentialInvalidError()
	}
	if claims.Sub == "" {
		slog.Warn("verified credential has no subject")
		return "", nil, model.NewCredentialInvalidError()
	}

	// 2. ユーザーのUPSERT
	user, err := s.upsertUser(ctx, claims)
	if err != nil {
		return "", nil, err
	}

	// 3. セッショントークンの発行
	token, err := s.issuer.Issue(user.Sub)
	if err != nil {
		return "", nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	return token, user, nil
}

// CurrentUser はsubject IDから現在のユーザーを取得する。
// 見つからない場合はUSER_NOT_FOUNDエラーを返す。
func (s *Service) CurrentUser(ctx context.Context, sub string) (*model.User, error) {
	user, err := s.userRepo.FindBySub(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// upsertUser はクレームに対応するユーザーを作成または更新して返す。
func (s *Service) upsertUser(ctx context.Context, claims *VerifiedClaims) (*model.User, error) {
	user, err := s.userRepo.FindBySub(ctx, claims.Sub)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}

	if user == nil {
		return s.createUser(ctx, claims)
	}

	// 既存ユーザー: プロフィールに変更がある場合のみ更新する。
	// クレームに含まれない（空の）項目で既存値を消さない。
	if applyProfileClaims(user, claims) {
		user.UpdatedAt = time.Now()
		if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
			return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
		}
		slog.Info("user profile updated", slog.String("user_id", user.ID))
	}

	return user, nil
}

// createUser は新規ユーザーを作成する。
// 同時初回ログインとの競合でsubの一意制約違反が発生した場合は、
// 勝者が作成した行を再読込して返す。
func (s *Service) createUser(ctx context.Context, claims *VerifiedClaims) (*model.User, error) {
	now := time.Now()
	newUser := &model.User{
		ID:         uuid.New().String(),
		Sub:        claims.Sub,
		Email:      claims.Email,
		GivenName:  claims.GivenName,
		FamilyName: claims.FamilyName,
		Picture:    claims.Picture,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := s.userRepo.Create(ctx, newUser)
	if err == nil {
		slog.Info("new user created",
			slog.String("user_id", newUser.ID),
			slog.String("sub", newUser.Sub),
		)
		return newUser, nil
	}

	if !repository.IsUniqueViolation(err) {
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	// 同時初回ログインの競合に負けた側: 勝者の行を再読込する
	slog.Info("concurrent user creation detected, re-fetching",
		slog.String("sub", claims.Sub),
	)
	winner, err := s.userRepo.FindBySub(ctx, claims.Sub)
	if err != nil {
		return nil, fmt.Errorf("競合ユーザーの再取得に失敗しました: %w", err)
	}
	if winner == nil {
		return nil, fmt.Errorf("競合ユーザーが見つかりません: sub=%s", claims.Sub)
	}
	return winner, nil
}

// applyProfileClaims はクレームの非空項目をユーザーに反映し、変更があったかを返す。
func applyProfileClaims(user *model.User, claims *VerifiedClaims) bool {
	changed := false
	if claims.Email != "" && claims.Email != user.Email {
		user.Email = claims.Email
		changed = true
	}
	if claims.GivenName != "" && claims.GivenName != user.GivenName {
		user.GivenName = claims.GivenName
		changed = true
	}
	if claims.FamilyName != "" && claims.FamilyName != user.FamilyName {
		user.FamilyName = claims.FamilyName
		changed = true
	}
	if claims.Picture != "" && claims.Picture != user.Picture {
		user.Picture = claims.Picture
		changed = true
	}
	return changed
}
