// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/labelman/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindBySub はGoogleのsubject IDでユーザーを検索する。見つからない場合はnilを返す。
	FindBySub(ctx context.Context, sub string) (*model.User, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// Create はユーザーを作成する。
	// subカラムの一意制約違反はIsUniqueViolationで判定可能なエラーとして返す。
	// 同時作成の敗者は再読込でリカバリする。
	Create(ctx context.Context, user *model.User) error

	// UpdateProfile はユーザーのプロフィール項目（email, given_name, family_name, picture）と
	// updated_atを更新する。subとcreated_atは変更しない。
	UpdateProfile(ctx context.Context, user *model.User) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するlabel_submissionsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// ImageRepository は画像データの永続化インターフェース。
type ImageRepository interface {
	// FindByID は指定IDの画像を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Image, error)

	// FindNextUnlabeled は指定ユーザーがまだラベル付けしていない画像のうち、
	// 挿入順で最初の1枚を返す。全画像にラベル付け済みの場合はnilを返す。
	FindNextUnlabeled(ctx context.Context, userID string) (*model.Image, error)

	// HasAny は画像が1件以上存在するかを返す。
	HasAny(ctx context.Context) (bool, error)

	// BulkCreateIfEmpty はimagesテーブルが空の場合に限り、全件を同一トランザクションで
	// 一括挿入する。テーブルロックで空チェックと挿入をアトミックに行うため、
	// 複数プロセスが同時にシーディングしても二重挿入されない。
	// 戻り値は挿入件数（テーブルが空でなかった場合は0）。
	BulkCreateIfEmpty(ctx context.Context, images []*model.Image) (int, error)
}

// SubmissionRepository はラベル送信データの永続化インターフェース。
type SubmissionRepository interface {
	// FindByImageAndUser は画像IDとユーザーIDでラベル送信を検索する。見つからない場合はnilを返す。
	FindByImageAndUser(ctx context.Context, imageID, userID string) (*model.LabelSubmission, error)

	// Create はラベル送信を作成する。
	// (image_id, user_id) の一意制約違反はIsUniqueViolationで判定可能なエラーとして返す。
	// 同時送信の敗者は再読込+更新でリカバリする。
	Create(ctx context.Context, submission *model.LabelSubmission) error

	// UpdateLabel は既存のラベル送信のラベル値とupdated_atを更新する。
	UpdateLabel(ctx context.Context, id, label string) error
}
