// Package label は画像の割り当てとラベル送信のドメインロジックを提供する。
package label

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/labelman/internal/model"
	"github.com/hitoshi/labelman/internal/repository"
)

// LabelSanitizer はラベル文字列のサニタイズインターフェース。
// security.LabelSanitizerServiceの部分集合として定義する。
type LabelSanitizer interface {
	Sanitize(raw string) string
}

// MetricsRecorder はラベル送信メトリクスの記録インターフェース。
type MetricsRecorder interface {
	RecordLabelInserted()
	RecordLabelUpdated()
}

// Service はラベリングワークフローのサービス層。
// 次画像の選択とラベル送信のUPSERTを提供する。
type Service struct {
	userRepo  repository.UserRepository
	imageRepo repository.ImageRepository
	subRepo   repository.SubmissionRepository
	sanitizer LabelSanitizer
	metrics   MetricsRecorder
}

// NewService はServiceを生成する。metricsはnilを許容する。
func NewService(
	userRepo repository.UserRepository,
	imageRepo repository.ImageRepository,
	subRepo repository.SubmissionRepository,
	sanitizer LabelSanitizer,
	metrics MetricsRecorder,
) *Service {
	return &Service{
		userRepo:  userRepo,
		imageRepo: imageRepo,
		subRepo:   subRepo,
		sanitizer: sanitizer,
		metrics:   metrics,
	}
}

// NextImage は指定subjectのユーザーがまだラベル付けしていない画像のうち、
// 挿入順で最初の1枚を返す。全画像にラベル付け済みの場合は(nil, nil)を返す。
// 「画像が尽きた」はエラーではなく正常な終端状態として扱う。
func (s *Service) NextImage(ctx context.Context, sub string) (*model.Image, error) {
	user, err := s.resolveUser(ctx, sub)
	if err != nil {
		return nil, err
	}

	image, err := s.imageRepo.FindNextUnlabeled(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("次画像の取得に失敗しました: %w", err)
	}
	return image, nil
}

// SubmitLabel は(画像, ユーザー)ペアへのラベル送信をUPSERTする。
// 既存の送信があればラベル値を上書き更新し、なければ新規作成する。
//
// 同一ペアへの同時送信では両リクエストが「未送信」判定を通過しうるが、
// INSERTは(image_id, user_id)の一意制約で保護されており、競合に負けた側は
// 制約違反を検知して勝者の行を再読込し、自身のラベルを上書き適用する
// （last-writer-wins）。
func (s *Service) SubmitLabel(ctx context.Context, sub, imageID, labelValue string) (*model.LabelSubmission, error) {
	user, err := s.resolveUser(ctx, sub)
	if err != nil {
		return nil, err
	}

	image, err := s.imageRepo.FindByID(ctx, imageID)
	if err != nil {
		return nil, fmt.Errorf("画像の取得に失敗しました: %w", err)
	}
	if image == nil {
		return nil, model.NewImageNotFoundError(imageID)
	}

	cleaned := s.sanitizer.Sanitize(labelValue)
	if cleaned == "" {
		return nil, model.NewInvalidRequestError("サニタイズ後のラベルが空です")
	}

	existing, err := s.subRepo.FindByImageAndUser(ctx, image.ID, user.ID)
	if err != nil {
		return nil, fmt.Errorf("ラベル送信の検索に失敗しました: %w", err)
	}

	if existing != nil {
		return s.updateSubmission(ctx, existing, cleaned)
	}
	return s.createSubmission(ctx, image.ID, user.ID, cleaned)
}

// resolveUser はsubject IDからユーザーを解決する。
func (s *Service) resolveUser(ctx context.Context, sub string) (*model.User, error) {
	user, err := s.userRepo.FindBySub(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// createSubmission は新規ラベル送信を作成する。
// 同時送信との競合で一意制約違反が発生した場合は勝者の行を再読込し、
// 自身のラベルを上書き適用する。
func (s *Service) createSubmission(ctx context.Context, imageID, userID, labelValue string) (*model.LabelSubmission, error) {
	now := time.Now()
	submission := &model.LabelSubmission{
		ID:        uuid.New().String(),
		ImageID:   imageID,
		UserID:    userID,
		Label:     labelValue,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.subRepo.Create(ctx, submission)
	if err == nil {
		if s.metrics != nil {
			s.metrics.RecordLabelInserted()
		}
		slog.Info("label submitted",
			slog.String("image_id", imageID),
			slog.String("user_id", userID),
		)
		return submission, nil
	}

	if !repository.IsUniqueViolation(err) {
		return nil, fmt.Errorf("ラベル送信の作成に失敗しました: %w", err)
	}

	// 同時送信の競合に負けた側: 勝者の行を再読込して自身のラベルで上書きする
	slog.Info("concurrent label submission detected, re-fetching",
		slog.String("image_id", imageID),
		slog.String("user_id", userID),
	)
	winner, err := s.subRepo.FindByImageAndUser(ctx, imageID, userID)
	if err != nil {
		return nil, fmt.Errorf("競合ラベル送信の再取得に失敗しました: %w", err)
	}
	if winner == nil {
		return nil, fmt.Errorf("競合ラベル送信が見つかりません: image=%s user=%s", imageID, userID)
	}
	return s.updateSubmission(ctx, winner, labelValue)
}

// updateSubmission は既存のラベル送信にラベル値を上書き適用する。
func (s *Service) updateSubmission(ctx context.Context, existing *model.LabelSubmission, labelValue string) (*model.LabelSubmission, error) {
	if err := s.subRepo.UpdateLabel(ctx, existing.ID, labelValue); err != nil {
		return nil, fmt.Errorf("ラベルの更新に失敗しました: %w", err)
	}
	existing.Label = labelValue
	existing.UpdatedAt = time.Now()

	if s.metrics != nil {
		s.metrics.RecordLabelUpdated()
	}
	slog.Info("label updated",
		slog.String("image_id", existing.ImageID),
		slog.String("user_id", existing.UserID),
	)
	return existing, nil
}
