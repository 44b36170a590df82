package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/labelman/internal/model"
)

// PostgresSubmissionRepo はPostgreSQLを使用したラベル送信リポジトリ。
type PostgresSubmissionRepo struct {
	db *sql.DB
}

// NewPostgresSubmissionRepo はPostgresSubmissionRepoを生成する。
func NewPostgresSubmissionRepo(db *sql.DB) *PostgresSubmissionRepo {
	return &PostgresSubmissionRepo{db: db}
}

// FindByImageAndUser は画像IDとユーザーIDでラベル送信を検索する。見つからない場合はnilを返す。
func (r *PostgresSubmissionRepo) FindByImageAndUser(ctx context.Context, imageID, userID string) (*model.LabelSubmission, error) {
	submission := &model.LabelSubmission{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, image_id, user_id, label, created_at, updated_at
		 FROM label_submissions
		 WHERE image_id = $1 AND user_id = $2`,
		imageID, userID,
	).Scan(&submission.ID, &submission.ImageID, &submission.UserID, &submission.Label, &submission.CreatedAt, &submission.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find submission: %w", err)
	}

	return submission, nil
}

// Create はラベル送信を作成する。
// (image_id, user_id)の一意制約違反は%wでラップして返すため、
// 呼び出し側はIsUniqueViolation（errors.As）で判定できる。
func (r *PostgresSubmissionRepo) Create(ctx context.Context, submission *model.LabelSubmission) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO label_submissions (id, image_id, user_id, label, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		submission.ID, submission.ImageID, submission.UserID, submission.Label, submission.CreatedAt, submission.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert submission: %w", err)
	}
	return nil
}

// UpdateLabel は既存のラベル送信のラベル値とupdated_atを更新する。
func (r *PostgresSubmissionRepo) UpdateLabel(ctx context.Context, id, label string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE label_submissions SET label = $2, updated_at = $3 WHERE id = $1`,
		id, label, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update submission label: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("submission not found: %s", id)
	}
	return nil
}

// compile-time interface check
var _ SubmissionRepository = (*PostgresSubmissionRepo)(nil)
