package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/labelman/internal/model"
)

// PostgresImageRepo はPostgreSQLを使用した画像リポジトリ。
type PostgresImageRepo struct {
	db *sql.DB
}

// NewPostgresImageRepo はPostgresImageRepoを生成する。
func NewPostgresImageRepo(db *sql.DB) *PostgresImageRepo {
	return &PostgresImageRepo{db: db}
}

// FindByID は指定IDの画像を取得する。見つからない場合はnilを返す。
func (r *PostgresImageRepo) FindByID(ctx context.Context, id string) (*model.Image, error) {
	image := &model.Image{}
	var suggested sql.NullString
	var confidence sql.NullFloat64

	err := r.db.QueryRowContext(ctx,
		`SELECT id, url, suggested_label, confidence, created_at FROM images WHERE id = $1`,
		id,
	).Scan(&image.ID, &image.URL, &suggested, &confidence, &image.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find image by ID: %w", err)
	}

	applyNullableColumns(image, suggested, confidence)
	return image, nil
}

// FindNextUnlabeled は指定ユーザーがまだラベル付けしていない画像のうち、
// 挿入順（created_at、同時刻はid辞書順）で最初の1枚を返す。
// 全画像にラベル付け済みの場合はnilを返す。
func (r *PostgresImageRepo) FindNextUnlabeled(ctx context.Context, userID string) (*model.Image, error) {
	image := &model.Image{}
	var suggested sql.NullString
	var confidence sql.NullFloat64

	err := r.db.QueryRowContext(ctx,
		`SELECT i.id, i.url, i.suggested_label, i.confidence, i.created_at
		 FROM images i
		 WHERE NOT EXISTS (
		     SELECT 1 FROM label_submissions s
		     WHERE s.image_id = i.id AND s.user_id = $1
		 )
		 ORDER BY i.created_at, i.id
		 LIMIT 1`,
		userID,
	).Scan(&image.ID, &image.URL, &suggested, &confidence, &image.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find next unlabeled image: %w", err)
	}

	applyNullableColumns(image, suggested, confidence)
	return image, nil
}

// HasAny は画像が1件以上存在するかを返す。
func (r *PostgresImageRepo) HasAny(ctx context.Context) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM images)`,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check images existence: %w", err)
	}
	return exists, nil
}

// BulkCreateIfEmpty はimagesテーブルが空の場合に限り全件を一括挿入する。
// 空チェックと挿入を同一トランザクション内でテーブルロック付きで行うため、
// 複数プロセスの同時シーディングでも二重挿入されない。
func (r *PostgresImageRepo) BulkCreateIfEmpty(ctx context.Context, images []*model.Image) (int, error) {
	if len(images) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 空チェックと挿入の間に他プロセスが割り込まないようテーブルをロックする
	if _, err := tx.ExecContext(ctx, `LOCK TABLE images IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return 0, fmt.Errorf("failed to lock images table: %w", err)
	}

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM images)`).Scan(&exists); err != nil {
		return 0, fmt.Errorf("failed to check images existence: %w", err)
	}
	if exists {
		return 0, nil
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO images (id, url, suggested_label, confidence, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, image := range images {
		var suggested sql.NullString
		if image.SuggestedLabel != nil {
			suggested = sql.NullString{String: *image.SuggestedLabel, Valid: true}
		}
		var confidence sql.NullFloat64
		if image.Confidence != nil {
			confidence = sql.NullFloat64{Float64: *image.Confidence, Valid: true}
		}

		if _, err := stmt.ExecContext(ctx, image.ID, image.URL, suggested, confidence, image.CreatedAt); err != nil {
			return 0, fmt.Errorf("failed to insert image %s: %w", image.ID, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return inserted, nil
}

// applyNullableColumns はNULL許容カラムのスキャン結果をモデルに反映する。
func applyNullableColumns(image *model.Image, suggested sql.NullString, confidence sql.NullFloat64) {
	if suggested.Valid {
		image.SuggestedLabel = &suggested.String
	}
	if confidence.Valid {
		image.Confidence = &confidence.Float64
	}
}

// compile-time interface check
var _ ImageRepository = (*PostgresImageRepo)(nil)
