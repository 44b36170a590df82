// Package seed は外部マニフェストからの初期画像データ投入を提供する。
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/labelman/internal/model"
	"github.com/hitoshi/labelman/internal/repository"
)

// maxManifestSize はマニフェストレスポンスの最大サイズ。
const maxManifestSize = 10 << 20 // 10MB

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// LabelSanitizer は提案ラベルのサニタイズインターフェース。
type LabelSanitizer interface {
	Sanitize(raw string) string
}

// MetricsRecorder はシード処理メトリクスの記録インターフェース。
type MetricsRecorder interface {
	RecordImagesSeeded(count int)
	RecordSeedFailure()
}

// manifestEntry はマニフェストJSONの1エントリ。
type manifestEntry struct {
	ID             string   `json:"id"`
	URL            string   `json:"url"`
	SuggestedLabel *string  `json:"suggested_label"`
	Confidence     *float64 `json:"confidence"`
}

// Seeder は外部マニフェストを取得し、画像テーブルが空の場合のみ一括投入する。
// シード処理は起動時のベストエフォートであり、失敗してもサーバーの起動を妨げない。
type Seeder struct {
	imageRepo repository.ImageRepository
	ssrfGuard SSRFValidator
	sanitizer LabelSanitizer
	metrics   MetricsRecorder
	logger    *slog.Logger
	timeout   time.Duration
}

// NewSeeder はSeederの新しいインスタンスを生成する。metricsはnilを許容する。
func NewSeeder(
	imageRepo repository.ImageRepository,
	ssrfGuard SSRFValidator,
	sanitizer LabelSanitizer,
	metrics MetricsRecorder,
	logger *slog.Logger,
	timeout time.Duration,
) *Seeder {
	return &Seeder{
		imageRepo: imageRepo,
		ssrfGuard: ssrfGuard,
		sanitizer: sanitizer,
		metrics:   metrics,
		logger:    logger,
		timeout:   timeout,
	}
}

// Run はマニフェストURLから画像を投入する。
// 失敗はすべてログに記録して呼び出し側には返さない。
// シードの失敗でサーバーの起動を止めないため、エラーは戻り値に含めない設計とする。
// 失敗を検知する必要がある呼び出し側（seedサブコマンド等）はRunStrictを使用する。
func (s *Seeder) Run(ctx context.Context, manifestURL string) {
	if manifestURL == "" {
		s.logger.Info("マニフェストURLが未設定のためシード処理をスキップします")
		return
	}

	count, err := s.RunStrict(ctx, manifestURL)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordSeedFailure()
		}
		s.logger.Warn("シード処理に失敗しました",
			slog.String("manifest_url", manifestURL),
			slog.String("error", err.Error()),
		)
		return
	}

	if count > 0 {
		if s.metrics != nil {
			s.metrics.RecordImagesSeeded(count)
		}
		s.logger.Info("画像のシード投入が完了しました",
			slog.Int("count", count),
		)
	} else {
		s.logger.Info("画像テーブルは投入済みのためシード処理をスキップします")
	}
}

// RunStrict はマニフェストURLから画像を投入し、失敗をエラーとして返す。
// 戻り値は投入件数（画像テーブルが空でなかった場合は0）。
// Runと異なり失敗を握りつぶさないため、投入結果を終了コードに反映できる。
func (s *Seeder) RunStrict(ctx context.Context, manifestURL string) (int, error) {
	if manifestURL == "" {
		return 0, fmt.Errorf("マニフェストURLが未設定です")
	}
	return s.seed(ctx, manifestURL)
}

// seed はマニフェストの取得、パース、一括投入を実行する。
func (s *Seeder) seed(ctx context.Context, manifestURL string) (int, error) {
	// 1. 画像テーブルが空でなければマニフェスト取得自体を省略する
	hasAny, err := s.imageRepo.HasAny(ctx)
	if err != nil {
		return 0, fmt.Errorf("画像テーブルの確認に失敗: %w", err)
	}
	if hasAny {
		return 0, nil
	}

	// 2. マニフェスト取得
	entries, err := s.fetchManifest(ctx, manifestURL)
	if err != nil {
		return 0, err
	}

	// 3. エントリの検証とモデル変換
	images := s.buildImages(entries)
	if len(images) == 0 {
		return 0, fmt.Errorf("マニフェストに有効なエントリがありません")
	}

	// 4. 一括投入。空チェックと挿入はリポジトリ側のトランザクションで
	//    アトミックに行われるため、同時起動した複数プロセスでも重複しない。
	inserted, err := s.imageRepo.BulkCreateIfEmpty(ctx, images)
	if err != nil {
		return 0, fmt.Errorf("画像の一括投入に失敗: %w", err)
	}
	return inserted, nil
}

// fetchManifest はSSRF防止付きクライアントでマニフェストを取得しパースする。
func (s *Seeder) fetchManifest(ctx context.Context, manifestURL string) ([]manifestEntry, error) {
	// SSRF検証
	if err := s.ssrfGuard.ValidateURL(manifestURL); err != nil {
		return nil, fmt.Errorf("SSRF検証に失敗: %w", err)
	}

	client := s.ssrfGuard.NewSafeClient(s.timeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", "Labelman/1.0 Image Seeder")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("マニフェストの取得に失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("マニフェストの取得に失敗: status=%d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestSize))
	if err != nil {
		return nil, fmt.Errorf("レスポンスの読み取りに失敗: %w", err)
	}

	var entries []manifestEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("マニフェストのパースに失敗: %w", err)
	}
	return entries, nil
}

// buildImages はマニフェストエントリを検証して画像モデルに変換する。
// idまたはurlが欠落したエントリは警告ログを出してスキップする。
func (s *Seeder) buildImages(entries []manifestEntry) []*model.Image {
	now := time.Now()
	images := make([]*model.Image, 0, len(entries))
	seen := make(map[string]bool, len(entries))

	for i, entry := range entries {
		if entry.ID == "" || entry.URL == "" {
			s.logger.Warn("不完全なマニフェストエントリをスキップします",
				slog.Int("index", i),
				slog.String("id", entry.ID),
			)
			continue
		}
		if seen[entry.ID] {
			s.logger.Warn("重複するマニフェストエントリをスキップします",
				slog.String("id", entry.ID),
			)
			continue
		}
		seen[entry.ID] = true

		image := &model.Image{
			ID:         entry.ID,
			URL:        entry.URL,
			Confidence: entry.Confidence,
			CreatedAt:  now,
		}
		if entry.SuggestedLabel != nil {
			cleaned := s.sanitizer.Sanitize(*entry.SuggestedLabel)
			if cleaned != "" {
				image.SuggestedLabel = &cleaned
			}
		}
		images = append(images, image)
	}
	return images
}
