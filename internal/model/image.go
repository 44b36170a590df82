// Package model はドメインモデルを定義する。
package model

import "time"

// Image はラベリング対象の画像を表す。
// IDはマニフェスト由来の外部キー文字列（例: "IMG_1.jpeg"）をそのまま使用する。
// SuggestedLabelとConfidenceはマニフェストに含まれない場合があるためポインタで表現する。
type Image struct {
	ID             string
	URL            string
	SuggestedLabel *string
	Confidence     *float64
	CreatedAt      time.Time
}

// LabelSubmission はユーザーによる画像1枚へのラベル付けを表す。
// (ImageID, UserID) の組み合わせで一意。同一ペアへの再送信は上書き更新となる。
type LabelSubmission struct {
	ID        string
	ImageID   string
	UserID    string
	Label     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
