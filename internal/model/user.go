// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// SubはGoogleが発行する恒久ID（subject）で、グローバルに一意かつ不変。
// プロフィール項目はIDトークンに含まれない場合があるため空文字を許容する。
type User struct {
	ID         string
	Sub        string
	Email      string
	GivenName  string
	FamilyName string
	Picture    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
