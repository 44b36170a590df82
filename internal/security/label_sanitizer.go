package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// LabelSanitizerService はラベル文字列のサニタイズ機能のインターフェースを定義する。
// マニフェスト由来のsuggested_labelとAPI経由で送信されるラベルの両方に適用される。
type LabelSanitizerService interface {
	// Sanitize はラベル文字列からHTMLタグを全て除去し、前後の空白を取り除いて返す。
	// ラベルはプレーンテキストとしてのみ扱うため、許可タグは存在しない。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// labelSanitizer はLabelSanitizerServiceの実装。
// bluemondayのStrictPolicyを保持し、スレッドセーフにサニタイズ処理を行う。
type labelSanitizer struct {
	policy *bluemonday.Policy
}

// NewLabelSanitizer はLabelSanitizerServiceの新しいインスタンスを生成する。
// StrictPolicyは全てのタグと属性を除去し、テキストのみを残す。
func NewLabelSanitizer() *labelSanitizer {
	return &labelSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はラベル文字列からHTMLタグを除去して返す。
// StrictPolicyは残ったテキストをHTMLエンティティにエスケープするため、
// プレーンテキストとして保存できるようアンエスケープしてから返す。
// タグは既に除去済みなので、アンエスケープで実行可能なマークアップが復活することはない。
func (s *labelSanitizer) Sanitize(raw string) string {
	stripped := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(stripped))
}

// compile-time interface check
var _ LabelSanitizerService = (*labelSanitizer)(nil)
