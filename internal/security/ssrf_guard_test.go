package security

import (
	"testing"
	"time"
)

// ValidateURLが公開HTTPS URLを許可することを検証
func TestValidateURL_AllowsPublicHTTPS(t *testing.T) {
	guard := NewSSRFGuard()

	if err := guard.ValidateURL("https://storage.example.com/manifest.json"); err != nil {
		t.Errorf("expected public https URL to be allowed, got %v", err)
	}
}

// ValidateURLが不正スキームを拒否することを検証
func TestValidateURL_RejectsDisallowedSchemes(t *testing.T) {
	guard := NewSSRFGuard()

	cases := []string{
		"file:///etc/passwd",
		"ftp://example.com/manifest.json",
		"javascript:alert(1)",
	}
	for _, rawURL := range cases {
		if err := guard.ValidateURL(rawURL); err == nil {
			t.Errorf("expected %q to be rejected", rawURL)
		}
	}
}

// ValidateURLがプライベート・ループバックIPを拒否することを検証
func TestValidateURL_RejectsBlockedIPs(t *testing.T) {
	guard := NewSSRFGuard()

	cases := []string{
		"http://10.0.0.5/manifest.json",
		"http://172.16.1.1/manifest.json",
		"http://192.168.1.1/manifest.json",
		"http://127.0.0.1/manifest.json",
		// クラウドメタデータIP
		"http://169.254.169.254/latest/meta-data/",
	}
	for _, rawURL := range cases {
		if err := guard.ValidateURL(rawURL); err == nil {
			t.Errorf("expected %q to be rejected", rawURL)
		}
	}
}

// ValidateURLがlocalhostホスト名を拒否することを検証
func TestValidateURL_RejectsLocalhost(t *testing.T) {
	guard := NewSSRFGuard()

	if err := guard.ValidateURL("http://localhost:8080/manifest.json"); err == nil {
		t.Error("expected localhost to be rejected")
	}
	if err := guard.ValidateURL("http://LOCALHOST/manifest.json"); err == nil {
		t.Error("expected LOCALHOST to be rejected (case insensitive)")
	}
}

// ValidateURLが空URLと不正フォーマットを拒否することを検証
func TestValidateURL_RejectsEmptyAndMalformed(t *testing.T) {
	guard := NewSSRFGuard()

	if err := guard.ValidateURL(""); err == nil {
		t.Error("expected empty URL to be rejected")
	}
	if err := guard.ValidateURL("https://"); err == nil {
		t.Error("expected URL without host to be rejected")
	}
}

// NewSafeClientがタイムアウト付きクライアントを返すことを検証
func TestNewSafeClient_ReturnsClient(t *testing.T) {
	guard := NewSSRFGuard()

	client := guard.NewSafeClient(15 * time.Second)
	if client == nil {
		t.Fatal("expected non-nil client")
	}
}

// ssrfGuardがインターフェースを満たすことを検証
func TestSSRFGuard_ImplementsInterface(t *testing.T) {
	var _ SSRFGuardService = NewSSRFGuard()
}
