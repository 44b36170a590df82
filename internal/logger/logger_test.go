package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

// SetupがJSON形式でログを出力することを検証
func TestSetup_OutputsJSON(t *testing.T) {
	var buf bytes.Buffer
	log := Setup(&buf)

	log.Info("test message", "key", "value")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("log output is not valid JSON: %v", err)
	}
	if record["msg"] != "test message" {
		t.Errorf("msg = %v, want %q", record["msg"], "test message")
	}
	if record["key"] != "value" {
		t.Errorf("key = %v, want %q", record["key"], "value")
	}
}

// 全レコードにservice属性が付与されることを検証
func TestSetup_AddsServiceAttribute(t *testing.T) {
	var buf bytes.Buffer
	log := Setup(&buf)

	log.Info("hello")

	if !strings.Contains(buf.String(), `"service":"labelman"`) {
		t.Errorf("log output missing service attribute: %s", buf.String())
	}
}

// DebugレベルはInfoレベル設定では出力されないことを検証
func TestSetup_DebugLevelSuppressed(t *testing.T) {
	var buf bytes.Buffer
	log := Setup(&buf)

	log.Debug("should not appear")

	if buf.Len() != 0 {
		t.Errorf("expected no output for debug level, got: %s", buf.String())
	}
}
