package handler

import "net/http"

// healthResponse はヘルスチェックのAPIレスポンス。
type healthResponse struct {
	Status string `json:"status"`
}

// Health はヘルスチェックに応答する。
// GET /health および GET /api/health
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
