package httpapi

import (
	"net/http"

	"iqdb/internal/bucket"
)

type statusResponse struct {
	Images int    `json:"images"`
	SIMD   string `json:"simd"`
}

// HandleStatus implements GET /status: the live image count plus a
// diagnostic SIMD capability string.
func (app *App) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}
	WriteJSON(w, http.StatusOK, statusResponse{
		Images: app.Engine.ImageCount(),
		SIMD:   bucket.SIMDCapability(),
	})
}
