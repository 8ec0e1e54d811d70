package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"iqdb/internal/errlog"
)

type logsRecentResponse struct {
	Lines      []string `json:"lines"`
	RotationMB int      `json:"rotation_mb"`
	Archives   []string `json:"archives"`
}

// HandleLogsRecent implements GET /logs/errors: the tail of the rotating
// error log plus its archive listing, for operators triaging failures
// without shell access to the data directory.
func (app *App) HandleLogsRecent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}

	n := 50
	if v := r.URL.Query().Get("lines"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 1 {
			n = parsed
		}
		if n > 500 {
			n = 500
		}
	}

	lines, err := errlog.RecentLines(n)
	if err != nil {
		logAndFail(w, "logs: read recent lines", err)
		return
	}
	archives, err := errlog.ListArchives()
	if err != nil {
		logAndFail(w, "logs: list archives", err)
		return
	}
	if lines == nil {
		lines = []string{}
	}
	if archives == nil {
		archives = []string{}
	}
	WriteJSON(w, http.StatusOK, logsRecentResponse{
		Lines:      lines,
		RotationMB: errlog.RotationSizeMB(),
		Archives:   archives,
	})
}

// HandleLogsRotation gets or sets the error log rotation threshold.
// GET /logs/rotation -> { "rotation_mb": 100 }
// PUT /logs/rotation { "rotation_mb": 200 }
func (app *App) HandleLogsRotation(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		WriteJSON(w, http.StatusOK, map[string]int{"rotation_mb": errlog.RotationSizeMB()})
	case http.MethodPut:
		var req struct {
			RotationMB int `json:"rotation_mb"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid_request_body")
			return
		}
		if req.RotationMB < 1 || req.RotationMB > 10240 {
			WriteError(w, http.StatusBadRequest, "rotation_mb_out_of_range")
			return
		}
		errlog.SetRotationSizeMB(req.RotationMB)
		WriteJSON(w, http.StatusOK, map[string]int{"rotation_mb": req.RotationMB})
	default:
		WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed")
	}
}
