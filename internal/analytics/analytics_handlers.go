package analytics

import (
	"encoding/json"
	"net/http"
	"strings"
)

// AppOpenedHandler records the basic "app opened" metric.
func AppOpenedHandler(rec *Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var body struct {
			ColdStart bool   `json:"cold_start"`
			From      string `json:"from"` // push/deeplink/icon/unknown
			Screen    string `json:"screen"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		from := strings.ToLower(strings.TrimSpace(body.From))
		switch from {
		case "push", "deeplink", "icon":
		default:
			from = "unknown"
		}

		props := map[string]any{
			"cold_start": body.ColdStart,
			"from":       from,
			"screen":     body.Screen,
		}

		_ = rec.Record(r, uid, "app_opened", props)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}
