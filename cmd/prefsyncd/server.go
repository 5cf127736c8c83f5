package main

import (
	"log/slog"
	"net/http"
)

// NewRouter registers all routes and wraps them with the middleware chain.
func NewRouter(h *PreferencesHandler, cfg Config, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health check (no auth required — JWT middleware skips /healthz)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Preferences
	mux.HandleFunc("GET /api/v1/users/{userId}/preferences", h.GetPreferences)
	mux.HandleFunc("PUT /api/v1/users/{userId}/preferences", h.PutPreferences)
	mux.HandleFunc("PATCH /api/v1/users/{userId}/preferences/language", h.SetLanguage)
	mux.HandleFunc("PATCH /api/v1/users/{userId}/preferences/theme", h.SetTheme)
	mux.HandleFunc("DELETE /api/v1/users/{userId}/preferences", h.DeletePreferences)

	// Sync introspection
	mux.HandleFunc("GET /api/v1/sync/status", h.SyncStatus)
	mux.HandleFunc("POST /api/v1/sync/metrics/reset", h.ResetSyncMetrics)

	// Middleware chain: Recovery → CORS → RequestID → RequestLogging → JWTAuth → mux
	var handler http.Handler = mux
	handler = JWTAuth(cfg.JWTSecret, cfg.JWTIssuer, cfg.DevBypassAuth)(handler)
	handler = RequestLogging(logger)(handler)
	handler = RequestID(handler)
	handler = CORS(cfg.CORSAllowOrigin)(handler)
	handler = Recovery(logger)(handler)

	return handler
}
