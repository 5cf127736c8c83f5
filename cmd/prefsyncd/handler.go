package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/AmaPlayer/prefsync"
)

// PreferenceService is the part of the coordinator the HTTP layer uses.
type PreferenceService interface {
	Load(ctx context.Context, userID string) *prefsync.PreferenceRecord
	Apply(userID string, rec prefsync.PreferenceRecord) bool
	SetLanguage(userID, languageCode string) (prefsync.PreferenceRecord, bool)
	SetThemeMode(userID, themeMode string) (prefsync.PreferenceRecord, bool)
	Delete(ctx context.Context, userID string) error
}

// SyncIntrospector exposes the sync manager's debug snapshots.
type SyncIntrospector interface {
	GetPendingSyncs() map[string]prefsync.PreferenceRecord
	GetOfflineQueue() map[string]prefsync.PreferenceRecord
	GetSyncMetrics() prefsync.SyncMetrics
	ResetMetrics()
}

// PreferencesHandler holds dependencies for the preference endpoints.
type PreferencesHandler struct {
	service PreferenceService
	sync    SyncIntrospector
	online  func() bool
	logger  *slog.Logger
}

// NewPreferencesHandler creates a handler over the coordinator, the sync
// manager's introspection surface, and a connectivity probe.
func NewPreferencesHandler(service PreferenceService, sync SyncIntrospector, online func() bool, logger *slog.Logger) *PreferencesHandler {
	return &PreferencesHandler{service: service, sync: sync, online: online, logger: logger}
}

// authorize checks that the JWT subject matches the requested userId.
func (h *PreferencesHandler) authorize(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.PathValue("userId")
	if userID == "" {
		writeError(w, r, http.StatusBadRequest, "missing userId")
		return "", false
	}

	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing claims")
		return "", false
	}

	if claims.Subject != userID && claims.Subject != wildcardSubject {
		writeError(w, r, http.StatusForbidden, "access denied")
		return "", false
	}

	return userID, true
}

// GetPreferences returns the user's record, local-first with remote
// fallback.
func (h *PreferencesHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	rec := h.service.Load(r.Context(), userID)
	if rec == nil {
		writeError(w, r, http.StatusNotFound, "preferences not found")
		return
	}

	writeJSON(w, http.StatusOK, PreferencesResponse{UserID: userID, Preferences: *rec})
}

// PutPreferences replaces the user's record.
func (h *PreferencesHandler) PutPreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	var req UpdatePreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}

	rec := prefsync.PreferenceRecord{
		LanguageCode: req.LanguageCode,
		ThemeMode:    req.ThemeMode,
		LastUpdated:  time.Now().UnixMilli(),
	}
	if err := rec.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if !prefsync.IsSupportedLanguage(rec.LanguageCode) {
		writeError(w, r, http.StatusBadRequest, "unsupported languageCode")
		return
	}

	if !h.service.Apply(userID, rec) {
		h.logger.Error("local preference write failed", "userId", userID)
		writeError(w, r, http.StatusInternalServerError, "failed to save preferences")
		return
	}

	writeJSON(w, http.StatusOK, PreferencesResponse{UserID: userID, Preferences: rec})
}

// SetLanguage updates only the language field.
func (h *PreferencesHandler) SetLanguage(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	var req SetLanguageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !prefsync.IsSupportedLanguage(req.LanguageCode) {
		writeError(w, r, http.StatusBadRequest, "unsupported languageCode")
		return
	}

	rec, saved := h.service.SetLanguage(userID, req.LanguageCode)
	if !saved {
		h.logger.Error("local preference write failed", "userId", userID)
		writeError(w, r, http.StatusInternalServerError, "failed to save preferences")
		return
	}

	writeJSON(w, http.StatusOK, PreferencesResponse{UserID: userID, Preferences: rec})
}

// SetTheme updates only the theme field.
func (h *PreferencesHandler) SetTheme(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	var req SetThemeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ThemeMode != prefsync.ThemeDark && req.ThemeMode != prefsync.ThemeLight {
		writeError(w, r, http.StatusBadRequest, "themeMode must be dark or light")
		return
	}

	rec, saved := h.service.SetThemeMode(userID, req.ThemeMode)
	if !saved {
		h.logger.Error("local preference write failed", "userId", userID)
		writeError(w, r, http.StatusInternalServerError, "failed to save preferences")
		return
	}

	writeJSON(w, http.StatusOK, PreferencesResponse{UserID: userID, Preferences: rec})
}

// DeletePreferences removes the user's record locally and remotely.
func (h *PreferencesHandler) DeletePreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorize(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID); err != nil {
		h.logger.Error("preference delete failed", "error", err, "userId", userID)
		writeError(w, r, http.StatusInternalServerError, "failed to delete preferences")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SyncStatus returns connectivity plus the sync manager's snapshots.
// Requires a valid token, any subject.
func (h *PreferencesHandler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	if _, ok := ClaimsFromContext(r.Context()); !ok {
		writeError(w, r, http.StatusUnauthorized, "missing claims")
		return
	}

	m := h.sync.GetSyncMetrics()
	writeJSON(w, http.StatusOK, SyncStatusResponse{
		Online:       h.online(),
		PendingSyncs: h.sync.GetPendingSyncs(),
		OfflineQueue: h.sync.GetOfflineQueue(),
		Metrics: SyncMetricsPayload{
			TotalSyncs:        m.TotalSyncs,
			SuccessfulSyncs:   m.SuccessfulSyncs,
			FailedSyncs:       m.FailedSyncs,
			AverageDurationMs: float64(m.AverageDuration) / float64(time.Millisecond),
			Samples:           m.Samples,
		},
	})
}

// ResetSyncMetrics zeroes the sync counters.
func (h *PreferencesHandler) ResetSyncMetrics(w http.ResponseWriter, r *http.Request) {
	if _, ok := ClaimsFromContext(r.Context()); !ok {
		writeError(w, r, http.StatusUnauthorized, "missing claims")
		return
	}

	h.sync.ResetMetrics()
	w.WriteHeader(http.StatusNoContent)
}
