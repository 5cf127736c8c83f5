package main

import (
	"github.com/AmaPlayer/prefsync"
)

// PreferencesResponse is returned for preference lookups and writes.
type PreferencesResponse struct {
	UserID      string                    `json:"userId"`
	Preferences prefsync.PreferenceRecord `json:"preferences"`
}

// UpdatePreferencesRequest is the PUT body. LastUpdated is stamped
// server-side.
type UpdatePreferencesRequest struct {
	LanguageCode string `json:"languageCode"`
	ThemeMode    string `json:"themeMode"`
}

// SetLanguageRequest is the PATCH body for the language field.
type SetLanguageRequest struct {
	LanguageCode string `json:"languageCode"`
}

// SetThemeRequest is the PATCH body for the theme field.
type SetThemeRequest struct {
	ThemeMode string `json:"themeMode"`
}

// SyncStatusResponse is the introspection snapshot for operators and
// tests.
type SyncStatusResponse struct {
	Online       bool                                 `json:"online"`
	PendingSyncs map[string]prefsync.PreferenceRecord `json:"pendingSyncs"`
	OfflineQueue map[string]prefsync.PreferenceRecord `json:"offlineQueue"`
	Metrics      SyncMetricsPayload                   `json:"metrics"`
}

// SyncMetricsPayload renders the duration average in milliseconds.
type SyncMetricsPayload struct {
	TotalSyncs        int64   `json:"totalSyncs"`
	SuccessfulSyncs   int64   `json:"successfulSyncs"`
	FailedSyncs       int64   `json:"failedSyncs"`
	AverageDurationMs float64 `json:"averageDurationMs"`
	Samples           int     `json:"samples"`
}
