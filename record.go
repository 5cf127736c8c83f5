// Package prefsync reconciles a small per-user preference record held in
// fast local storage with an authoritative remote document, under
// unreliable connectivity and bursty write patterns. Local writes are
// synchronous; remote writes are debounced, retried with backoff, and
// queued while offline.
package prefsync

import (
	"fmt"
	"time"
)

// Theme modes accepted in a PreferenceRecord.
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// SupportedLanguages is the fixed set of language codes the platform ships
// translations for. Callers validate against it before writing; the engine
// itself only checks record structure.
var SupportedLanguages = []string{
	"en", "hi", "ta", "te", "kn", "ml", "mr", "bn", "gu", "pa", "es", "fr",
}

// IsSupportedLanguage reports whether code belongs to SupportedLanguages.
func IsSupportedLanguage(code string) bool {
	for _, l := range SupportedLanguages {
		if l == code {
			return true
		}
	}
	return false
}

// PreferenceRecord is the fixed-shape unit of state synchronized by this
// engine. LastUpdated is epoch milliseconds stamped by the writer.
type PreferenceRecord struct {
	LanguageCode string `json:"languageCode"`
	ThemeMode    string `json:"themeMode"`
	LastUpdated  int64  `json:"lastUpdated"`
}

// NewPreferenceRecord builds a record stamped with the current time.
func NewPreferenceRecord(languageCode, themeMode string) PreferenceRecord {
	return PreferenceRecord{
		LanguageCode: languageCode,
		ThemeMode:    themeMode,
		LastUpdated:  time.Now().UnixMilli(),
	}
}

// DefaultPreferences returns the record used before a user has chosen
// anything.
func DefaultPreferences() PreferenceRecord {
	return NewPreferenceRecord("en", ThemeDark)
}

// Validate checks record structure. Stores treat an invalid record the same
// as an absent one, so partially valid data never reaches callers.
func (r PreferenceRecord) Validate() error {
	if r.LanguageCode == "" {
		return fmt.Errorf("missing languageCode")
	}
	if r.ThemeMode != ThemeDark && r.ThemeMode != ThemeLight {
		return fmt.Errorf("invalid themeMode %q", r.ThemeMode)
	}
	if r.LastUpdated <= 0 {
		return fmt.Errorf("invalid lastUpdated %d", r.LastUpdated)
	}
	return nil
}
