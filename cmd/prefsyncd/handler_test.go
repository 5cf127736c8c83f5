package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AmaPlayer/prefsync"
)

// mockService implements PreferenceService for testing.
type mockService struct {
	records   map[string]prefsync.PreferenceRecord // userID -> record
	saveFails bool
	deleteErr error
}

func newMockService() *mockService {
	return &mockService{records: make(map[string]prefsync.PreferenceRecord)}
}

func (m *mockService) Load(_ context.Context, userID string) *prefsync.PreferenceRecord {
	rec, ok := m.records[userID]
	if !ok {
		return nil
	}
	return &rec
}

func (m *mockService) Apply(userID string, rec prefsync.PreferenceRecord) bool {
	if m.saveFails {
		return false
	}
	m.records[userID] = rec
	return true
}

func (m *mockService) SetLanguage(userID, languageCode string) (prefsync.PreferenceRecord, bool) {
	rec := m.currentOrDefault(userID)
	rec.LanguageCode = languageCode
	rec.LastUpdated = time.Now().UnixMilli()
	return rec, m.Apply(userID, rec)
}

func (m *mockService) SetThemeMode(userID, themeMode string) (prefsync.PreferenceRecord, bool) {
	rec := m.currentOrDefault(userID)
	rec.ThemeMode = themeMode
	rec.LastUpdated = time.Now().UnixMilli()
	return rec, m.Apply(userID, rec)
}

func (m *mockService) Delete(_ context.Context, userID string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.records, userID)
	return nil
}

func (m *mockService) currentOrDefault(userID string) prefsync.PreferenceRecord {
	if rec, ok := m.records[userID]; ok {
		return rec
	}
	return prefsync.DefaultPreferences()
}

// mockSync implements SyncIntrospector for testing.
type mockSync struct {
	pending  map[string]prefsync.PreferenceRecord
	offline  map[string]prefsync.PreferenceRecord
	metrics  prefsync.SyncMetrics
	didReset bool
}

func newMockSync() *mockSync {
	return &mockSync{
		pending: make(map[string]prefsync.PreferenceRecord),
		offline: make(map[string]prefsync.PreferenceRecord),
	}
}

func (m *mockSync) GetPendingSyncs() map[string]prefsync.PreferenceRecord { return m.pending }
func (m *mockSync) GetOfflineQueue() map[string]prefsync.PreferenceRecord { return m.offline }
func (m *mockSync) GetSyncMetrics() prefsync.SyncMetrics                  { return m.metrics }
func (m *mockSync) ResetMetrics()                                         { m.didReset = true }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func testHandler(service *mockService, sync *mockSync) *PreferencesHandler {
	return NewPreferencesHandler(service, sync, func() bool { return true }, testLogger())
}

// withClaims returns a request with JWT claims set in context.
func withClaims(r *http.Request, sub string) *http.Request {
	ctx := context.WithValue(r.Context(), claimsKey, Claims{Subject: sub})
	return r.WithContext(ctx)
}

func prefsMux(h *PreferencesHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/users/{userId}/preferences", h.GetPreferences)
	mux.HandleFunc("PUT /api/v1/users/{userId}/preferences", h.PutPreferences)
	mux.HandleFunc("PATCH /api/v1/users/{userId}/preferences/language", h.SetLanguage)
	mux.HandleFunc("PATCH /api/v1/users/{userId}/preferences/theme", h.SetTheme)
	mux.HandleFunc("DELETE /api/v1/users/{userId}/preferences", h.DeletePreferences)
	mux.HandleFunc("GET /api/v1/sync/status", h.SyncStatus)
	mux.HandleFunc("POST /api/v1/sync/metrics/reset", h.ResetSyncMetrics)
	return mux
}

func TestGetPreferences_NotFound(t *testing.T) {
	h := testHandler(newMockService(), newMockSync())
	mux := prefsMux(h)

	req := httptest.NewRequest("GET", "/api/v1/users/user1/preferences", nil)
	req = withClaims(req, "user1")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestPutAndGetPreferences(t *testing.T) {
	service := newMockService()
	h := testHandler(service, newMockSync())
	mux := prefsMux(h)

	body := bytes.NewBufferString(`{"languageCode":"hi","themeMode":"light"}`)
	req := httptest.NewRequest("PUT", "/api/v1/users/user1/preferences", body)
	req = withClaims(req, "user1")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("PUT: expected 200, got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/v1/users/user1/preferences", nil)
	req = withClaims(req, "user1")
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("GET: expected 200, got %d", w.Code)
	}

	var resp PreferencesResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.UserID != "user1" {
		t.Fatalf("expected userId user1, got %s", resp.UserID)
	}
	if resp.Preferences.LanguageCode != "hi" || resp.Preferences.ThemeMode != "light" {
		t.Fatalf("unexpected preferences: %+v", resp.Preferences)
	}
	if resp.Preferences.LastUpdated <= 0 {
		t.Fatal("expected server-stamped lastUpdated")
	}
}

func TestPutPreferences_InvalidJSON(t *testing.T) {
	h := testHandler(newMockService(), newMockSync())
	mux := prefsMux(h)

	body := bytes.NewBufferString(`not json`)
	req := httptest.NewRequest("PUT", "/api/v1/users/user1/preferences", body)
	req = withClaims(req, "user1")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestPutPreferences_UnsupportedLanguage(t *testing.T) {
	h := testHandler(newMockService(), newMockSync())
	mux := prefsMux(h)

	body := bytes.NewBufferString(`{"languageCode":"tlh","themeMode":"dark"}`)
	req := httptest.NewRequest("PUT", "/api/v1/users/user1/preferences", body)
	req = withClaims(req, "user1")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestPutPreferences_BadTheme(t *testing.T) {
	h := testHandler(newMockService(), newMockSync())
	mux := prefsMux(h)

	body := bytes.NewBufferString(`{"languageCode":"en","themeMode":"blue"}`)
	req := httptest.NewRequest("PUT", "/api/v1/users/user1/preferences", body)
	req = withClaims(req, "user1")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestPutPreferences_LocalSaveFailure(t *testing.T) {
	service := newMockService()
	service.saveFails = true
	h := testHandler(service, newMockSync())
	mux := prefsMux(h)

	body := bytes.NewBufferString(`{"languageCode":"en","themeMode":"dark"}`)
	req := httptest.NewRequest("PUT", "/api/v1/users/user1/preferences", body)
	req = withClaims(req, "user1")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestSetLanguage(t *testing.T) {
	service := newMockService()
	h := testHandler(service, newMockSync())
	mux := prefsMux(h)

	body := bytes.NewBufferString(`{"languageCode":"ta"}`)
	req := httptest.NewRequest("PATCH", "/api/v1/users/user1/preferences/language", body)
	req = withClaims(req, "user1")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp PreferencesResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Preferences.LanguageCode != "ta" {
		t.Fatalf("expected languageCode=ta, got %s", resp.Preferences.LanguageCode)
	}
}

func TestSetTheme_InvalidValue(t *testing.T) {
	h := testHandler(newMockService(), newMockSync())
	mux := prefsMux(h)

	body := bytes.NewBufferString(`{"themeMode":"sepia"}`)
	req := httptest.NewRequest("PATCH", "/api/v1/users/user1/preferences/theme", body)
	req = withClaims(req, "user1")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestDeletePreferences(t *testing.T) {
	service := newMockService()
	service.records["user1"] = prefsync.PreferenceRecord{LanguageCode: "en", ThemeMode: "dark", LastUpdated: 1}
	h := testHandler(service, newMockSync())
	mux := prefsMux(h)

	req := httptest.NewRequest("DELETE", "/api/v1/users/user1/preferences", nil)
	req = withClaims(req, "user1")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if _, exists := service.records["user1"]; exists {
		t.Fatal("expected record to be deleted")
	}
}

func TestDeletePreferences_RemoteFailure(t *testing.T) {
	service := newMockService()
	service.deleteErr = fmt.Errorf("remote store unavailable")
	h := testHandler(service, newMockSync())
	mux := prefsMux(h)

	req := httptest.NewRequest("DELETE", "/api/v1/users/user1/preferences", nil)
	req = withClaims(req, "user1")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestAuthorize_Forbidden(t *testing.T) {
	h := testHandler(newMockService(), newMockSync())
	mux := prefsMux(h)

	req := httptest.NewRequest("GET", "/api/v1/users/user1/preferences", nil)
	req = withClaims(req, "other-user") // different user
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestAuthorize_WildcardSubject(t *testing.T) {
	service := newMockService()
	service.records["user1"] = prefsync.PreferenceRecord{LanguageCode: "en", ThemeMode: "dark", LastUpdated: 1}
	h := testHandler(service, newMockSync())
	mux := prefsMux(h)

	req := httptest.NewRequest("GET", "/api/v1/users/user1/preferences", nil)
	req = withClaims(req, wildcardSubject)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for wildcard subject, got %d", w.Code)
	}
}

func TestSyncStatus(t *testing.T) {
	sync := newMockSync()
	sync.pending["user1"] = prefsync.PreferenceRecord{LanguageCode: "hi", ThemeMode: "light", LastUpdated: 2}
	sync.metrics = prefsync.SyncMetrics{
		TotalSyncs:      5,
		SuccessfulSyncs: 4,
		FailedSyncs:     1,
		AverageDuration: 120 * time.Millisecond,
		Samples:         4,
	}
	h := testHandler(newMockService(), sync)
	mux := prefsMux(h)

	req := httptest.NewRequest("GET", "/api/v1/sync/status", nil)
	req = withClaims(req, "user1")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp SyncStatusResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if !resp.Online {
		t.Fatal("expected online=true")
	}
	if len(resp.PendingSyncs) != 1 {
		t.Fatalf("expected one pending sync, got %v", resp.PendingSyncs)
	}
	if resp.Metrics.TotalSyncs != 5 || resp.Metrics.AverageDurationMs != 120 {
		t.Fatalf("unexpected metrics payload: %+v", resp.Metrics)
	}
}

func TestSyncStatus_Unauthenticated(t *testing.T) {
	h := testHandler(newMockService(), newMockSync())
	mux := prefsMux(h)

	req := httptest.NewRequest("GET", "/api/v1/sync/status", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestResetSyncMetrics(t *testing.T) {
	sync := newMockSync()
	h := testHandler(newMockService(), sync)
	mux := prefsMux(h)

	req := httptest.NewRequest("POST", "/api/v1/sync/metrics/reset", nil)
	req = withClaims(req, "user1")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if !sync.didReset {
		t.Fatal("expected metrics reset to be forwarded")
	}
}

func TestErrorResponsesCarryRequestID(t *testing.T) {
	h := testHandler(newMockService(), newMockSync())
	handler := RequestID(prefsMux(h))

	req := httptest.NewRequest("GET", "/api/v1/users/user1/preferences", nil)
	req = withClaims(req, "user1")
	req.Header.Set("X-Request-Id", "req-7")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	var apiErr APIError
	json.NewDecoder(w.Body).Decode(&apiErr)
	if apiErr.Error == "" || apiErr.Code != http.StatusNotFound {
		t.Fatalf("unexpected error body: %+v", apiErr)
	}
	if apiErr.RequestID != "req-7" {
		t.Fatalf("expected error body to carry the request id, got %+v", apiErr)
	}
}
