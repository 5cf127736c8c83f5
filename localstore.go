package prefsync

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"
)

// localKeyPrefix namespaces one row per user in the key-value table.
const localKeyPrefix = "preferences:"

func localPrefsKey(userID string) string {
	return localKeyPrefix + userID
}

// LocalStore persists preference records synchronously to an on-device
// SQLite key-value table, one row per user. Failures never propagate as
// errors to callers; Save reports them as a boolean and Load/Clear degrade
// to absence.
type LocalStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenLocalStore opens (creating if needed) the on-device store at path.
func OpenLocalStore(path string, logger *slog.Logger) (*LocalStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening local store: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS local_kv (
		k TEXT PRIMARY KEY,
		v TEXT NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing local store: %w", err)
	}

	return &LocalStore{db: db, logger: logger}, nil
}

// Save serializes and writes the user's record. It returns false on any
// failure (disk full, closed handle, serialization) after logging the
// failure kind.
func (s *LocalStore) Save(userID string, rec PreferenceRecord) bool {
	data, err := json.Marshal(rec)
	if err != nil {
		s.logger.Warn("failed to serialize preference record", "userId", userID, "error", err)
		return false
	}

	_, err = s.db.Exec(
		`INSERT INTO local_kv (k, v) VALUES (?, ?)
		 ON CONFLICT(k) DO UPDATE SET v = excluded.v`,
		localPrefsKey(userID), string(data),
	)
	if err != nil {
		s.logger.Warn("failed to write preference record locally", "userId", userID, "error", err)
		return false
	}

	return true
}

// Load reads and parses the user's stored record. It returns nil when
// absent. A malformed row (bad JSON, wrong enum, non-positive timestamp)
// is treated as corrupted: it is cleared and nil returned, so callers
// never see partially valid data.
func (s *LocalStore) Load(userID string) *PreferenceRecord {
	var raw string
	err := s.db.QueryRow(
		`SELECT v FROM local_kv WHERE k = ?`, localPrefsKey(userID),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		s.logger.Warn("failed to read preference record locally", "userId", userID, "error", err)
		return nil
	}

	var rec PreferenceRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		s.logger.Warn("clearing corrupted preference record", "userId", userID, "error", err)
		s.Clear(userID)
		return nil
	}
	if err := rec.Validate(); err != nil {
		s.logger.Warn("clearing invalid preference record", "userId", userID, "error", err)
		s.Clear(userID)
		return nil
	}

	return &rec
}

// Clear removes the user's stored record. Best effort; failures are logged.
func (s *LocalStore) Clear(userID string) {
	if _, err := s.db.Exec(`DELETE FROM local_kv WHERE k = ?`, localPrefsKey(userID)); err != nil {
		s.logger.Warn("failed to clear preference record locally", "userId", userID, "error", err)
	}
}

// Close releases the database handle.
func (s *LocalStore) Close() error {
	return s.db.Close()
}
