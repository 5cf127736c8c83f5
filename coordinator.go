package prefsync

import (
	"context"
	"log/slog"
	"time"
)

// PreferenceCoordinator is the surface callers use to change preferences:
// a change is durable locally before the call returns and propagates to
// the remote store eventually, with bounded retry. One instance is built
// at startup and closed at shutdown.
type PreferenceCoordinator struct {
	local  *LocalStore
	remote *RemoteSyncManager
	logger *slog.Logger
}

// NewPreferenceCoordinator composes the local store and sync manager.
func NewPreferenceCoordinator(local *LocalStore, remote *RemoteSyncManager, logger *slog.Logger) *PreferenceCoordinator {
	return &PreferenceCoordinator{local: local, remote: remote, logger: logger}
}

// Apply persists rec locally, then hands it to the sync manager in the
// background. The return value reflects local durability only; a remote
// push that later fails is logged, not surfaced, since replaying the same
// full-record write is always safe.
func (c *PreferenceCoordinator) Apply(userID string, rec PreferenceRecord) bool {
	saved := c.local.Save(userID, rec)

	go func() {
		if err := c.remote.PushPreferences(context.Background(), userID, rec); err != nil {
			c.logger.Warn("remote preference push failed", "userId", userID, "error", err)
		}
	}()

	return saved
}

// SetLanguage updates the selected language on top of the user's current
// local record and applies the result.
func (c *PreferenceCoordinator) SetLanguage(userID, languageCode string) (PreferenceRecord, bool) {
	rec := c.currentOrDefault(userID)
	rec.LanguageCode = languageCode
	rec.LastUpdated = time.Now().UnixMilli()
	return rec, c.Apply(userID, rec)
}

// SetThemeMode updates the theme on top of the user's current local
// record and applies the result.
func (c *PreferenceCoordinator) SetThemeMode(userID, themeMode string) (PreferenceRecord, bool) {
	rec := c.currentOrDefault(userID)
	rec.ThemeMode = themeMode
	rec.LastUpdated = time.Now().UnixMilli()
	return rec, c.Apply(userID, rec)
}

// Load returns the local record when present, otherwise falls back to a
// remote pull and backfills the local store on a hit. A racing push may
// make the pulled record older than an in-flight write; last write wins.
func (c *PreferenceCoordinator) Load(ctx context.Context, userID string) *PreferenceRecord {
	if rec := c.local.Load(userID); rec != nil {
		return rec
	}

	rec := c.remote.PullPreferences(ctx, userID)
	if rec != nil {
		c.local.Save(userID, *rec)
	}
	return rec
}

// Delete clears the user's local record and deletes the remote document.
// The remote failure propagates; deletion must not fail silently.
func (c *PreferenceCoordinator) Delete(ctx context.Context, userID string) error {
	c.local.Clear(userID)
	return c.remote.DeletePreferences(ctx, userID)
}

// Close drops unflushed pending syncs and releases the local store.
func (c *PreferenceCoordinator) Close() error {
	c.remote.CancelPendingSyncs()
	return c.local.Close()
}

func (c *PreferenceCoordinator) currentOrDefault(userID string) PreferenceRecord {
	if rec := c.local.Load(userID); rec != nil {
		return *rec
	}
	return DefaultPreferences()
}
