// Package credfile persists the redacted auth state and the logical-id to
// remote-id mapping as two independent JSON files under the per-user data
// directory. An absent, unreadable, or corrupt file is a cache miss, never
// a fatal error. This is a leaf package so both the credential resolver and
// the reconciler can depend on it without a cycle.
package credfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelpush/modelpush/internal/creds"
)

// FilePerms restricts cache files to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the data directory.
const DirPerms = 0o700

const (
	authStateFileName = "authstate.json"
	idMapFileName     = "idmap.json"
)

// Store reads and writes the two cache files. Concurrent invocations from
// separate processes are not synchronized; last writer wins.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore returns a store rooted at dir. The directory is created lazily
// on first save.
func NewStore(dir string, logger *slog.Logger) *Store {
	return &Store{dir: dir, logger: logger}
}

// loadOutcome distinguishes a usable file from the two kinds of absence.
// The public surface collapses miss and corrupt to "nothing", but the
// distinction stays observable for logging and tests.
type loadOutcome int

const (
	loadOK loadOutcome = iota
	loadMiss
	loadCorrupt
)

func decodeFile(path string, v any) loadOutcome {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return loadMiss
	}

	if err != nil {
		return loadCorrupt
	}

	if err := json.Unmarshal(data, v); err != nil {
		return loadCorrupt
	}

	return loadOK
}

// LoadAuthState returns the cached auth state, or nil when the file is
// absent or unusable. Corruption is logged and otherwise treated exactly
// like a miss.
func (s *Store) LoadAuthState() *creds.CachedAuthState {
	path := s.AuthStatePath()

	var state creds.CachedAuthState

	switch decodeFile(path, &state) {
	case loadOK:
		return &state
	case loadCorrupt:
		s.logger.Info("ignoring unreadable auth state cache", slog.String("path", path))
	}

	return nil
}

// SaveAuthState writes the redacted projection atomically. The projection
// type carries no secret field, so nothing secret can reach disk here.
func (s *Store) SaveAuthState(state creds.CachedAuthState) error {
	return s.writeFile(s.AuthStatePath(), state)
}

// DeleteAuthState removes the cached auth state. Absence is not an error.
func (s *Store) DeleteAuthState() error {
	err := os.Remove(s.AuthStatePath())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("credfile: removing auth state: %w", err)
	}

	return nil
}

// AuthStatePath is where the redacted auth state lives. Exposed for
// user-facing messages.
func (s *Store) AuthStatePath() string {
	return filepath.Join(s.dir, authStateFileName)
}

// idMap is workspace id → logical id → remote item id, all keys lowercase.
type idMap map[string]map[string]string

func (s *Store) loadIDMap() idMap {
	path := s.idMapPath()

	m := idMap{}

	switch decodeFile(path, &m) {
	case loadOK:
		return m
	case loadCorrupt:
		s.logger.Info("ignoring unreadable identity map cache", slog.String("path", path))
	}

	return idMap{}
}

// GetMapping looks up the cached remote item id for a logical id.
func (s *Store) GetMapping(workspaceID, logicalID string) (string, bool) {
	m := s.loadIDMap()

	itemID, ok := m[strings.ToLower(workspaceID)][strings.ToLower(logicalID)]

	return itemID, ok && itemID != ""
}

// SetMapping records a confirmed logical-id to remote-id pair.
func (s *Store) SetMapping(workspaceID, logicalID, itemID string) error {
	m := s.loadIDMap()

	ws := strings.ToLower(workspaceID)
	if m[ws] == nil {
		m[ws] = map[string]string{}
	}

	m[ws][strings.ToLower(logicalID)] = strings.ToLower(itemID)

	return s.writeFile(s.idMapPath(), m)
}

func (s *Store) idMapPath() string {
	return filepath.Join(s.dir, idMapFileName)
}

// writeFile writes v as indented JSON atomically: temp file in the same
// directory, fsync, then rename. Same directory guarantees same filesystem
// for rename(2). Permission restriction is best-effort; on platforms where
// chmod fails the write still proceeds.
func (s *Store) writeFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("credfile: encoding %s: %w", filepath.Base(path), err)
	}

	if err := os.MkdirAll(s.dir, DirPerms); err != nil {
		return fmt.Errorf("credfile: creating directory %s: %w", s.dir, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".cache-*.tmp")
	if err != nil {
		return fmt.Errorf("credfile: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	// Clean up temp file on any error path.
	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		s.logger.Debug("restricting cache file permissions failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("credfile: writing %s: %w", filepath.Base(path), err)
	}

	// Flush to stable storage before rename so a crash between close and
	// rename cannot leave an empty or partial cache file at the final path.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("credfile: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("credfile: closing: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("credfile: renaming: %w", err)
	}

	success = true

	return nil
}
