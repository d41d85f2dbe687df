package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-logr/logr"
	"github.com/gofrs/flock"
)

const (
	// pluginsDirName is the subdirectory of the registry root holding
	// one JSON file per plugin record.
	pluginsDirName = "plugins"

	// lockFileName is the advisory lock taken for the duration of a
	// persist cycle. Mutating runs are serialized by the caller; the
	// lock is a backstop against accidental concurrent persists.
	lockFileName = ".registry.lock"
)

// Store is the on-disk keyed collection of plugin records. Records are
// held in memory between Load and Persist; Upsert never touches the disk,
// so a run aborted before Persist leaves the persisted registry unchanged.
type Store struct {
	root    string
	records map[string]*PluginRecord
	logger  logr.Logger
}

// NewStore creates a store rooted at the given directory. Call Load before
// reading or upserting.
func NewStore(root string, logger logr.Logger) *Store {
	return &Store{
		root:    root,
		records: make(map[string]*PluginRecord),
		logger:  logger.WithName("registry"),
	}
}

// Load reads every record file under the registry root. A missing plugins
// directory is an empty registry, not an error. Two files that canonicalize
// to the same key fail with a ConflictError.
func (s *Store) Load(_ context.Context) error {
	s.records = make(map[string]*PluginRecord)

	pluginsDir := filepath.Join(s.root, pluginsDirName)
	err := filepath.WalkDir(pluginsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}

		data, err := os.ReadFile(path) // #nosec G304 -- path comes from walking the store's own root
		if err != nil {
			return fmt.Errorf("failed to read record file %s: %w", path, err)
		}

		var record PluginRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return fmt.Errorf("failed to parse record file %s: %w", path, err)
		}

		key := strings.ToLower(record.Key)
		if record.Key != key {
			return &ConflictError{Key: key, Existing: key, Incoming: record.Key}
		}
		if existing, ok := s.records[key]; ok {
			return &ConflictError{Key: key, Existing: existing.Key, Incoming: record.Key}
		}
		s.records[key] = &record
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	s.logger.V(1).Info("loaded registry", "records", len(s.records))
	return nil
}

// Get returns the record for a canonical key, if present.
func (s *Store) Get(key string) (*PluginRecord, bool) {
	record, ok := s.records[strings.ToLower(key)]
	if !ok {
		return nil, false
	}
	return record.Clone(), true
}

// Keys returns all record keys in sorted order.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.records))
	for key := range s.records {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of records in the registry.
func (s *Store) Len() int {
	return len(s.records)
}

// Upsert inserts or fully replaces the record at record.Key and returns
// the prior record if one existed. The replacement is whole: submissions
// are the complete new truth for a plugin, never a patch. The change is
// in-memory only until Persist.
func (s *Store) Upsert(record *PluginRecord) (*PluginRecord, error) {
	if record == nil || record.Key == "" {
		return nil, fmt.Errorf("record key is required")
	}
	if record.Key != strings.ToLower(record.Key) {
		// The validation engine canonicalizes keys; a non-canonical key
		// reaching the store is an internal-consistency bug.
		return nil, &ConflictError{
			Key:      strings.ToLower(record.Key),
			Existing: strings.ToLower(record.Key),
			Incoming: record.Key,
		}
	}

	prior := s.records[record.Key]
	s.records[record.Key] = record.Clone()
	return prior.Clone(), nil
}

// Persist writes the full registry back to disk under an advisory file
// lock. Unchanged records are left untouched so file timestamps and diffs
// stay minimal; changed records are written atomically via temp+rename.
func (s *Store) Persist(_ context.Context) error {
	if err := os.MkdirAll(s.root, 0o750); err != nil {
		return fmt.Errorf("failed to create registry root: %w", err)
	}

	lock := flock.New(filepath.Join(s.root, lockFileName))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire registry lock: %w", err)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	for _, key := range s.Keys() {
		record := s.records[key]
		data, err := MarshalRecord(record)
		if err != nil {
			return err
		}

		path := s.recordPath(key)
		if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, data) { // #nosec G304
			continue
		}

		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return fmt.Errorf("failed to create record directory: %w", err)
		}

		tempPath := path + ".tmp"
		if err := os.WriteFile(tempPath, data, 0o600); err != nil {
			return fmt.Errorf("failed to write temporary record file: %w", err)
		}
		if err := os.Rename(tempPath, path); err != nil {
			_ = os.Remove(tempPath)
			return fmt.Errorf("failed to rename record file: %w", err)
		}
		s.logger.V(1).Info("persisted record", "key", key)
	}

	return nil
}

// Snapshot returns the canonical textual rendering of the whole registry:
// every record file path and content, keys sorted. Two registries with
// identical logical content produce byte-identical snapshots, which makes
// snapshot diffs meaningful.
func (s *Store) Snapshot() (string, error) {
	var b strings.Builder
	for _, key := range s.Keys() {
		data, err := MarshalRecord(s.records[key])
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "=== %s/%s.json ===\n", pluginsDirName, key)
		b.Write(data)
	}
	return b.String(), nil
}

// MarshalRecord renders a record in its canonical persisted form:
// fixed field order, two-space indent, trailing newline.
func MarshalRecord(record *PluginRecord) ([]byte, error) {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record %q: %w", record.Key, err)
	}
	return append(data, '\n'), nil
}

// recordPath maps a canonical key (owner/repo) to its file path.
func (s *Store) recordPath(key string) string {
	owner, name, _ := strings.Cut(key, "/")
	return filepath.Join(s.root, pluginsDirName, owner, name+".json")
}
