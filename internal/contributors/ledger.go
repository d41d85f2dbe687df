// Package contributors tracks how many plugins each submitter has added
// and edited. The ledger lives beside the registry and is updated only on
// successful upserts.
package contributors

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileName is the ledger file name under the registry root.
const FileName = "contributors.json"

// Entry is one submitter's running totals.
type Entry struct {
	ItemsAdded  int `json:"items_added"`
	ItemsEdited int `json:"items_edited"`
}

// Ledger is the keyed collection of contributor entries. Like the registry
// store it is held in memory between Load and Persist, so an aborted run
// never partially writes it.
type Ledger struct {
	path    string
	entries map[string]*Entry
}

// NewLedger creates a ledger stored under the given registry root.
func NewLedger(registryRoot string) *Ledger {
	return &Ledger{
		path:    filepath.Join(registryRoot, FileName),
		entries: make(map[string]*Entry),
	}
}

// Load reads the ledger file. A missing file is an empty ledger.
func (l *Ledger) Load(_ context.Context) error {
	l.entries = make(map[string]*Entry)

	data, err := os.ReadFile(l.path) // #nosec G304 -- path derived from configured registry root
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read contributors file: %w", err)
	}
	if err := json.Unmarshal(data, &l.entries); err != nil {
		return fmt.Errorf("failed to parse contributors file: %w", err)
	}
	return nil
}

// RecordSubmission bumps the submitter's totals: added for a first
// successful submission of a plugin, edited otherwise. An empty submitter
// id is ignored.
func (l *Ledger) RecordSubmission(submitterID string, isNew bool) {
	if submitterID == "" {
		return
	}
	entry, ok := l.entries[submitterID]
	if !ok {
		entry = &Entry{}
		l.entries[submitterID] = entry
	}
	if isNew {
		entry.ItemsAdded++
	} else {
		entry.ItemsEdited++
	}
}

// Get returns the entry for a submitter, if present.
func (l *Ledger) Get(submitterID string) (Entry, bool) {
	entry, ok := l.entries[submitterID]
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

// Persist writes the ledger atomically. Map keys marshal in sorted order,
// so identical logical content is byte-identical on disk.
func (l *Ledger) Persist(_ context.Context) error {
	data, err := json.MarshalIndent(l.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal contributors: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(l.path), 0o750); err != nil {
		return fmt.Errorf("failed to create contributors directory: %w", err)
	}

	tempPath := l.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temporary contributors file: %w", err)
	}
	if err := os.Rename(tempPath, l.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename contributors file: %w", err)
	}
	return nil
}
