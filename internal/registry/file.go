package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// fileState is the on-disk JSON shape of the registry.
type fileState struct {
	Files map[string]FileRecord `json:"files"`
}

// File is a Repository persisted as a JSON document. Every write rewrites
// the whole file; reads are served from the in-memory copy loaded at
// construction time.
//
// A corrupt or missing file is treated as an empty registry and silently
// reset on the next write.
type File struct {
	path string

	mu      sync.Mutex
	records map[string]FileRecord
}

// NewFile opens (or initializes) a file-backed repository at path.
func NewFile(path string) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("registry path cannot be empty")
	}

	f := &File{path: path, records: make(map[string]FileRecord)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, fmt.Errorf("reading registry %s: %w", path, err)
	}

	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		// Corrupt state resets to empty rather than blocking startup.
		return f, nil
	}
	if state.Files != nil {
		f.records = state.Files
	}
	return f, nil
}

// Register inserts or replaces the record and persists the registry.
func (f *File) Register(_ context.Context, rec FileRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("record ID cannot be empty")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	prev, existed := f.records[rec.ID]
	f.records[rec.ID] = rec
	if err := f.save(); err != nil {
		// Keep memory and disk consistent: put back whatever was there.
		if existed {
			f.records[rec.ID] = prev
		} else {
			delete(f.records, rec.ID)
		}
		return err
	}
	return nil
}

// Get returns the record for id, or ErrNotFound.
func (f *File) Get(_ context.Context, id string) (FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return FileRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, nil
}

// List returns all records ordered by upload time.
func (f *File) List(_ context.Context) ([]FileRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	records := make([]FileRecord, 0, len(f.records))
	for _, rec := range f.records {
		records = append(records, rec)
	}
	sortRecords(records)
	return records, nil
}

// save writes the registry atomically: temp file then rename.
func (f *File) save() error {
	data, err := json.MarshalIndent(fileState{Files: f.records}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling registry: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating registry dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".registry-*.json")
	if err != nil {
		return fmt.Errorf("creating temp registry file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("closing registry: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replacing registry %s: %w", f.path, err)
	}
	return nil
}

// Ensure File implements Repository.
var _ Repository = (*File)(nil)
