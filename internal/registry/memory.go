package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Memory is an in-memory Repository. Safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	records map[string]FileRecord
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]FileRecord)}
}

// Register inserts or replaces the record under its ID.
func (m *Memory) Register(_ context.Context, rec FileRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("record ID cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = rec
	return nil
}

// Get returns the record for id, or ErrNotFound.
func (m *Memory) Get(_ context.Context, id string) (FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return FileRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, nil
}

// List returns all records ordered by upload time.
func (m *Memory) List(_ context.Context) ([]FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	records := make([]FileRecord, 0, len(m.records))
	for _, rec := range m.records {
		records = append(records, rec)
	}
	sortRecords(records)
	return records, nil
}

// sortRecords orders by upload time, then ID for a stable order.
func sortRecords(records []FileRecord) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].UploadedAt.Equal(records[j].UploadedAt) {
			return records[i].UploadedAt.Before(records[j].UploadedAt)
		}
		return records[i].ID < records[j].ID
	})
}

// Ensure Memory implements Repository.
var _ Repository = (*Memory)(nil)
