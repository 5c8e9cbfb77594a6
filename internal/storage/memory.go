// Package storage provides the node-local key-value store. Entries are
// held in memory only: the store is created at node initialization and
// cleared on shutdown.
package storage

import (
	"sort"
	"sync"

	"PastryDHT/internal/domain"
	"PastryDHT/internal/logger"
)

// Storage is an in-memory key-value store indexed by hashed key. It is
// concurrency-safe; reads and writes serialize on an internal RWMutex.
type Storage struct {
	lgr  logger.Logger
	mu   sync.RWMutex
	data map[domain.ID]domain.Resource
}

// NewMemoryStorage creates and returns a new, empty in-memory storage.
func NewMemoryStorage(lgr logger.Logger) *Storage {
	s := &Storage{
		lgr:  lgr,
		data: make(map[domain.ID]domain.Resource),
	}
	s.lgr.Debug("initialized in-memory storage")
	return s
}

// Put inserts or updates the given resource, indexed by its hashed key.
func (s *Storage) Put(resource domain.Resource) {
	s.mu.Lock()
	_, existed := s.data[resource.Key]
	s.data[resource.Key] = resource
	s.mu.Unlock()
	if existed {
		s.lgr.Debug("Put: resource updated", logger.FResource("resource", resource))
	} else {
		s.lgr.Debug("Put: resource inserted", logger.FResource("resource", resource))
	}
}

// Get retrieves the resource stored under the given hashed key. If the
// key is not present, it returns ErrResourceNotFound.
func (s *Storage) Get(id domain.ID) (domain.Resource, error) {
	s.mu.RLock()
	res, ok := s.data[id]
	s.mu.RUnlock()
	if !ok {
		s.lgr.Debug("Get: resource not found", logger.F("keyHash", uint32(id)))
		return domain.Resource{}, domain.ErrResourceNotFound
	}
	s.lgr.Debug("Get: resource retrieved", logger.FResource("resource", res))
	return res, nil
}

// Delete removes the resource stored under the given hashed key. If the
// key is not present, it returns ErrResourceNotFound.
func (s *Storage) Delete(id domain.ID) error {
	s.mu.Lock()
	_, ok := s.data[id]
	if ok {
		delete(s.data, id)
	}
	s.mu.Unlock()
	if !ok {
		return domain.ErrResourceNotFound
	}
	s.lgr.Debug("Delete: resource removed", logger.F("keyHash", uint32(id)))
	return nil
}

// All returns a snapshot of all resources currently stored. The slice is
// a copy; modifying it does not affect the storage.
func (s *Storage) All() []domain.Resource {
	s.mu.RLock()
	result := make([]domain.Resource, 0, len(s.data))
	for _, res := range s.data {
		result = append(result, res)
	}
	s.mu.RUnlock()
	return result
}

// Len returns the number of resources currently stored.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Clear drops every stored resource. Called on node shutdown.
func (s *Storage) Clear() {
	s.mu.Lock()
	n := len(s.data)
	s.data = make(map[domain.ID]domain.Resource)
	s.mu.Unlock()
	s.lgr.Debug("Clear: storage emptied", logger.F("dropped", n))
}

// DebugLog emits a structured DEBUG-level entry with the contents of the
// storage, sorted by key for deterministic output. The contents are read
// under a read lock and logged as a snapshot without modifying the data.
func (s *Storage) DebugLog() {
	snapshot := s.All()
	sort.Slice(snapshot, func(i, j int) bool {
		return snapshot[i].Key < snapshot[j].Key
	})
	entries := make([]map[string]any, 0, len(snapshot))
	for _, res := range snapshot {
		entries = append(entries, map[string]any{
			"key":     res.RawKey,
			"keyHash": uint32(res.Key),
			"value":   res.Value,
		})
	}
	s.lgr.Debug("Storage snapshot",
		logger.F("count", len(snapshot)),
		logger.F("resources", entries),
	)
}
