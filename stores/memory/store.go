package memory

import (
	"canvas-studio/core"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// memStore implements ExportStore in process memory. Exports are lost on
// restart.
type memStore struct {
	mu      sync.RWMutex
	exports map[string]core.Export
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{exports: make(map[string]core.Export)}
}

// Save stores a copy of the export under a fresh ID.
func (s *memStore) Save(ctx context.Context, export *core.Export) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := ulid.Make().String()
	export.ID = id
	if export.CreatedAt.IsZero() {
		export.CreatedAt = time.Now()
	}
	stored := *export
	stored.Data = append([]byte(nil), export.Data...)
	s.exports[id] = stored

	logrus.WithFields(logrus.Fields{
		"export_id":   id,
		"session_id":  export.SessionID,
		"data_length": len(export.Data),
	}).Info("Export saved successfully")
	return id, nil
}

// Get returns a single export by its ID.
func (s *memStore) Get(ctx context.Context, id string) (*core.Export, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := logrus.WithField("export_id", id)
	val, ok := s.exports[id]
	if !ok {
		log.Warn("Export with specified ID not found")
		return nil, fmt.Errorf("export %s: %w", id, core.ErrExportNotFound)
	}
	log.Info("Export retrieved successfully")
	return &val, nil
}

// List returns export metadata for a session, oldest first.
func (s *memStore) List(ctx context.Context, sessionID string) ([]*core.Export, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exports := make([]*core.Export, 0)
	for _, e := range s.exports {
		if e.SessionID != sessionID {
			continue
		}
		// Important: create a copy without the large `Data` field for the list view
		meta := e
		meta.Data = nil
		exports = append(exports, &meta)
	}
	sort.Slice(exports, func(i, j int) bool { return exports[i].ID < exports[j].ID })

	logrus.WithField("session_id", sessionID).Infof("Listed %d exports", len(exports))
	return exports, nil
}
