package filesystem

import (
	"canvas-studio/core"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

const metaSuffix = ".json"

type fsStore struct {
	basePath string
}

// exportMeta is written next to the image bytes. Export hides SessionID from
// JSON, so it gets its own record.
type exportMeta struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Name      string    `json:"name"`
	MIMEType  string    `json:"mimeType"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewStore creates a new filesystem-based store.
func NewStore(basePath string) *fsStore {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		log.Fatalf("failed to create base directory: %v", err)
	}
	return &fsStore{basePath: basePath}
}

// pathFor resolves the data file of an export and refuses ids that would
// escape the base directory.
func (s *fsStore) pathFor(id string) (string, error) {
	if id == "" || filepath.Base(id) != id || id == "." || id == ".." {
		return "", fmt.Errorf("invalid export id %q", id)
	}
	absBase, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", err
	}
	absFile, err := filepath.Abs(filepath.Join(s.basePath, id))
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(absFile, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid path: access denied")
	}
	return absFile, nil
}

func (s *fsStore) Save(ctx context.Context, export *core.Export) (string, error) {
	id := ulid.Make().String()
	filePath, err := s.pathFor(id)
	if err != nil {
		return "", err
	}
	log := logrus.WithFields(logrus.Fields{
		"export_id":  id,
		"session_id": export.SessionID,
		"file_path":  filePath,
	})

	if export.CreatedAt.IsZero() {
		export.CreatedAt = time.Now()
	}
	meta, err := json.Marshal(exportMeta{
		ID:        id,
		SessionID: export.SessionID,
		Name:      export.Name,
		MIMEType:  export.MIMEType,
		CreatedAt: export.CreatedAt,
	})
	if err != nil {
		log.WithError(err).Error("Failed to marshal export metadata")
		return "", err
	}

	if err := os.WriteFile(filePath, export.Data, 0644); err != nil {
		log.WithError(err).Error("Failed to write export data")
		return "", err
	}
	if err := os.WriteFile(filePath+metaSuffix, meta, 0644); err != nil {
		log.WithError(err).Error("Failed to write export metadata")
		os.Remove(filePath)
		return "", err
	}

	export.ID = id
	log.Info("Export saved successfully")
	return id, nil
}

func (s *fsStore) readMeta(filePath string) (*core.Export, error) {
	raw, err := os.ReadFile(filePath + metaSuffix)
	if err != nil {
		return nil, err
	}
	var meta exportMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, err
	}
	return &core.Export{
		ID:        meta.ID,
		SessionID: meta.SessionID,
		Name:      meta.Name,
		MIMEType:  meta.MIMEType,
		CreatedAt: meta.CreatedAt,
	}, nil
}

func (s *fsStore) Get(ctx context.Context, id string) (*core.Export, error) {
	filePath, err := s.pathFor(id)
	if err != nil {
		return nil, err
	}
	log := logrus.WithFields(logrus.Fields{"export_id": id, "file_path": filePath})

	export, err := s.readMeta(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("Export with specified ID not found")
			return nil, fmt.Errorf("export %s: %w", id, core.ErrExportNotFound)
		}
		log.WithError(err).Error("Failed to read export metadata")
		return nil, err
	}

	export.Data, err = os.ReadFile(filePath)
	if err != nil {
		log.WithError(err).Error("Failed to read export data")
		return nil, err
	}

	log.Info("Export retrieved successfully")
	return export, nil
}

func (s *fsStore) List(ctx context.Context, sessionID string) ([]*core.Export, error) {
	log := logrus.WithField("session_id", sessionID).WithField("path", s.basePath)

	files, err := os.ReadDir(s.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []*core.Export{}, nil
		}
		log.WithError(err).Error("Failed to read export directory")
		return nil, err
	}

	exports := make([]*core.Export, 0)
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), metaSuffix) {
			continue
		}
		dataPath := filepath.Join(s.basePath, strings.TrimSuffix(file.Name(), metaSuffix))
		export, err := s.readMeta(dataPath)
		if err != nil {
			log.WithError(err).Warnf("Failed to read export metadata %s, skipping", file.Name())
			continue
		}
		if export.SessionID == sessionID {
			exports = append(exports, export)
		}
	}
	sort.Slice(exports, func(i, j int) bool { return exports[i].ID < exports[j].ID })

	log.Infof("Listed %d exports", len(exports))
	return exports, nil
}
