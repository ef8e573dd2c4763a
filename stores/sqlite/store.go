package sqlite

import (
	"canvas-studio/core"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database and its exports table.
func NewStore(dataSourceName string) (*sqliteStore, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	exportTableStmt := `
	CREATE TABLE IF NOT EXISTS exports (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		name TEXT,
		mime_type TEXT,
		data BLOB,
		created_at DATETIME
	);`
	if _, err = db.Exec(exportTableStmt); err != nil {
		db.Close()
		return nil, fmt.Errorf("create exports table: %w", err)
	}
	if _, err = db.Exec(`CREATE INDEX IF NOT EXISTS exports_session ON exports (session_id);`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create exports index: %w", err)
	}

	return &sqliteStore{db}, nil
}

func (s *sqliteStore) Close() error { return s.db.Close() }

func (s *sqliteStore) Save(ctx context.Context, export *core.Export) (string, error) {
	id := ulid.Make().String()
	if export.CreatedAt.IsZero() {
		export.CreatedAt = time.Now()
	}
	log := logrus.WithFields(logrus.Fields{
		"export_id":   id,
		"session_id":  export.SessionID,
		"data_length": len(export.Data),
	})

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO exports (id, session_id, name, mime_type, data, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		id, export.SessionID, export.Name, export.MIMEType, export.Data, export.CreatedAt)
	if err != nil {
		log.WithError(err).Error("Failed to save export")
		return "", err
	}
	export.ID = id
	log.Info("Export saved successfully")
	return id, nil
}

func (s *sqliteStore) Get(ctx context.Context, id string) (*core.Export, error) {
	log := logrus.WithField("export_id", id)
	log.Debug("Retrieving export by ID")

	export := core.Export{ID: id}
	err := s.db.QueryRowContext(ctx,
		"SELECT session_id, name, mime_type, data, created_at FROM exports WHERE id = ?", id).
		Scan(&export.SessionID, &export.Name, &export.MIMEType, &export.Data, &export.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn("Export with specified ID not found")
			return nil, fmt.Errorf("export %s: %w", id, core.ErrExportNotFound)
		}
		log.WithError(err).Error("Failed to retrieve export")
		return nil, err
	}
	log.Info("Export retrieved successfully")
	return &export, nil
}

func (s *sqliteStore) List(ctx context.Context, sessionID string) ([]*core.Export, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, mime_type, created_at FROM exports WHERE session_id = ? ORDER BY id", sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	exports := make([]*core.Export, 0)
	for rows.Next() {
		export := core.Export{SessionID: sessionID}
		if err := rows.Scan(&export.ID, &export.Name, &export.MIMEType, &export.CreatedAt); err != nil {
			return nil, err
		}
		exports = append(exports, &export)
	}
	return exports, rows.Err()
}
