package core

import (
	"context"
	"errors"
	"time"
)

// ErrExportNotFound is returned by ExportStore.Get for unknown ids.
var ErrExportNotFound = errors.New("export not found")

const (
	NoticeQuotaExceeded NoticeKind = "quota_exceeded"
	NoticeError         NoticeKind = "error"
	NoticeInfo          NoticeKind = "info"
)

type (
	// Export is an image the user saved from the canvas through the context
	// menu. It is the only canvas-derived data that outlives a session.
	Export struct {
		ID        string    `json:"id"`
		SessionID string    `json:"-"` // Not exposed in JSON responses, used internally.
		Name      string    `json:"name"`
		MIMEType  string    `json:"mimeType"`
		Data      []byte    `json:"data,omitempty"`
		CreatedAt time.Time `json:"createdAt"`
	}

	// ExportStore keeps exported images until they are downloaded.
	ExportStore interface {
		// Save stores the export and returns its assigned ID.
		Save(ctx context.Context, export *Export) (string, error)

		// Get returns a single export by its ID.
		Get(ctx context.Context, id string) (*Export, error)

		// List returns metadata, without data, for the exports of a session.
		List(ctx context.Context, sessionID string) ([]*Export, error)
	}

	NoticeKind string

	// Notice is a short user-facing message, shown by the client as a toast.
	Notice struct {
		Kind      NoticeKind `json:"kind"`
		Message   string     `json:"message"`
		RequestID string     `json:"requestId,omitempty"`
	}

	// Notifier delivers notices to whoever is watching a session.
	Notifier interface {
		Notify(sessionID string, notice Notice)
	}
)
