// Package sessions hosts live canvas sessions and connects them to the
// generator, the export store and whoever is watching.
package sessions

import (
	"canvas-studio/canvas"
	"canvas-studio/core"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrSessionNotFound is returned for unknown session ids.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNotExportable is returned when the export target has no inline
	// image data.
	ErrNotExportable = errors.New("entity has no exportable image data")
)

// DefaultViewport is used when a session is created without a size.
var DefaultViewport = core.Size{Width: 1280, Height: 800}

type (
	// Workspace serialises every call into one canvas session.
	Workspace struct {
		mu        sync.Mutex
		session   *canvas.Session
		createdAt time.Time
	}

	// ready is implemented by generators that know whether they can run.
	ready interface {
		Ready() bool
	}

	Registry struct {
		mu         sync.RWMutex
		workspaces map[string]*Workspace

		generator core.Generator
		exports   core.ExportStore
		notifier  core.Notifier
		onChange  func(sessionID string)
		newID     func(prefix string) string

		inflight sync.WaitGroup
	}

	Option func(*Registry)
)

func WithGenerator(g core.Generator) Option { return func(r *Registry) { r.generator = g } }

func WithExportStore(s core.ExportStore) Option { return func(r *Registry) { r.exports = s } }

func WithNotifier(n core.Notifier) Option { return func(r *Registry) { r.notifier = n } }

// WithChangeHook is called, outside any session lock, after a session changed
// without a request from its client, e.g. when a generation finished.
func WithChangeHook(fn func(sessionID string)) Option { return func(r *Registry) { r.onChange = fn } }

// WithIDSource replaces the id generator for sessions and their entities.
func WithIDSource(fn func(prefix string) string) Option { return func(r *Registry) { r.newID = fn } }

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		workspaces: make(map[string]*Workspace),
		newID:      core.NewID,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do runs fn with exclusive access to the session.
func (w *Workspace) Do(fn func(s *canvas.Session) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return fn(w.session)
}

// Frame projects the session under its lock.
func (w *Workspace) Frame() canvas.Frame {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.session.Frame()
}

func (w *Workspace) ID() string { return w.session.ID() }

func (w *Workspace) CreatedAt() time.Time { return w.createdAt }

// Create starts a new empty session with a viewport of the given size.
func (r *Registry) Create(size core.Size) *Workspace {
	if size.Width <= 0 || size.Height <= 0 {
		size = DefaultViewport
	}
	id := r.newID("canvas")
	w := &Workspace{
		session:   canvas.NewSession(id, size, canvas.WithIDSource(r.newID)),
		createdAt: time.Now(),
	}

	r.mu.Lock()
	r.workspaces[id] = w
	r.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"session_id": id,
		"width":      size.Width,
		"height":     size.Height,
	}).Info("Session created")
	return w
}

func (r *Registry) Get(id string) (*Workspace, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workspaces[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	return w, nil
}

// Delete drops a session. Generations still running for it finish into the
// void.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.workspaces[id]; !ok {
		return false
	}
	delete(r.workspaces, id)
	logrus.WithField("session_id", id).Info("Session closed")
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workspaces)
}

// Wait blocks until every running generation has been applied.
func (r *Registry) Wait() { r.inflight.Wait() }

func (r *Registry) notify(sessionID string, n core.Notice) {
	if r.notifier != nil {
		r.notifier.Notify(sessionID, n)
	}
}

func (r *Registry) changed(sessionID string) {
	if r.onChange != nil {
		r.onChange(sessionID)
	}
}
