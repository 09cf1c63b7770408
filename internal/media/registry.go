package media

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/contentenhancer/web/internal/model"
)

// Blob is a payload held in memory and served by the media handler
type Blob struct {
	Source    model.Source
	Name      string
	Data      []byte
	CreatedAt time.Time
}

// Registry is an in-memory Store. Sources are served under prefix/{id}.
type Registry struct {
	mu     sync.RWMutex
	blobs  map[string]*Blob
	prefix string
}

var _ Store = (*Registry)(nil)

// NewRegistry creates a registry whose URLs start with prefix (e.g. "/media").
func NewRegistry(prefix string) *Registry {
	return &Registry{
		blobs:  make(map[string]*Blob),
		prefix: prefix,
	}
}

// Put stores a copy of data and returns its source reference
func (r *Registry) Put(ctx context.Context, name, contentType string, data []byte) (*model.Source, error) {
	id := uuid.New().String()
	src := model.Source{
		ID:          id,
		URL:         r.prefix + "/" + id,
		DownloadURL: r.prefix + "/" + id + "/download",
		ContentType: contentType,
		Size:        int64(len(data)),
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	r.mu.Lock()
	r.blobs[id] = &Blob{
		Source:    src,
		Name:      name,
		Data:      buf,
		CreatedAt: time.Now(),
	}
	r.mu.Unlock()

	return &src, nil
}

// Get returns the blob for id
func (r *Registry) Get(id string) (*Blob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.blobs[id]
	return b, ok
}

// Release drops the blob. Releasing an unknown id is a no-op.
func (r *Registry) Release(ctx context.Context, id string) {
	r.mu.Lock()
	delete(r.blobs, id)
	r.mu.Unlock()
}

// Len returns the number of live sources
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.blobs)
}

func (r *Registry) Driver() string {
	return "memory"
}
