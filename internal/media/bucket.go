package media

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/contentenhancer/web/internal/client"
	"github.com/contentenhancer/web/internal/model"
)

// BucketStore keeps sources in object storage and hands out presigned URLs.
type BucketStore struct {
	storage   client.StorageClient
	expiry    time.Duration
	keyPrefix string

	mu   sync.Mutex
	keys map[string]string
}

var _ Store = (*BucketStore)(nil)

// NewBucketStore creates a store that writes objects under keyPrefix
func NewBucketStore(storage client.StorageClient, expiry time.Duration, keyPrefix string) *BucketStore {
	return &BucketStore{
		storage:   storage,
		expiry:    expiry,
		keyPrefix: keyPrefix,
		keys:      make(map[string]string),
	}
}

// Put uploads data and presigns a playback URL and a download URL
func (s *BucketStore) Put(ctx context.Context, name, contentType string, data []byte) (*model.Source, error) {
	id := uuid.New().String()
	key := fmt.Sprintf("%s/%s", s.keyPrefix, id)

	if err := s.storage.Upload(ctx, key, data, contentType); err != nil {
		return nil, err
	}

	playURL, err := s.storage.GetSignedURL(ctx, key, s.expiry, "")
	if err != nil {
		s.storage.Delete(ctx, key)
		return nil, err
	}
	downloadURL, err := s.storage.GetSignedURL(ctx, key, s.expiry, DownloadFileName)
	if err != nil {
		s.storage.Delete(ctx, key)
		return nil, err
	}

	s.mu.Lock()
	s.keys[id] = key
	s.mu.Unlock()

	return &model.Source{
		ID:          id,
		URL:         playURL,
		DownloadURL: downloadURL,
		ContentType: contentType,
		Size:        int64(len(data)),
	}, nil
}

// Release deletes the object behind id
func (s *BucketStore) Release(ctx context.Context, id string) {
	s.mu.Lock()
	key, ok := s.keys[id]
	delete(s.keys, id)
	s.mu.Unlock()

	if !ok {
		return
	}
	if err := s.storage.Delete(context.WithoutCancel(ctx), key); err != nil {
		log.Printf("[media] failed to release %s: %v", id, err)
	}
}

func (s *BucketStore) Driver() string {
	return "r2"
}
