package storagesvc

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/newstandard/academy/core/faq"
)

var errObjectNotFound = errors.New("object not found")

type object struct {
	data        []byte
	contentType string
}

// MemoryStore keeps objects in memory and hands out fake presigned URLs.
type MemoryStore struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]object
}

var _ faq.ObjectStore = (*MemoryStore)(nil)

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{baseURL: baseURL, objects: make(map[string]object)}
}

func (s *MemoryStore) PutObject(_ context.Context, key string, r io.Reader, size int64, contentType string) error {
	var buf bytes.Buffer
	if size >= 0 {
		r = io.LimitReader(r, size)
	}
	if _, err := io.Copy(&buf, r); err != nil {
		return errors.Wrapf(err, "reading %s", key)
	}
	s.mu.Lock()
	s.objects[key] = object{data: buf.Bytes(), contentType: contentType}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) PresignedURL(_ context.Context, key string, expiry time.Duration) (string, error) {
	s.mu.RLock()
	_, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return "", errors.Wrap(errObjectNotFound, key)
	}
	q := url.Values{"X-Expires": {strconv.Itoa(int(expiry.Seconds()))}}
	return s.baseURL + "/" + key + "?" + q.Encode(), nil
}

func (s *MemoryStore) RemoveObject(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

// Object returns a stored object's content.
func (s *MemoryStore) Object(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	return obj.data, ok
}
