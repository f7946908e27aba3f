// Package memory provides an in-process avatar store for development and tests.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/utafrali/contactbook/internal/storage"
)

type object struct {
	contentType string
	data        []byte
}

// Storage implements storage.Storage using an in-memory map.
type Storage struct {
	mu      sync.RWMutex
	objects map[string]object
	baseURL string
}

// New creates a new in-memory storage serving URLs under baseURL.
func New(baseURL string) *Storage {
	return &Storage{
		objects: make(map[string]object),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Upload stores the object and returns its URL.
func (s *Storage) Upload(_ context.Context, input *storage.UploadInput) (*storage.UploadResult, error) {
	data, err := io.ReadAll(input.Data)
	if err != nil {
		return nil, fmt.Errorf("read upload body: %w", err)
	}

	s.mu.Lock()
	s.objects[input.Key] = object{contentType: input.ContentType, data: data}
	s.mu.Unlock()

	return &storage.UploadResult{Key: input.Key, URL: s.url(input.Key)}, nil
}

// Delete removes the object.
func (s *Storage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[key]; !ok {
		return fmt.Errorf("object not found: %s", key)
	}
	delete(s.objects, key)
	return nil
}

// GetURL returns the URL of a stored object.
func (s *Storage) GetURL(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.objects[key]; !ok {
		return "", fmt.Errorf("object not found: %s", key)
	}
	return s.url(key), nil
}

// Open returns the stored bytes of key.
func (s *Storage) Open(key string) (io.Reader, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, "", false
	}
	return bytes.NewReader(obj.data), obj.contentType, true
}

func (s *Storage) url(key string) string {
	return s.baseURL + "/" + key
}
