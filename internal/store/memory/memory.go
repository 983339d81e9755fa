// Package memory implements the document store in process. Tests run against
// it, and the server falls back to it when no DB_URL is configured.
package memory

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/mindnest/MindNestBack/internal/store"
)

type Store struct {
	mu   sync.RWMutex
	docs map[string]json.RawMessage

	notifier *store.Notifier
}

func New() *Store {
	return &Store{
		docs:     make(map[string]json.RawMessage),
		notifier: store.NewNotifier(),
	}
}

func (s *Store) Read(_ context.Context, path string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[path]
	if !ok {
		return nil, store.ErrNotFound
	}
	return doc, nil
}

func (s *Store) Write(_ context.Context, path string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.docs[path] = encoded
	s.mu.Unlock()

	s.notifier.Publish(store.Event{Path: path, Value: encoded})
	return nil
}

func (s *Store) Update(_ context.Context, path string, fields map[string]any) error {
	s.mu.Lock()
	merged := make(map[string]json.RawMessage)
	if existing, ok := s.docs[path]; ok {
		if err := json.Unmarshal(existing, &merged); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	for key, value := range fields {
		encoded, err := json.Marshal(value)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		merged[key] = encoded
	}
	doc, err := json.Marshal(merged)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.docs[path] = doc
	s.mu.Unlock()

	s.notifier.Publish(store.Event{Path: path, Value: doc})
	return nil
}

func (s *Store) Push(ctx context.Context, path string, value any) (string, error) {
	id := store.NewPushID(time.Now())
	if err := s.Write(ctx, path+"/"+id, value); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Children(_ context.Context, path string) (map[string]json.RawMessage, error) {
	prefix := path + "/"

	s.mu.RLock()
	defer s.mu.RUnlock()

	children := make(map[string]json.RawMessage)
	for docPath, doc := range s.docs {
		if !strings.HasPrefix(docPath, prefix) {
			continue
		}
		rest := docPath[len(prefix):]
		if strings.Contains(rest, "/") {
			continue
		}
		children[rest] = doc
	}
	return children, nil
}

func (s *Store) Subscribe(path string, handler store.Handler) func() {
	return s.notifier.Subscribe(path, handler)
}
