// Package postgres backs the document store with a single jsonb documents
// table. Change subscriptions are served by an in-process notifier fed from
// this instance's own writes.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mindnest/MindNestBack/internal/store"
)

type Store struct {
	db       *pgxpool.Pool
	notifier *store.Notifier
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{
		db:       db,
		notifier: store.NewNotifier(),
	}
}

func (s *Store) Read(ctx context.Context, path string) (json.RawMessage, error) {
	query := `
		SELECT doc
		FROM documents
		WHERE path = $1
	`

	var doc json.RawMessage
	err := s.db.QueryRow(ctx, query, path).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, &store.TransportError{Op: "read", Path: path, Err: err}
	}
	return doc, nil
}

func (s *Store) Write(ctx context.Context, path string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO documents (path, doc)
		VALUES ($1, $2)
		ON CONFLICT (path)
		DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()
	`
	if _, err := s.db.Exec(ctx, query, path, encoded); err != nil {
		return &store.TransportError{Op: "write", Path: path, Err: err}
	}

	s.notifier.Publish(store.Event{Path: path, Value: encoded})
	return nil
}

func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	encoded, err := json.Marshal(fields)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO documents (path, doc)
		VALUES ($1, $2)
		ON CONFLICT (path)
		DO UPDATE SET doc = documents.doc || EXCLUDED.doc, updated_at = NOW()
		RETURNING doc
	`
	var doc json.RawMessage
	if err := s.db.QueryRow(ctx, query, path, encoded).Scan(&doc); err != nil {
		return &store.TransportError{Op: "update", Path: path, Err: err}
	}

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

func (s *Store) Children(ctx context.Context, path string) (map[string]json.RawMessage, error) {
	// Range scan instead of LIKE: conversation ids contain underscores,
	// which LIKE would treat as wildcards. '0' is the first byte after '/'
	// in ASCII, so [path+"/", path+"0") covers exactly the subtree.
	query := `
		SELECT path, doc
		FROM documents
		WHERE path >= $1 AND path < $2
	`

	prefix := path + "/"
	rows, err := s.db.Query(ctx, query, prefix, path+"0")
	if err != nil {
		return nil, &store.TransportError{Op: "children", Path: path, Err: err}
	}
	defer rows.Close()

	children := make(map[string]json.RawMessage)
	for rows.Next() {
		var docPath string
		var doc json.RawMessage
		if err := rows.Scan(&docPath, &doc); err != nil {
			return nil, &store.TransportError{Op: "children", Path: path, Err: err}
		}
		rest := strings.TrimPrefix(docPath, prefix)
		if strings.Contains(rest, "/") {
			continue
		}
		children[rest] = doc
	}
	if err := rows.Err(); err != nil {
		return nil, &store.TransportError{Op: "children", Path: path, Err: err}
	}

	return children, nil
}

func (s *Store) Subscribe(path string, handler store.Handler) func() {
	return s.notifier.Subscribe(path, handler)
}
