// Package memory provides an in-memory ledger store used by tests and as
// the default backend when no database path is configured.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"tesoreria/internal/store"
)

type document struct {
	rev  int64
	data []byte
}

type Store struct {
	mu   sync.Mutex
	docs map[store.Collection]document
}

func New() *Store {
	return &Store{docs: make(map[store.Collection]document)}
}

var _ store.Store = (*Store)(nil)

func (s *Store) Read(_ context.Context, c store.Collection, v any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[c]
	if !ok {
		return 0, nil
	}
	if err := json.Unmarshal(doc.data, v); err != nil {
		return 0, fmt.Errorf("decode collection %s: %w", c, err)
	}
	return doc.rev, nil
}

func (s *Store) Apply(_ context.Context, writes ...store.Write) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate every revision before touching anything so a conflict or a
	// marshal failure leaves the store untouched.
	encoded := make([][]byte, len(writes))
	for i, w := range writes {
		if cur := s.docs[w.Collection].rev; cur != w.Rev {
			return fmt.Errorf("apply %s (have %d, want %d): %w", w.Collection, cur, w.Rev, store.ErrRevisionConflict)
		}
		data, err := json.Marshal(w.Value)
		if err != nil {
			return fmt.Errorf("encode collection %s: %w", w.Collection, err)
		}
		encoded[i] = data
	}
	for i, w := range writes {
		s.docs[w.Collection] = document{rev: w.Rev + 1, data: encoded[i]}
	}
	return nil
}

func (s *Store) Close() error {
	return nil
}
