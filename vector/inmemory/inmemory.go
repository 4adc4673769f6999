package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/seoyeon2924/broadcast-compliance-ai-agent/vector"
)

// Store implements vector.Store using in-memory storage. Intended for tests
// and local development.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]*vector.Record
}

// New creates a new in-memory vector store
func New() *Store {
	return &Store{
		collections: make(map[string]map[string]*vector.Record),
	}
}

// Add inserts or replaces records in their collections
func (s *Store) Add(ctx context.Context, records ...*vector.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		if rec == nil {
			return fmt.Errorf("record cannot be nil")
		}
		if rec.ID == "" {
			return fmt.Errorf("record ID cannot be empty")
		}
		if len(rec.Vector) == 0 {
			return fmt.Errorf("record vector cannot be empty")
		}
		coll := s.collections[rec.Collection]
		if coll == nil {
			coll = make(map[string]*vector.Record)
			s.collections[rec.Collection] = coll
		}
		coll[rec.ID] = rec
	}
	return nil
}

// Search finds records similar to the query vector
func (s *Store) Search(ctx context.Context, collection string, queryVector []float32, topK int) ([]vector.Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(queryVector) == 0 {
		return nil, fmt.Errorf("query vector cannot be empty")
	}
	if topK <= 0 {
		topK = 10
	}

	hits := make([]vector.Hit, 0, len(s.collections[collection]))
	for _, rec := range s.collections[collection] {
		if len(rec.Vector) != len(queryVector) {
			continue
		}
		hits = append(hits, vector.Hit{
			Record: *rec,
			Score:  vector.CosineSimilarity(queryVector, rec.Vector),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Delete removes a record by ID
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[collection]
	if !ok {
		return nil
	}
	delete(coll, id)
	return nil
}

// Clear removes all records in a collection
func (s *Store) Clear(ctx context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.collections, collection)
	return nil
}

// Count returns the number of records in a collection
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.collections[collection]), nil
}
