package memory

import (
	"strings"
	"sync"

	"github.com/hupe1980/agentstate/core"
)

// storedMemory is the internal representation persisted by InMemoryStore.
type storedMemory struct {
	id       string
	content  string
	metadata map[string]any
}

// InMemoryStore is a naive process-local MemoryStore holding append-only
// memories per session with substring Search. Every hit receives a constant
// score of 1.0. Protected by an RWMutex.
type InMemoryStore struct {
	mu      sync.RWMutex
	storage map[string][]storedMemory // sessionID -> stored memories
}

// NewInMemoryStore creates a new in-memory memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{storage: make(map[string][]storedMemory)}
}

// Store appends content plus metadata to the session's memory.
func (m *InMemoryStore) Store(sessionID string, content string, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	md := make(map[string]any, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}

	m.storage[sessionID] = append(m.storage[sessionID], storedMemory{
		id:       core.NewID(),
		content:  content,
		metadata: md,
	})

	return nil
}

// Search performs a case-insensitive substring match over stored memories in
// insertion order, up to the provided limit (<= 0 means no limit).
func (m *InMemoryStore) Search(sessionID string, query string, limit int) ([]core.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q := strings.ToLower(query)
	results := []core.SearchResult{}
	for _, sm := range m.storage[sessionID] {
		if q != "" && !strings.Contains(strings.ToLower(sm.content), q) {
			continue
		}
		results = append(results, core.SearchResult{
			ID:       sm.id,
			Content:  sm.content,
			Score:    1.0,
			Metadata: sm.metadata,
		})
		if limit > 0 && len(results) >= limit {
			break
		}
	}

	return results, nil
}
