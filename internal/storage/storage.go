// Package storage keeps a queryable history of finished episodes.
package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	// ErrNotFound indicates the requested episode does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates an episode with the same ID was already saved.
	ErrConflict = errors.New("conflict")
)

// Episode is the stored outcome of one episode.
type Episode struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actor_id"`
	Scenario  string    `json:"scenario"`
	Steps     uint32    `json:"steps"`
	Reward    float64   `json:"reward"`
	Terminal  bool      `json:"terminal"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// Store captures the persistence operations the actor relies on.
type Store interface {
	SaveEpisode(ctx context.Context, ep Episode) error
	GetEpisode(ctx context.Context, id string) (Episode, error)
	// ListEpisodes returns up to limit episodes, most recently ended first.
	ListEpisodes(ctx context.Context, limit int) ([]Episode, error)
	Close() error
}

// MemoryStore is an in-memory Store that keeps the newest maxSize episodes.
type MemoryStore struct {
	mu       sync.RWMutex
	episodes map[string]Episode
	order    []string // IDs sorted by EndedAt, oldest first
	maxSize  int
}

// NewMemoryStore constructs a MemoryStore. maxSize 0 keeps everything.
func NewMemoryStore(maxSize int) *MemoryStore {
	return &MemoryStore{
		episodes: make(map[string]Episode),
		maxSize:  maxSize,
	}
}

func (m *MemoryStore) SaveEpisode(ctx context.Context, ep Episode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.episodes[ep.ID]; exists {
		return ErrConflict
	}
	m.episodes[ep.ID] = ep

	// maintain sorted order
	i := sort.Search(len(m.order), func(i int) bool {
		return m.episodes[m.order[i]].EndedAt.After(ep.EndedAt)
	})
	m.order = append(m.order, "")
	copy(m.order[i+1:], m.order[i:])
	m.order[i] = ep.ID

	// evict oldest
	for m.maxSize > 0 && len(m.order) > m.maxSize {
		delete(m.episodes, m.order[0])
		m.order = m.order[1:]
	}
	return nil
}

func (m *MemoryStore) GetEpisode(ctx context.Context, id string) (Episode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ep, ok := m.episodes[id]
	if !ok {
		return Episode{}, ErrNotFound
	}
	return ep, nil
}

func (m *MemoryStore) ListEpisodes(ctx context.Context, limit int) ([]Episode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.order)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Episode, 0, n)
	for i := len(m.order) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.episodes[m.order[i]])
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
