package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nvandessel/psiz/internal/trialfile"
	"github.com/nvandessel/psiz/internal/trials"
)

type memoryEntry struct {
	info   TrialSetInfo
	record *trialfile.Record
}

// InMemoryTrialStore implements TrialStore for testing and for sessions
// that never touch disk.
type InMemoryTrialStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry // keyed by id
}

// NewInMemoryTrialStore creates a new in-memory store.
func NewInMemoryTrialStore() *InMemoryTrialStore {
	return &InMemoryTrialStore{entries: make(map[string]*memoryEntry)}
}

// Save stores t under name.
func (s *InMemoryTrialStore) Save(ctx context.Context, name string, t trials.Trials) (*TrialSetInfo, error) {
	if name == "" {
		return nil, fmt.Errorf("trial set name is required")
	}
	if t == nil {
		return nil, fmt.Errorf("trial set %q: nil container", name)
	}

	rec := trialfile.NewRecord(t)
	hash, err := computeContentHash(rec.StimulusSet)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	info := TrialSetInfo{
		ID:          rec.ID,
		Name:        name,
		Kind:        rec.Kind,
		TrialCount:  len(rec.StimulusSet),
		ConfigCount: len(rec.Configs),
		ContentHash: hash,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if existing := s.findUnlocked(name); existing != nil {
		info.ID = existing.info.ID
		info.CreatedAt = existing.info.CreatedAt
		rec.ID = existing.info.ID
	}

	s.entries[info.ID] = &memoryEntry{info: info, record: rec}
	out := info
	return &out, nil
}

// Load rebuilds the trial set identified by ref.
func (s *InMemoryTrialStore) Load(ctx context.Context, ref string) (trials.Trials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e := s.findUnlocked(ref)
	if e == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return e.record.Trials()
}

// Info returns the description of the trial set identified by ref.
func (s *InMemoryTrialStore) Info(ctx context.Context, ref string) (*TrialSetInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e := s.findUnlocked(ref)
	if e == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	info := e.info
	return &info, nil
}

// List returns every stored trial set, oldest first.
func (s *InMemoryTrialStore) List(ctx context.Context) ([]TrialSetInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]TrialSetInfo, 0, len(s.entries))
	for _, e := range s.entries {
		infos = append(infos, e.info)
	}
	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].CreatedAt.Before(infos[j].CreatedAt)
		}
		return infos[i].Name < infos[j].Name
	})
	return infos, nil
}

// Delete removes the trial set identified by ref.
func (s *InMemoryTrialStore) Delete(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.findUnlocked(ref)
	if e == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	delete(s.entries, e.info.ID)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryTrialStore) Close() error {
	return nil
}

func (s *InMemoryTrialStore) findUnlocked(ref string) *memoryEntry {
	if e, ok := s.entries[ref]; ok {
		return e
	}
	for _, e := range s.entries {
		if e.info.Name == ref {
			return e
		}
	}
	return nil
}
