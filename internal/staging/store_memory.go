package staging

import (
	"context"
	"sort"
	"sync"
)

type memoryPartition struct {
	records map[string]ChangeRecord
	cursor  *int64
}

// InMemoryStore keeps partitions in process memory. Used in tests and for
// single-instance development.
type InMemoryStore struct {
	mu         sync.RWMutex
	partitions map[string]*memoryPartition
}

// NewInMemory constructs an empty store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{partitions: make(map[string]*memoryPartition)}
}

func (s *InMemoryStore) partition(name string) *memoryPartition {
	part, ok := s.partitions[name]
	if !ok {
		part = &memoryPartition{records: make(map[string]ChangeRecord)}
		s.partitions[name] = part
	}
	return part
}

func (s *InMemoryStore) EnsurePartition(_ context.Context, p Partition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partition(p.Name)
	return nil
}

func (s *InMemoryStore) GetCursor(_ context.Context, p Partition) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	part, ok := s.partitions[p.Name]
	if !ok || part.cursor == nil {
		return 0, false, nil
	}
	return *part.cursor, true, nil
}

func (s *InMemoryStore) AdvanceCursor(_ context.Context, p Partition, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	part := s.partition(p.Name)
	if part.cursor != nil && *part.cursor >= value {
		return nil
	}
	v := value
	part.cursor = &v
	return nil
}

func (s *InMemoryStore) StageChanges(_ context.Context, p Partition, records []ChangeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	part := s.partition(p.Name)
	for _, r := range records {
		part.records[r.ID] = r
	}
	return nil
}

func (s *InMemoryStore) ListPending(_ context.Context, p Partition) ([]ChangeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	part, ok := s.partitions[p.Name]
	if !ok {
		return []ChangeRecord{}, nil
	}
	out := make([]ChangeRecord, 0, len(part.records))
	for _, r := range part.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return pendingLess(out[i], out[j]) })
	return out, nil
}

func (s *InMemoryStore) Remove(_ context.Context, p Partition, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if part, ok := s.partitions[p.Name]; ok {
		delete(part.records, id)
	}
	return nil
}

func (s *InMemoryStore) Ping(context.Context) error {
	return nil
}
