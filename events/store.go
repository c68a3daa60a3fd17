package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrVersionConflict means the append's expected version no longer
	// matches the stream head: another transaction settled first.
	ErrVersionConflict = errors.New("events: version conflict")
)

// Store is an append-only event log with optimistic concurrency control.
// Append succeeds only if expectedVersion matches the current head of the
// stream (-1 for a stream with no events yet); the returned version is the
// head after the append.
type Store interface {
	Append(ctx context.Context, stream string, expectedVersion int, evts []*Event) (int, error)
	Read(ctx context.Context, stream string, from int) ([]*Event, error)
	Version(ctx context.Context, stream string) (int, error)
	Close() error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	streams map[string][]*Event
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{streams: make(map[string][]*Event)}
}

// Append appends events to a stream if expectedVersion matches its head.
func (s *MemoryStore) Append(ctx context.Context, stream string, expectedVersion int, evts []*Event) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	head := len(s.streams[stream]) - 1
	if head != expectedVersion {
		return 0, fmt.Errorf("%w: stream %q at %d, expected %d", ErrVersionConflict, stream, head, expectedVersion)
	}
	for _, e := range evts {
		head++
		copied := *e
		copied.Stream = stream
		copied.Version = head
		s.streams[stream] = append(s.streams[stream], &copied)
		e.Version = head
	}
	return head, nil
}

// Read returns events of a stream starting at version from.
func (s *MemoryStore) Read(ctx context.Context, stream string, from int) ([]*Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.streams[stream]
	if from < 0 {
		from = 0
	}
	if from >= len(all) {
		return nil, nil
	}
	out := make([]*Event, len(all)-from)
	copy(out, all[from:])
	return out, nil
}

// Version returns the head version of a stream, -1 if empty.
func (s *MemoryStore) Version(ctx context.Context, stream string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.streams[stream]) - 1, nil
}

// Close releases nothing; it satisfies Store.
func (s *MemoryStore) Close() error { return nil }
