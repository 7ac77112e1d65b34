// Package memory is an in-process event store for local development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Togather-Foundation/webhook-receiver/internal/domain/ids"
	"github.com/Togather-Foundation/webhook-receiver/internal/domain/webhooks"
)

var _ webhooks.Store = (*Store)(nil)

type entry struct {
	seq    int64
	record webhooks.EventRecord
}

// Store keeps records in insertion order behind a mutex.
type Store struct {
	mu      sync.RWMutex
	entries []entry
	seq     int64
	// unavailable, when set, fails every operation.
	unavailable error
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Insert(_ context.Context, record webhooks.EventRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unavailable != nil {
		return "", fmt.Errorf("%w: %w", webhooks.ErrStoreUnavailable, s.unavailable)
	}

	id, err := ids.NewULID()
	if err != nil {
		return "", fmt.Errorf("%w: generate id: %w", webhooks.ErrStoreUnavailable, err)
	}
	s.seq++
	record.ID = id
	record.Push = clonePush(record.Push)
	record.PullRequest = clonePullRequest(record.PullRequest)
	s.entries = append(s.entries, entry{seq: s.seq, record: record})
	return id, nil
}

func (s *Store) Query(_ context.Context, skip int64, limit int) ([]webhooks.EventRecord, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.unavailable != nil {
		return nil, 0, fmt.Errorf("%w: %w", webhooks.ErrStoreUnavailable, s.unavailable)
	}

	ordered := make([]entry, len(s.entries))
	copy(ordered, s.entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.record.ReceivedAt.Equal(b.record.ReceivedAt) {
			return a.record.ReceivedAt.After(b.record.ReceivedAt)
		}
		return a.seq > b.seq
	})

	total := int64(len(ordered))
	if skip < 0 {
		skip = 0
	}
	if skip >= total || limit <= 0 {
		return []webhooks.EventRecord{}, total, nil
	}
	end := skip + int64(limit)
	if end > total {
		end = total
	}

	out := make([]webhooks.EventRecord, 0, end-skip)
	for _, e := range ordered[skip:end] {
		record := e.record
		record.Push = clonePush(record.Push)
		record.PullRequest = clonePullRequest(record.PullRequest)
		out = append(out, record)
	}
	return out, total, nil
}

func (s *Store) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unavailable
}

// Len reports the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// SetUnavailable makes every operation fail with err until called with nil.
func (s *Store) SetUnavailable(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable = err
}

func clonePush(d *webhooks.PushDetails) *webhooks.PushDetails {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

func clonePullRequest(d *webhooks.PullRequestDetails) *webhooks.PullRequestDetails {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}
