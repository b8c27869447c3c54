package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/riskwatch/internal/domain/model"
	"github.com/okian/riskwatch/pkg/metrics"
)

type storedAssessment struct {
	a   model.Assessment
	seq uint64
}

// InMemoryAssessmentStore implements AssessmentStore in process memory.
type InMemoryAssessmentStore struct {
	mu     sync.RWMutex
	byID   map[string]*storedAssessment
	seq    uint64
	closed bool
}

// NewInMemoryAssessmentStore creates an empty store.
func NewInMemoryAssessmentStore() *InMemoryAssessmentStore {
	metrics.UpdateAssessmentsStored(0)
	return &InMemoryAssessmentStore{byID: make(map[string]*storedAssessment)}
}

// Save implements AssessmentStore.
func (s *InMemoryAssessmentStore) Save(_ context.Context, a model.Assessment) error {
	start := time.Now()
	defer observe("save", start)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.seq++
	s.byID[a.AssessmentID] = &storedAssessment{a: a, seq: s.seq}
	metrics.UpdateAssessmentsStored(len(s.byID))
	return nil
}

// Get implements AssessmentStore.
func (s *InMemoryAssessmentStore) Get(_ context.Context, id string) (model.Assessment, error) {
	start := time.Now()
	defer observe("get", start)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.Assessment{}, ErrClosed
	}
	st, ok := s.byID[id]
	if !ok {
		return model.Assessment{}, fmt.Errorf("assessment %s: %w", id, ErrNotFound)
	}
	return st.a, nil
}

// List implements AssessmentStore.
func (s *InMemoryAssessmentStore) List(_ context.Context, limit int) ([]model.Assessment, error) {
	start := time.Now()
	defer observe("list", start)

	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrClosed
	}
	all := make([]*storedAssessment, 0, len(s.byID))
	for _, st := range s.byID {
		all = append(all, st)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return newer(all[i], all[j]) })
	if len(all) > limit {
		all = all[:limit]
	}
	out := make([]model.Assessment, len(all))
	for i, st := range all {
		out[i] = st.a
	}
	return out, nil
}

// Latest implements AssessmentStore.
func (s *InMemoryAssessmentStore) Latest(_ context.Context) ([]model.Record, error) {
	start := time.Now()
	defer observe("latest", start)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	latest := make(map[int64]*storedAssessment)
	for _, st := range s.byID {
		if cur, ok := latest[st.a.UserID]; !ok || newer(st, cur) {
			latest[st.a.UserID] = st
		}
	}
	out := make([]model.Record, 0, len(latest))
	for _, st := range latest {
		out = append(out, st.a.Record())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// Count implements AssessmentStore.
func (s *InMemoryAssessmentStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Close implements AssessmentStore.
func (s *InMemoryAssessmentStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// newer orders by assessment date, then by save order.
func newer(a, b *storedAssessment) bool {
	if !a.a.AssessmentDate.Equal(b.a.AssessmentDate) {
		return a.a.AssessmentDate.After(b.a.AssessmentDate)
	}
	return a.seq > b.seq
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
}
