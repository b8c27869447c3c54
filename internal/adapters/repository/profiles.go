package repository

import (
	"context"
	_ "embed"
	"fmt"
	"sync"

	"go.yaml.in/yaml/v3"

	"github.com/okian/riskwatch/internal/domain/model"
	"github.com/okian/riskwatch/pkg/metrics"
)

// Demo account IDs.
const (
	DemoImmediateCrisis int64 = 12345
	DemoSlowBurn        int64 = 67890
	DemoModerateRisk    int64 = 23456
	DemoControlled      int64 = 34567
)

//go:embed demo_users.yaml
var demoUsersYAML []byte

// DemoProfiles returns the embedded demo accounts.
func DemoProfiles() ([]model.Profile, error) {
	var profiles []model.Profile
	if err := yaml.Unmarshal(demoUsersYAML, &profiles); err != nil {
		return nil, fmt.Errorf("decode demo profiles: %w", err)
	}
	return profiles, nil
}

// InMemoryProfileStore implements ProfileStore over a map.
type InMemoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[int64]model.Profile
}

// NewInMemoryProfileStore creates a store pre-populated with seed.
func NewInMemoryProfileStore(seed ...model.Profile) *InMemoryProfileStore {
	s := &InMemoryProfileStore{profiles: make(map[int64]model.Profile, len(seed))}
	for _, p := range seed {
		s.profiles[p.UserID] = p
	}
	metrics.UpdateProfilesTotal(len(s.profiles))
	return s
}

// Get implements ProfileStore.
func (s *InMemoryProfileStore) Get(_ context.Context, userID int64) (model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return model.Profile{}, fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	return p, nil
}

// Put implements ProfileStore.
func (s *InMemoryProfileStore) Put(_ context.Context, p model.Profile) error {
	s.mu.Lock()
	s.profiles[p.UserID] = p
	n := len(s.profiles)
	s.mu.Unlock()
	metrics.UpdateProfilesTotal(n)
	return nil
}

// Count implements ProfileStore.
func (s *InMemoryProfileStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles)
}
