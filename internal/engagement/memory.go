package engagement

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/serafis/podreco/internal/model"
)

type record struct {
	id         string
	engagement model.Engagement
}

// MemoryStore is an in-process Store, used in tests and for deployments
// without a database.
type MemoryStore struct {
	mu   sync.Mutex
	byID map[string][]record // user id -> records
}

// NewMemoryStore returns an empty in-memory engagement store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string][]record)}
}

func (m *MemoryStore) GetEngagementsForRanking(ctx context.Context, userID string, requestEngagements []model.Engagement) ([]model.Engagement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if userID == "" {
		return requestEngagements, nil
	}
	stored := make([]model.Engagement, len(m.byID[userID]))
	for i, r := range m.byID[userID] {
		stored[i] = r.engagement
	}
	return resolveForRanking(userID, requestEngagements, stored), nil
}

func (m *MemoryStore) RecordEngagement(ctx context.Context, userID string, e model.Engagement) error {
	if userID == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e = stampTimestamp(e, time.Now().UTC())
	m.byID[userID] = append(m.byID[userID], record{id: uuid.NewString(), engagement: e})
	return nil
}

func (m *MemoryStore) DeleteEngagement(ctx context.Context, userID, engagementID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	records := m.byID[userID]
	for i, r := range records {
		if r.id == engagementID {
			m.byID[userID] = append(records[:i], records[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) DeleteAllEngagements(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, userID)
	return nil
}
