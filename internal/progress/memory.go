package progress

import (
	"context"
	"sync"
)

// MemoryRepository is an in-memory Repository for tests.
type MemoryRepository struct {
	mu       sync.Mutex
	supplies map[int64]Supplies
	upgrades map[int64]Upgrades
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		supplies: make(map[int64]Supplies),
		upgrades: make(map[int64]Upgrades),
	}
}

func (r *MemoryRepository) Save(_ context.Context, userID int64, s Supplies, u Upgrades) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.supplies[userID] = s
	r.upgrades[userID] = u
	return nil
}

func (r *MemoryRepository) Load(_ context.Context, userID int64) (Supplies, Upgrades, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.supplies[userID], r.upgrades[userID], nil
}
