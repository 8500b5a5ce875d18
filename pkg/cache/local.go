package cache

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/medreza/honcho-benefit-service/pkg/models"
)

type localEntry struct {
	benefits  []models.Benefit
	expiresAt time.Time
}

// Local is a process local cache. Entries of other processes are not invalidated.
type Local struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[Key]localEntry
}

func NewLocal(ttl time.Duration) *Local {
	return NewLocalWithClock(ttl, time.Now)
}

func NewLocalWithClock(ttl time.Duration, now func() time.Time) *Local {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Local{
		ttl:     ttl,
		now:     now,
		entries: make(map[Key]localEntry),
	}
}

func (c *Local) Get(ctx context.Context, key Key) ([]models.Benefit, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return slices.Clone(e.benefits), true, nil
}

func (c *Local) Set(ctx context.Context, key Key, benefits []models.Benefit) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = localEntry{
		benefits:  slices.Clone(benefits),
		expiresAt: c.now().Add(c.ttl),
	}
	return nil
}

func (c *Local) InvalidateAssociation(ctx context.Context, associationID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k := range c.entries {
		if k.AssociationID == associationID {
			delete(c.entries, k)
		}
	}
	return nil
}

func (c *Local) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
