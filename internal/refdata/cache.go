package refdata

import (
	"context"
	"sync"
	"time"
)

// CachedChecker serves id-existence checks from a periodically refreshed
// snapshot. A stale snapshot keeps serving when a refresh fails so reference
// validation degrades gracefully instead of failing closed on admin writes.
type CachedChecker struct {
	client *Client
	ttl    time.Duration

	mu   sync.RWMutex
	snap *Snapshot
}

func NewCachedChecker(client *Client, ttl time.Duration) *CachedChecker {
	return &CachedChecker{client: client, ttl: ttl}
}

func (c *CachedChecker) snapshot(ctx context.Context) (*Snapshot, error) {
	c.mu.RLock()
	snap := c.snap
	c.mu.RUnlock()
	if snap != nil && time.Since(snap.FetchedAt) < c.ttl {
		return snap, nil
	}

	fresh, err := c.client.FetchSnapshot(ctx)
	if err != nil {
		if snap != nil {
			return snap, nil
		}
		return nil, err
	}
	c.mu.Lock()
	c.snap = fresh
	c.mu.Unlock()
	return fresh, nil
}

func (c *CachedChecker) HasProduct(ctx context.Context, id int64) (bool, error) {
	snap, err := c.snapshot(ctx)
	if err != nil {
		return false, err
	}
	return snap.HasProduct(id), nil
}

func (c *CachedChecker) HasCategory(ctx context.Context, id int64) (bool, error) {
	snap, err := c.snapshot(ctx)
	if err != nil {
		return false, err
	}
	return snap.HasCategory(id), nil
}

func (c *CachedChecker) HasCustomerGroup(ctx context.Context, id int64) (bool, error) {
	snap, err := c.snapshot(ctx)
	if err != nil {
		return false, err
	}
	return snap.HasCustomerGroup(id), nil
}

func (c *CachedChecker) HasCoupon(ctx context.Context, code string) (bool, error) {
	snap, err := c.snapshot(ctx)
	if err != nil {
		return false, err
	}
	return snap.HasCoupon(code), nil
}
