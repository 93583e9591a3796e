package auth

import (
	"context"
	"sync"
	"time"
)

// Revoker tracks logged-out token ids until their natural expiry.
type Revoker interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// MemoryRevoker keeps revoked JTIs in process memory. Expired entries are
// removed every five minutes.
type MemoryRevoker struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

func NewMemoryRevoker() *MemoryRevoker {
	r := &MemoryRevoker{
		entries: make(map[string]time.Time),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go r.cleanupLoop()
	return r
}

func (r *MemoryRevoker) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	if jti == "" || !expiresAt.After(r.now()) {
		return nil
	}
	r.mu.Lock()
	r.entries[jti] = expiresAt
	r.mu.Unlock()
	return nil
}

func (r *MemoryRevoker) IsRevoked(_ context.Context, jti string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[jti]
	return ok, nil
}

// Count returns the number of tracked revocations.
func (r *MemoryRevoker) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Close stops the cleanup goroutine. Safe to call more than once.
func (r *MemoryRevoker) Close() {
	r.once.Do(func() { close(r.done) })
}

func (r *MemoryRevoker) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.cleanup()
		}
	}
}

func (r *MemoryRevoker) cleanup() {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	for jti, exp := range r.entries {
		if now.After(exp) {
			delete(r.entries, jti)
		}
	}
}
