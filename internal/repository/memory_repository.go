package repository

import (
	"context"
	"sync"
	"time"

	"github.com/salonpos/access-service/internal/models"
)

// MemoryAccessAttemptRepository is an in-memory append-only log, used in
// tests and in dev setups without a database.
type MemoryAccessAttemptRepository struct {
	mu       sync.Mutex
	attempts []models.AccessAttempt
}

func NewMemoryAccessAttemptRepository() *MemoryAccessAttemptRepository {
	return &MemoryAccessAttemptRepository{}
}

func (r *MemoryAccessAttemptRepository) Insert(_ context.Context, attempt *models.AccessAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, *attempt)
	return nil
}

func (r *MemoryAccessAttemptRepository) ListRecent(_ context.Context, limit int) ([]models.AccessAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.AccessAttempt, 0, limit)
	for i := len(r.attempts) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.attempts[i])
	}
	return out, nil
}

func (r *MemoryAccessAttemptRepository) CountSince(_ context.Context, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, a := range r.attempts {
		if !a.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryAccessAttemptRepository) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.attempts[:0]
	var removed int64
	for _, a := range r.attempts {
		if a.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	r.attempts = kept
	return removed, nil
}

// All returns a copy of every recorded attempt in insertion order.
// Test-only helper.
func (r *MemoryAccessAttemptRepository) All() []models.AccessAttempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.AccessAttempt, len(r.attempts))
	copy(out, r.attempts)
	return out
}
