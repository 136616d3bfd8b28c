package repository

import (
	"context"
	"time"

	"github.com/salonpos/access-service/internal/models"
)

// AccessAttemptRepository persists door actuation attempts as an append-only
// audit log. Records are never updated; the only delete path is the retention
// sweeper dropping records past their configured age.
type AccessAttemptRepository interface {
	Insert(ctx context.Context, attempt *models.AccessAttempt) error
	// ListRecent returns up to limit attempts, newest first.
	ListRecent(ctx context.Context, limit int) ([]models.AccessAttempt, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
	// DeleteOlderThan prunes attempts created before cutoff and reports how
	// many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
