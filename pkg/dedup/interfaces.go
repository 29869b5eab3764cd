package dedup

import (
	"context"
	"time"

	"github.com/Ramsey-B/clover/pkg/models"
)

// EntityStore is the data access the engine needs for one entity type.
type EntityStore interface {
	ListCandidates(ctx context.Context, tenantID string) ([]models.Record, error)
	GetByIDs(ctx context.Context, tenantID string, ids []string) ([]models.Record, error)
	Reassign(ctx context.Context, tenantID, fromID, toID string) (models.ReassignCounts, error)
	Delete(ctx context.Context, tenantID, id string) error
}

type SuggestionStore interface {
	ListPairs(ctx context.Context, tenantID string, entityType models.EntityType, statuses []models.SuggestionStatus) ([]models.PairKey, error)
	InsertMany(ctx context.Context, suggestions []*models.DuplicateSuggestion) (int, error)
	ListPending(ctx context.Context, tenantID string, entityType models.EntityType) ([]*models.DuplicateSuggestion, error)
	Get(ctx context.Context, tenantID, id string) (*models.DuplicateSuggestion, error)
	UpdateStatus(ctx context.Context, tenantID, id string, status models.SuggestionStatus, reviewedBy string, reviewedAt time.Time) error
	DismissReferencing(ctx context.Context, tenantID string, entityType models.EntityType, entityID, reviewedBy string, reviewedAt time.Time) (int, error)
}

// Transactor runs fn in one transaction bound to the ctx fn receives.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type AuditSink interface {
	Log(ctx context.Context, entry *models.AuditEntry) error
}

// Locker serializes detection runs. Acquire returns the release func of the held lock.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(context.Context) error, error)
}
