package suggestion

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const table = "duplicate_suggestions"

var columns = []string{
	"id", "tenant_id", "entity_type", "entity_id_1", "entity_id_2", "similarity_score",
	"status", "reviewed_by_user_id", "reviewed_at", "created_at", "updated_at",
}

// Repository persists duplicate suggestions and guards their status transitions.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// ListPairs returns the canonical pair keys of the tenant's suggestions in any of statuses.
func (r *Repository) ListPairs(ctx context.Context, tenantID string, entityType models.EntityType, statuses []models.SuggestionStatus) ([]models.PairKey, error) {
	ctx, span := tracing.StartSpan(ctx, "suggestion.Repository.ListPairs")
	defer span.End()

	if len(statuses) == 0 {
		return nil, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("entity_id_1", "entity_id_2")
	sb.From(table)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("entity_type", entityType),
		sb.In("status", sqlbuilder.Flatten(statuses)...),
	)

	query, args := sb.Build()
	var pairs []models.PairKey
	if err := r.db.Conn(ctx).SelectContext(ctx, &pairs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "entity_type": entityType}).Error("Failed to list suggestion pairs")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list suggestion pairs")
	}

	for i := range pairs {
		pairs[i] = models.NewPairKey(pairs[i].A, pairs[i].B)
	}
	return pairs, nil
}

// InsertMany writes the suggestions in one statement and returns how many rows were created.
// Pairs that already have a pending suggestion are skipped by the partial unique index.
func (r *Repository) InsertMany(ctx context.Context, suggestions []*models.DuplicateSuggestion) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "suggestion.Repository.InsertMany")
	defer span.End()

	if len(suggestions) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols("id", "tenant_id", "entity_type", "entity_id_1", "entity_id_2", "similarity_score", "status", "created_at", "updated_at")

	for _, s := range suggestions {
		if s.ID == "" {
			s.ID = uuid.New().String()
		}
		pair := models.NewPairKey(s.EntityID1, s.EntityID2)
		s.EntityID1, s.EntityID2 = pair.A, pair.B
		if s.Status == "" {
			s.Status = models.SuggestionStatusPending
		}
		s.CreatedAt = now
		s.UpdatedAt = now
		ib.Values(s.ID, s.TenantID, s.EntityType, s.EntityID1, s.EntityID2, s.SimilarityScore, s.Status, s.CreatedAt, s.UpdatedAt)
	}

	query, args := ib.Build()
	query += " ON CONFLICT DO NOTHING"

	result, err := r.db.Conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("count", len(suggestions)).Error("Failed to insert duplicate suggestions")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create duplicate suggestions")
	}

	rows, _ := result.RowsAffected()
	r.logger.WithContext(ctx).WithFields(map[string]any{"staged": len(suggestions), "created": rows}).Debug("Inserted duplicate suggestions")
	return int(rows), nil
}

// ListPending returns the tenant's pending suggestions of one type, highest score first.
func (r *Repository) ListPending(ctx context.Context, tenantID string, entityType models.EntityType) ([]*models.DuplicateSuggestion, error) {
	ctx, span := tracing.StartSpan(ctx, "suggestion.Repository.ListPending")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("entity_type", entityType),
		sb.Equal("status", models.SuggestionStatusPending),
	)
	sb.OrderBy("similarity_score DESC", "created_at DESC")

	query, args := sb.Build()
	var suggestions []*models.DuplicateSuggestion
	if err := r.db.Conn(ctx).SelectContext(ctx, &suggestions, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "entity_type": entityType}).Error("Failed to list pending suggestions")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list pending suggestions")
	}

	return suggestions, nil
}

func (r *Repository) Get(ctx context.Context, tenantID, id string) (*models.DuplicateSuggestion, error) {
	ctx, span := tracing.StartSpan(ctx, "suggestion.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("id", id),
	)

	query, args := sb.Build()
	var s models.DuplicateSuggestion
	if err := r.db.Conn(ctx).GetContext(ctx, &s, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "suggestion %s not found", id)
		}
		r.logger.WithContext(ctx).WithError(err).WithField("suggestion_id", id).Error("Failed to get suggestion")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get suggestion")
	}

	return &s, nil
}

// UpdateStatus closes a pending suggestion. A suggestion that is no longer pending is a 409.
func (r *Repository) UpdateStatus(ctx context.Context, tenantID, id string, status models.SuggestionStatus, reviewedBy string, reviewedAt time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "suggestion.Repository.UpdateStatus")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update(table)
	ub.Set(
		ub.Assign("status", status),
		ub.Assign("reviewed_by_user_id", reviewedBy),
		ub.Assign("reviewed_at", reviewedAt),
		ub.Assign("updated_at", reviewedAt),
	)
	ub.Where(
		ub.Equal("tenant_id", tenantID),
		ub.Equal("id", id),
		ub.Equal("status", models.SuggestionStatusPending),
	)

	query, args := ub.Build()
	result, err := r.db.Conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"suggestion_id": id, "status": status}).Error("Failed to update suggestion status")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update suggestion status")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusConflict, "suggestion %s is no longer pending", id)
	}

	return nil
}

// DismissReferencing dismisses every pending suggestion that names entityID and returns how many it closed.
func (r *Repository) DismissReferencing(ctx context.Context, tenantID string, entityType models.EntityType, entityID, reviewedBy string, reviewedAt time.Time) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "suggestion.Repository.DismissReferencing")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update(table)
	ub.Set(
		ub.Assign("status", models.SuggestionStatusDismissed),
		ub.Assign("reviewed_by_user_id", reviewedBy),
		ub.Assign("reviewed_at", reviewedAt),
		ub.Assign("updated_at", reviewedAt),
	)
	ub.Where(
		ub.Equal("tenant_id", tenantID),
		ub.Equal("entity_type", entityType),
		ub.Equal("status", models.SuggestionStatusPending),
		ub.Or(
			ub.Equal("entity_id_1", entityID),
			ub.Equal("entity_id_2", entityID),
		),
	)

	query, args := ub.Build()
	result, err := r.db.Conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "entity_id": entityID}).Error("Failed to dismiss suggestions referencing entity")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to close suggestions of merged entity")
	}

	rows, _ := result.RowsAffected()
	return int(rows), nil
}
