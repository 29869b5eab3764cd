package organization

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

var columns = []string{"id", "tenant_id", "name", "website", "street_address", "city", "zip_code", "country"}

// references are the (table, column) pairs that point at an organization.
var references = []struct {
	table  string
	column string
}{
	{"contacts", "primary_organization_id"},
	{"deals", "organization_id"},
	{"activities", "related_organization_id"},
}

// Repository reads organization projections and repoints their references during a merge.
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

// ListCandidates returns every organization of the tenant in creation order.
func (r *Repository) ListCandidates(ctx context.Context, tenantID string) ([]models.Record, error) {
	ctx, span := tracing.StartSpan(ctx, "organization.Repository.ListCandidates")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("organizations")
	sb.Where(sb.Equal("tenant_id", tenantID))
	sb.OrderBy("created_at", "id")

	query, args := sb.Build()
	var orgs []*models.OrganizationRecord
	if err := r.db.Conn(ctx).SelectContext(ctx, &orgs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("tenant_id", tenantID).Error("Failed to list organizations")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list organizations")
	}

	return toRecords(orgs), nil
}

// GetByIDs returns the organizations of the tenant with the given ids. Missing ids are omitted.
func (r *Repository) GetByIDs(ctx context.Context, tenantID string, ids []string) ([]models.Record, error) {
	ctx, span := tracing.StartSpan(ctx, "organization.Repository.GetByIDs")
	defer span.End()

	if len(ids) == 0 {
		return nil, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("organizations")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.In("id", sqlbuilder.Flatten(ids)...),
	)

	query, args := sb.Build()
	var orgs []*models.OrganizationRecord
	if err := r.db.Conn(ctx).SelectContext(ctx, &orgs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("count", len(ids)).Error("Failed to get organizations by ids")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get organizations")
	}

	return toRecords(orgs), nil
}

// Reassign repoints contacts, deals, activities and notes from fromID to toID.
func (r *Repository) Reassign(ctx context.Context, tenantID, fromID, toID string) (models.ReassignCounts, error) {
	ctx, span := tracing.StartSpan(ctx, "organization.Repository.Reassign")
	defer span.End()

	conn := r.db.Conn(ctx)
	now := time.Now().UTC()
	counts := models.ReassignCounts{}

	for _, ref := range references {
		ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
		ub.Update(ref.table)
		ub.Set(
			ub.Assign(ref.column, toID),
			ub.Assign("updated_at", now),
		)
		ub.Where(
			ub.Equal("tenant_id", tenantID),
			ub.Equal(ref.column, fromID),
		)

		query, args := ub.Build()
		result, err := conn.ExecContext(ctx, query, args...)
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"table": ref.table, "from_id": fromID}).Error("Failed to reassign organization references")
			return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to reassign organization references")
		}
		rows, _ := result.RowsAffected()
		counts[ref.table] = rows
	}

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("notes")
	ub.Set(
		ub.Assign("entity_id", toID),
		ub.Assign("updated_at", now),
	)
	ub.Where(
		ub.Equal("tenant_id", tenantID),
		ub.Equal("entity_type", models.EntityTypeOrganization),
		ub.Equal("entity_id", fromID),
	)

	query, args := ub.Build()
	result, err := conn.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("from_id", fromID).Error("Failed to reassign organization notes")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to reassign organization notes")
	}
	rows, _ := result.RowsAffected()
	counts["notes"] = rows

	return counts, nil
}

// Delete removes an organization. A missing organization is a 404.
func (r *Repository) Delete(ctx context.Context, tenantID, id string) error {
	ctx, span := tracing.StartSpan(ctx, "organization.Repository.Delete")
	defer span.End()

	del := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	del.DeleteFrom("organizations")
	del.Where(
		del.Equal("tenant_id", tenantID),
		del.Equal("id", id),
	)

	query, args := del.Build()
	result, err := r.db.Conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("organization_id", id).Error("Failed to delete organization")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete organization")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "organization %s not found", id)
	}

	return nil
}

func toRecords(orgs []*models.OrganizationRecord) []models.Record {
	records := make([]models.Record, len(orgs))
	for i, o := range orgs {
		records[i] = o
	}
	return records
}
