package contact

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// joinTables link a contact to a parent row; (parent column, contact_id) is unique in each.
var joinTables = []struct {
	table  string
	parent string
}{
	{"deal_contacts", "deal_id"},
	{"activity_contacts", "activity_id"},
}

// Repository reads contact projections (with their emails) and repoints their references during a merge.
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

func (r *Repository) selectBuilder(tenantID string) *sqlbuilder.SelectBuilder {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(
		"c.id",
		"c.tenant_id",
		"c.first_name",
		"c.last_name",
		"c.primary_organization_id",
		sb.As("COALESCE(array_agg(e.email) FILTER (WHERE e.email IS NOT NULL), '{}')", "emails"),
	)
	sb.From("contacts c")
	sb.JoinWithOption(sqlbuilder.LeftJoin, "contact_emails e", "e.contact_id = c.id")
	sb.Where(sb.Equal("c.tenant_id", tenantID))
	sb.GroupBy("c.id")
	return sb
}

// ListCandidates returns every contact of the tenant, with emails, in creation order.
func (r *Repository) ListCandidates(ctx context.Context, tenantID string) ([]models.Record, error) {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.ListCandidates")
	defer span.End()

	sb := r.selectBuilder(tenantID)
	sb.OrderBy("c.created_at", "c.id")

	query, args := sb.Build()
	var contacts []*models.ContactRecord
	if err := r.db.Conn(ctx).SelectContext(ctx, &contacts, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("tenant_id", tenantID).Error("Failed to list contacts")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list contacts")
	}

	return toRecords(contacts), nil
}

// GetByIDs returns the contacts of the tenant with the given ids. Missing ids are omitted.
func (r *Repository) GetByIDs(ctx context.Context, tenantID string, ids []string) ([]models.Record, error) {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.GetByIDs")
	defer span.End()

	if len(ids) == 0 {
		return nil, nil
	}

	sb := r.selectBuilder(tenantID)
	sb.Where(sb.In("c.id", sqlbuilder.Flatten(ids)...))

	query, args := sb.Build()
	var contacts []*models.ContactRecord
	if err := r.db.Conn(ctx).SelectContext(ctx, &contacts, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("count", len(ids)).Error("Failed to get contacts by ids")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get contacts")
	}

	return toRecords(contacts), nil
}

// Reassign repoints deal and activity links and notes from fromID to toID. A link the
// primary already has is dropped instead of repointed; both count toward the table.
func (r *Repository) Reassign(ctx context.Context, tenantID, fromID, toID string) (models.ReassignCounts, error) {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.Reassign")
	defer span.End()

	conn := r.db.Conn(ctx)
	counts := models.ReassignCounts{}

	for _, jt := range joinTables {
		moveQuery := fmt.Sprintf(`
			UPDATE %[1]s SET contact_id = $1
			WHERE tenant_id = $2 AND contact_id = $3
			AND NOT EXISTS (
				SELECT 1 FROM %[1]s p
				WHERE p.tenant_id = $2 AND p.contact_id = $1 AND p.%[2]s = %[1]s.%[2]s
			)
		`, jt.table, jt.parent)

		moved, err := conn.ExecContext(ctx, moveQuery, toID, tenantID, fromID)
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"table": jt.table, "from_id": fromID}).Error("Failed to reassign contact links")
			return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to reassign contact links")
		}

		del := sqlbuilder.PostgreSQL.NewDeleteBuilder()
		del.DeleteFrom(jt.table)
		del.Where(
			del.Equal("tenant_id", tenantID),
			del.Equal("contact_id", fromID),
		)
		query, args := del.Build()
		collapsed, err := conn.ExecContext(ctx, query, args...)
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"table": jt.table, "from_id": fromID}).Error("Failed to collapse duplicate contact links")
			return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to reassign contact links")
		}

		movedRows, _ := moved.RowsAffected()
		collapsedRows, _ := collapsed.RowsAffected()
		counts[jt.table] = movedRows + collapsedRows
	}

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("notes")
	ub.Set(
		ub.Assign("entity_id", toID),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(
		ub.Equal("tenant_id", tenantID),
		ub.Equal("entity_type", models.EntityTypeContact),
		ub.Equal("entity_id", fromID),
	)

	query, args := ub.Build()
	result, err := conn.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("from_id", fromID).Error("Failed to reassign contact notes")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to reassign contact notes")
	}
	rows, _ := result.RowsAffected()
	counts["notes"] = rows

	return counts, nil
}

// Delete removes a contact; its email rows cascade. A missing contact is a 404.
func (r *Repository) Delete(ctx context.Context, tenantID, id string) error {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.Delete")
	defer span.End()

	del := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	del.DeleteFrom("contacts")
	del.Where(
		del.Equal("tenant_id", tenantID),
		del.Equal("id", id),
	)

	query, args := del.Build()
	result, err := r.db.Conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("contact_id", id).Error("Failed to delete contact")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete contact")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "contact %s not found", id)
	}

	return nil
}

func toRecords(contacts []*models.ContactRecord) []models.Record {
	records := make([]models.Record, len(contacts))
	for i, c := range contacts {
		records[i] = c
	}
	return records
}
