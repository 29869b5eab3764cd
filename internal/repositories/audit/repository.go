package audit

import (
	"context"
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

// Create writes one audit_logs row. It never joins a caller's transaction.
func (r *Repository) Create(ctx context.Context, entry *models.AuditEntry) error {
	ctx, span := tracing.StartSpan(ctx, "audit.Repository.Create")
	defer span.End()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("audit_logs")
	ib.Cols("id", "tenant_id", "user_id", "action", "entity_type", "entity_id", "before", "after", "created_at")
	ib.Values(
		entry.ID,
		entry.TenantID,
		entry.UserID,
		entry.Action,
		entry.EntityType,
		entry.EntityID,
		database.NewJSONB(entry.Before),
		database.NewJSONB(entry.After),
		entry.CreatedAt,
	)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"action": entry.Action, "entity_id": entry.EntityID}).Error("Failed to create audit log")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create audit log")
	}

	return nil
}
