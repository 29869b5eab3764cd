// Package audit records engine actions in the audit table and on the audit topic.
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/pkg/models"
)

type Store interface {
	Create(ctx context.Context, entry *models.AuditEntry) error
}

type Publisher interface {
	Log(ctx context.Context, entry *models.AuditEntry) error
}

// Logger writes every entry to the store and, when configured, the publisher.
// Both are attempted; their failures are joined.
type Logger struct {
	store     Store
	publisher Publisher
	logger    ectologger.Logger
}

// NewLogger builds an audit logger. publisher may be nil.
func NewLogger(store Store, publisher Publisher, logger ectologger.Logger) *Logger {
	return &Logger{
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

func (l *Logger) Log(ctx context.Context, entry *models.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var errs []error
	if l.store != nil {
		if err := l.store.Create(ctx, entry); err != nil {
			errs = append(errs, fmt.Errorf("audit store: %w", err))
		}
	}
	if l.publisher != nil {
		if err := l.publisher.Log(ctx, entry); err != nil {
			errs = append(errs, fmt.Errorf("audit publisher: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	l.logger.WithContext(ctx).WithFields(map[string]any{
		"audit_id":    entry.ID,
		"action":      entry.Action,
		"entity_type": entry.EntityType,
		"entity_id":   entry.EntityID,
	}).Debug("Recorded audit entry")
	return nil
}
