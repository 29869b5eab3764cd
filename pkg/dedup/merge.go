package dedup

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"

	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// loadPending loads a suggestion of the tenant and requires it to still be pending.
func (e *Engine) loadPending(ctx context.Context, tenantID, suggestionID, userID string) (*models.DuplicateSuggestion, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "acting user id is required")
	}
	if suggestionID == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "suggestion id is required")
	}

	s, err := e.suggestions.Get(ctx, tenantID, suggestionID)
	if err != nil {
		return nil, err
	}
	if s.Status != models.SuggestionStatusPending {
		return nil, httperror.NewHTTPErrorf(http.StatusConflict, "suggestion %s is already %s", s.ID, s.Status)
	}
	return s, nil
}

// Merge keeps primaryID, repoints every reference to the other entity of the suggestion
// onto it, deletes that duplicate and marks the suggestion MERGED, all in one transaction.
func (e *Engine) Merge(ctx context.Context, tenantID, suggestionID, primaryID, userID string) (*models.MergeResult, error) {
	ctx, span := tracing.StartSpan(ctx, "dedup.Engine.Merge",
		tracing.TenantIDKey.String(tenantID),
		tracing.SuggestionIDKey.String(suggestionID),
	)
	defer span.End()

	s, err := e.loadPending(ctx, tenantID, suggestionID, userID)
	if err != nil {
		return nil, err
	}

	duplicateID, ok := s.Other(primaryID)
	if !ok {
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "primary id %s is not part of suggestion %s", primaryID, s.ID)
	}

	store, err := e.store(s.EntityType)
	if err != nil {
		return nil, err
	}

	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":     tenantID,
		"suggestion_id": s.ID,
		"entity_type":   s.EntityType,
		"primary_id":    primaryID,
		"duplicate_id":  duplicateID,
	})

	existing, err := store.GetByIDs(ctx, tenantID, []string{primaryID, duplicateID})
	if err != nil {
		return nil, err
	}
	if missing := missingID(existing, primaryID, duplicateID); missing != "" {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "%s %s not found", s.EntityType, missing)
	}

	var (
		reassigned models.ReassignCounts
		closed     int
	)
	err = e.tx.WithinTx(ctx, func(ctx context.Context) error {
		now := e.now()
		// closing the suggestion first locks its row so a concurrent reviewer waits and then gets a 409
		if err := e.suggestions.UpdateStatus(ctx, tenantID, s.ID, models.SuggestionStatusMerged, userID, now); err != nil {
			return err
		}

		counts, err := store.Reassign(ctx, tenantID, duplicateID, primaryID)
		if err != nil {
			return err
		}
		reassigned = counts

		if err := store.Delete(ctx, tenantID, duplicateID); err != nil {
			return err
		}

		// pending suggestions naming the deleted duplicate can no longer be merged
		closed, err = e.suggestions.DismissReferencing(ctx, tenantID, s.EntityType, duplicateID, userID, now)
		return err
	})
	if err != nil {
		tracing.RecordError(span, err)
		metrics.SuggestionsResolvedTotal.WithLabelValues(string(s.EntityType), "merge", "error").Inc()
		log.WithError(err).Error("Merge transaction rolled back")
		if httperror.IsHTTPError(err) && httperror.GetStatusCode(err) < http.StatusInternalServerError {
			return nil, err
		}
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to merge suggestion %s; no changes were applied", s.ID)
	}

	metrics.SuggestionsResolvedTotal.WithLabelValues(string(s.EntityType), "merge", "success").Inc()
	log.WithFields(map[string]any{
		"reassigned":         reassigned.Total(),
		"closed_suggestions": closed,
	}).Info("Merged duplicate entity")

	e.recordAudit(ctx, &models.AuditEntry{
		TenantID:   tenantID,
		UserID:     userID,
		Action:     models.AuditActionMerge,
		EntityType: s.EntityType,
		EntityID:   primaryID,
		Before:     map[string]any{"duplicateId": duplicateID},
		After:      map[string]any{"primaryId": primaryID},
	})

	return &models.MergeResult{
		SuggestionID: s.ID,
		EntityType:   s.EntityType,
		PrimaryID:    primaryID,
		DuplicateID:  duplicateID,
		Reassigned:   reassigned,
		Closed:       closed,
	}, nil
}

// Dismiss closes a pending suggestion without touching entity data.
func (e *Engine) Dismiss(ctx context.Context, tenantID, suggestionID, userID string) (*models.DismissResult, error) {
	ctx, span := tracing.StartSpan(ctx, "dedup.Engine.Dismiss",
		tracing.TenantIDKey.String(tenantID),
		tracing.SuggestionIDKey.String(suggestionID),
	)
	defer span.End()

	s, err := e.loadPending(ctx, tenantID, suggestionID, userID)
	if err != nil {
		return nil, err
	}

	if err := e.suggestions.UpdateStatus(ctx, tenantID, s.ID, models.SuggestionStatusDismissed, userID, e.now()); err != nil {
		tracing.RecordError(span, err)
		metrics.SuggestionsResolvedTotal.WithLabelValues(string(s.EntityType), "dismiss", "error").Inc()
		return nil, err
	}
	metrics.SuggestionsResolvedTotal.WithLabelValues(string(s.EntityType), "dismiss", "success").Inc()

	e.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":     tenantID,
		"suggestion_id": s.ID,
		"entity_type":   s.EntityType,
	}).Info("Dismissed duplicate suggestion")

	e.recordAudit(ctx, &models.AuditEntry{
		TenantID:   tenantID,
		UserID:     userID,
		Action:     models.AuditActionDismiss,
		EntityType: s.EntityType,
		EntityID:   s.EntityID1,
		Before:     map[string]any{"suggestionId": s.ID, "status": models.SuggestionStatusPending},
		After:      map[string]any{"suggestionId": s.ID, "status": models.SuggestionStatusDismissed},
	})

	return &models.DismissResult{SuggestionID: s.ID, Status: models.SuggestionStatusDismissed}, nil
}

// recordAudit is best effort: failures are logged and counted, never returned.
func (e *Engine) recordAudit(ctx context.Context, entry *models.AuditEntry) {
	if e.audit == nil {
		return
	}
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.config.AuditTimeout)
	defer cancel()

	if err := e.audit.Log(auditCtx, entry); err != nil {
		metrics.AuditFailuresTotal.WithLabelValues(string(entry.Action)).Inc()
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id":   entry.TenantID,
			"action":      entry.Action,
			"entity_type": entry.EntityType,
			"entity_id":   entry.EntityID,
		}).Error("Failed to record audit entry")
	}
}

func missingID(records []models.Record, ids ...string) string {
	found := make(map[string]struct{}, len(records))
	for _, r := range records {
		found[r.GetID()] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return id
		}
	}
	return ""
}
