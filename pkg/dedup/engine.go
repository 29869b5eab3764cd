// Package dedup detects duplicate organizations and contacts within a tenant and resolves
// the resulting suggestions by merging or dismissing them.
package dedup

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/similarity"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// defaultAuditTimeout bounds an audit write when Config.AuditTimeout is unset.
const defaultAuditTimeout = 5 * time.Second

type Config struct {
	// ResurfaceDismissed lets detection suggest a pair again after it was dismissed.
	ResurfaceDismissed bool
	// AuditTimeout bounds each audit write made after a merge or dismiss has committed.
	AuditTimeout       time.Duration
}

type Engine struct {
	logger      ectologger.Logger
	config      Config
	stores      map[models.EntityType]EntityStore
	suggestions SuggestionStore
	tx          Transactor
	audit       AuditSink
	locker      Locker
	scorer      *similarity.Scorer
	now         func() time.Time
}

// NewEngine builds the engine. locker may be nil, in which case concurrent detection
// runs rely on the suggestion store's uniqueness guarantee alone.
func NewEngine(
	logger ectologger.Logger,
	config Config,
	stores map[models.EntityType]EntityStore,
	suggestions SuggestionStore,
	tx Transactor,
	audit AuditSink,
	locker Locker,
) *Engine {
	if config.AuditTimeout <= 0 {
		config.AuditTimeout = defaultAuditTimeout
	}
	return &Engine{
		logger:      logger,
		config:      config,
		stores:      stores,
		suggestions: suggestions,
		tx:          tx,
		audit:       audit,
		locker:      locker,
		scorer:      similarity.NewScorer(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (e *Engine) store(entityType models.EntityType) (EntityStore, error) {
	if !entityType.Valid() {
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "unsupported entity type %q", entityType)
	}
	store, ok := e.stores[entityType]
	if !ok {
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "no store registered for %s", entityType)
	}
	return store, nil
}

func requireTenant(tenantID string) error {
	if tenantID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "tenant id is required")
	}
	return nil
}

func detectLockKey(tenantID string, entityType models.EntityType) string {
	return fmt.Sprintf("detect:%s:%s", tenantID, entityType)
}

// knownStatuses are the suggestion states whose pairs detection must not suggest again.
func (e *Engine) knownStatuses() []models.SuggestionStatus {
	if e.config.ResurfaceDismissed {
		return []models.SuggestionStatus{models.SuggestionStatusPending}
	}
	return []models.SuggestionStatus{models.SuggestionStatusPending, models.SuggestionStatusDismissed}
}

// Detect scores every pair of the tenant's entities of one type and stores a pending
// suggestion for each new pair at or above the similarity threshold. It returns the
// number of suggestions actually created.
func (e *Engine) Detect(ctx context.Context, tenantID string, entityType models.EntityType) (result *models.DetectResult, err error) {
	ctx, span := tracing.StartSpan(ctx, "dedup.Engine.Detect",
		tracing.TenantIDKey.String(tenantID),
		tracing.EntityTypeKey.String(string(entityType)),
	)
	defer span.End()

	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	store, err := e.store(entityType)
	if err != nil {
		return nil, err
	}

	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":   tenantID,
		"entity_type": entityType,
	})

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		tracing.RecordError(span, err)
		metrics.DetectionRunsTotal.WithLabelValues(string(entityType), status).Inc()
		metrics.DetectionDuration.WithLabelValues(string(entityType)).Observe(time.Since(start).Seconds())
	}()

	if e.locker != nil {
		release, err := e.locker.Acquire(ctx, detectLockKey(tenantID, entityType))
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				log.WithError(err).Warnf("failed to release detection lock")
			}
		}()
	}

	records, err := store.ListCandidates(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	pairs, err := e.suggestions.ListPairs(ctx, tenantID, entityType, e.knownStatuses())
	if err != nil {
		return nil, err
	}

	known := make(map[models.PairKey]struct{}, len(pairs))
	for _, p := range pairs {
		known[models.NewPairKey(p.A, p.B)] = struct{}{}
	}

	var staged []*models.DuplicateSuggestion
	for i := 0; i < len(records); i++ {
		for j := i + 1; j < len(records); j++ {
			a, b := records[i], records[j]
			if a.GetID() == b.GetID() {
				continue
			}

			key := models.NewPairKey(a.GetID(), b.GetID())
			if _, ok := known[key]; ok {
				continue
			}

			score := e.scorer.Score(a, b)
			if score < similarity.Threshold {
				continue
			}

			known[key] = struct{}{}
			staged = append(staged, &models.DuplicateSuggestion{
				TenantID:        tenantID,
				EntityType:      entityType,
				EntityID1:       key.A,
				EntityID2:       key.B,
				SimilarityScore: score,
				Status:          models.SuggestionStatusPending,
			})
		}
	}

	n := len(records)
	metrics.PairsComparedTotal.WithLabelValues(string(entityType)).Add(float64(n * (n - 1) / 2))

	created, err := e.suggestions.InsertMany(ctx, staged)
	if err != nil {
		return nil, err
	}
	metrics.SuggestionsCreatedTotal.WithLabelValues(string(entityType)).Add(float64(created))

	log.WithFields(map[string]any{
		"entities": n,
		"staged":   len(staged),
		"created":  created,
		"duration": time.Since(start),
	}).Info("Duplicate detection completed")

	return &models.DetectResult{Detected: created}, nil
}

// List returns the tenant's pending suggestions of one type, highest score first, with the
// current snapshot of both entities. Entities are fetched in one batch; a snapshot is nil
// when its entity no longer exists.
func (e *Engine) List(ctx context.Context, tenantID string, entityType models.EntityType) ([]*models.EnrichedSuggestion, error) {
	ctx, span := tracing.StartSpan(ctx, "dedup.Engine.List",
		tracing.TenantIDKey.String(tenantID),
		tracing.EntityTypeKey.String(string(entityType)),
	)
	defer span.End()

	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	store, err := e.store(entityType)
	if err != nil {
		return nil, err
	}

	suggestions, err := e.suggestions.ListPending(ctx, tenantID, entityType)
	if err != nil {
		return nil, err
	}
	if len(suggestions) == 0 {
		return []*models.EnrichedSuggestion{}, nil
	}

	byID, err := e.snapshots(ctx, store, tenantID, suggestions...)
	if err != nil {
		return nil, err
	}

	return ectolinq.Map(suggestions, func(s *models.DuplicateSuggestion) *models.EnrichedSuggestion {
		return enrich(s, byID)
	}), nil
}

// Get returns one suggestion in any status with its entity snapshots.
func (e *Engine) Get(ctx context.Context, tenantID, suggestionID string) (*models.EnrichedSuggestion, error) {
	ctx, span := tracing.StartSpan(ctx, "dedup.Engine.Get",
		tracing.TenantIDKey.String(tenantID),
		tracing.SuggestionIDKey.String(suggestionID),
	)
	defer span.End()

	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}

	s, err := e.suggestions.Get(ctx, tenantID, suggestionID)
	if err != nil {
		return nil, err
	}
	store, err := e.store(s.EntityType)
	if err != nil {
		return nil, err
	}

	byID, err := e.snapshots(ctx, store, tenantID, s)
	if err != nil {
		return nil, err
	}
	return enrich(s, byID), nil
}

func (e *Engine) snapshots(ctx context.Context, store EntityStore, tenantID string, suggestions ...*models.DuplicateSuggestion) (map[string]models.Record, error) {
	seen := make(map[string]struct{}, len(suggestions)*2)
	ids := make([]string, 0, len(suggestions)*2)
	for _, s := range suggestions {
		for _, id := range []string{s.EntityID1, s.EntityID2} {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	records, err := store.GetByIDs(ctx, tenantID, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.Record, len(records))
	for _, r := range records {
		byID[r.GetID()] = r
	}
	return byID, nil
}

func enrich(s *models.DuplicateSuggestion, byID map[string]models.Record) *models.EnrichedSuggestion {
	return &models.EnrichedSuggestion{
		DuplicateSuggestion: *s,
		Entity1:             byID[s.EntityID1],
		Entity2:             byID[s.EntityID2],
	}
}
