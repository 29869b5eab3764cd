package dedup

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/models"
)

func silentLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type snapshotter interface {
	snapshot() (restore func())
}

// refTable maps a referencing row id to the entity id it points at.
type refTable map[string]string

func cloneRefs(refs map[string]refTable) map[string]refTable {
	out := make(map[string]refTable, len(refs))
	for table, rows := range refs {
		cp := make(refTable, len(rows))
		for k, v := range rows {
			cp[k] = v
		}
		out[table] = cp
	}
	return out
}

func reassignRefs(refs map[string]refTable, fromID, toID string) models.ReassignCounts {
	counts := models.ReassignCounts{}
	for table, rows := range refs {
		var n int64
		for row, target := range rows {
			if target == fromID {
				rows[row] = toID
				n++
			}
		}
		counts[table] = n
	}
	return counts
}

type memEntityStore struct {
	mu            sync.Mutex
	entityType    models.EntityType
	tenants       map[string]string
	records       []models.Record
	refs          map[string]refTable
	getByIDsCalls int
	reassignErr   error
	deleteErr     error
}

func newOrgStore() *memEntityStore {
	return &memEntityStore{
		entityType: models.EntityTypeOrganization,
		tenants:    map[string]string{},
		refs: map[string]refTable{
			"contacts":   {},
			"deals":      {},
			"activities": {},
			"notes":      {},
		},
	}
}

func newContactStore() *memEntityStore {
	return &memEntityStore{
		entityType: models.EntityTypeContact,
		tenants:    map[string]string{},
		refs: map[string]refTable{
			"deal_contacts":     {},
			"activity_contacts": {},
			"notes":             {},
		},
	}
}

func (s *memEntityStore) add(tenantID string, r models.Record) {
	s.tenants[r.GetID()] = tenantID
	s.records = append(s.records, r)
}

func (s *memEntityStore) addRef(table, rowID, entityID string) {
	s.refs[table][rowID] = entityID
}

func (s *memEntityStore) has(id string) bool {
	for _, r := range s.records {
		if r.GetID() == id {
			return true
		}
	}
	return false
}

func (s *memEntityStore) ListCandidates(_ context.Context, tenantID string) ([]models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Record
	for _, r := range s.records {
		if s.tenants[r.GetID()] == tenantID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memEntityStore) GetByIDs(_ context.Context, tenantID string, ids []string) ([]models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.getByIDsCalls++
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	var out []models.Record
	for _, r := range s.records {
		if _, ok := want[r.GetID()]; ok && s.tenants[r.GetID()] == tenantID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memEntityStore) Reassign(_ context.Context, _ string, fromID, toID string) (models.ReassignCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := reassignRefs(s.refs, fromID, toID)
	if s.reassignErr != nil {
		return nil, s.reassignErr
	}
	return counts, nil
}

func (s *memEntityStore) Delete(_ context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deleteErr != nil {
		return s.deleteErr
	}
	for i, r := range s.records {
		if r.GetID() == id && s.tenants[id] == tenantID {
			s.records = append(s.records[:i:i], s.records[i+1:]...)
			delete(s.tenants, id)
			return nil
		}
	}
	return httperror.NewHTTPErrorf(http.StatusNotFound, "%s %s not found", s.entityType, id)
}

func (s *memEntityStore) snapshot() func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := append([]models.Record(nil), s.records...)
	tenants := make(map[string]string, len(s.tenants))
	for k, v := range s.tenants {
		tenants[k] = v
	}
	refs := cloneRefs(s.refs)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.records, s.tenants, s.refs = records, tenants, refs
	}
}

type memSuggestionStore struct {
	mu      sync.Mutex
	rows    []*models.DuplicateSuggestion
	nextID  int
	clock   time.Time
	inserts int
}

func newSuggestionStore() *memSuggestionStore {
	return &memSuggestionStore{clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (s *memSuggestionStore) seed(sg *models.DuplicateSuggestion) *models.DuplicateSuggestion {
	s.nextID++
	if sg.ID == "" {
		sg.ID = "seed-" + strconv.Itoa(s.nextID)
	}
	s.clock = s.clock.Add(time.Second)
	sg.CreatedAt = s.clock
	s.rows = append(s.rows, sg)
	return sg
}

func (s *memSuggestionStore) find(id string) *models.DuplicateSuggestion {
	for _, r := range s.rows {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (s *memSuggestionStore) ListPairs(_ context.Context, tenantID string, entityType models.EntityType, statuses []models.SuggestionStatus) ([]models.PairKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.PairKey
	for _, r := range s.rows {
		if r.TenantID != tenantID || r.EntityType != entityType {
			continue
		}
		for _, st := range statuses {
			if r.Status == st {
				// stored as written; the engine canonicalizes
				out = append(out, models.PairKey{A: r.EntityID1, B: r.EntityID2})
				break
			}
		}
	}
	return out, nil
}

func (s *memSuggestionStore) InsertMany(_ context.Context, suggestions []*models.DuplicateSuggestion) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inserts++
	created := 0
	for _, sg := range suggestions {
		key := sg.Pair()
		conflict := false
		for _, r := range s.rows {
			if r.TenantID == sg.TenantID && r.EntityType == sg.EntityType && r.Status == models.SuggestionStatusPending && r.Pair() == key {
				conflict = true
				break
			}
		}
		if conflict {
			continue
		}

		s.nextID++
		s.clock = s.clock.Add(time.Second)
		cp := *sg
		cp.ID = "s-" + strconv.Itoa(s.nextID)
		cp.CreatedAt = s.clock
		cp.UpdatedAt = s.clock
		s.rows = append(s.rows, &cp)
		created++
	}
	return created, nil
}

func (s *memSuggestionStore) ListPending(_ context.Context, tenantID string, entityType models.EntityType) ([]*models.DuplicateSuggestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.DuplicateSuggestion
	for _, r := range s.rows {
		if r.TenantID == tenantID && r.EntityType == entityType && r.Status == models.SuggestionStatusPending {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SimilarityScore != out[j].SimilarityScore {
			return out[i].SimilarityScore > out[j].SimilarityScore
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *memSuggestionStore) Get(_ context.Context, tenantID, id string) (*models.DuplicateSuggestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.find(id)
	if r == nil || r.TenantID != tenantID {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "suggestion %s not found", id)
	}
	cp := *r
	return &cp, nil
}

func (s *memSuggestionStore) UpdateStatus(_ context.Context, tenantID, id string, status models.SuggestionStatus, reviewedBy string, reviewedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.find(id)
	if r == nil || r.TenantID != tenantID || r.Status != models.SuggestionStatusPending {
		return httperror.NewHTTPErrorf(http.StatusConflict, "suggestion %s is no longer pending", id)
	}
	r.Status = status
	r.ReviewedByUserID = &reviewedBy
	r.ReviewedAt = &reviewedAt
	r.UpdatedAt = reviewedAt
	return nil
}

func (s *memSuggestionStore) DismissReferencing(_ context.Context, tenantID string, entityType models.EntityType, entityID, reviewedBy string, reviewedAt time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	closed := 0
	for _, r := range s.rows {
		if r.TenantID != tenantID || r.EntityType != entityType || r.Status != models.SuggestionStatusPending {
			continue
		}
		if r.EntityID1 != entityID && r.EntityID2 != entityID {
			continue
		}
		by, at := reviewedBy, reviewedAt
		r.Status = models.SuggestionStatusDismissed
		r.ReviewedByUserID = &by
		r.ReviewedAt = &at
		r.UpdatedAt = reviewedAt
		closed++
	}
	return closed, nil
}

func (s *memSuggestionStore) snapshot() func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := make([]*models.DuplicateSuggestion, len(s.rows))
	for i, r := range s.rows {
		cp := *r
		rows[i] = &cp
	}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.rows = rows
	}
}

// memTx restores every participant's snapshot when fn fails.
type memTx struct {
	parts []snapshotter
	calls int
}

func (t *memTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	restores := make([]func(), 0, len(t.parts))
	for _, p := range t.parts {
		restores = append(restores, p.snapshot())
	}
	if err := fn(ctx); err != nil {
		for _, restore := range restores {
			restore()
		}
		return err
	}
	return nil
}

type memAudit struct {
	entries []*models.AuditEntry
	err     error
}

func (a *memAudit) Log(_ context.Context, entry *models.AuditEntry) error {
	if a.err != nil {
		return a.err
	}
	a.entries = append(a.entries, entry)
	return nil
}

// blockingAudit holds every write until its context ends.
type blockingAudit struct {
	deadline    time.Time
	hasDeadline bool
}

func (a *blockingAudit) Log(ctx context.Context, _ *models.AuditEntry) error {
	a.deadline, a.hasDeadline = ctx.Deadline()
	<-ctx.Done()
	return ctx.Err()
}

type memLocker struct {
	held     map[string]bool
	acquired []string
	released []string
}

func newMemLocker() *memLocker {
	return &memLocker{held: map[string]bool{}}
}

func (l *memLocker) Acquire(_ context.Context, key string) (func(context.Context) error, error) {
	if l.held[key] {
		return nil, httperror.NewHTTPErrorf(http.StatusConflict, "a detection run is already in progress for %s", key)
	}
	l.held[key] = true
	l.acquired = append(l.acquired, key)
	return func(context.Context) error {
		delete(l.held, key)
		l.released = append(l.released, key)
		return nil
	}, nil
}
