package dedup

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
)

const tenant = "tenant-1"

type harness struct {
	engine      *Engine
	orgs        *memEntityStore
	contacts    *memEntityStore
	suggestions *memSuggestionStore
	tx          *memTx
	audit       *memAudit
	locker      *memLocker
}

func newHarness(cfg Config) *harness {
	h := &harness{
		orgs:        newOrgStore(),
		contacts:    newContactStore(),
		suggestions: newSuggestionStore(),
		audit:       &memAudit{},
		locker:      newMemLocker(),
	}
	h.tx = &memTx{parts: []snapshotter{h.orgs, h.contacts, h.suggestions}}
	h.engine = NewEngine(
		silentLogger(),
		cfg,
		map[models.EntityType]EntityStore{
			models.EntityTypeOrganization: h.orgs,
			models.EntityTypeContact:      h.contacts,
		},
		h.suggestions,
		h.tx,
		h.audit,
		h.locker,
	)
	h.engine.now = func() time.Time { return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC) }
	return h
}

func (h *harness) addOrg(id, name string, website ...string) {
	o := &models.OrganizationRecord{ID: id, TenantID: tenant, Name: name}
	if len(website) > 0 {
		o.Website = &website[0]
	}
	h.orgs.add(tenant, o)
}

func (h *harness) addContact(id, first, last, orgID string, emails ...string) {
	h.contacts.add(tenant, &models.ContactRecord{
		ID:                    id,
		TenantID:              tenant,
		FirstName:             first,
		LastName:              last,
		PrimaryOrganizationID: orgID,
		Emails:                pq.StringArray(emails),
	})
}

func (h *harness) pending(entityType models.EntityType) []*models.DuplicateSuggestion {
	out, _ := h.suggestions.ListPending(context.Background(), tenant, entityType)
	return out
}

func statusCode(t *testing.T, err error) int {
	t.Helper()
	require.Error(t, err)
	require.True(t, httperror.IsHTTPError(err), "expected an http error, got %v", err)
	return httperror.GetStatusCode(err)
}

func TestDetect_ScenarioA_CreatesOneSuggestion(t *testing.T) {
	h := newHarness(Config{})
	h.addOrg("org-b", "Sveriges Television AB")
	h.addOrg("org-a", "Sveriges Television")
	h.addOrg("org-c", "Eyevinn Technology")

	result, err := h.engine.Detect(context.Background(), tenant, models.EntityTypeOrganization)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Detected)

	pending := h.pending(models.EntityTypeOrganization)
	require.Len(t, pending, 1)
	assert.Equal(t, "org-a", pending[0].EntityID1)
	assert.Equal(t, "org-b", pending[0].EntityID2)
	assert.Equal(t, 1.0, pending[0].SimilarityScore)
	assert.Equal(t, models.SuggestionStatusPending, pending[0].Status)
}

func TestDetect_ScenarioB_DomainOverride(t *testing.T) {
	h := newHarness(Config{})
	h.addOrg("org-1", "SVT", "https://svt.se")
	h.addOrg("org-2", "Public Broadcaster Sweden", "http://www.svt.se")

	result, err := h.engine.Detect(context.Background(), tenant, models.EntityTypeOrganization)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Detected)
	assert.Equal(t, 1.0, h.pending(models.EntityTypeOrganization)[0].SimilarityScore)
}

func TestDetect_IsIdempotent(t *testing.T) {
	h := newHarness(Config{})
	h.addOrg("org-1", "Acme Inc")
	h.addOrg("org-2", "Acme")
	h.addOrg("org-3", "ACME Corp")

	first, err := h.engine.Detect(context.Background(), tenant, models.EntityTypeOrganization)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Detected)

	second, err := h.engine.Detect(context.Background(), tenant, models.EntityTypeOrganization)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Detected)
	assert.Len(t, h.pending(models.EntityTypeOrganization), 3)
}

func TestDetect_NothingToFind(t *testing.T) {
	tests := []struct {
		name string
		orgs []string
	}{
		{name: "no entities"},
		{name: "one entity", orgs: []string{"Acme"}},
		{name: "no similar pair", orgs: []string{"Acme", "Globex", "Initech"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(Config{})
			for i, name := range tt.orgs {
				h.addOrg("org-"+string(rune('a'+i)), name)
			}

			result, err := h.engine.Detect(context.Background(), tenant, models.EntityTypeOrganization)
			require.NoError(t, err)
			assert.Equal(t, 0, result.Detected)
		})
	}
}

func TestDetect_SkipsKnownPendingPairRegardlessOfOrder(t *testing.T) {
	h := newHarness(Config{})
	h.addOrg("org-1", "Acme Inc")
	h.addOrg("org-2", "Acme")
	h.suggestions.seed(&models.DuplicateSuggestion{
		TenantID:   tenant,
		EntityType: models.EntityTypeOrganization,
		EntityID1:  "org-2",
		EntityID2:  "org-1",
		Status:     models.SuggestionStatusPending,
	})

	result, err := h.engine.Detect(context.Background(), tenant, models.EntityTypeOrganization)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Detected)
	assert.Len(t, h.pending(models.EntityTypeOrganization), 1)
}

func TestDetect_DismissedPairs(t *testing.T) {
	tests := []struct {
		name      string
		resurface bool
		want      int
	}{
		{name: "dismissal is sticky by default", resurface: false, want: 0},
		{name: "dismissed pairs resurface when enabled", resurface: true, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(Config{ResurfaceDismissed: tt.resurface})
			h.addOrg("org-1", "Acme Inc")
			h.addOrg("org-2", "Acme")
			h.suggestions.seed(&models.DuplicateSuggestion{
				TenantID:   tenant,
				EntityType: models.EntityTypeOrganization,
				EntityID1:  "org-1",
				EntityID2:  "org-2",
				Status:     models.SuggestionStatusDismissed,
			})

			result, err := h.engine.Detect(context.Background(), tenant, models.EntityTypeOrganization)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Detected)
		})
	}
}

func TestDetect_IgnoresOtherTenants(t *testing.T) {
	h := newHarness(Config{})
	h.addOrg("org-1", "Acme")
	h.orgs.add("tenant-2", &models.OrganizationRecord{ID: "org-2", TenantID: "tenant-2", Name: "Acme"})

	result, err := h.engine.Detect(context.Background(), tenant, models.EntityTypeOrganization)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Detected)
}

func TestDetect_Contacts(t *testing.T) {
	h := newHarness(Config{})
	h.addContact("c-1", "Jonas", "Birme", "org-1", "jonas@eyevinn.se")
	h.addContact("c-2", "J", "Birme", "org-1", "JONAS@eyevinn.se")
	h.addContact("c-3", "Jonas", "Birme", "org-2", "jonas@eyevinn.se")
	h.addContact("c-4", "Anna", "Lindqvist", "org-2")

	result, err := h.engine.Detect(context.Background(), tenant, models.EntityTypeContact)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Detected)

	pending := h.pending(models.EntityTypeContact)
	require.Len(t, pending, 1)
	assert.Equal(t, models.NewPairKey("c-1", "c-2"), pending[0].Pair())
	assert.Equal(t, 1.0, pending[0].SimilarityScore)
}

func TestDetect_InvalidInput(t *testing.T) {
	h := newHarness(Config{})

	_, err := h.engine.Detect(context.Background(), "", models.EntityTypeOrganization)
	assert.Equal(t, http.StatusBadRequest, statusCode(t, err))

	_, err = h.engine.Detect(context.Background(), tenant, models.EntityType("DEAL"))
	assert.Equal(t, http.StatusBadRequest, statusCode(t, err))
}

func TestDetect_HoldsAndReleasesLock(t *testing.T) {
	h := newHarness(Config{})
	h.addOrg("org-1", "Acme")

	_, err := h.engine.Detect(context.Background(), tenant, models.EntityTypeOrganization)
	require.NoError(t, err)
	assert.Equal(t, []string{"detect:tenant-1:ORGANIZATION"}, h.locker.acquired)
	assert.Equal(t, []string{"detect:tenant-1:ORGANIZATION"}, h.locker.released)
}

func TestDetect_LockBusy(t *testing.T) {
	h := newHarness(Config{})
	h.addOrg("org-1", "Acme")
	h.addOrg("org-2", "Acme Inc")
	h.locker.held["detect:tenant-1:ORGANIZATION"] = true

	_, err := h.engine.Detect(context.Background(), tenant, models.EntityTypeOrganization)
	assert.Equal(t, http.StatusConflict, statusCode(t, err))
	assert.Zero(t, h.suggestions.inserts)
}

func TestList_BatchesSnapshotsAndOrdersByScore(t *testing.T) {
	h := newHarness(Config{})
	h.addOrg("org-1", "Acme")
	h.addOrg("org-2", "Acme Inc")
	h.addOrg("org-3", "Globex")
	h.addOrg("org-4", "Globex Corp")

	for _, sg := range []*models.DuplicateSuggestion{
		{EntityID1: "org-1", EntityID2: "org-2", SimilarityScore: 0.9},
		{EntityID1: "org-3", EntityID2: "org-4", SimilarityScore: 0.95},
		{EntityID1: "org-1", EntityID2: "org-9", SimilarityScore: 0.86},
	} {
		sg.TenantID = tenant
		sg.EntityType = models.EntityTypeOrganization
		sg.Status = models.SuggestionStatusPending
		h.suggestions.seed(sg)
	}

	list, err := h.engine.List(context.Background(), tenant, models.EntityTypeOrganization)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, 1, h.orgs.getByIDsCalls)

	assert.Equal(t, 0.95, list[0].SimilarityScore)
	assert.Equal(t, 0.9, list[1].SimilarityScore)
	assert.Equal(t, 0.86, list[2].SimilarityScore)

	assert.Equal(t, "org-3", list[0].Entity1.GetID())
	assert.Equal(t, "org-4", list[0].Entity2.GetID())
	assert.Equal(t, "org-1", list[2].Entity1.GetID())
	assert.Nil(t, list[2].Entity2)
}

func TestList_Empty(t *testing.T) {
	h := newHarness(Config{})

	list, err := h.engine.List(context.Background(), tenant, models.EntityTypeContact)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
	assert.Zero(t, h.contacts.getByIDsCalls)
}

func TestGet_ReturnsAnyStatus(t *testing.T) {
	h := newHarness(Config{})
	h.addOrg("org-1", "Acme")
	h.addOrg("org-2", "Acme Inc")
	sg := h.suggestions.seed(&models.DuplicateSuggestion{
		TenantID:   tenant,
		EntityType: models.EntityTypeOrganization,
		EntityID1:  "org-1",
		EntityID2:  "org-2",
		Status:     models.SuggestionStatusDismissed,
	})

	got, err := h.engine.Get(context.Background(), tenant, sg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SuggestionStatusDismissed, got.Status)
	assert.Equal(t, "org-1", got.Entity1.GetID())

	_, err = h.engine.Get(context.Background(), "tenant-2", sg.ID)
	assert.Equal(t, http.StatusNotFound, statusCode(t, err))
}

// seedOrgMerge builds scenario D: org-dup owns 3 contacts, 2 deals, 5 activities and 1 note.
func seedOrgMerge(h *harness) *models.DuplicateSuggestion {
	h.addOrg("org-primary", "Eyevinn Technology AB")
	h.addOrg("org-dup", "Eyevinn Technology")

	for _, row := range []string{"c1", "c2", "c3"} {
		h.orgs.addRef("contacts", row, "org-dup")
	}
	for _, row := range []string{"d1", "d2"} {
		h.orgs.addRef("deals", row, "org-dup")
	}
	for _, row := range []string{"a1", "a2", "a3", "a4", "a5"} {
		h.orgs.addRef("activities", row, "org-dup")
	}
	h.orgs.addRef("notes", "n1", "org-dup")
	h.orgs.addRef("deals", "d-other", "org-primary")

	return h.suggestions.seed(&models.DuplicateSuggestion{
		TenantID:        tenant,
		EntityType:      models.EntityTypeOrganization,
		EntityID1:       "org-dup",
		EntityID2:       "org-primary",
		SimilarityScore: 1.0,
		Status:          models.SuggestionStatusPending,
	})
}

func TestMerge_ScenarioD_Organization(t *testing.T) {
	h := newHarness(Config{})
	sg := seedOrgMerge(h)

	result, err := h.engine.Merge(context.Background(), tenant, sg.ID, "org-primary", "user-1")
	require.NoError(t, err)

	assert.Equal(t, "org-primary", result.PrimaryID)
	assert.Equal(t, "org-dup", result.DuplicateID)
	assert.Equal(t, models.ReassignCounts{"contacts": 3, "deals": 2, "activities": 5, "notes": 1}, result.Reassigned)
	assert.Equal(t, int64(11), result.Reassigned.Total())

	for table, rows := range h.orgs.refs {
		for row, target := range rows {
			assert.Equal(t, "org-primary", target, "%s row %s", table, row)
		}
	}
	assert.False(t, h.orgs.has("org-dup"))
	assert.True(t, h.orgs.has("org-primary"))

	stored, err := h.suggestions.Get(context.Background(), tenant, sg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SuggestionStatusMerged, stored.Status)
	require.NotNil(t, stored.ReviewedByUserID)
	assert.Equal(t, "user-1", *stored.ReviewedByUserID)
	require.NotNil(t, stored.ReviewedAt)

	require.Len(t, h.audit.entries, 1)
	entry := h.audit.entries[0]
	assert.Equal(t, models.AuditActionMerge, entry.Action)
	assert.Equal(t, map[string]any{"duplicateId": "org-dup"}, entry.Before)
	assert.Equal(t, map[string]any{"primaryId": "org-primary"}, entry.After)
	assert.Equal(t, "user-1", entry.UserID)
}

func TestMerge_Contacts(t *testing.T) {
	h := newHarness(Config{})
	h.addContact("c-1", "Jonas", "Birme", "org-1", "jonas@eyevinn.se")
	h.addContact("c-2", "J", "Birme", "org-1", "jonas@eyevinn.se")
	h.contacts.addRef("deal_contacts", "dc-1", "c-2")
	h.contacts.addRef("activity_contacts", "ac-1", "c-2")
	h.contacts.addRef("activity_contacts", "ac-2", "c-2")
	h.contacts.addRef("notes", "n-1", "c-2")

	_, err := h.engine.Detect(context.Background(), tenant, models.EntityTypeContact)
	require.NoError(t, err)
	sg := h.pending(models.EntityTypeContact)[0]

	result, err := h.engine.Merge(context.Background(), tenant, sg.ID, "c-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "c-2", result.DuplicateID)
	assert.Equal(t, int64(4), result.Reassigned.Total())
	assert.False(t, h.contacts.has("c-2"))
	assert.Equal(t, "c-1", h.contacts.refs["activity_contacts"]["ac-2"])
}

func TestMerge_Errors(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(h *harness, sg *models.DuplicateSuggestion) (suggestionID, primaryID, userID string)
		wantStatus int
	}{
		{
			name: "unknown suggestion",
			setup: func(h *harness, sg *models.DuplicateSuggestion) (string, string, string) {
				return "missing", "org-primary", "user-1"
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name: "primary not in pair",
			setup: func(h *harness, sg *models.DuplicateSuggestion) (string, string, string) {
				return sg.ID, "org-other", "user-1"
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "missing acting user",
			setup: func(h *harness, sg *models.DuplicateSuggestion) (string, string, string) {
				return sg.ID, "org-primary", ""
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "already merged",
			setup: func(h *harness, sg *models.DuplicateSuggestion) (string, string, string) {
				h.suggestions.find(sg.ID).Status = models.SuggestionStatusMerged
				return sg.ID, "org-primary", "user-1"
			},
			wantStatus: http.StatusConflict,
		},
		{
			name: "already dismissed",
			setup: func(h *harness, sg *models.DuplicateSuggestion) (string, string, string) {
				h.suggestions.find(sg.ID).Status = models.SuggestionStatusDismissed
				return sg.ID, "org-primary", "user-1"
			},
			wantStatus: http.StatusConflict,
		},
		{
			name: "duplicate entity deleted independently",
			setup: func(h *harness, sg *models.DuplicateSuggestion) (string, string, string) {
				require.NoError(t, h.orgs.Delete(context.Background(), tenant, "org-dup"))
				return sg.ID, "org-primary", "user-1"
			},
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(Config{})
			sg := seedOrgMerge(h)
			suggestionID, primaryID, userID := tt.setup(h, sg)
			before := h.suggestions.find(sg.ID).Status

			_, err := h.engine.Merge(context.Background(), tenant, suggestionID, primaryID, userID)
			assert.Equal(t, tt.wantStatus, statusCode(t, err))

			assert.Zero(t, h.tx.calls)
			assert.Equal(t, before, h.suggestions.find(sg.ID).Status)
			assert.Equal(t, "org-dup", h.orgs.refs["activities"]["a1"])
			assert.Empty(t, h.audit.entries)
		})
	}
}

func TestMerge_FailureRollsBackEverything(t *testing.T) {
	h := newHarness(Config{})
	sg := seedOrgMerge(h)
	h.orgs.deleteErr = errors.New("connection reset")

	_, err := h.engine.Merge(context.Background(), tenant, sg.ID, "org-primary", "user-1")
	assert.Equal(t, http.StatusInternalServerError, statusCode(t, err))

	assert.Equal(t, 1, h.tx.calls)
	assert.True(t, h.orgs.has("org-dup"))
	for _, table := range []string{"contacts", "deals", "activities", "notes"} {
		for row, target := range h.orgs.refs[table] {
			if row == "d-other" {
				continue
			}
			assert.Equal(t, "org-dup", target, "%s row %s", table, row)
		}
	}
	assert.Equal(t, models.SuggestionStatusPending, h.suggestions.find(sg.ID).Status)
	assert.Empty(t, h.audit.entries)
}

func TestMerge_ClientErrorInsideTransactionKeepsStatus(t *testing.T) {
	h := newHarness(Config{})
	sg := seedOrgMerge(h)
	h.orgs.reassignErr = httperror.NewHTTPError(http.StatusConflict, "row changed")

	_, err := h.engine.Merge(context.Background(), tenant, sg.ID, "org-primary", "user-1")
	assert.Equal(t, http.StatusConflict, statusCode(t, err))
	assert.Equal(t, "org-dup", h.orgs.refs["contacts"]["c1"])
	assert.Equal(t, models.SuggestionStatusPending, h.suggestions.find(sg.ID).Status)
}

func TestMerge_AuditFailureIsSwallowed(t *testing.T) {
	h := newHarness(Config{})
	sg := seedOrgMerge(h)
	h.audit.err = errors.New("audit table unavailable")

	result, err := h.engine.Merge(context.Background(), tenant, sg.ID, "org-primary", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "org-dup", result.DuplicateID)
	assert.False(t, h.orgs.has("org-dup"))
	assert.Equal(t, models.SuggestionStatusMerged, h.suggestions.find(sg.ID).Status)
}

func TestMerge_AuditWriteIsBounded(t *testing.T) {
	h := newHarness(Config{AuditTimeout: 50 * time.Millisecond})
	sg := seedOrgMerge(h)
	sink := &blockingAudit{}
	h.engine.audit = sink

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	result, err := h.engine.Merge(ctx, tenant, sg.ID, "org-primary", "user-1")
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, "org-dup", result.DuplicateID)
	assert.True(t, sink.hasDeadline)
	assert.WithinDuration(t, start.Add(50*time.Millisecond), sink.deadline, 40*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
	assert.Equal(t, models.SuggestionStatusMerged, h.suggestions.find(sg.ID).Status)
}

func TestDismiss_AuditWriteIsBounded(t *testing.T) {
	h := newHarness(Config{AuditTimeout: 20 * time.Millisecond})
	sg := seedOrgMerge(h)
	sink := &blockingAudit{}
	h.engine.audit = sink

	result, err := h.engine.Dismiss(context.Background(), tenant, sg.ID, "user-2")
	require.NoError(t, err)
	assert.Equal(t, models.SuggestionStatusDismissed, result.Status)
	assert.True(t, sink.hasDeadline)
}

func TestNewEngine_DefaultAuditTimeout(t *testing.T) {
	assert.Equal(t, defaultAuditTimeout, newHarness(Config{}).engine.config.AuditTimeout)
	assert.Equal(t, time.Second, newHarness(Config{AuditTimeout: time.Second}).engine.config.AuditTimeout)
}

func TestMerge_ClosesOtherSuggestionsOfDuplicate(t *testing.T) {
	h := newHarness(Config{})
	sg := seedOrgMerge(h)
	h.addOrg("org-third", "Acme")
	h.addOrg("org-fourth", "Acme")
	stale := h.suggestions.seed(&models.DuplicateSuggestion{
		TenantID:        tenant,
		EntityType:      models.EntityTypeOrganization,
		EntityID1:       "org-dup",
		EntityID2:       "org-third",
		SimilarityScore: 0.9,
		Status:          models.SuggestionStatusPending,
	})
	unrelated := h.suggestions.seed(&models.DuplicateSuggestion{
		TenantID:        tenant,
		EntityType:      models.EntityTypeOrganization,
		EntityID1:       "org-fourth",
		EntityID2:       "org-primary",
		SimilarityScore: 0.9,
		Status:          models.SuggestionStatusPending,
	})

	result, err := h.engine.Merge(context.Background(), tenant, sg.ID, "org-primary", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Closed)

	closed := h.suggestions.find(stale.ID)
	assert.Equal(t, models.SuggestionStatusDismissed, closed.Status)
	require.NotNil(t, closed.ReviewedByUserID)
	assert.Equal(t, "user-1", *closed.ReviewedByUserID)
	assert.Equal(t, models.SuggestionStatusPending, h.suggestions.find(unrelated.ID).Status)
	assert.Equal(t, models.SuggestionStatusMerged, h.suggestions.find(sg.ID).Status)

	pending := h.pending(models.EntityTypeOrganization)
	require.Len(t, pending, 1)
	assert.Equal(t, unrelated.ID, pending[0].ID)
}

func TestMerge_RollbackKeepsOtherSuggestionsPending(t *testing.T) {
	h := newHarness(Config{})
	sg := seedOrgMerge(h)
	stale := h.suggestions.seed(&models.DuplicateSuggestion{
		TenantID:        tenant,
		EntityType:      models.EntityTypeOrganization,
		EntityID1:       "org-dup",
		EntityID2:       "org-third",
		SimilarityScore: 0.9,
		Status:          models.SuggestionStatusPending,
	})
	h.orgs.deleteErr = errors.New("connection reset")

	_, err := h.engine.Merge(context.Background(), tenant, sg.ID, "org-primary", "user-1")
	assert.Equal(t, http.StatusInternalServerError, statusCode(t, err))
	assert.Equal(t, models.SuggestionStatusPending, h.suggestions.find(stale.ID).Status)
	assert.Equal(t, models.SuggestionStatusPending, h.suggestions.find(sg.ID).Status)
}

func TestDismiss_ScenarioE(t *testing.T) {
	h := newHarness(Config{})
	sg := seedOrgMerge(h)

	result, err := h.engine.Dismiss(context.Background(), tenant, sg.ID, "user-2")
	require.NoError(t, err)
	assert.Equal(t, models.SuggestionStatusDismissed, result.Status)

	stored := h.suggestions.find(sg.ID)
	assert.Equal(t, models.SuggestionStatusDismissed, stored.Status)
	require.NotNil(t, stored.ReviewedByUserID)
	assert.Equal(t, "user-2", *stored.ReviewedByUserID)

	assert.True(t, h.orgs.has("org-dup"))
	assert.True(t, h.orgs.has("org-primary"))
	assert.Equal(t, "org-dup", h.orgs.refs["contacts"]["c1"])
	assert.Zero(t, h.tx.calls)

	_, err = h.engine.Dismiss(context.Background(), tenant, sg.ID, "user-2")
	assert.Equal(t, http.StatusConflict, statusCode(t, err))

	_, err = h.engine.Merge(context.Background(), tenant, sg.ID, "org-primary", "user-2")
	assert.Equal(t, http.StatusConflict, statusCode(t, err))
}

func TestDismiss_NotFound(t *testing.T) {
	h := newHarness(Config{})

	_, err := h.engine.Dismiss(context.Background(), tenant, "missing", "user-1")
	assert.Equal(t, http.StatusNotFound, statusCode(t, err))
}
