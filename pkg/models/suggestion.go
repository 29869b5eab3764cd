package models

import "time"

type SuggestionStatus string

const (
	SuggestionStatusPending   SuggestionStatus = "PENDING"
	SuggestionStatusMerged    SuggestionStatus = "MERGED"
	SuggestionStatusDismissed SuggestionStatus = "DISMISSED"
)

func (s SuggestionStatus) IsTerminal() bool {
	return s == SuggestionStatusMerged || s == SuggestionStatusDismissed
}

// DuplicateSuggestion is a candidate duplicate pair awaiting review. Stored pairs are
// canonical: EntityID1 < EntityID2.
type DuplicateSuggestion struct {
	ID               string           `json:"id" db:"id"`
	TenantID         string           `json:"tenantId" db:"tenant_id"`
	EntityType       EntityType       `json:"entityType" db:"entity_type"`
	EntityID1        string           `json:"entityId1" db:"entity_id_1"`
	EntityID2        string           `json:"entityId2" db:"entity_id_2"`
	SimilarityScore  float64          `json:"similarityScore" db:"similarity_score"`
	Status           SuggestionStatus `json:"status" db:"status"`
	ReviewedByUserID *string          `json:"reviewedByUserId,omitempty" db:"reviewed_by_user_id"`
	ReviewedAt       *time.Time       `json:"reviewedAt,omitempty" db:"reviewed_at"`
	CreatedAt        time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time        `json:"updatedAt" db:"updated_at"`
}

func (s *DuplicateSuggestion) Pair() PairKey {
	return NewPairKey(s.EntityID1, s.EntityID2)
}

// Other returns the member of the pair that is not id, and false when id is not in the pair.
func (s *DuplicateSuggestion) Other(id string) (string, bool) {
	switch id {
	case s.EntityID1:
		return s.EntityID2, true
	case s.EntityID2:
		return s.EntityID1, true
	}
	return "", false
}

// PairKey identifies an unordered pair of entity ids. A is always <= B.
type PairKey struct {
	A string `db:"entity_id_1"`
	B string `db:"entity_id_2"`
}

func NewPairKey(id1, id2 string) PairKey {
	if id2 < id1 {
		return PairKey{A: id2, B: id1}
	}
	return PairKey{A: id1, B: id2}
}

// EnrichedSuggestion is a suggestion with the current snapshots of both entities.
// A snapshot is nil when the entity no longer exists.
type EnrichedSuggestion struct {
	DuplicateSuggestion
	Entity1 Record `json:"entity1"`
	Entity2 Record `json:"entity2"`
}

type DetectResult struct {
	Detected int `json:"detected"`
}

// ReassignCounts maps a table name to the number of rows repointed (or collapsed) there.
type ReassignCounts map[string]int64

func (r ReassignCounts) Total() int64 {
	var total int64
	for _, n := range r {
		total += n
	}
	return total
}

// MergeResult reports a committed merge. Closed counts the other pending suggestions that
// named the deleted duplicate and were dismissed with it.
type MergeResult struct {
	SuggestionID string         `json:"suggestionId"`
	EntityType   EntityType     `json:"entityType"`
	PrimaryID    string         `json:"primaryId"`
	DuplicateID  string         `json:"duplicateId"`
	Reassigned   ReassignCounts `json:"reassigned"`
	Closed       int            `json:"closedSuggestions"`
}

type DismissResult struct {
	SuggestionID string           `json:"suggestionId"`
	Status       SuggestionStatus `json:"status"`
}
