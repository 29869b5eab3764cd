package models

import (
	"fmt"
	"strings"
)

// EntityType is the closed set of record kinds the engine deduplicates.
type EntityType string

const (
	EntityTypeOrganization EntityType = "ORGANIZATION"
	EntityTypeContact      EntityType = "CONTACT"
)

// EntityTypes lists every supported type, in detection order.
var EntityTypes = []EntityType{EntityTypeOrganization, EntityTypeContact}

func (t EntityType) Valid() bool {
	switch t {
	case EntityTypeOrganization, EntityTypeContact:
		return true
	}
	return false
}

func (t EntityType) String() string {
	return string(t)
}

// ParseEntityType accepts the canonical upper-case name in any case.
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown entity type %q", s)
	}
	return t, nil
}
