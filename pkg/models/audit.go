package models

import "time"

type AuditAction string

const (
	AuditActionMerge   AuditAction = "MERGE"
	AuditActionDismiss AuditAction = "DISMISS"
)

type AuditEntry struct {
	ID         string         `json:"id" db:"id"`
	TenantID   string         `json:"tenantId" db:"tenant_id"`
	UserID     string         `json:"userId" db:"user_id"`
	Action     AuditAction    `json:"action" db:"action"`
	EntityType EntityType     `json:"entityType" db:"entity_type"`
	EntityID   string         `json:"entityId" db:"entity_id"`
	Before     map[string]any `json:"before,omitempty"`
	After      map[string]any `json:"after,omitempty"`
	CreatedAt  time.Time      `json:"createdAt" db:"created_at"`
}
