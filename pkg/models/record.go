package models

import "github.com/lib/pq"

// Record is the minimal projection of an entity that the scorer and the suggestion
// listing need. Only OrganizationRecord and ContactRecord implement it.
type Record interface {
	GetID() string
	GetEntityType() EntityType
	record()
}

type OrganizationRecord struct {
	ID            string  `json:"id" db:"id"`
	TenantID      string  `json:"tenantId" db:"tenant_id"`
	Name          string  `json:"name" db:"name"`
	Website       *string `json:"website,omitempty" db:"website"`
	StreetAddress *string `json:"streetAddress,omitempty" db:"street_address"`
	City          *string `json:"city,omitempty" db:"city"`
	ZipCode       *string `json:"zipCode,omitempty" db:"zip_code"`
	Country       *string `json:"country,omitempty" db:"country"`
}

func (o *OrganizationRecord) GetID() string             { return o.ID }
func (o *OrganizationRecord) GetEntityType() EntityType { return EntityTypeOrganization }
func (o *OrganizationRecord) record()                   {}

// WebsiteValue returns the website or "" when unset.
func (o *OrganizationRecord) WebsiteValue() string {
	if o.Website == nil {
		return ""
	}
	return *o.Website
}

type ContactRecord struct {
	ID                    string         `json:"id" db:"id"`
	TenantID              string         `json:"tenantId" db:"tenant_id"`
	FirstName             string         `json:"firstName" db:"first_name"`
	LastName              string         `json:"lastName" db:"last_name"`
	PrimaryOrganizationID string         `json:"primaryOrganizationId" db:"primary_organization_id"`
	Emails                pq.StringArray `json:"emails" db:"emails"`
}

func (c *ContactRecord) GetID() string             { return c.ID }
func (c *ContactRecord) GetEntityType() EntityType { return EntityTypeContact }
func (c *ContactRecord) record()                   {}

func (c *ContactRecord) FullName() string {
	return c.FirstName + " " + c.LastName
}
