package models

import "time"

// Demo site status constants
const (
	SiteStatusActive    = "active"
	SiteStatusSuspended = "suspended"
	SiteStatusConverted = "converted"
)

// DemoSite represents a provisioned demo site on Frappe Cloud
type DemoSite struct {
	ID        string
	Subdomain string
	FullURL   string
	Status    string

	// Back-reference to the originating request
	DemoRequestID string
	PackageTier   string
	Industry      *string
	Region        string

	// Frappe Cloud reference
	CloudSiteID   string
	CloudPlan     string
	AppsInstalled string

	// Conversion capability token (at most one live token per site)
	ConversionToken       *string
	ConversionTokenIssued *time.Time

	ProductionSiteURL *string
	ConvertedToPaid   bool

	ExpiresAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
