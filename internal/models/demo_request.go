package models

import "time"

// Demo request status constants
const (
	RequestStatusPending      = "pending"
	RequestStatusProvisioning = "provisioning"
	RequestStatusActive       = "active"
	RequestStatusFailed       = "failed"
)

// Region constants (customer-facing regions mapped to Frappe Cloud clusters)
const (
	RegionIndia         = "India"
	RegionSoutheastAsia = "Southeast Asia"
	RegionEuropeUK      = "Europe & UK"
	RegionMEA           = "Middle East & Africa"
)

// DemoRequest represents a self-service demo site request
type DemoRequest struct {
	ID          string
	CompanyName string
	ContactName string
	ContactEmail string
	ContactPhone *string

	EmployeeCount int
	Industry      *string
	Region        string
	PackageTier   string
	RecommendedTier *string

	// Marketing attribution
	UTMCampaign *string
	UTMSource   *string
	UTMMedium   *string
	IPAddress   *string
	Source      string

	Subdomain string
	Status    string

	// Populated on completion
	SiteURL      *string
	DemoUsername *string
	DemoPassword *string
	DemoSiteID   *string
	TrialExpires *time.Time

	ProvisioningLog string
	ErrorMessage    *string

	ProvisioningStarted   *time.Time
	ProvisioningCompleted *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}
