package models

import "time"

// Conversion request status constants
const (
	ConversionStatusPending    = "pending"
	ConversionStatusApproved   = "approved"
	ConversionStatusRejected   = "rejected"
	ConversionStatusInProgress = "in_progress"
	ConversionStatusCompleted  = "completed"
	ConversionStatusFailed     = "failed"
)

// ConversionType identifies the strategy used to turn a demo into production.
type ConversionType string

const (
	ConversionUpgradeInPlace ConversionType = "upgrade_in_place"
	ConversionNewSite        ConversionType = "new_site"
	ConversionSelfHosted     ConversionType = "self_hosted"
)

// Valid reports whether t is one of the three supported strategies.
func (t ConversionType) Valid() bool {
	switch t {
	case ConversionUpgradeInPlace, ConversionNewSite, ConversionSelfHosted:
		return true
	}
	return false
}

// ConversionRequest represents a request to convert a demo site to production
type ConversionRequest struct {
	ID         string
	DemoSiteID string

	ConversionType      ConversionType
	ProductionPlan      *string
	ProductionSubdomain *string
	ProductionApps      string

	Status string

	// Result fields
	ProductionSiteURL *string
	BackupURL         *string
	BackupCreated     *time.Time

	ConversionLog string
	ErrorMessage  *string
	AdminNotes    *string

	ApprovedBy *string
	ApprovedOn *time.Time

	ConversionStarted   *time.Time
	ConversionCompleted *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
