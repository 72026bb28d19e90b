package models

import "time"

// PackageTier is a named package of apps, features and pricing
type PackageTier struct {
	Name        string
	TierName    string
	DisplayName string
	Description string

	EmployeeRangeMin int
	EmployeeRangeMax int

	PriceIndia  float64
	PriceSEA    float64
	PriceMEA    float64
	PriceEurope float64

	// Apps always installed for this tier (comma separated)
	FrappeApps string

	// Feature flags that imply additional apps
	IncludeAccounting    bool
	IncludeInventory     bool
	IncludeSales         bool
	IncludeSupport       bool
	IncludeHR            bool
	IncludeManufacturing bool

	CloudPlan  string
	TrialDays  int
	IsPopular  bool
	ColorTheme string
	SortOrder  int
	Enabled    bool
}

// IndustryTemplate is a vertical preset selectable at request time
type IndustryTemplate struct {
	Name         string
	IndustryCode string
	IndustryName string
	Icon         string
	Description  string
	Enabled      bool
}

// ProductionPlan is a paid plan offered during conversion
type ProductionPlan struct {
	PlanName     string
	DisplayName  string
	Description  string
	MonthlyPrice float64
	SortOrder    int
}

// Notification records an outbound templated email (used for auditing and
// expiry-warning dedup)
type Notification struct {
	ID          string
	ReferenceID string
	Template    string
	Recipient   string
	CreatedAt   time.Time
}

// OperationLog is an operator-visible record of workflow actions and failures
type OperationLog struct {
	ID          string
	ReferenceID string
	RefType     string // "demo_request" or "conversion_request"
	Action      string
	Status      string
	Message     string
	CreatedAt   time.Time
}
