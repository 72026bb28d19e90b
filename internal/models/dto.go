package models

// ==================== Public API DTOs ====================

// SubmitDemoRequest is the guest payload to request a demo site
type SubmitDemoRequest struct {
	CompanyName   string `json:"company_name" binding:"required"`
	ContactName   string `json:"contact_name" binding:"required"`
	ContactEmail  string `json:"contact_email" binding:"required"`
	ContactPhone  string `json:"contact_phone"`
	EmployeeCount int    `json:"employee_count" binding:"required"`
	Industry      string `json:"industry"`
	Region        string `json:"region"`
	PackageTier   string `json:"package_tier" binding:"required"`

	UTMCampaign string `json:"utm_campaign"`
	UTMSource   string `json:"utm_source"`
	UTMMedium   string `json:"utm_medium"`
}

// SubmitDemoResponse is returned after a demo request is accepted
type SubmitDemoResponse struct {
	Status        string `json:"status"`
	DemoRequestID string `json:"demo_request_id"`
	Message       string `json:"message"`
}

// DemoStatusResponse is the pull-based provisioning status
type DemoStatusResponse struct {
	Status  string  `json:"status"`
	SiteURL *string `json:"site_url"`
	Error   *string `json:"error"`
	Log     string  `json:"log"`
}

// TierInfo is the public projection of a package tier
type TierInfo struct {
	Name        string  `json:"name"`
	DisplayName string  `json:"display_name"`
	Description string  `json:"description"`
	PriceIndia  float64 `json:"price_india"`
	PriceSEA    float64 `json:"price_sea"`
	PriceMEA    float64 `json:"price_mea"`
	PriceEurope float64 `json:"price_europe"`
	TrialDays   int     `json:"trial_days"`
	IsPopular   bool    `json:"is_popular"`
	ColorTheme  string  `json:"color_theme,omitempty"`
}

// IndustryInfo is the public projection of an industry template
type IndustryInfo struct {
	Name         string `json:"name"`
	IndustryName string `json:"industry_name"`
	Icon         string `json:"icon,omitempty"`
	Description  string `json:"description,omitempty"`
}

// DemoInfoResponse bundles reference data for the landing page
type DemoInfoResponse struct {
	Tiers      []TierInfo     `json:"tiers"`
	Industries []IndustryInfo `json:"industries"`
}

// ==================== Conversion API DTOs ====================

// ConversionTypeInfo describes one of the three fixed conversion strategies
type ConversionTypeInfo struct {
	Value       ConversionType `json:"value"`
	Label       string         `json:"label"`
	Description string         `json:"description"`
	Icon        string         `json:"icon"`
}

// PlanInfo is the public projection of a production plan
type PlanInfo struct {
	PlanName     string  `json:"plan_name"`
	DisplayName  string  `json:"display_name"`
	Description  string  `json:"description"`
	MonthlyPrice float64 `json:"monthly_price"`
}

// SiteSummary is the demo site summary shown on the conversion page
type SiteSummary struct {
	ID            string  `json:"id"`
	Subdomain     string  `json:"subdomain"`
	FullURL       string  `json:"full_url"`
	Status        string  `json:"status"`
	PackageTier   string  `json:"package_tier"`
	AppsInstalled string  `json:"apps_installed"`
	CreatedAt     string  `json:"created_at"`
	ExpiresAt     *string `json:"expires_at"`
}

// CompanySummary is the originating company summary shown on the conversion page
type CompanySummary struct {
	Name         string  `json:"name"`
	ContactName  string  `json:"contact_name"`
	ContactEmail string  `json:"contact_email"`
	Industry     *string `json:"industry"`
	Region       string  `json:"region"`
}

// ConversionOptionsResponse is returned to the token-gated conversion page
type ConversionOptionsResponse struct {
	Site            SiteSummary          `json:"site"`
	Company         CompanySummary       `json:"company"`
	Plans           []PlanInfo           `json:"plans"`
	ConversionTypes []ConversionTypeInfo `json:"conversion_types"`
}

// SubmitConversionRequest is the token-gated payload to request a conversion
type SubmitConversionRequest struct {
	Token               string         `json:"token" binding:"required"`
	SiteID              string         `json:"site_id" binding:"required"`
	ConversionType      ConversionType `json:"conversion_type" binding:"required"`
	ProductionPlan      string         `json:"production_plan"`
	ProductionSubdomain string         `json:"production_subdomain"`
}

// SubmitConversionResponse is returned after a conversion request is accepted
type SubmitConversionResponse struct {
	Status              string `json:"status"`
	ConversionRequestID string `json:"conversion_request_id"`
	Message             string `json:"message"`
}

// ConversionStatusResponse is the pull-based conversion status
type ConversionStatusResponse struct {
	Status            string  `json:"status"`
	ProductionSiteURL *string `json:"production_site_url"`
	BackupURL         *string `json:"backup_url"`
	Error             *string `json:"error"`
	Log               string  `json:"log"`
}

// RejectConversionRequest carries an optional rejection reason
type RejectConversionRequest struct {
	Reason string `json:"reason"`
}
