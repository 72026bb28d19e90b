package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/chinmaybhatk/frappe-kit/internal/client"
	"github.com/chinmaybhatk/frappe-kit/internal/config"
	"github.com/chinmaybhatk/frappe-kit/internal/models"
	"github.com/google/uuid"
)

const (
	refTypeDemoRequest = "demo_request"

	passwordLength   = 12
	passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Throwaway email providers rejected at submission
var disposableDomains = map[string]bool{
	"tempmail.com":      true,
	"throwaway.email":   true,
	"guerrillamail.com": true,
}

// Customer-facing regions mapped to Frappe Cloud clusters
var regionClusterMap = map[string]string{
	models.RegionIndia:         "Mumbai",
	models.RegionSoutheastAsia: "Singapore",
	models.RegionEuropeUK:      "Frankfurt",
	models.RegionMEA:           "Frankfurt",
}

// Tier feature flags implying additional apps, in first-mention order
var featureAppMap = []struct {
	enabled func(*models.PackageTier) bool
	app     string
}{
	{func(t *models.PackageTier) bool { return t.IncludeSales }, "crm"},
	{func(t *models.PackageTier) bool { return t.IncludeSupport }, "helpdesk"},
	{func(t *models.PackageTier) bool { return t.IncludeHR }, "hrms"},
}

// ProvisionService owns the demo request lifecycle: submission, the
// provisioning workflow and status queries.
type ProvisionService struct {
	cfg           *config.Config
	requests      DemoRequestStore
	sites         DemoSiteStore
	reference     ReferenceStore
	notifications NotificationStore
	opsLog        OperationLogStore
	cloud         CloudAPI
	mailer        Mailer
	queue         WorkflowQueue

	now   func() time.Time
	sleep func(time.Duration)
}

// NewProvisionService creates a new provision service
func NewProvisionService(
	cfg *config.Config,
	requests DemoRequestStore,
	sites DemoSiteStore,
	reference ReferenceStore,
	notifications NotificationStore,
	opsLog OperationLogStore,
	cloud CloudAPI,
	mailer Mailer,
	q WorkflowQueue,
) *ProvisionService {
	return &ProvisionService{
		cfg:           cfg,
		requests:      requests,
		sites:         sites,
		reference:     reference,
		notifications: notifications,
		opsLog:        opsLog,
		cloud:         cloud,
		mailer:        mailer,
		queue:         q,
		now:           time.Now,
		sleep:         time.Sleep,
	}
}

// SubmitDemoRequest validates a guest submission, creates the request
// record and dispatches the provisioning workflow.
func (s *ProvisionService) SubmitDemoRequest(ctx context.Context, req *models.SubmitDemoRequest, clientIP string) (*models.SubmitDemoResponse, error) {
	if err := validateContactEmail(req.ContactEmail); err != nil {
		return nil, err
	}

	region := req.Region
	if region == "" {
		region = models.RegionIndia
	}

	// Daily submission cap
	todayStart := time.Date(s.now().Year(), s.now().Month(), s.now().Day(), 0, 0, 0, 0, s.now().Location())
	todayCount, err := s.requests.CountCreatedSince(ctx, todayStart)
	if err != nil {
		return nil, fmt.Errorf("count today's requests: %w", err)
	}
	if todayCount >= s.cfg.Provisioner.DailyLimit {
		return nil, &ConflictError{Message: "daily limit reached, please try again tomorrow"}
	}

	// At most one live request per contact email
	exists, err := s.requests.ExistsActiveByEmail(ctx, req.ContactEmail)
	if err != nil {
		return nil, fmt.Errorf("check existing request: %w", err)
	}
	if exists {
		return nil, &ConflictError{Message: "a demo request is already being processed for this email"}
	}

	tier, err := s.reference.GetTier(ctx, req.PackageTier)
	if err != nil {
		return nil, validationErrorf("unknown package tier: %s", req.PackageTier)
	}

	subdomain, err := s.resolveSubdomain(ctx, req.CompanyName)
	if err != nil {
		return nil, err
	}

	doc := &models.DemoRequest{
		ID:            uuid.New().String(),
		CompanyName:   req.CompanyName,
		ContactName:   req.ContactName,
		ContactEmail:  req.ContactEmail,
		ContactPhone:  optional(req.ContactPhone),
		EmployeeCount: req.EmployeeCount,
		Industry:      optional(req.Industry),
		Region:        region,
		PackageTier:   tier.Name,
		UTMCampaign:   optional(req.UTMCampaign),
		UTMSource:     optional(req.UTMSource),
		UTMMedium:     optional(req.UTMMedium),
		IPAddress:     optional(clientIP),
		Source:        "Website",
		Subdomain:     subdomain,
		Status:        models.RequestStatusPending,
	}

	if rec := s.recommendTier(ctx, req.EmployeeCount); rec != "" {
		doc.RecommendedTier = &rec
	}

	if err := s.requests.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create demo request: %w", err)
	}

	log.Printf("[Provision] New demo request %s for %s (%s)", doc.ID, doc.CompanyName, doc.ContactEmail)

	if err := s.StartProvisioning(ctx, doc.ID); err != nil {
		return nil, err
	}

	return &models.SubmitDemoResponse{
		Status:        "success",
		DemoRequestID: doc.ID,
		Message:       "Your demo is being prepared. You'll receive credentials shortly.",
	}, nil
}

// StartProvisioning transitions a request into provisioning and enqueues
// the workflow. Only pending or failed requests may start (retry re-enters
// from failed).
func (s *ProvisionService) StartProvisioning(ctx context.Context, requestID string) error {
	doc, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return err
	}

	if doc.Status != models.RequestStatusPending && doc.Status != models.RequestStatusFailed {
		return validationErrorf("cannot provision demo with status: %s", doc.Status)
	}

	priorStatus := doc.Status
	started := s.now()
	doc.Status = models.RequestStatusProvisioning
	doc.ProvisioningStarted = &started
	doc.ErrorMessage = nil
	if err := s.requests.Update(ctx, doc); err != nil {
		return fmt.Errorf("update demo request: %w", err)
	}

	handle := s.queue.Submit("provision_demo_site", func(jobCtx context.Context) {
		s.runProvisioning(jobCtx, requestID)
	})
	if handle == nil {
		// Queue is shut down and no job will run; put the record back so
		// it is not stranded in provisioning.
		doc.Status = priorStatus
		doc.ProvisioningStarted = nil
		if err := s.requests.Update(ctx, doc); err != nil {
			log.Printf("[Provision] Failed to roll back request %s after queue rejection: %v", doc.ID, err)
		}
		return fmt.Errorf("workflow queue is shut down")
	}

	return nil
}

// GetStatus returns the pull-based provisioning status of a request.
func (s *ProvisionService) GetStatus(ctx context.Context, requestID string) (*models.DemoStatusResponse, error) {
	doc, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	resp := &models.DemoStatusResponse{
		Status: doc.Status,
		Log:    doc.ProvisioningLog,
	}
	if doc.Status == models.RequestStatusActive {
		resp.SiteURL = doc.SiteURL
	}
	if doc.Status == models.RequestStatusFailed {
		resp.Error = doc.ErrorMessage
	}

	return resp, nil
}

// ListTiers returns the enabled package tiers for the public catalog.
func (s *ProvisionService) ListTiers(ctx context.Context) ([]models.TierInfo, error) {
	tiers, err := s.reference.ListEnabledTiers(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]models.TierInfo, 0, len(tiers))
	for _, t := range tiers {
		infos = append(infos, models.TierInfo{
			Name:        t.Name,
			DisplayName: t.DisplayName,
			Description: t.Description,
			PriceIndia:  t.PriceIndia,
			PriceSEA:    t.PriceSEA,
			PriceMEA:    t.PriceMEA,
			PriceEurope: t.PriceEurope,
			TrialDays:   t.TrialDays,
			IsPopular:   t.IsPopular,
			ColorTheme:  t.ColorTheme,
		})
	}
	return infos, nil
}

// ListIndustries returns the enabled industry templates.
func (s *ProvisionService) ListIndustries(ctx context.Context) ([]models.IndustryInfo, error) {
	industries, err := s.reference.ListEnabledIndustries(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]models.IndustryInfo, 0, len(industries))
	for _, ind := range industries {
		infos = append(infos, models.IndustryInfo{
			Name:         ind.Name,
			IndustryName: ind.IndustryName,
			Icon:         ind.Icon,
			Description:  ind.Description,
		})
	}
	return infos, nil
}

// GetDemoInfo bundles tiers and industries for the landing page.
func (s *ProvisionService) GetDemoInfo(ctx context.Context) (*models.DemoInfoResponse, error) {
	tiers, err := s.ListTiers(ctx)
	if err != nil {
		return nil, err
	}
	industries, err := s.ListIndustries(ctx)
	if err != nil {
		return nil, err
	}
	return &models.DemoInfoResponse{Tiers: tiers, Industries: industries}, nil
}

// runProvisioning is the workflow body executed on a queue worker. Errors
// are absorbed here: the record is failed, the dispatcher sees completion.
func (s *ProvisionService) runProvisioning(ctx context.Context, requestID string) {
	doc, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		log.Printf("[Provision] Load request %s: %v", requestID, err)
		return
	}

	if err := s.provision(ctx, doc); err != nil {
		s.markFailed(ctx, doc, err)
		return
	}

	log.Printf("[Provision] Request %s provisioning complete: %s", doc.ID, *doc.SiteURL)
}

func (s *ProvisionService) provision(ctx context.Context, doc *models.DemoRequest) error {
	tier, err := s.reference.GetTier(ctx, doc.PackageTier)
	if err != nil {
		return fmt.Errorf("load package tier %s: %w", doc.PackageTier, err)
	}

	s.appendLog(doc, "Starting provisioning...")

	apps := resolveApps(tier)
	s.appendLog(doc, "Apps to install: "+strings.Join(apps, ", "))

	cluster := s.resolveCluster(doc.Region)
	s.appendLog(doc, fmt.Sprintf("Creating site: %s.%s", doc.Subdomain, s.cfg.Cloud.DemoDomain))
	s.flushLog(ctx, doc)

	plan := tier.CloudPlan
	if plan == "" {
		plan = "Starter"
	}

	siteName, err := s.cloud.CreateSite(ctx, doc.Subdomain, firstTwo(apps), plan, cluster, doc.ID)
	if err != nil {
		return err
	}
	if siteName == "" {
		siteName = doc.Subdomain + "." + s.cfg.Cloud.DemoDomain
	}

	s.appendLog(doc, "Waiting for site to be ready...")
	s.flushLog(ctx, doc)

	if err := pollSiteActive(ctx, s.cloud, s.cfg.Provisioner, s.sleep, siteName, func(msg string) {
		s.appendLog(doc, msg)
	}); err != nil {
		return err
	}
	s.flushLog(ctx, doc)

	for _, app := range rest(apps) {
		s.appendLog(doc, fmt.Sprintf("Installing %s...", app))
		if err := s.cloud.InstallApp(ctx, siteName, app); err != nil {
			return err
		}
		s.sleep(s.cfg.Provisioner.InstallSettleDelay)
	}
	s.flushLog(ctx, doc)

	siteURL := "https://" + siteName
	username := doc.ContactEmail
	password, err := generatePassword(passwordLength)
	if err != nil {
		return fmt.Errorf("generate password: %w", err)
	}

	s.appendLog(doc, "Creating user: "+username)

	trialDays := tier.TrialDays
	if trialDays <= 0 {
		trialDays = s.cfg.Provisioner.DefaultTrialDays
	}
	if trialDays <= 0 {
		trialDays = 14
	}
	trialExpires := s.now().AddDate(0, 0, trialDays)

	site := &models.DemoSite{
		ID:            uuid.New().String(),
		Subdomain:     doc.Subdomain,
		FullURL:       siteURL,
		Status:        models.SiteStatusActive,
		DemoRequestID: doc.ID,
		PackageTier:   doc.PackageTier,
		Industry:      doc.Industry,
		Region:        doc.Region,
		CloudSiteID:   siteName,
		CloudPlan:     plan,
		AppsInstalled: strings.Join(apps, ", "),
		ExpiresAt:     &trialExpires,
	}
	if err := s.sites.Create(ctx, site); err != nil {
		return fmt.Errorf("create demo site: %w", err)
	}

	completed := s.now()
	doc.Status = models.RequestStatusActive
	doc.ProvisioningCompleted = &completed
	doc.SiteURL = &siteURL
	doc.DemoUsername = &username
	doc.DemoPassword = &password
	doc.DemoSiteID = &site.ID
	doc.TrialExpires = &trialExpires

	s.appendLog(doc, "Demo site ready: "+siteURL)
	if err := s.requests.Update(ctx, doc); err != nil {
		return fmt.Errorf("update demo request: %w", err)
	}

	if err := s.opsLog.LogAction(ctx, doc.ID, refTypeDemoRequest, "provision_completed", doc.Status,
		fmt.Sprintf("Demo site %s active at %s", site.ID, siteURL)); err != nil {
		log.Printf("[Provision] Failed to record operation log for %s: %v", doc.ID, err)
	}

	s.sendWelcomeEmail(ctx, doc)

	return nil
}

func (s *ProvisionService) sendWelcomeEmail(ctx context.Context, doc *models.DemoRequest) {
	args := map[string]any{
		"contact_name": doc.ContactName,
		"company_name": doc.CompanyName,
		"site_url":     deref(doc.SiteURL),
		"username":     deref(doc.DemoUsername),
		"password":     deref(doc.DemoPassword),
		"package_tier": doc.PackageTier,
	}
	if doc.TrialExpires != nil {
		args["trial_expires"] = doc.TrialExpires.Format("2006-01-02")
	}

	if err := s.mailer.Send(ctx, doc.ContactEmail, client.TemplateWelcome, args); err != nil {
		log.Printf("[Provision] Failed to send welcome email for %s: %v", doc.ID, err)
		s.appendLog(doc, "Failed to send welcome email: "+err.Error())
		s.flushLog(ctx, doc)
		return
	}

	s.notifications.Record(ctx, &models.Notification{
		ReferenceID: doc.ID,
		Template:    client.TemplateWelcome,
		Recipient:   doc.ContactEmail,
	})
	s.appendLog(doc, "Welcome email sent")
	s.flushLog(ctx, doc)
}

// markFailed transitions the request to failed, keeping every log line
// appended so far.
func (s *ProvisionService) markFailed(ctx context.Context, doc *models.DemoRequest, cause error) {
	log.Printf("[Provision] Provisioning failed for %s: %v", doc.ID, cause)

	msg := cause.Error()
	doc.Status = models.RequestStatusFailed
	doc.ErrorMessage = &msg
	s.appendLog(doc, "Provisioning failed: "+msg)

	if err := s.requests.Update(ctx, doc); err != nil {
		log.Printf("[Provision] Failed to persist failure for %s: %v", doc.ID, err)
	}

	if err := s.opsLog.LogAction(ctx, doc.ID, refTypeDemoRequest, "provision_failed", doc.Status, msg); err != nil {
		log.Printf("[Provision] Failed to record operation log for %s: %v", doc.ID, err)
	}
}

func (s *ProvisionService) appendLog(doc *models.DemoRequest, message string) {
	doc.ProvisioningLog += fmt.Sprintf("[%s] %s\n", s.now().Format("2006-01-02 15:04:05"), message)
}

// flushLog persists the accumulated log at a step boundary.
func (s *ProvisionService) flushLog(ctx context.Context, doc *models.DemoRequest) {
	if err := s.requests.Update(ctx, doc); err != nil {
		log.Printf("[Provision] Failed to flush log for %s: %v", doc.ID, err)
	}
}

// recommendTier picks the matching tier with the highest range floor, so
// overlapping ranges resolve to the larger tier.
func (s *ProvisionService) recommendTier(ctx context.Context, employeeCount int) string {
	if employeeCount <= 0 {
		return ""
	}

	tiers, err := s.reference.ListEnabledTiers(ctx)
	if err != nil {
		return ""
	}

	sorted := make([]*models.PackageTier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].EmployeeRangeMin > sorted[j].EmployeeRangeMin
	})

	for _, t := range sorted {
		max := t.EmployeeRangeMax
		if max <= 0 {
			max = 999999
		}
		if t.EmployeeRangeMin <= employeeCount && employeeCount <= max {
			return t.Name
		}
	}
	return ""
}

func (s *ProvisionService) resolveCluster(region string) string {
	if cluster, ok := regionClusterMap[region]; ok {
		return cluster
	}
	if s.cfg.Cloud.DefaultCluster != "" {
		return s.cfg.Cloud.DefaultCluster
	}
	return "Mumbai"
}

// resolveApps builds the app set: base apps, tier apps, then apps implied
// by feature flags. Each app appears once, first mention wins.
func resolveApps(tier *models.PackageTier) []string {
	apps := []string{"frappe", "erpnext"}
	seen := map[string]bool{"frappe": true, "erpnext": true}

	for _, app := range splitApps(tier.FrappeApps) {
		if !seen[app] {
			apps = append(apps, app)
			seen[app] = true
		}
	}

	for _, f := range featureAppMap {
		if f.enabled(tier) && !seen[f.app] {
			apps = append(apps, f.app)
			seen[f.app] = true
		}
	}

	return apps
}

func splitApps(list string) []string {
	var apps []string
	for _, part := range strings.Split(list, ",") {
		if app := strings.TrimSpace(part); app != "" {
			apps = append(apps, app)
		}
	}
	return apps
}

// firstTwo returns the apps installed at site creation time; the rest are
// installed post-creation.
func firstTwo(apps []string) []string {
	if len(apps) > 2 {
		return apps[:2]
	}
	return apps
}

func rest(apps []string) []string {
	if len(apps) > 2 {
		return apps[2:]
	}
	return nil
}

// pollSiteActive polls the remote site status at a fixed interval up to a
// wall-clock ceiling. Terminal outcomes: active, broken/failed, timeout.
func pollSiteActive(ctx context.Context, cloud CloudAPI, cfg config.ProvisionerConfig, sleep func(time.Duration), siteName string, logf func(string)) error {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ceiling := cfg.PollCeiling
	if ceiling <= 0 {
		ceiling = 180 * time.Second
	}

	for elapsed := time.Duration(0); elapsed < ceiling; elapsed += interval {
		status, err := cloud.GetSiteStatus(ctx, siteName)
		if err != nil {
			return err
		}

		switch strings.ToLower(status.Status) {
		case "active":
			logf("Site is active")
			return nil
		case "broken", "failed":
			return fmt.Errorf("site creation failed with status: %s", strings.ToLower(status.Status))
		}

		sleep(interval)
		logf(fmt.Sprintf("Still waiting... (%ds)", int((elapsed+interval)/time.Second)))
	}

	return ErrPollTimeout
}

func validateContactEmail(email string) error {
	if email == "" {
		return validationErrorf("contact email is required")
	}
	if !emailPattern.MatchString(email) {
		return validationErrorf("invalid email format")
	}

	at := strings.LastIndex(email, "@")
	domain := strings.ToLower(email[at+1:])
	if disposableDomains[domain] {
		return validationErrorf("please use a business email address")
	}

	return nil
}

func generatePassword(length int) (string, error) {
	b := make([]byte, length)
	max := big.NewInt(int64(len(passwordAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = passwordAlphabet[n.Int64()]
	}
	return string(b), nil
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
