package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/chinmaybhatk/frappe-kit/internal/client"
	"github.com/chinmaybhatk/frappe-kit/internal/config"
	"github.com/chinmaybhatk/frappe-kit/internal/models"
	"github.com/google/uuid"
)

const refTypeConversion = "conversion_request"

// The three conversion strategies offered on the conversion page. Fixed
// set; the order is the display order.
var conversionTypeCatalog = []models.ConversionTypeInfo{
	{
		Value:       models.ConversionUpgradeInPlace,
		Label:       "Upgrade Current Site",
		Description: "Keep your demo site and all its data. We upgrade it to a paid plan in place.",
		Icon:        "arrow-up",
	},
	{
		Value:       models.ConversionNewSite,
		Label:       "Fresh Production Site",
		Description: "Start a clean production site with the same apps. Your demo data stays on the demo site.",
		Icon:        "plus",
	},
	{
		Value:       models.ConversionSelfHosted,
		Label:       "Self-Hosted / Custom Server",
		Description: "We prepare a full backup of your demo site for migration to your own infrastructure.",
		Icon:        "download",
	},
}

// ConversionTokens issues and validates the capability tokens gating the
// conversion endpoints.
type ConversionTokens interface {
	Issue(ctx context.Context, siteID string) (string, error)
	Validate(ctx context.Context, token, siteID string) bool
}

// ConversionService owns the demo-to-production conversion lifecycle:
// the token-gated customer surface, the admin review flow and the three
// conversion workflows.
type ConversionService struct {
	cfg           *config.Config
	requests      DemoRequestStore
	sites         DemoSiteStore
	conversions   ConversionStore
	reference     ReferenceStore
	notifications NotificationStore
	opsLog        OperationLogStore
	cloud         CloudAPI
	mailer        Mailer
	tokens        ConversionTokens
	queue         WorkflowQueue

	now   func() time.Time
	sleep func(time.Duration)
}

// NewConversionService creates a new conversion service
func NewConversionService(
	cfg *config.Config,
	requests DemoRequestStore,
	sites DemoSiteStore,
	conversions ConversionStore,
	reference ReferenceStore,
	notifications NotificationStore,
	opsLog OperationLogStore,
	cloud CloudAPI,
	mailer Mailer,
	tokens ConversionTokens,
	q WorkflowQueue,
) *ConversionService {
	return &ConversionService{
		cfg:           cfg,
		requests:      requests,
		sites:         sites,
		conversions:   conversions,
		reference:     reference,
		notifications: notifications,
		opsLog:        opsLog,
		cloud:         cloud,
		mailer:        mailer,
		tokens:        tokens,
		queue:         q,
		now:           time.Now,
		sleep:         time.Sleep,
	}
}

// GetOptions returns everything the conversion page needs: the site, the
// originating company, the paid plans and the strategy catalog. Token
// gated.
func (s *ConversionService) GetOptions(ctx context.Context, token, siteID string) (*models.ConversionOptionsResponse, error) {
	if !s.tokens.Validate(ctx, token, siteID) {
		return nil, &AuthorizationError{Message: "invalid or expired conversion link"}
	}

	site, err := s.sites.GetByID(ctx, siteID)
	if err != nil {
		return nil, err
	}

	req, err := s.requests.GetByID(ctx, site.DemoRequestID)
	if err != nil {
		return nil, err
	}

	plans, err := s.reference.ListProductionPlans(ctx)
	if err != nil {
		return nil, err
	}

	planInfos := make([]models.PlanInfo, 0, len(plans))
	for _, p := range plans {
		planInfos = append(planInfos, models.PlanInfo{
			PlanName:     p.PlanName,
			DisplayName:  p.DisplayName,
			Description:  p.Description,
			MonthlyPrice: p.MonthlyPrice,
		})
	}

	summary := models.SiteSummary{
		ID:            site.ID,
		Subdomain:     site.Subdomain,
		FullURL:       site.FullURL,
		Status:        site.Status,
		PackageTier:   site.PackageTier,
		AppsInstalled: site.AppsInstalled,
		CreatedAt:     site.CreatedAt.Format("2006-01-02"),
	}
	if site.ExpiresAt != nil {
		expires := site.ExpiresAt.Format("2006-01-02")
		summary.ExpiresAt = &expires
	}

	return &models.ConversionOptionsResponse{
		Site: summary,
		Company: models.CompanySummary{
			Name:         req.CompanyName,
			ContactName:  req.ContactName,
			ContactEmail: req.ContactEmail,
			Industry:     req.Industry,
			Region:       req.Region,
		},
		Plans:           planInfos,
		ConversionTypes: conversionTypeCatalog,
	}, nil
}

// Submit creates a pending conversion request for admin review. Token
// gated; at most one live conversion per site.
func (s *ConversionService) Submit(ctx context.Context, req *models.SubmitConversionRequest) (*models.SubmitConversionResponse, error) {
	if !s.tokens.Validate(ctx, req.Token, req.SiteID) {
		return nil, &AuthorizationError{Message: "invalid or expired conversion link"}
	}

	site, err := s.sites.GetByID(ctx, req.SiteID)
	if err != nil {
		return nil, err
	}
	if site.Status != models.SiteStatusActive {
		return nil, validationErrorf("demo site is not active (status: %s)", site.Status)
	}

	if !req.ConversionType.Valid() {
		return nil, validationErrorf("invalid conversion type: %s", req.ConversionType)
	}
	if req.ConversionType == models.ConversionNewSite && strings.TrimSpace(req.ProductionSubdomain) == "" {
		return nil, validationErrorf("production subdomain is required for a fresh production site")
	}

	live, err := s.conversions.ExistsLiveBySite(ctx, req.SiteID)
	if err != nil {
		return nil, fmt.Errorf("check existing conversions: %w", err)
	}
	if live {
		return nil, &ConflictError{Message: "a conversion request for this site is already in progress"}
	}

	apps := site.AppsInstalled
	if apps == "" {
		apps = "frappe, erpnext"
	}

	conv := &models.ConversionRequest{
		ID:                  uuid.New().String(),
		DemoSiteID:          site.ID,
		ConversionType:      req.ConversionType,
		ProductionPlan:      optional(req.ProductionPlan),
		ProductionSubdomain: optional(strings.TrimSpace(req.ProductionSubdomain)),
		ProductionApps:      apps,
		Status:              models.ConversionStatusPending,
	}
	if err := s.conversions.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("create conversion request: %w", err)
	}

	log.Printf("[Conversion] New %s conversion request %s for site %s", conv.ConversionType, conv.ID, site.ID)
	if err := s.opsLog.LogAction(ctx, conv.ID, refTypeConversion, "conversion_submitted", conv.Status,
		fmt.Sprintf("Conversion type %s for site %s", conv.ConversionType, site.ID)); err != nil {
		log.Printf("[Conversion] Failed to record operation log for %s: %v", conv.ID, err)
	}

	return &models.SubmitConversionResponse{
		Status:              "success",
		ConversionRequestID: conv.ID,
		Message:             "Your conversion request has been received. Our team will review it shortly.",
	}, nil
}

// GetStatus returns the pull-based conversion status. Result URLs are
// only exposed once the conversion completed.
func (s *ConversionService) GetStatus(ctx context.Context, conversionID string) (*models.ConversionStatusResponse, error) {
	conv, err := s.conversions.GetByID(ctx, conversionID)
	if err != nil {
		return nil, err
	}

	resp := &models.ConversionStatusResponse{
		Status: conv.Status,
		Log:    conv.ConversionLog,
	}
	if conv.Status == models.ConversionStatusCompleted {
		resp.ProductionSiteURL = conv.ProductionSiteURL
		if conv.ConversionType == models.ConversionSelfHosted {
			resp.BackupURL = conv.BackupURL
		}
	}
	if conv.Status == models.ConversionStatusFailed {
		resp.Error = conv.ErrorMessage
	}

	return resp, nil
}

// Approve moves a pending conversion to approved. Admin only.
func (s *ConversionService) Approve(ctx context.Context, conversionID, adminUser string) error {
	conv, err := s.conversions.GetByID(ctx, conversionID)
	if err != nil {
		return err
	}
	if conv.Status != models.ConversionStatusPending {
		return validationErrorf("cannot approve conversion with status: %s", conv.Status)
	}

	approvedOn := s.now()
	conv.Status = models.ConversionStatusApproved
	conv.ApprovedBy = &adminUser
	conv.ApprovedOn = &approvedOn
	if err := s.conversions.Update(ctx, conv); err != nil {
		return fmt.Errorf("update conversion request: %w", err)
	}

	if err := s.opsLog.LogAction(ctx, conv.ID, refTypeConversion, "conversion_approved", conv.Status,
		"Approved by "+adminUser); err != nil {
		log.Printf("[Conversion] Failed to record operation log for %s: %v", conv.ID, err)
	}
	return nil
}

// Reject moves a pending conversion to rejected with an optional reason.
// Admin only.
func (s *ConversionService) Reject(ctx context.Context, conversionID, adminUser, reason string) error {
	conv, err := s.conversions.GetByID(ctx, conversionID)
	if err != nil {
		return err
	}
	if conv.Status != models.ConversionStatusPending {
		return validationErrorf("cannot reject conversion with status: %s", conv.Status)
	}

	conv.Status = models.ConversionStatusRejected
	if reason != "" {
		conv.AdminNotes = &reason
	}
	if err := s.conversions.Update(ctx, conv); err != nil {
		return fmt.Errorf("update conversion request: %w", err)
	}

	if err := s.opsLog.LogAction(ctx, conv.ID, refTypeConversion, "conversion_rejected", conv.Status,
		"Rejected by "+adminUser+": "+reason); err != nil {
		log.Printf("[Conversion] Failed to record operation log for %s: %v", conv.ID, err)
	}
	return nil
}

// Start moves an approved conversion to in_progress and enqueues the
// strategy workflow. Admin only.
func (s *ConversionService) Start(ctx context.Context, conversionID string) error {
	conv, err := s.conversions.GetByID(ctx, conversionID)
	if err != nil {
		return err
	}
	if conv.Status != models.ConversionStatusApproved {
		return validationErrorf("cannot start conversion with status: %s", conv.Status)
	}

	started := s.now()
	conv.Status = models.ConversionStatusInProgress
	conv.ConversionStarted = &started
	if err := s.conversions.Update(ctx, conv); err != nil {
		return fmt.Errorf("update conversion request: %w", err)
	}

	handle := s.queue.Submit("run_conversion", func(jobCtx context.Context) {
		s.runConversion(jobCtx, conversionID)
	})
	if handle == nil {
		// Queue is shut down and no job will run; a conversion stranded in
		// in_progress would block every future conversion for the site.
		conv.Status = models.ConversionStatusApproved
		conv.ConversionStarted = nil
		if err := s.conversions.Update(ctx, conv); err != nil {
			log.Printf("[Conversion] Failed to roll back conversion %s after queue rejection: %v", conv.ID, err)
		}
		return fmt.Errorf("workflow queue is shut down")
	}

	return nil
}

// SendConversionLink issues a fresh token for the site and emails the
// conversion link to the contact. Admin only.
func (s *ConversionService) SendConversionLink(ctx context.Context, siteID string) error {
	site, err := s.sites.GetByID(ctx, siteID)
	if err != nil {
		return err
	}
	if site.Status != models.SiteStatusActive {
		return validationErrorf("cannot send conversion link for site with status: %s", site.Status)
	}

	req, err := s.requests.GetByID(ctx, site.DemoRequestID)
	if err != nil {
		return err
	}

	token, err := s.tokens.Issue(ctx, site.ID)
	if err != nil {
		return err
	}

	link := fmt.Sprintf("%s/convert?token=%s&site=%s", strings.TrimRight(s.cfg.Provisioner.PublicURL, "/"), token, site.ID)

	if err := s.mailer.Send(ctx, req.ContactEmail, client.TemplateConversionLink, map[string]any{
		"contact_name":    req.ContactName,
		"company_name":    req.CompanyName,
		"site_url":        site.FullURL,
		"conversion_link": link,
	}); err != nil {
		return fmt.Errorf("send conversion link: %w", err)
	}

	s.notifications.Record(ctx, &models.Notification{
		ReferenceID: site.ID,
		Template:    client.TemplateConversionLink,
		Recipient:   req.ContactEmail,
	})

	log.Printf("[Conversion] Conversion link sent for site %s to %s", site.ID, req.ContactEmail)
	return nil
}

type conversionOutcome struct {
	productionURL string
	backupURL     string
}

// runConversion is the workflow body executed on a queue worker. Errors
// are absorbed here; the request is failed and the demo site untouched.
func (s *ConversionService) runConversion(ctx context.Context, conversionID string) {
	conv, err := s.conversions.GetByID(ctx, conversionID)
	if err != nil {
		log.Printf("[Conversion] Load conversion %s: %v", conversionID, err)
		return
	}

	site, err := s.sites.GetByID(ctx, conv.DemoSiteID)
	if err != nil {
		s.markFailed(ctx, conv, fmt.Errorf("load demo site %s: %w", conv.DemoSiteID, err))
		return
	}

	var outcome conversionOutcome
	switch conv.ConversionType {
	case models.ConversionUpgradeInPlace:
		outcome, err = s.runUpgradeInPlace(ctx, conv, site)
	case models.ConversionNewSite:
		outcome, err = s.runNewSite(ctx, conv, site)
	case models.ConversionSelfHosted:
		outcome, err = s.runSelfHosted(ctx, conv, site)
	default:
		err = fmt.Errorf("unknown conversion type: %s", conv.ConversionType)
	}

	if err != nil {
		s.markFailed(ctx, conv, err)
		return
	}

	s.markCompleted(ctx, conv, site, outcome)
}

// runUpgradeInPlace changes the plan of the existing demo site. The
// production URL is the demo URL.
func (s *ConversionService) runUpgradeInPlace(ctx context.Context, conv *models.ConversionRequest, site *models.DemoSite) (conversionOutcome, error) {
	if conv.ProductionPlan == nil || *conv.ProductionPlan == "" {
		return conversionOutcome{}, fmt.Errorf("production plan is required for in-place upgrade")
	}

	s.appendLog(conv, fmt.Sprintf("Upgrading %s to plan %s", site.CloudSiteID, *conv.ProductionPlan))
	s.flushLog(ctx, conv)

	if err := s.cloud.ChangePlan(ctx, site.CloudSiteID, *conv.ProductionPlan); err != nil {
		return conversionOutcome{}, err
	}

	s.appendLog(conv, "Plan changed, site retained as production")
	return conversionOutcome{productionURL: site.FullURL}, nil
}

// runNewSite creates a fresh production site with the same apps. The
// demo backup is best effort; data migration happens out of band.
func (s *ConversionService) runNewSite(ctx context.Context, conv *models.ConversionRequest, site *models.DemoSite) (conversionOutcome, error) {
	if conv.ProductionSubdomain == nil || *conv.ProductionSubdomain == "" {
		return conversionOutcome{}, fmt.Errorf("production subdomain is required for a fresh production site")
	}

	s.appendLog(conv, "Requesting backup of demo site "+site.CloudSiteID)
	if err := s.cloud.CreateBackup(ctx, site.CloudSiteID); err != nil {
		s.appendLog(conv, "Backup request failed, continuing: "+err.Error())
	} else {
		s.sleep(s.cfg.Provisioner.BackupSettleDelay)
		if url, ok := s.latestBackupURL(ctx, conv, site.CloudSiteID); ok {
			created := s.now()
			conv.BackupURL = &url
			conv.BackupCreated = &created
			s.appendLog(conv, "Backup ready")
		}
	}
	s.flushLog(ctx, conv)

	apps := splitApps(conv.ProductionApps)
	if len(apps) == 0 {
		apps = []string{"frappe", "erpnext"}
	}

	plan := deref(conv.ProductionPlan)
	if plan == "" {
		plan = site.CloudPlan
	}

	subdomain := *conv.ProductionSubdomain
	s.appendLog(conv, fmt.Sprintf("Creating production site: %s.%s", subdomain, s.cfg.Cloud.DemoDomain))
	s.flushLog(ctx, conv)

	siteName, err := s.cloud.CreateSite(ctx, subdomain, firstTwo(apps), plan, s.resolveCluster(site.Region), conv.ID)
	if err != nil {
		return conversionOutcome{}, err
	}
	if siteName == "" {
		siteName = subdomain + "." + s.cfg.Cloud.DemoDomain
	}

	s.appendLog(conv, "Waiting for production site to be ready...")
	s.flushLog(ctx, conv)

	if err := pollSiteActive(ctx, s.cloud, s.cfg.Provisioner, s.sleep, siteName, func(msg string) {
		s.appendLog(conv, msg)
	}); err != nil {
		return conversionOutcome{}, err
	}

	for _, app := range rest(apps) {
		s.appendLog(conv, fmt.Sprintf("Installing %s...", app))
		if err := s.cloud.InstallApp(ctx, siteName, app); err != nil {
			return conversionOutcome{}, err
		}
		s.sleep(s.cfg.Provisioner.InstallSettleDelay)
	}

	s.appendLog(conv, "Production site ready. Demo data migration will be coordinated by the onboarding team.")
	return conversionOutcome{productionURL: "https://" + siteName, backupURL: deref(conv.BackupURL)}, nil
}

// runSelfHosted produces a downloadable backup for migration to the
// customer's own infrastructure. Here the backup is mandatory.
func (s *ConversionService) runSelfHosted(ctx context.Context, conv *models.ConversionRequest, site *models.DemoSite) (conversionOutcome, error) {
	s.appendLog(conv, "Requesting full backup of "+site.CloudSiteID)
	s.flushLog(ctx, conv)

	if err := s.cloud.CreateBackup(ctx, site.CloudSiteID); err != nil {
		return conversionOutcome{}, err
	}

	s.sleep(s.cfg.Provisioner.SelfHostBackupWait)

	url, ok := s.latestBackupURL(ctx, conv, site.CloudSiteID)
	if !ok {
		return conversionOutcome{}, fmt.Errorf("backup did not produce a download URL")
	}

	created := s.now()
	conv.BackupURL = &url
	conv.BackupCreated = &created
	s.appendLog(conv, "Backup ready for download")

	return conversionOutcome{backupURL: url}, nil
}

// latestBackupURL fetches the newest backup's download URL, if any.
func (s *ConversionService) latestBackupURL(ctx context.Context, conv *models.ConversionRequest, cloudSiteID string) (string, bool) {
	backups, err := s.cloud.ListBackups(ctx, cloudSiteID)
	if err != nil {
		s.appendLog(conv, "Listing backups failed: "+err.Error())
		return "", false
	}
	if len(backups) == 0 {
		return "", false
	}

	url := backups[0].DownloadURL()
	if url == "" {
		return "", false
	}
	return url, true
}

func (s *ConversionService) markCompleted(ctx context.Context, conv *models.ConversionRequest, site *models.DemoSite, outcome conversionOutcome) {
	completed := s.now()
	conv.Status = models.ConversionStatusCompleted
	conv.ConversionCompleted = &completed
	if outcome.productionURL != "" {
		conv.ProductionSiteURL = &outcome.productionURL
	}
	if outcome.backupURL != "" && conv.BackupURL == nil {
		conv.BackupURL = &outcome.backupURL
	}
	s.appendLog(conv, "Conversion completed")

	if err := s.conversions.Update(ctx, conv); err != nil {
		log.Printf("[Conversion] Failed to persist completion for %s: %v", conv.ID, err)
		return
	}

	site.Status = models.SiteStatusConverted
	site.ConvertedToPaid = true
	if outcome.productionURL != "" {
		site.ProductionSiteURL = &outcome.productionURL
	}
	if err := s.sites.Update(ctx, site); err != nil {
		log.Printf("[Conversion] Failed to mark site %s converted: %v", site.ID, err)
	}

	if err := s.opsLog.LogAction(ctx, conv.ID, refTypeConversion, "conversion_completed", conv.Status,
		fmt.Sprintf("Conversion type %s completed for site %s", conv.ConversionType, site.ID)); err != nil {
		log.Printf("[Conversion] Failed to record operation log for %s: %v", conv.ID, err)
	}

	s.sendConfirmationEmail(ctx, conv, site)

	log.Printf("[Conversion] Conversion %s completed (%s)", conv.ID, conv.ConversionType)
}

func (s *ConversionService) sendConfirmationEmail(ctx context.Context, conv *models.ConversionRequest, site *models.DemoSite) {
	req, err := s.requests.GetByID(ctx, site.DemoRequestID)
	if err != nil {
		log.Printf("[Conversion] Load request for confirmation email: %v", err)
		return
	}

	args := map[string]any{
		"contact_name":    req.ContactName,
		"company_name":    req.CompanyName,
		"conversion_type": string(conv.ConversionType),
	}
	if conv.ProductionSiteURL != nil {
		args["production_site_url"] = *conv.ProductionSiteURL
	}
	if conv.ConversionType == models.ConversionSelfHosted && conv.BackupURL != nil {
		args["backup_url"] = *conv.BackupURL
	}

	if err := s.mailer.Send(ctx, req.ContactEmail, client.TemplateConversionConfirmation, args); err != nil {
		log.Printf("[Conversion] Failed to send confirmation email for %s: %v", conv.ID, err)
		return
	}

	s.notifications.Record(ctx, &models.Notification{
		ReferenceID: conv.ID,
		Template:    client.TemplateConversionConfirmation,
		Recipient:   req.ContactEmail,
	})
}

// markFailed fails the conversion request. The demo site keeps its
// status so the customer loses nothing.
func (s *ConversionService) markFailed(ctx context.Context, conv *models.ConversionRequest, cause error) {
	log.Printf("[Conversion] Conversion %s failed: %v", conv.ID, cause)

	msg := cause.Error()
	conv.Status = models.ConversionStatusFailed
	conv.ErrorMessage = &msg
	s.appendLog(conv, "Conversion failed: "+msg)

	if err := s.conversions.Update(ctx, conv); err != nil {
		log.Printf("[Conversion] Failed to persist failure for %s: %v", conv.ID, err)
	}

	if err := s.opsLog.LogAction(ctx, conv.ID, refTypeConversion, "conversion_failed", conv.Status, msg); err != nil {
		log.Printf("[Conversion] Failed to record operation log for %s: %v", conv.ID, err)
	}
}

func (s *ConversionService) appendLog(conv *models.ConversionRequest, message string) {
	conv.ConversionLog += fmt.Sprintf("[%s] %s\n", s.now().Format("2006-01-02 15:04:05"), message)
}

func (s *ConversionService) flushLog(ctx context.Context, conv *models.ConversionRequest) {
	if err := s.conversions.Update(ctx, conv); err != nil {
		log.Printf("[Conversion] Failed to flush log for %s: %v", conv.ID, err)
	}
}

// resolveCluster mirrors the provisioning region mapping for production
// sites created during conversion.
func (s *ConversionService) resolveCluster(region string) string {
	if cluster, ok := regionClusterMap[region]; ok {
		return cluster
	}
	if s.cfg.Cloud.DefaultCluster != "" {
		return s.cfg.Cloud.DefaultCluster
	}
	return "Mumbai"
}
