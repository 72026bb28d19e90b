package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/chinmaybhatk/frappe-kit/internal/client"
	"github.com/chinmaybhatk/frappe-kit/internal/config"
	"github.com/chinmaybhatk/frappe-kit/internal/models"
)

// How long a request may sit in provisioning before the sweeper fails it
const stuckProvisioningAfter = 24 * time.Hour

// SweeperService runs the scheduled maintenance jobs: expiring trial
// sites, warning about upcoming expiry and failing stuck requests.
type SweeperService struct {
	cfg           *config.Config
	requests      DemoRequestStore
	sites         DemoSiteStore
	notifications NotificationStore
	opsLog        OperationLogStore
	mailer        Mailer

	now func() time.Time
}

func NewSweeperService(
	cfg *config.Config,
	requests DemoRequestStore,
	sites DemoSiteStore,
	notifications NotificationStore,
	opsLog OperationLogStore,
	mailer Mailer,
) *SweeperService {
	return &SweeperService{
		cfg:           cfg,
		requests:      requests,
		sites:         sites,
		notifications: notifications,
		opsLog:        opsLog,
		mailer:        mailer,
		now:           time.Now,
	}
}

// ExpireDemoSites suspends active demo sites whose trial has ended.
// Idempotent; a site already suspended is not listed again.
func (s *SweeperService) ExpireDemoSites(ctx context.Context) (int, error) {
	sites, err := s.sites.ListExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("list expired sites: %w", err)
	}

	suspended := 0
	for _, site := range sites {
		site.Status = models.SiteStatusSuspended
		if err := s.sites.Update(ctx, site); err != nil {
			log.Printf("[Sweeper] Failed to suspend site %s: %v", site.ID, err)
			continue
		}
		if err := s.opsLog.LogAction(ctx, site.ID, "demo_site", "trial_expired", site.Status,
			"Trial expired, site suspended"); err != nil {
			log.Printf("[Sweeper] Failed to record operation log for %s: %v", site.ID, err)
		}
		suspended++
	}

	if suspended > 0 {
		log.Printf("[Sweeper] Suspended %d expired demo sites", suspended)
	}
	return suspended, nil
}

// SendExpiryWarnings emails contacts whose trial expires within the
// warning window. The notification record dedupes so each request is
// warned at most once.
func (s *SweeperService) SendExpiryWarnings(ctx context.Context) (int, error) {
	warnDays := s.cfg.Provisioner.ExpiryWarnDays
	if warnDays <= 0 {
		warnDays = 3
	}

	from := s.now()
	to := from.AddDate(0, 0, warnDays)

	requests, err := s.requests.ListExpiringTrials(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("list expiring trials: %w", err)
	}

	sent := 0
	for _, req := range requests {
		already, err := s.notifications.Exists(ctx, req.ID, client.TemplateExpiryWarning)
		if err != nil {
			log.Printf("[Sweeper] Dedup check for %s: %v", req.ID, err)
			continue
		}
		if already {
			continue
		}

		args := map[string]any{
			"contact_name": req.ContactName,
			"company_name": req.CompanyName,
			"site_url":     deref(req.SiteURL),
		}
		if req.TrialExpires != nil {
			args["trial_expires"] = req.TrialExpires.Format("2006-01-02")
			args["days_left"] = int(req.TrialExpires.Sub(from).Hours() / 24)
		}

		if err := s.mailer.Send(ctx, req.ContactEmail, client.TemplateExpiryWarning, args); err != nil {
			log.Printf("[Sweeper] Failed to send expiry warning for %s: %v", req.ID, err)
			continue
		}

		if err := s.notifications.Record(ctx, &models.Notification{
			ReferenceID: req.ID,
			Template:    client.TemplateExpiryWarning,
			Recipient:   req.ContactEmail,
		}); err != nil {
			log.Printf("[Sweeper] Failed to record expiry warning for %s: %v", req.ID, err)
		}
		sent++
	}

	if sent > 0 {
		log.Printf("[Sweeper] Sent %d expiry warnings", sent)
	}
	return sent, nil
}

// FailStuckRequests fails requests stuck in provisioning for more than a
// day, so the contact can retry instead of waiting forever.
func (s *SweeperService) FailStuckRequests(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-stuckProvisioningAfter)

	requests, err := s.requests.ListStuckProvisioning(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("list stuck requests: %w", err)
	}

	failed := 0
	for _, req := range requests {
		msg := "Provisioning timed out after 24 hours"
		req.Status = models.RequestStatusFailed
		req.ErrorMessage = &msg
		if err := s.requests.Update(ctx, req); err != nil {
			log.Printf("[Sweeper] Failed to fail stuck request %s: %v", req.ID, err)
			continue
		}
		if err := s.opsLog.LogAction(ctx, req.ID, refTypeDemoRequest, "provision_timed_out", req.Status, msg); err != nil {
			log.Printf("[Sweeper] Failed to record operation log for %s: %v", req.ID, err)
		}
		failed++
	}

	if failed > 0 {
		log.Printf("[Sweeper] Failed %d stuck provisioning requests", failed)
	}
	return failed, nil
}
