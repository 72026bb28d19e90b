package service

import (
	"context"
	"testing"
	"time"

	"github.com/chinmaybhatk/frappe-kit/internal/client"
	"github.com/chinmaybhatk/frappe-kit/internal/models"
)

type sweeperFixture struct {
	svc           *SweeperService
	requests      *mockRequestStore
	sites         *mockSiteStore
	notifications *mockNotificationStore
	opsLog        *mockOpsLogStore
	mailer        *mockMailer
}

func newSweeperFixture(now time.Time) *sweeperFixture {
	f := &sweeperFixture{
		requests:      &mockRequestStore{},
		sites:         &mockSiteStore{},
		notifications: &mockNotificationStore{},
		opsLog:        &mockOpsLogStore{},
		mailer:        &mockMailer{},
	}

	f.svc = NewSweeperService(testConfig(), f.requests, f.sites, f.notifications, f.opsLog, f.mailer)
	f.svc.now = func() time.Time { return now }
	return f
}

func TestExpireDemoSites(t *testing.T) {
	now := time.Date(2026, 3, 15, 2, 0, 0, 0, time.UTC)
	f := newSweeperFixture(now)

	expired := []*models.DemoSite{
		{ID: "site-1", Status: models.SiteStatusActive},
		{ID: "site-2", Status: models.SiteStatusActive},
	}
	f.sites.listExpiredFn = func(ctx context.Context, at time.Time) ([]*models.DemoSite, error) {
		if !at.Equal(now) {
			t.Errorf("list cutoff = %v, want %v", at, now)
		}
		return expired, nil
	}

	var updated []string
	f.sites.updateFn = func(ctx context.Context, site *models.DemoSite) error {
		updated = append(updated, site.ID)
		return nil
	}

	count, err := f.svc.ExpireDemoSites(context.Background())
	if err != nil {
		t.Fatalf("ExpireDemoSites: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
	for _, site := range expired {
		if site.Status != models.SiteStatusSuspended {
			t.Errorf("site %s status = %q, want suspended", site.ID, site.Status)
		}
	}
	if len(updated) != 2 {
		t.Errorf("updated %v, want both sites", updated)
	}
}

func TestSendExpiryWarningsDedup(t *testing.T) {
	now := time.Date(2026, 3, 15, 2, 0, 0, 0, time.UTC)
	f := newSweeperFixture(now)

	expires := now.AddDate(0, 0, 2)
	url := "https://acme-corp.frappe.cloud"
	requests := []*models.DemoRequest{
		{ID: "req-1", ContactName: "Jo", CompanyName: "Acme", ContactEmail: "jo@acme.example", SiteURL: &url, TrialExpires: &expires},
		{ID: "req-2", ContactName: "Sam", CompanyName: "Beta", ContactEmail: "sam@beta.example", SiteURL: &url, TrialExpires: &expires},
	}

	f.requests.listExpiringTrialsFn = func(ctx context.Context, from, to time.Time) ([]*models.DemoRequest, error) {
		if !from.Equal(now) {
			t.Errorf("window start = %v, want %v", from, now)
		}
		if want := now.AddDate(0, 0, 3); !to.Equal(want) {
			t.Errorf("window end = %v, want %v", to, want)
		}
		return requests, nil
	}

	// req-1 was already warned
	f.notifications.existsFn = func(ctx context.Context, referenceID, template string) (bool, error) {
		return referenceID == "req-1", nil
	}

	var recorded []string
	f.notifications.recordFn = func(ctx context.Context, n *models.Notification) error {
		recorded = append(recorded, n.ReferenceID)
		return nil
	}

	count, err := f.svc.SendExpiryWarnings(context.Background())
	if err != nil {
		t.Fatalf("SendExpiryWarnings: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
	if len(f.mailer.sent) != 1 || f.mailer.sent[0] != client.TemplateExpiryWarning {
		t.Errorf("mailer sent = %v, want one expiry warning", f.mailer.sent)
	}
	if len(recorded) != 1 || recorded[0] != "req-2" {
		t.Errorf("recorded = %v, want [req-2]", recorded)
	}
}

func TestFailStuckRequests(t *testing.T) {
	now := time.Date(2026, 3, 15, 2, 0, 0, 0, time.UTC)
	f := newSweeperFixture(now)

	stuck := &models.DemoRequest{ID: "req-1", Status: models.RequestStatusProvisioning}
	f.requests.listStuckFn = func(ctx context.Context, before time.Time) ([]*models.DemoRequest, error) {
		if want := now.Add(-24 * time.Hour); !before.Equal(want) {
			t.Errorf("cutoff = %v, want %v", before, want)
		}
		return []*models.DemoRequest{stuck}, nil
	}

	count, err := f.svc.FailStuckRequests(context.Background())
	if err != nil {
		t.Fatalf("FailStuckRequests: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
	if stuck.Status != models.RequestStatusFailed {
		t.Errorf("status = %q, want failed", stuck.Status)
	}
	if stuck.ErrorMessage == nil || *stuck.ErrorMessage != "Provisioning timed out after 24 hours" {
		t.Errorf("error message = %v", stuck.ErrorMessage)
	}
}
