package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/chinmaybhatk/frappe-kit/internal/client"
	"github.com/chinmaybhatk/frappe-kit/internal/config"
	"github.com/chinmaybhatk/frappe-kit/internal/models"
)

func testConfig() *config.Config {
	return &config.Config{
		Cloud: config.CloudConfig{
			DemoDomain:     "frappe.cloud",
			DefaultCluster: "Mumbai",
		},
		Provisioner: config.ProvisionerConfig{
			DefaultTrialDays:   14,
			DailyLimit:         20,
			TokenExpiryHours:   72,
			ExpiryWarnDays:     3,
			PollInterval:       10 * time.Second,
			PollCeiling:        180 * time.Second,
			InstallSettleDelay: 5 * time.Second,
			BackupSettleDelay:  10 * time.Second,
			SelfHostBackupWait: 30 * time.Second,
			PublicURL:          "https://demo.example.com",
		},
		InstallationSecret: "test-installation-secret-0123456789",
	}
}

func growthTier() *models.PackageTier {
	return &models.PackageTier{
		Name:           "growth",
		TierName:       "Growth",
		DisplayName:    "Growth",
		IncludeSales:   true,
		IncludeSupport: true,
		CloudPlan:      "USD 25",
		TrialDays:      14,
		Enabled:        true,
	}
}

type provisionFixture struct {
	svc           *ProvisionService
	requests      *mockRequestStore
	sites         *mockSiteStore
	reference     *mockReferenceStore
	notifications *mockNotificationStore
	opsLog        *mockOpsLogStore
	cloud         *mockCloudAPI
	mailer        *mockMailer
	queue         *syncQueue
}

func newProvisionFixture(now time.Time) *provisionFixture {
	f := &provisionFixture{
		requests:      &mockRequestStore{},
		sites:         &mockSiteStore{},
		reference:     &mockReferenceStore{},
		notifications: &mockNotificationStore{},
		opsLog:        &mockOpsLogStore{},
		cloud:         &mockCloudAPI{},
		mailer:        &mockMailer{},
		queue:         &syncQueue{},
	}

	f.svc = NewProvisionService(
		testConfig(), f.requests, f.sites, f.reference,
		f.notifications, f.opsLog, f.cloud, f.mailer, f.queue,
	)
	f.svc.now = func() time.Time { return now }
	f.svc.sleep = func(time.Duration) {}
	return f
}

func TestSubmitDemoRequestRejectsBadEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
	}{
		{"empty", ""},
		{"no at sign", "nobody.example.com"},
		{"no tld", "nobody@example"},
		{"disposable domain", "nobody@tempmail.com"},
		{"disposable domain uppercase", "nobody@GUERRILLAMAIL.COM"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newProvisionFixture(time.Now())
			_, err := f.svc.SubmitDemoRequest(context.Background(), &models.SubmitDemoRequest{
				CompanyName:  "Acme Corp",
				ContactName:  "Jo Smith",
				ContactEmail: tt.email,
				PackageTier:  "growth",
			}, "1.2.3.4")

			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
		})
	}
}

func TestSubmitDemoRequestDailyCap(t *testing.T) {
	f := newProvisionFixture(time.Now())
	f.requests.countCreatedSinceFn = func(ctx context.Context, since time.Time) (int, error) {
		return 20, nil
	}

	_, err := f.svc.SubmitDemoRequest(context.Background(), &models.SubmitDemoRequest{
		CompanyName:  "Acme Corp",
		ContactName:  "Jo Smith",
		ContactEmail: "jo@acme.example",
		PackageTier:  "growth",
	}, "1.2.3.4")

	var conflictErr *ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("err = %v, want ConflictError", err)
	}
}

func TestSubmitDemoRequestDuplicateEmail(t *testing.T) {
	f := newProvisionFixture(time.Now())
	f.requests.existsActiveByEmailFn = func(ctx context.Context, email string) (bool, error) {
		return true, nil
	}

	_, err := f.svc.SubmitDemoRequest(context.Background(), &models.SubmitDemoRequest{
		CompanyName:  "Acme Corp",
		ContactName:  "Jo Smith",
		ContactEmail: "jo@acme.example",
		PackageTier:  "growth",
	}, "1.2.3.4")

	var conflictErr *ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("err = %v, want ConflictError", err)
	}
}

func TestSubmitDemoRequestProvisionsSite(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	f := newProvisionFixture(now)

	var stored *models.DemoRequest
	f.requests.createFn = func(ctx context.Context, req *models.DemoRequest) error {
		stored = req
		return nil
	}
	f.requests.getByIDFn = func(ctx context.Context, id string) (*models.DemoRequest, error) {
		return stored, nil
	}

	f.reference.getTierFn = func(ctx context.Context, name string) (*models.PackageTier, error) {
		return growthTier(), nil
	}

	var createdApps []string
	var dedupKey string
	f.cloud.createSiteFn = func(ctx context.Context, subdomain string, apps []string, plan, cluster, key string) (string, error) {
		createdApps = apps
		dedupKey = key
		return subdomain + ".frappe.cloud", nil
	}
	f.cloud.getSiteStatusFn = func(ctx context.Context, siteName string) (*client.SiteStatus, error) {
		return &client.SiteStatus{Name: siteName, Status: "Active"}, nil
	}

	var installed []string
	f.cloud.installAppFn = func(ctx context.Context, siteName, appName string) error {
		installed = append(installed, appName)
		return nil
	}

	var createdSite *models.DemoSite
	f.sites.createFn = func(ctx context.Context, site *models.DemoSite) error {
		createdSite = site
		return nil
	}

	resp, err := f.svc.SubmitDemoRequest(context.Background(), &models.SubmitDemoRequest{
		CompanyName:   "Acme Corp",
		ContactName:   "Jo Smith",
		ContactEmail:  "jo@acme.example",
		EmployeeCount: 25,
		Region:        models.RegionSoutheastAsia,
		PackageTier:   "growth",
	}, "1.2.3.4")
	if err != nil {
		t.Fatalf("SubmitDemoRequest: %v", err)
	}
	if resp.DemoRequestID == "" {
		t.Error("response missing demo request id")
	}

	// The workflow ran inline on the sync queue
	if stored.Status != models.RequestStatusActive {
		t.Fatalf("request status = %q, want active (log: %s, err: %v)", stored.Status, stored.ProvisioningLog, stored.ErrorMessage)
	}

	// Site created with the two base apps, the rest installed after
	if len(createdApps) != 2 || createdApps[0] != "frappe" || createdApps[1] != "erpnext" {
		t.Errorf("createSite apps = %v, want [frappe erpnext]", createdApps)
	}
	if len(installed) != 2 || installed[0] != "crm" || installed[1] != "helpdesk" {
		t.Errorf("installed apps = %v, want [crm helpdesk]", installed)
	}
	if dedupKey != stored.ID {
		t.Errorf("dedup key = %q, want request id %q", dedupKey, stored.ID)
	}

	if stored.SiteURL == nil || *stored.SiteURL != "https://acme-corp.frappe.cloud" {
		t.Errorf("site url = %v, want https://acme-corp.frappe.cloud", stored.SiteURL)
	}
	if stored.DemoUsername == nil || *stored.DemoUsername != "jo@acme.example" {
		t.Errorf("demo username = %v, want contact email", stored.DemoUsername)
	}
	if stored.DemoPassword == nil || len(*stored.DemoPassword) != passwordLength {
		t.Errorf("demo password = %v, want %d random characters", stored.DemoPassword, passwordLength)
	}

	wantExpiry := now.AddDate(0, 0, 14)
	if stored.TrialExpires == nil || !stored.TrialExpires.Equal(wantExpiry) {
		t.Errorf("trial expires = %v, want %v", stored.TrialExpires, wantExpiry)
	}

	if createdSite == nil {
		t.Fatal("no demo site created")
	}
	if createdSite.AppsInstalled != "frappe, erpnext, crm, helpdesk" {
		t.Errorf("apps installed = %q", createdSite.AppsInstalled)
	}
	if createdSite.CloudSiteID != "acme-corp.frappe.cloud" {
		t.Errorf("cloud site id = %q", createdSite.CloudSiteID)
	}

	if len(f.mailer.sent) != 1 || f.mailer.sent[0] != client.TemplateWelcome {
		t.Errorf("mailer sent = %v, want [welcome]", f.mailer.sent)
	}
}

func TestProvisionFailureKeepsLogAndMarksFailed(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	f := newProvisionFixture(now)

	var stored *models.DemoRequest
	f.requests.createFn = func(ctx context.Context, req *models.DemoRequest) error {
		stored = req
		return nil
	}
	f.requests.getByIDFn = func(ctx context.Context, id string) (*models.DemoRequest, error) {
		return stored, nil
	}
	f.reference.getTierFn = func(ctx context.Context, name string) (*models.PackageTier, error) {
		return growthTier(), nil
	}
	f.cloud.createSiteFn = func(ctx context.Context, subdomain string, apps []string, plan, cluster, key string) (string, error) {
		return "", &client.RemoteError{Operation: "createSite", StatusCode: 502, Body: "bad gateway"}
	}

	_, err := f.svc.SubmitDemoRequest(context.Background(), &models.SubmitDemoRequest{
		CompanyName:  "Acme Corp",
		ContactName:  "Jo Smith",
		ContactEmail: "jo@acme.example",
		PackageTier:  "growth",
	}, "1.2.3.4")
	if err != nil {
		t.Fatalf("SubmitDemoRequest: %v", err)
	}

	if stored.Status != models.RequestStatusFailed {
		t.Fatalf("request status = %q, want failed", stored.Status)
	}
	if stored.ErrorMessage == nil || !strings.Contains(*stored.ErrorMessage, "createSite") {
		t.Errorf("error message = %v, want remote failure detail", stored.ErrorMessage)
	}

	// Log lines written before the failure survive it
	if !strings.Contains(stored.ProvisioningLog, "Starting provisioning") {
		t.Errorf("provisioning log lost earlier entries: %q", stored.ProvisioningLog)
	}
	if !strings.Contains(stored.ProvisioningLog, "Provisioning failed") {
		t.Errorf("provisioning log missing failure entry: %q", stored.ProvisioningLog)
	}

	if len(f.mailer.sent) != 0 {
		t.Errorf("mailer sent %v on a failed run", f.mailer.sent)
	}
}

func TestStartProvisioningRejectsActiveRequest(t *testing.T) {
	f := newProvisionFixture(time.Now())
	f.requests.getByIDFn = func(ctx context.Context, id string) (*models.DemoRequest, error) {
		return &models.DemoRequest{ID: id, Status: models.RequestStatusActive}, nil
	}

	err := f.svc.StartProvisioning(context.Background(), "req-1")

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if len(f.queue.submitted) != 0 {
		t.Errorf("queue received %v for a non-retryable request", f.queue.submitted)
	}
}

func TestStartProvisioningRollsBackWhenQueueRejects(t *testing.T) {
	f := newProvisionFixture(time.Now())

	doc := &models.DemoRequest{ID: "req-1", Status: models.RequestStatusPending}
	f.requests.getByIDFn = func(ctx context.Context, id string) (*models.DemoRequest, error) {
		return doc, nil
	}

	var updates []string
	f.requests.updateFn = func(ctx context.Context, req *models.DemoRequest) error {
		updates = append(updates, req.Status)
		return nil
	}

	f.svc.queue = shutDownQueue{}

	err := f.svc.StartProvisioning(context.Background(), "req-1")
	if err == nil {
		t.Fatal("StartProvisioning succeeded with a rejected submission")
	}

	// The record must not be stranded in provisioning with no job running
	if doc.Status != models.RequestStatusPending {
		t.Errorf("status = %q, want pending after rollback", doc.Status)
	}
	if doc.ProvisioningStarted != nil {
		t.Errorf("provisioning started = %v, want nil after rollback", doc.ProvisioningStarted)
	}
	if len(updates) != 2 || updates[1] != models.RequestStatusPending {
		t.Errorf("status updates = %v, want provisioning then pending", updates)
	}
}

func TestRecommendTierPrefersHighestRangeFloor(t *testing.T) {
	f := newProvisionFixture(time.Now())

	// Overlapping ranges: 15 employees fits both; the larger tier wins
	f.reference.listEnabledTiersFn = func(ctx context.Context) ([]*models.PackageTier, error) {
		return []*models.PackageTier{
			{Name: "starter", EmployeeRangeMin: 1, EmployeeRangeMax: 20},
			{Name: "growth", EmployeeRangeMin: 11, EmployeeRangeMax: 50},
			{Name: "scale", EmployeeRangeMin: 51, EmployeeRangeMax: 0},
		}, nil
	}

	tests := []struct {
		count int
		want  string
	}{
		{5, "starter"},
		{15, "growth"},
		{200, "scale"},
		{0, ""},
	}

	for _, tt := range tests {
		if got := f.svc.recommendTier(context.Background(), tt.count); got != tt.want {
			t.Errorf("recommendTier(%d) = %q, want %q", tt.count, got, tt.want)
		}
	}
}

func TestProvisioningCompletesWhenOperationLogFails(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	f := newProvisionFixture(now)
	f.opsLog.failWith = errors.New("operation log insert failed")

	var stored *models.DemoRequest
	f.requests.createFn = func(ctx context.Context, req *models.DemoRequest) error {
		stored = req
		return nil
	}
	f.requests.getByIDFn = func(ctx context.Context, id string) (*models.DemoRequest, error) {
		return stored, nil
	}
	f.reference.getTierFn = func(ctx context.Context, name string) (*models.PackageTier, error) {
		return growthTier(), nil
	}
	f.cloud.createSiteFn = func(ctx context.Context, subdomain string, apps []string, plan, cluster, key string) (string, error) {
		return subdomain + ".frappe.cloud", nil
	}
	f.cloud.getSiteStatusFn = func(ctx context.Context, siteName string) (*client.SiteStatus, error) {
		return &client.SiteStatus{Status: "Active"}, nil
	}

	_, err := f.svc.SubmitDemoRequest(context.Background(), &models.SubmitDemoRequest{
		CompanyName:  "Acme Corp",
		ContactName:  "Jo Smith",
		ContactEmail: "jo@acme.example",
		PackageTier:  "growth",
	}, "1.2.3.4")
	if err != nil {
		t.Fatalf("SubmitDemoRequest: %v", err)
	}

	// A failing audit write never fails the workflow
	if stored.Status != models.RequestStatusActive {
		t.Errorf("request status = %q, want active", stored.Status)
	}
}

func TestPollSiteActiveTimeout(t *testing.T) {
	checks := 0
	cloud := &mockCloudAPI{
		getSiteStatusFn: func(ctx context.Context, siteName string) (*client.SiteStatus, error) {
			checks++
			return &client.SiteStatus{Status: "Pending"}, nil
		},
	}

	err := pollSiteActive(context.Background(), cloud, testConfig().Provisioner, func(time.Duration) {}, "acme.frappe.cloud", func(string) {})
	if !errors.Is(err, ErrPollTimeout) {
		t.Fatalf("err = %v, want ErrPollTimeout", err)
	}

	// 180s ceiling at 10s interval
	if checks != 18 {
		t.Errorf("status checks = %d, want 18", checks)
	}
}

func TestPollSiteActiveBrokenIsFatal(t *testing.T) {
	cloud := &mockCloudAPI{
		getSiteStatusFn: func(ctx context.Context, siteName string) (*client.SiteStatus, error) {
			return &client.SiteStatus{Status: "Broken"}, nil
		},
	}

	err := pollSiteActive(context.Background(), cloud, testConfig().Provisioner, func(time.Duration) {}, "acme.frappe.cloud", func(string) {})
	if err == nil || !strings.Contains(err.Error(), "broken") {
		t.Fatalf("err = %v, want broken status failure", err)
	}
}

func TestResolveApps(t *testing.T) {
	tier := growthTier()
	tier.FrappeApps = "crm, insights"

	apps := resolveApps(tier)
	want := []string{"frappe", "erpnext", "crm", "insights", "helpdesk"}
	if len(apps) != len(want) {
		t.Fatalf("apps = %v, want %v", apps, want)
	}
	for i := range want {
		if apps[i] != want[i] {
			t.Fatalf("apps = %v, want %v", apps, want)
		}
	}
}

func TestResolveCluster(t *testing.T) {
	svc := &ProvisionService{cfg: testConfig()}

	tests := []struct {
		region string
		want   string
	}{
		{models.RegionIndia, "Mumbai"},
		{models.RegionSoutheastAsia, "Singapore"},
		{models.RegionEuropeUK, "Frankfurt"},
		{models.RegionMEA, "Frankfurt"},
		{"Antarctica", "Mumbai"},
	}

	for _, tt := range tests {
		if got := svc.resolveCluster(tt.region); got != tt.want {
			t.Errorf("resolveCluster(%q) = %q, want %q", tt.region, got, tt.want)
		}
	}
}

func TestGeneratePassword(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		pw, err := generatePassword(passwordLength)
		if err != nil {
			t.Fatalf("generatePassword: %v", err)
		}
		if len(pw) != passwordLength {
			t.Fatalf("password length = %d, want %d", len(pw), passwordLength)
		}
		for _, r := range pw {
			if !strings.ContainsRune(passwordAlphabet, r) {
				t.Fatalf("password %q contains %q outside the alphabet", pw, r)
			}
		}
		seen[pw] = true
	}
	if len(seen) < 2 {
		t.Error("passwords are not random")
	}
}
