package service

import (
	"context"
	"time"

	"github.com/chinmaybhatk/frappe-kit/internal/client"
	"github.com/chinmaybhatk/frappe-kit/internal/models"
	"github.com/chinmaybhatk/frappe-kit/internal/queue"
)

// Function-field mocks for the store and client contracts. Unset fields
// return zero values so each test only wires what it exercises.

type mockRequestStore struct {
	createFn              func(ctx context.Context, req *models.DemoRequest) error
	getByIDFn             func(ctx context.Context, id string) (*models.DemoRequest, error)
	existsActiveByEmailFn func(ctx context.Context, email string) (bool, error)
	countCreatedSinceFn   func(ctx context.Context, since time.Time) (int, error)
	updateFn              func(ctx context.Context, req *models.DemoRequest) error
	listExpiringTrialsFn  func(ctx context.Context, from, to time.Time) ([]*models.DemoRequest, error)
	listStuckFn           func(ctx context.Context, before time.Time) ([]*models.DemoRequest, error)
}

func (m *mockRequestStore) Create(ctx context.Context, req *models.DemoRequest) error {
	if m.createFn == nil {
		return nil
	}
	return m.createFn(ctx, req)
}

func (m *mockRequestStore) GetByID(ctx context.Context, id string) (*models.DemoRequest, error) {
	return m.getByIDFn(ctx, id)
}

func (m *mockRequestStore) ExistsActiveByEmail(ctx context.Context, email string) (bool, error) {
	if m.existsActiveByEmailFn == nil {
		return false, nil
	}
	return m.existsActiveByEmailFn(ctx, email)
}

func (m *mockRequestStore) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	if m.countCreatedSinceFn == nil {
		return 0, nil
	}
	return m.countCreatedSinceFn(ctx, since)
}

func (m *mockRequestStore) Update(ctx context.Context, req *models.DemoRequest) error {
	if m.updateFn == nil {
		return nil
	}
	return m.updateFn(ctx, req)
}

func (m *mockRequestStore) ListExpiringTrials(ctx context.Context, from, to time.Time) ([]*models.DemoRequest, error) {
	if m.listExpiringTrialsFn == nil {
		return nil, nil
	}
	return m.listExpiringTrialsFn(ctx, from, to)
}

func (m *mockRequestStore) ListStuckProvisioning(ctx context.Context, before time.Time) ([]*models.DemoRequest, error) {
	if m.listStuckFn == nil {
		return nil, nil
	}
	return m.listStuckFn(ctx, before)
}

type mockSiteStore struct {
	createFn             func(ctx context.Context, site *models.DemoSite) error
	getByIDFn            func(ctx context.Context, id string) (*models.DemoSite, error)
	subdomainExistsFn    func(ctx context.Context, subdomain string) (bool, error)
	updateFn             func(ctx context.Context, site *models.DemoSite) error
	setConversionTokenFn func(ctx context.Context, id, token string, issued time.Time) error
	listExpiredFn        func(ctx context.Context, now time.Time) ([]*models.DemoSite, error)
}

func (m *mockSiteStore) Create(ctx context.Context, site *models.DemoSite) error {
	if m.createFn == nil {
		return nil
	}
	return m.createFn(ctx, site)
}

func (m *mockSiteStore) GetByID(ctx context.Context, id string) (*models.DemoSite, error) {
	return m.getByIDFn(ctx, id)
}

func (m *mockSiteStore) SubdomainExists(ctx context.Context, subdomain string) (bool, error) {
	if m.subdomainExistsFn == nil {
		return false, nil
	}
	return m.subdomainExistsFn(ctx, subdomain)
}

func (m *mockSiteStore) Update(ctx context.Context, site *models.DemoSite) error {
	if m.updateFn == nil {
		return nil
	}
	return m.updateFn(ctx, site)
}

func (m *mockSiteStore) SetConversionToken(ctx context.Context, id, token string, issued time.Time) error {
	if m.setConversionTokenFn == nil {
		return nil
	}
	return m.setConversionTokenFn(ctx, id, token, issued)
}

func (m *mockSiteStore) ListExpired(ctx context.Context, now time.Time) ([]*models.DemoSite, error) {
	if m.listExpiredFn == nil {
		return nil, nil
	}
	return m.listExpiredFn(ctx, now)
}

type mockConversionStore struct {
	createFn           func(ctx context.Context, conv *models.ConversionRequest) error
	getByIDFn          func(ctx context.Context, id string) (*models.ConversionRequest, error)
	existsLiveBySiteFn func(ctx context.Context, siteID string) (bool, error)
	updateFn           func(ctx context.Context, conv *models.ConversionRequest) error
}

func (m *mockConversionStore) Create(ctx context.Context, conv *models.ConversionRequest) error {
	if m.createFn == nil {
		return nil
	}
	return m.createFn(ctx, conv)
}

func (m *mockConversionStore) GetByID(ctx context.Context, id string) (*models.ConversionRequest, error) {
	return m.getByIDFn(ctx, id)
}

func (m *mockConversionStore) ExistsLiveBySite(ctx context.Context, siteID string) (bool, error) {
	if m.existsLiveBySiteFn == nil {
		return false, nil
	}
	return m.existsLiveBySiteFn(ctx, siteID)
}

func (m *mockConversionStore) Update(ctx context.Context, conv *models.ConversionRequest) error {
	if m.updateFn == nil {
		return nil
	}
	return m.updateFn(ctx, conv)
}

type mockReferenceStore struct {
	getTierFn               func(ctx context.Context, name string) (*models.PackageTier, error)
	listEnabledTiersFn      func(ctx context.Context) ([]*models.PackageTier, error)
	listEnabledIndustriesFn func(ctx context.Context) ([]*models.IndustryTemplate, error)
	listProductionPlansFn   func(ctx context.Context) ([]*models.ProductionPlan, error)
}

func (m *mockReferenceStore) GetTier(ctx context.Context, name string) (*models.PackageTier, error) {
	return m.getTierFn(ctx, name)
}

func (m *mockReferenceStore) ListEnabledTiers(ctx context.Context) ([]*models.PackageTier, error) {
	if m.listEnabledTiersFn == nil {
		return nil, nil
	}
	return m.listEnabledTiersFn(ctx)
}

func (m *mockReferenceStore) ListEnabledIndustries(ctx context.Context) ([]*models.IndustryTemplate, error) {
	if m.listEnabledIndustriesFn == nil {
		return nil, nil
	}
	return m.listEnabledIndustriesFn(ctx)
}

func (m *mockReferenceStore) ListProductionPlans(ctx context.Context) ([]*models.ProductionPlan, error) {
	if m.listProductionPlansFn == nil {
		return nil, nil
	}
	return m.listProductionPlansFn(ctx)
}

type mockNotificationStore struct {
	recordFn func(ctx context.Context, n *models.Notification) error
	existsFn func(ctx context.Context, referenceID, template string) (bool, error)
}

func (m *mockNotificationStore) Record(ctx context.Context, n *models.Notification) error {
	if m.recordFn == nil {
		return nil
	}
	return m.recordFn(ctx, n)
}

func (m *mockNotificationStore) Exists(ctx context.Context, referenceID, template string) (bool, error) {
	if m.existsFn == nil {
		return false, nil
	}
	return m.existsFn(ctx, referenceID, template)
}

type mockOpsLogStore struct {
	actions  []string
	failWith error
}

func (m *mockOpsLogStore) LogAction(ctx context.Context, referenceID, refType, action, status, message string) error {
	m.actions = append(m.actions, action)
	return m.failWith
}

type mockCloudAPI struct {
	createSiteFn    func(ctx context.Context, subdomain string, apps []string, plan, cluster, dedupKey string) (string, error)
	getSiteStatusFn func(ctx context.Context, siteName string) (*client.SiteStatus, error)
	installAppFn    func(ctx context.Context, siteName, appName string) error
	changePlanFn    func(ctx context.Context, siteName, newPlan string) error
	createBackupFn  func(ctx context.Context, siteName string) error
	listBackupsFn   func(ctx context.Context, siteName string) ([]client.Backup, error)
}

func (m *mockCloudAPI) CreateSite(ctx context.Context, subdomain string, apps []string, plan, cluster, dedupKey string) (string, error) {
	return m.createSiteFn(ctx, subdomain, apps, plan, cluster, dedupKey)
}

func (m *mockCloudAPI) GetSiteStatus(ctx context.Context, siteName string) (*client.SiteStatus, error) {
	return m.getSiteStatusFn(ctx, siteName)
}

func (m *mockCloudAPI) InstallApp(ctx context.Context, siteName, appName string) error {
	if m.installAppFn == nil {
		return nil
	}
	return m.installAppFn(ctx, siteName, appName)
}

func (m *mockCloudAPI) ChangePlan(ctx context.Context, siteName, newPlan string) error {
	if m.changePlanFn == nil {
		return nil
	}
	return m.changePlanFn(ctx, siteName, newPlan)
}

func (m *mockCloudAPI) CreateBackup(ctx context.Context, siteName string) error {
	if m.createBackupFn == nil {
		return nil
	}
	return m.createBackupFn(ctx, siteName)
}

func (m *mockCloudAPI) ListBackups(ctx context.Context, siteName string) ([]client.Backup, error) {
	if m.listBackupsFn == nil {
		return nil, nil
	}
	return m.listBackupsFn(ctx, siteName)
}

type mockMailer struct {
	sendFn func(ctx context.Context, recipient, template string, args map[string]any) error
	sent   []string
}

func (m *mockMailer) Send(ctx context.Context, recipient, template string, args map[string]any) error {
	m.sent = append(m.sent, template)
	if m.sendFn == nil {
		return nil
	}
	return m.sendFn(ctx, recipient, template, args)
}

// syncQueue runs submitted jobs inline, so workflow assertions can run
// right after the call that enqueued them.
type syncQueue struct {
	submitted []string
}

func (q *syncQueue) Submit(name string, job queue.Job) *queue.Handle {
	q.submitted = append(q.submitted, name)
	job(context.Background())
	return &queue.Handle{Name: name}
}

// shutDownQueue rejects every submission, as the real queue does after
// Shutdown.
type shutDownQueue struct{}

func (shutDownQueue) Submit(name string, job queue.Job) *queue.Handle { return nil }

// mockTokens satisfies ConversionTokens
type mockTokens struct {
	issueFn    func(ctx context.Context, siteID string) (string, error)
	validateFn func(ctx context.Context, token, siteID string) bool
}

func (m *mockTokens) Issue(ctx context.Context, siteID string) (string, error) {
	if m.issueFn == nil {
		return "tok", nil
	}
	return m.issueFn(ctx, siteID)
}

func (m *mockTokens) Validate(ctx context.Context, token, siteID string) bool {
	if m.validateFn == nil {
		return true
	}
	return m.validateFn(ctx, token, siteID)
}
