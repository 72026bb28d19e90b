package service

import (
	"context"
	"time"

	"github.com/chinmaybhatk/frappe-kit/internal/client"
	"github.com/chinmaybhatk/frappe-kit/internal/models"
	"github.com/chinmaybhatk/frappe-kit/internal/queue"
)

// Store and client contracts consumed by the services. Satisfied by the
// repository and client packages; mocked in tests.

type DemoRequestStore interface {
	Create(ctx context.Context, req *models.DemoRequest) error
	GetByID(ctx context.Context, id string) (*models.DemoRequest, error)
	ExistsActiveByEmail(ctx context.Context, email string) (bool, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int, error)
	Update(ctx context.Context, req *models.DemoRequest) error
	ListExpiringTrials(ctx context.Context, from, to time.Time) ([]*models.DemoRequest, error)
	ListStuckProvisioning(ctx context.Context, before time.Time) ([]*models.DemoRequest, error)
}

type DemoSiteStore interface {
	Create(ctx context.Context, site *models.DemoSite) error
	GetByID(ctx context.Context, id string) (*models.DemoSite, error)
	SubdomainExists(ctx context.Context, subdomain string) (bool, error)
	Update(ctx context.Context, site *models.DemoSite) error
	SetConversionToken(ctx context.Context, id, token string, issued time.Time) error
	ListExpired(ctx context.Context, now time.Time) ([]*models.DemoSite, error)
}

type ConversionStore interface {
	Create(ctx context.Context, conv *models.ConversionRequest) error
	GetByID(ctx context.Context, id string) (*models.ConversionRequest, error)
	ExistsLiveBySite(ctx context.Context, siteID string) (bool, error)
	Update(ctx context.Context, conv *models.ConversionRequest) error
}

type ReferenceStore interface {
	GetTier(ctx context.Context, name string) (*models.PackageTier, error)
	ListEnabledTiers(ctx context.Context) ([]*models.PackageTier, error)
	ListEnabledIndustries(ctx context.Context) ([]*models.IndustryTemplate, error)
	ListProductionPlans(ctx context.Context) ([]*models.ProductionPlan, error)
}

type NotificationStore interface {
	Record(ctx context.Context, n *models.Notification) error
	Exists(ctx context.Context, referenceID, template string) (bool, error)
}

type OperationLogStore interface {
	LogAction(ctx context.Context, referenceID, refType, action, status, message string) error
}

// CloudAPI is the Frappe Cloud site lifecycle surface used by the workflows.
type CloudAPI interface {
	CreateSite(ctx context.Context, subdomain string, apps []string, plan, cluster, dedupKey string) (string, error)
	GetSiteStatus(ctx context.Context, siteName string) (*client.SiteStatus, error)
	InstallApp(ctx context.Context, siteName, appName string) error
	ChangePlan(ctx context.Context, siteName, newPlan string) error
	CreateBackup(ctx context.Context, siteName string) error
	ListBackups(ctx context.Context, siteName string) ([]client.Backup, error)
}

type Mailer interface {
	Send(ctx context.Context, recipient, template string, args map[string]any) error
}

// WorkflowQueue dispatches workflow jobs onto background workers.
type WorkflowQueue interface {
	Submit(name string, job queue.Job) *queue.Handle
}
