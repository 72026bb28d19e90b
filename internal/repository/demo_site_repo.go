package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chinmaybhatk/frappe-kit/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const demoSiteColumns = `id, subdomain, full_url, status, demo_request_id, package_tier,
	   industry, region, cloud_site_id, cloud_plan, apps_installed,
	   conversion_token, conversion_token_issued, production_site_url,
	   converted_to_paid, expires_at, created_at, updated_at`

type DemoSiteRepository struct {
	pool *pgxpool.Pool
}

func NewDemoSiteRepository(pool *pgxpool.Pool) *DemoSiteRepository {
	return &DemoSiteRepository{pool: pool}
}

// Create inserts a new demo site
func (r *DemoSiteRepository) Create(ctx context.Context, site *models.DemoSite) error {
	query := `
		INSERT INTO provisioner.demo_sites (
			id, subdomain, full_url, status, demo_request_id, package_tier,
			industry, region, cloud_site_id, cloud_plan, apps_installed, expires_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
	`

	_, err := r.pool.Exec(ctx, query,
		site.ID, site.Subdomain, site.FullURL, site.Status, site.DemoRequestID, site.PackageTier,
		site.Industry, site.Region, site.CloudSiteID, site.CloudPlan, site.AppsInstalled, site.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert demo site: %w", err)
	}

	return nil
}

// GetByID retrieves a demo site by ID
func (r *DemoSiteRepository) GetByID(ctx context.Context, id string) (*models.DemoSite, error) {
	query := `
		SELECT ` + demoSiteColumns + `
		FROM provisioner.demo_sites
		WHERE id = $1
	`

	return r.scanSite(r.pool.QueryRow(ctx, query, id))
}

// SubdomainExists reports whether a site already claims the subdomain
func (r *DemoSiteRepository) SubdomainExists(ctx context.Context, subdomain string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM provisioner.demo_sites WHERE subdomain = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, subdomain).Scan(&exists); err != nil {
		return false, fmt.Errorf("check subdomain: %w", err)
	}
	return exists, nil
}

// Update persists the mutable fields of a demo site
func (r *DemoSiteRepository) Update(ctx context.Context, site *models.DemoSite) error {
	query := `
		UPDATE provisioner.demo_sites SET
			status = $1,
			production_site_url = $2,
			converted_to_paid = $3,
			expires_at = $4,
			apps_installed = $5,
			updated_at = NOW()
		WHERE id = $6
	`

	_, err := r.pool.Exec(ctx, query,
		site.Status, site.ProductionSiteURL, site.ConvertedToPaid,
		site.ExpiresAt, site.AppsInstalled, site.ID,
	)
	if err != nil {
		return fmt.Errorf("update demo site: %w", err)
	}

	return nil
}

// SetConversionToken stores the live conversion token for a site,
// overwriting any prior token
func (r *DemoSiteRepository) SetConversionToken(ctx context.Context, id, token string, issued time.Time) error {
	query := `
		UPDATE provisioner.demo_sites
		SET conversion_token = $1, conversion_token_issued = $2
		WHERE id = $3
	`

	_, err := r.pool.Exec(ctx, query, token, issued, id)
	if err != nil {
		return fmt.Errorf("set conversion token: %w", err)
	}

	return nil
}

// ListExpired retrieves active sites whose expiry has passed
func (r *DemoSiteRepository) ListExpired(ctx context.Context, now time.Time) ([]*models.DemoSite, error) {
	query := `
		SELECT ` + demoSiteColumns + `
		FROM provisioner.demo_sites
		WHERE status = 'active' AND expires_at IS NOT NULL AND expires_at < $1
		ORDER BY expires_at
	`

	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("query expired sites: %w", err)
	}
	defer rows.Close()

	return r.scanSites(rows)
}

func (r *DemoSiteRepository) scanSite(row pgx.Row) (*models.DemoSite, error) {
	site := &models.DemoSite{}
	err := row.Scan(
		&site.ID, &site.Subdomain, &site.FullURL, &site.Status, &site.DemoRequestID, &site.PackageTier,
		&site.Industry, &site.Region, &site.CloudSiteID, &site.CloudPlan, &site.AppsInstalled,
		&site.ConversionToken, &site.ConversionTokenIssued, &site.ProductionSiteURL,
		&site.ConvertedToPaid, &site.ExpiresAt, &site.CreatedAt, &site.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan demo site: %w", err)
	}
	return site, nil
}

func (r *DemoSiteRepository) scanSites(rows pgx.Rows) ([]*models.DemoSite, error) {
	var sites []*models.DemoSite
	for rows.Next() {
		site := &models.DemoSite{}
		err := rows.Scan(
			&site.ID, &site.Subdomain, &site.FullURL, &site.Status, &site.DemoRequestID, &site.PackageTier,
			&site.Industry, &site.Region, &site.CloudSiteID, &site.CloudPlan, &site.AppsInstalled,
			&site.ConversionToken, &site.ConversionTokenIssued, &site.ProductionSiteURL,
			&site.ConvertedToPaid, &site.ExpiresAt, &site.CreatedAt, &site.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan demo site row: %w", err)
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}
