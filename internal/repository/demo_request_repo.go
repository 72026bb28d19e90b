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

var ErrNotFound = errors.New("not found")

const demoRequestColumns = `id, company_name, contact_name, contact_email, contact_phone,
	   employee_count, industry, region, package_tier, recommended_tier,
	   utm_campaign, utm_source, utm_medium, ip_address, source,
	   subdomain, status, site_url, demo_username, demo_password, demo_site_id,
	   trial_expires, provisioning_log, error_message,
	   provisioning_started, provisioning_completed, created_at, updated_at`

type DemoRequestRepository struct {
	pool *pgxpool.Pool
}

func NewDemoRequestRepository(pool *pgxpool.Pool) *DemoRequestRepository {
	return &DemoRequestRepository{pool: pool}
}

// Create inserts a new demo request
func (r *DemoRequestRepository) Create(ctx context.Context, req *models.DemoRequest) error {
	query := `
		INSERT INTO provisioner.demo_requests (
			id, company_name, contact_name, contact_email, contact_phone,
			employee_count, industry, region, package_tier, recommended_tier,
			utm_campaign, utm_source, utm_medium, ip_address, source,
			subdomain, status, provisioning_log
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18
		)
	`

	_, err := r.pool.Exec(ctx, query,
		req.ID, req.CompanyName, req.ContactName, req.ContactEmail, req.ContactPhone,
		req.EmployeeCount, req.Industry, req.Region, req.PackageTier, req.RecommendedTier,
		req.UTMCampaign, req.UTMSource, req.UTMMedium, req.IPAddress, req.Source,
		req.Subdomain, req.Status, req.ProvisioningLog,
	)
	if err != nil {
		return fmt.Errorf("insert demo request: %w", err)
	}

	return nil
}

// GetByID retrieves a demo request by ID
func (r *DemoRequestRepository) GetByID(ctx context.Context, id string) (*models.DemoRequest, error) {
	query := `
		SELECT ` + demoRequestColumns + `
		FROM provisioner.demo_requests
		WHERE id = $1
	`

	return r.scanRequest(r.pool.QueryRow(ctx, query, id))
}

// ExistsActiveByEmail reports whether a request for the email is still
// pending or provisioning (submission uniqueness guard)
func (r *DemoRequestRepository) ExistsActiveByEmail(ctx context.Context, email string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM provisioner.demo_requests
			WHERE contact_email = $1 AND status IN ('pending', 'provisioning')
		)
	`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("check active request by email: %w", err)
	}
	return exists, nil
}

// CountCreatedSince counts requests created at or after the given time
// (daily submission cap)
func (r *DemoRequestRepository) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM provisioner.demo_requests WHERE created_at >= $1`

	var count int
	if err := r.pool.QueryRow(ctx, query, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count requests: %w", err)
	}
	return count, nil
}

// Update persists the mutable fields of a demo request
func (r *DemoRequestRepository) Update(ctx context.Context, req *models.DemoRequest) error {
	query := `
		UPDATE provisioner.demo_requests SET
			status = $1,
			site_url = $2,
			demo_username = $3,
			demo_password = $4,
			demo_site_id = $5,
			trial_expires = $6,
			provisioning_log = $7,
			error_message = $8,
			provisioning_started = $9,
			provisioning_completed = $10,
			recommended_tier = $11,
			updated_at = NOW()
		WHERE id = $12
	`

	_, err := r.pool.Exec(ctx, query,
		req.Status, req.SiteURL, req.DemoUsername, req.DemoPassword, req.DemoSiteID,
		req.TrialExpires, req.ProvisioningLog, req.ErrorMessage,
		req.ProvisioningStarted, req.ProvisioningCompleted, req.RecommendedTier,
		req.ID,
	)
	if err != nil {
		return fmt.Errorf("update demo request: %w", err)
	}

	return nil
}

// ListExpiringTrials retrieves active requests whose trial expires inside
// the given window
func (r *DemoRequestRepository) ListExpiringTrials(ctx context.Context, from, to time.Time) ([]*models.DemoRequest, error) {
	query := `
		SELECT ` + demoRequestColumns + `
		FROM provisioner.demo_requests
		WHERE status = 'active' AND trial_expires BETWEEN $1 AND $2
		ORDER BY trial_expires
	`

	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("query expiring trials: %w", err)
	}
	defer rows.Close()

	return r.scanRequests(rows)
}

// ListStuckProvisioning retrieves requests provisioning since before the cutoff
func (r *DemoRequestRepository) ListStuckProvisioning(ctx context.Context, before time.Time) ([]*models.DemoRequest, error) {
	query := `
		SELECT ` + demoRequestColumns + `
		FROM provisioner.demo_requests
		WHERE status = 'provisioning' AND provisioning_started < $1
		ORDER BY provisioning_started
	`

	rows, err := r.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("query stuck requests: %w", err)
	}
	defer rows.Close()

	return r.scanRequests(rows)
}

func (r *DemoRequestRepository) scanRequest(row pgx.Row) (*models.DemoRequest, error) {
	req := &models.DemoRequest{}
	err := row.Scan(
		&req.ID, &req.CompanyName, &req.ContactName, &req.ContactEmail, &req.ContactPhone,
		&req.EmployeeCount, &req.Industry, &req.Region, &req.PackageTier, &req.RecommendedTier,
		&req.UTMCampaign, &req.UTMSource, &req.UTMMedium, &req.IPAddress, &req.Source,
		&req.Subdomain, &req.Status, &req.SiteURL, &req.DemoUsername, &req.DemoPassword, &req.DemoSiteID,
		&req.TrialExpires, &req.ProvisioningLog, &req.ErrorMessage,
		&req.ProvisioningStarted, &req.ProvisioningCompleted, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan demo request: %w", err)
	}
	return req, nil
}

func (r *DemoRequestRepository) scanRequests(rows pgx.Rows) ([]*models.DemoRequest, error) {
	var requests []*models.DemoRequest
	for rows.Next() {
		req := &models.DemoRequest{}
		err := rows.Scan(
			&req.ID, &req.CompanyName, &req.ContactName, &req.ContactEmail, &req.ContactPhone,
			&req.EmployeeCount, &req.Industry, &req.Region, &req.PackageTier, &req.RecommendedTier,
			&req.UTMCampaign, &req.UTMSource, &req.UTMMedium, &req.IPAddress, &req.Source,
			&req.Subdomain, &req.Status, &req.SiteURL, &req.DemoUsername, &req.DemoPassword, &req.DemoSiteID,
			&req.TrialExpires, &req.ProvisioningLog, &req.ErrorMessage,
			&req.ProvisioningStarted, &req.ProvisioningCompleted, &req.CreatedAt, &req.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan demo request row: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}
