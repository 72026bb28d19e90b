package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/chinmaybhatk/frappe-kit/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const conversionColumns = `id, demo_site_id, conversion_type, production_plan, production_subdomain,
	   production_apps, status, production_site_url, backup_url, backup_created,
	   conversion_log, error_message, admin_notes, approved_by, approved_on,
	   conversion_started, conversion_completed, created_at, updated_at`

type ConversionRepository struct {
	pool *pgxpool.Pool
}

func NewConversionRepository(pool *pgxpool.Pool) *ConversionRepository {
	return &ConversionRepository{pool: pool}
}

// Create inserts a new conversion request
func (r *ConversionRepository) Create(ctx context.Context, conv *models.ConversionRequest) error {
	query := `
		INSERT INTO provisioner.conversion_requests (
			id, demo_site_id, conversion_type, production_plan, production_subdomain,
			production_apps, status, conversion_log
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	_, err := r.pool.Exec(ctx, query,
		conv.ID, conv.DemoSiteID, conv.ConversionType, conv.ProductionPlan, conv.ProductionSubdomain,
		conv.ProductionApps, conv.Status, conv.ConversionLog,
	)
	if err != nil {
		return fmt.Errorf("insert conversion request: %w", err)
	}

	return nil
}

// GetByID retrieves a conversion request by ID
func (r *ConversionRepository) GetByID(ctx context.Context, id string) (*models.ConversionRequest, error) {
	query := `
		SELECT ` + conversionColumns + `
		FROM provisioner.conversion_requests
		WHERE id = $1
	`

	return r.scanConversion(r.pool.QueryRow(ctx, query, id))
}

// ExistsLiveBySite reports whether a non-terminal conversion exists for the
// site (submission uniqueness guard)
func (r *ConversionRepository) ExistsLiveBySite(ctx context.Context, siteID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM provisioner.conversion_requests
			WHERE demo_site_id = $1 AND status IN ('pending', 'approved', 'in_progress')
		)
	`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, siteID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check live conversion: %w", err)
	}
	return exists, nil
}

// Update persists the mutable fields of a conversion request
func (r *ConversionRepository) Update(ctx context.Context, conv *models.ConversionRequest) error {
	query := `
		UPDATE provisioner.conversion_requests SET
			status = $1,
			production_site_url = $2,
			backup_url = $3,
			backup_created = $4,
			conversion_log = $5,
			error_message = $6,
			admin_notes = $7,
			approved_by = $8,
			approved_on = $9,
			conversion_started = $10,
			conversion_completed = $11,
			updated_at = NOW()
		WHERE id = $12
	`

	_, err := r.pool.Exec(ctx, query,
		conv.Status, conv.ProductionSiteURL, conv.BackupURL, conv.BackupCreated,
		conv.ConversionLog, conv.ErrorMessage, conv.AdminNotes,
		conv.ApprovedBy, conv.ApprovedOn,
		conv.ConversionStarted, conv.ConversionCompleted,
		conv.ID,
	)
	if err != nil {
		return fmt.Errorf("update conversion request: %w", err)
	}

	return nil
}

func (r *ConversionRepository) scanConversion(row pgx.Row) (*models.ConversionRequest, error) {
	conv := &models.ConversionRequest{}
	err := row.Scan(
		&conv.ID, &conv.DemoSiteID, &conv.ConversionType, &conv.ProductionPlan, &conv.ProductionSubdomain,
		&conv.ProductionApps, &conv.Status, &conv.ProductionSiteURL, &conv.BackupURL, &conv.BackupCreated,
		&conv.ConversionLog, &conv.ErrorMessage, &conv.AdminNotes, &conv.ApprovedBy, &conv.ApprovedOn,
		&conv.ConversionStarted, &conv.ConversionCompleted, &conv.CreatedAt, &conv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan conversion request: %w", err)
	}
	return conv, nil
}
