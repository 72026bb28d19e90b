package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/chinmaybhatk/frappe-kit/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReferenceRepository serves read-only reference data: package tiers,
// industry templates and production plans.
type ReferenceRepository struct {
	pool *pgxpool.Pool
}

func NewReferenceRepository(pool *pgxpool.Pool) *ReferenceRepository {
	return &ReferenceRepository{pool: pool}
}

const tierColumns = `name, tier_name, display_name, description,
	   employee_range_min, employee_range_max,
	   price_india, price_sea, price_mea, price_europe,
	   frappe_apps, include_accounting, include_inventory, include_sales,
	   include_support, include_hr, include_manufacturing,
	   cloud_plan, trial_days, is_popular, color_theme, sort_order, enabled`

// GetTier retrieves a package tier by name
func (r *ReferenceRepository) GetTier(ctx context.Context, name string) (*models.PackageTier, error) {
	query := `
		SELECT ` + tierColumns + `
		FROM provisioner.package_tiers
		WHERE name = $1
	`

	return r.scanTier(r.pool.QueryRow(ctx, query, name))
}

// ListEnabledTiers retrieves enabled tiers in display order
func (r *ReferenceRepository) ListEnabledTiers(ctx context.Context) ([]*models.PackageTier, error) {
	query := `
		SELECT ` + tierColumns + `
		FROM provisioner.package_tiers
		WHERE enabled = true
		ORDER BY sort_order
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tiers: %w", err)
	}
	defer rows.Close()

	var tiers []*models.PackageTier
	for rows.Next() {
		tier, err := r.scanTier(rows)
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, tier)
	}
	return tiers, rows.Err()
}

// ListEnabledIndustries retrieves enabled industry templates sorted by name
func (r *ReferenceRepository) ListEnabledIndustries(ctx context.Context) ([]*models.IndustryTemplate, error) {
	query := `
		SELECT name, industry_code, industry_name, icon, description, enabled
		FROM provisioner.industry_templates
		WHERE enabled = true
		ORDER BY industry_name
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query industries: %w", err)
	}
	defer rows.Close()

	var industries []*models.IndustryTemplate
	for rows.Next() {
		ind := &models.IndustryTemplate{}
		err := rows.Scan(&ind.Name, &ind.IndustryCode, &ind.IndustryName, &ind.Icon, &ind.Description, &ind.Enabled)
		if err != nil {
			return nil, fmt.Errorf("scan industry: %w", err)
		}
		industries = append(industries, ind)
	}
	return industries, rows.Err()
}

// ListProductionPlans retrieves the plans offered during conversion
func (r *ReferenceRepository) ListProductionPlans(ctx context.Context) ([]*models.ProductionPlan, error) {
	query := `
		SELECT plan_name, display_name, description, monthly_price, sort_order
		FROM provisioner.production_plans
		ORDER BY sort_order
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query production plans: %w", err)
	}
	defer rows.Close()

	var plans []*models.ProductionPlan
	for rows.Next() {
		plan := &models.ProductionPlan{}
		err := rows.Scan(&plan.PlanName, &plan.DisplayName, &plan.Description, &plan.MonthlyPrice, &plan.SortOrder)
		if err != nil {
			return nil, fmt.Errorf("scan production plan: %w", err)
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

func (r *ReferenceRepository) scanTier(row pgx.Row) (*models.PackageTier, error) {
	tier := &models.PackageTier{}
	err := row.Scan(
		&tier.Name, &tier.TierName, &tier.DisplayName, &tier.Description,
		&tier.EmployeeRangeMin, &tier.EmployeeRangeMax,
		&tier.PriceIndia, &tier.PriceSEA, &tier.PriceMEA, &tier.PriceEurope,
		&tier.FrappeApps, &tier.IncludeAccounting, &tier.IncludeInventory, &tier.IncludeSales,
		&tier.IncludeSupport, &tier.IncludeHR, &tier.IncludeManufacturing,
		&tier.CloudPlan, &tier.TrialDays, &tier.IsPopular, &tier.ColorTheme, &tier.SortOrder, &tier.Enabled,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan package tier: %w", err)
	}
	return tier, nil
}
