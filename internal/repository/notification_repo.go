package repository

import (
	"context"
	"fmt"

	"github.com/chinmaybhatk/frappe-kit/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NotificationRepository records outbound templated emails. The expiry
// warning job uses it as its dedup key.
type NotificationRepository struct {
	pool *pgxpool.Pool
}

func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

// Record stores a sent notification
func (r *NotificationRepository) Record(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}

	query := `
		INSERT INTO provisioner.notifications (id, reference_id, template, recipient)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.pool.Exec(ctx, query, n.ID, n.ReferenceID, n.Template, n.Recipient)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	return nil
}

// Exists reports whether a notification with the template was already sent
// for the reference
func (r *NotificationRepository) Exists(ctx context.Context, referenceID, template string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM provisioner.notifications
			WHERE reference_id = $1 AND template = $2
		)
	`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, referenceID, template).Scan(&exists); err != nil {
		return false, fmt.Errorf("check notification: %w", err)
	}
	return exists, nil
}
