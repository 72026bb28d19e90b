package repository

import (
	"context"
	"fmt"

	"github.com/chinmaybhatk/frappe-kit/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OperationLogRepository stores operator-visible workflow action and
// failure records.
type OperationLogRepository struct {
	pool *pgxpool.Pool
}

func NewOperationLogRepository(pool *pgxpool.Pool) *OperationLogRepository {
	return &OperationLogRepository{pool: pool}
}

// Create creates a new operation log entry
func (r *OperationLogRepository) Create(ctx context.Context, entry *models.OperationLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	query := `
		INSERT INTO provisioner.operation_logs (id, reference_id, ref_type, action, status, message)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		entry.ID, entry.ReferenceID, entry.RefType, entry.Action, entry.Status, entry.Message,
	)
	if err != nil {
		return fmt.Errorf("insert operation log: %w", err)
	}

	return nil
}

// GetByReferenceID retrieves logs for a request, newest first
func (r *OperationLogRepository) GetByReferenceID(ctx context.Context, referenceID string, limit int) ([]*models.OperationLog, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, reference_id, ref_type, action, status, message, created_at
		FROM provisioner.operation_logs
		WHERE reference_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, referenceID, limit)
	if err != nil {
		return nil, fmt.Errorf("query operation logs: %w", err)
	}
	defer rows.Close()

	var entries []*models.OperationLog
	for rows.Next() {
		entry := &models.OperationLog{}
		err := rows.Scan(
			&entry.ID, &entry.ReferenceID, &entry.RefType, &entry.Action,
			&entry.Status, &entry.Message, &entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan operation log: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// LogAction is a helper to record an action
func (r *OperationLogRepository) LogAction(ctx context.Context, referenceID, refType, action, status, message string) error {
	return r.Create(ctx, &models.OperationLog{
		ReferenceID: referenceID,
		RefType:     refType,
		Action:      action,
		Status:      status,
		Message:     message,
	})
}
