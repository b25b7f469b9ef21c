package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/unclebandit/civic-notify/internal/model"
)

// DeliveryLogRepositoryInterface is append-only: there is no update path.
type DeliveryLogRepositoryInterface interface {
	Create(ctx context.Context, entry *model.DeliveryLogEntry) error
	CountByTrigger(ctx context.Context, triggeredBy string) (map[string]int, error)
}

type DeliveryLogRepository struct {
	DB *sql.DB
}

func (r *DeliveryLogRepository) Create(ctx context.Context, e *model.DeliveryLogEntry) error {
	const op = "repository.DeliveryLogRepository.Create"

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	query := `
		INSERT INTO notification_log
		(template_key, recipient_email, recipient_id, subject, body_preview, language, status,
		 error_message, provider_message_id, triggered_by, entity_type, entity_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8::text, ''), NULLIF($9::text, ''), $10,
		 NULLIF($11::text, ''), NULLIF($12::text, ''), $13)
		RETURNING id
	`
	err := r.DB.QueryRowContext(ctx, query,
		e.TemplateKey,
		e.RecipientEmail,
		e.RecipientID,
		e.Subject,
		e.BodyPreview,
		e.Language,
		e.Status,
		e.ErrorMessage,
		e.ProviderMessageID,
		e.TriggeredBy,
		e.EntityType,
		e.EntityID,
		e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CountByTrigger tallies log outcomes for one provenance tag.
func (r *DeliveryLogRepository) CountByTrigger(ctx context.Context, triggeredBy string) (map[string]int, error) {
	const op = "repository.DeliveryLogRepository.CountByTrigger"

	query := `SELECT status, COUNT(*) FROM notification_log WHERE triggered_by=$1 GROUP BY status`
	rows, err := r.DB.QueryContext(ctx, query, triggeredBy)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	tallies := map[string]int{model.DeliverySent: 0, model.DeliveryFailed: 0, model.DeliverySkipped: 0}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		tallies[status] = count
	}
	return tallies, rows.Err()
}

var _ DeliveryLogRepositoryInterface = (*DeliveryLogRepository)(nil)
