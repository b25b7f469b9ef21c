package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/unclebandit/civic-notify/internal/model"
)

type CampaignRecipientRepositoryInterface interface {
	// CreatePending inserts one pending row per address in a single
	// statement. Existing rows for the campaign are left untouched.
	CreatePending(ctx context.Context, campaignID int, emails []string) (int, error)
	ListPending(ctx context.Context, campaignID int) ([]model.CampaignRecipient, error)
	// MarkResult reports false when the row was no longer pending.
	MarkResult(ctx context.Context, id int, status, errorDetail string) (bool, error)
	GetCampaignStats(ctx context.Context, campaignID int) (map[string]int, error)
}

type CampaignRecipientRepository struct {
	DB *sql.DB
}

func (r *CampaignRecipientRepository) CreatePending(ctx context.Context, campaignID int, emails []string) (int, error) {
	const op = "repository.CampaignRecipientRepository.CreatePending"

	if len(emails) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO campaign_recipients (campaign_id, email, status, created_at)
		SELECT $1, email, 'pending', NOW() FROM unnest($2::text[]) AS email
		ON CONFLICT (campaign_id, email) DO NOTHING
	`
	res, err := r.DB.ExecContext(ctx, query, campaignID, pq.Array(emails))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(n), nil
}

func (r *CampaignRecipientRepository) ListPending(ctx context.Context, campaignID int) ([]model.CampaignRecipient, error) {
	const op = "repository.CampaignRecipientRepository.ListPending"

	query := `
		SELECT id, campaign_id, email, status, COALESCE(error_detail, ''), sent_at, created_at
		FROM campaign_recipients
		WHERE campaign_id=$1 AND status='pending'
		ORDER BY id
	`
	rows, err := r.DB.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	recipients := []model.CampaignRecipient{}
	for rows.Next() {
		var rec model.CampaignRecipient
		if err := rows.Scan(&rec.ID, &rec.CampaignID, &rec.Email, &rec.Status, &rec.ErrorDetail, &rec.SentAt, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		recipients = append(recipients, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return recipients, nil
}

// MarkResult resolves a pending row. Rows already resolved are not changed.
func (r *CampaignRecipientRepository) MarkResult(ctx context.Context, id int, status, errorDetail string) (bool, error) {
	const op = "repository.CampaignRecipientRepository.MarkResult"

	query := `
		UPDATE campaign_recipients
		SET status=$1,
			error_detail=NULLIF($2::text, ''),
			sent_at=CASE WHEN $1::text='sent' THEN NOW() ELSE sent_at END
		WHERE id=$3 AND status='pending'
	`
	res, err := r.DB.ExecContext(ctx, query, status, errorDetail, id)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}

func (r *CampaignRecipientRepository) GetCampaignStats(ctx context.Context, campaignID int) (map[string]int, error) {
	const op = "repository.CampaignRecipientRepository.GetCampaignStats"

	query := `SELECT status, COUNT(*) FROM campaign_recipients WHERE campaign_id=$1 GROUP BY status`
	rows, err := r.DB.QueryContext(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	stats := map[string]int{"total": 0, "pending": 0, "sent": 0, "failed": 0}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		stats[status] = count
		stats["total"] += count
	}
	return stats, rows.Err()
}

var _ CampaignRecipientRepositoryInterface = (*CampaignRecipientRepository)(nil)
