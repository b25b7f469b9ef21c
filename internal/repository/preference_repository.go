package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/unclebandit/civic-notify/internal/model"
)

type PreferenceRepositoryInterface interface {
	// GetByUserID returns nil, nil when the user has no preference row.
	GetByUserID(ctx context.Context, userID int) (*model.NotificationPreference, error)
	GetByEmail(ctx context.Context, email string) (*model.NotificationPreference, error)
	// GloballyDisabled returns the subset of emails whose global switch is off.
	GloballyDisabled(ctx context.Context, emails []string) (map[string]bool, error)
}

type PreferenceRepository struct {
	DB *sql.DB
}

func (r *PreferenceRepository) GetByUserID(ctx context.Context, userID int) (*model.NotificationPreference, error) {
	const op = "repository.PreferenceRepository.GetByUserID"

	query := `SELECT user_id, email_enabled, categories FROM notification_preferences WHERE user_id=$1`
	p, err := scanPreference(r.DB.QueryRowContext(ctx, query, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

func (r *PreferenceRepository) GetByEmail(ctx context.Context, email string) (*model.NotificationPreference, error) {
	const op = "repository.PreferenceRepository.GetByEmail"

	query := `
		SELECT p.user_id, p.email_enabled, p.categories
		FROM notification_preferences p
		JOIN users u ON u.id = p.user_id
		WHERE LOWER(u.email) = LOWER($1)
		LIMIT 1
	`
	p, err := scanPreference(r.DB.QueryRowContext(ctx, query, email))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

func (r *PreferenceRepository) GloballyDisabled(ctx context.Context, emails []string) (map[string]bool, error) {
	const op = "repository.PreferenceRepository.GloballyDisabled"

	disabled := map[string]bool{}
	if len(emails) == 0 {
		return disabled, nil
	}

	query := `
		SELECT LOWER(u.email)
		FROM notification_preferences p
		JOIN users u ON u.id = p.user_id
		WHERE NOT p.email_enabled AND LOWER(u.email) = ANY($1::text[])
	`
	rows, err := r.DB.QueryContext(ctx, query, pq.Array(emails))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		disabled[email] = true
	}
	return disabled, rows.Err()
}

func scanPreference(row rowScanner) (*model.NotificationPreference, error) {
	var (
		p          model.NotificationPreference
		categories []byte
	)
	if err := row.Scan(&p.UserID, &p.EmailEnabled, &categories); err != nil {
		return nil, err
	}
	p.Categories = map[string]bool{}
	if len(categories) > 0 {
		if err := json.Unmarshal(categories, &p.Categories); err != nil {
			return nil, fmt.Errorf("decode categories: %w", err)
		}
	}
	return &p, nil
}

var _ PreferenceRepositoryInterface = (*PreferenceRepository)(nil)
