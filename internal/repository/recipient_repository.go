package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/unclebandit/civic-notify/internal/model"
)

// RecipientRepositoryInterface reads the portal's user directory.
type RecipientRepositoryInterface interface {
	GetByID(ctx context.Context, id int) (*model.Recipient, error)
	GetByEmail(ctx context.Context, email string) (*model.Recipient, error)
	ListActiveEmails(ctx context.Context) ([]string, error)
	ListEmailsByRoles(ctx context.Context, roles []string) ([]string, error)
	ListEmailsByMunicipalities(ctx context.Context, municipalityIDs []int) ([]string, error)
}

type RecipientRepository struct {
	DB *sql.DB
}

// GetByID returns nil, nil when the user does not exist.
func (r *RecipientRepository) GetByID(ctx context.Context, id int) (*model.Recipient, error) {
	query := `
		SELECT id, email, COALESCE(full_name, ''), COALESCE(language, ''), is_active
		FROM users
		WHERE id = $1
	`
	return r.getOne(ctx, "repository.RecipientRepository.GetByID", query, id)
}

func (r *RecipientRepository) GetByEmail(ctx context.Context, email string) (*model.Recipient, error) {
	query := `
		SELECT id, email, COALESCE(full_name, ''), COALESCE(language, ''), is_active
		FROM users
		WHERE LOWER(email) = LOWER($1)
		LIMIT 1
	`
	return r.getOne(ctx, "repository.RecipientRepository.GetByEmail", query, email)
}

func (r *RecipientRepository) getOne(ctx context.Context, op, query string, arg interface{}) (*model.Recipient, error) {
	var rec model.Recipient
	err := r.DB.QueryRowContext(ctx, query, arg).Scan(&rec.ID, &rec.Email, &rec.FullName, &rec.Language, &rec.IsActive)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // not found
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &rec, nil
}

func (r *RecipientRepository) ListActiveEmails(ctx context.Context) ([]string, error) {
	query := `SELECT email FROM users WHERE is_active AND email <> '' ORDER BY email`
	return r.listEmails(ctx, "repository.RecipientRepository.ListActiveEmails", query)
}

func (r *RecipientRepository) ListEmailsByRoles(ctx context.Context, roles []string) ([]string, error) {
	if len(roles) == 0 {
		return []string{}, nil
	}
	query := `
		SELECT DISTINCT u.email
		FROM users u
		JOIN user_roles ur ON ur.user_id = u.id
		WHERE u.is_active AND ur.is_active AND u.email <> '' AND ur.role = ANY($1::text[])
		ORDER BY u.email
	`
	return r.listEmails(ctx, "repository.RecipientRepository.ListEmailsByRoles", query, pq.Array(roles))
}

func (r *RecipientRepository) ListEmailsByMunicipalities(ctx context.Context, municipalityIDs []int) ([]string, error) {
	if len(municipalityIDs) == 0 {
		return []string{}, nil
	}
	ids := make([]int64, len(municipalityIDs))
	for i, id := range municipalityIDs {
		ids[i] = int64(id)
	}
	query := `
		SELECT DISTINCT u.email
		FROM users u
		JOIN user_roles ur ON ur.user_id = u.id
		WHERE u.is_active AND ur.is_active AND u.email <> '' AND ur.municipality_id = ANY($1::bigint[])
		ORDER BY u.email
	`
	return r.listEmails(ctx, "repository.RecipientRepository.ListEmailsByMunicipalities", query, pq.Array(ids))
}

func (r *RecipientRepository) listEmails(ctx context.Context, op, query string, args ...interface{}) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	emails := []string{}
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}

var _ RecipientRepositoryInterface = (*RecipientRepository)(nil)
