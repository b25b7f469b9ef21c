package repository

import (
	"context"
	"database/sql"
	"fmt"

	appErrors "github.com/unclebandit/civic-notify/internal/errors"
	"github.com/unclebandit/civic-notify/internal/model"
)

type TemplateRepositoryInterface interface {
	GetActiveByKey(ctx context.Context, key string) (*model.Template, error)
}

type TemplateRepository struct {
	DB *sql.DB
}

// GetActiveByKey returns the newest active version of the template.
func (r *TemplateRepository) GetActiveByKey(ctx context.Context, key string) (*model.Template, error) {
	const op = "repository.TemplateRepository.GetActiveByKey"

	query := `
		SELECT id, template_key, COALESCE(subject_en, ''), COALESCE(body_en, ''),
			COALESCE(subject_ar, ''), COALESCE(body_ar, ''), is_critical, is_html,
			COALESCE(category, ''), COALESCE(accent_color, ''), COALESCE(cta_label, ''),
			COALESCE(cta_url_variable, ''), is_active
		FROM notification_templates
		WHERE template_key=$1 AND is_active
		ORDER BY id DESC
		LIMIT 1
	`
	var t model.Template
	err := r.DB.QueryRowContext(ctx, query, key).Scan(
		&t.ID, &t.Key, &t.SubjectEN, &t.BodyEN, &t.SubjectAR, &t.BodyAR,
		&t.IsCritical, &t.IsHTML, &t.Category, &t.AccentColor, &t.CTALabel,
		&t.CTAURLVariable, &t.IsActive,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewTemplateNotFound(key)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &t, nil
}

var _ TemplateRepositoryInterface = (*TemplateRepository)(nil)
