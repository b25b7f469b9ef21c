package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/civic-notify/internal/errors"
	"github.com/unclebandit/civic-notify/internal/model"
)

type CampaignRepositoryInterface interface {
	Create(ctx context.Context, c *model.Campaign) error
	GetByID(ctx context.Context, id int) (*model.Campaign, error)
	ListCampaigns(ctx context.Context, offset, limit int, audienceType, status string) ([]*model.Campaign, int, error)

	// TransitionStatus moves the campaign to `to` only if its current status
	// is one of `from`. It reports whether a row was updated.
	TransitionStatus(ctx context.Context, id int, from []model.CampaignStatus, to model.CampaignStatus) (bool, error)
	SetTotalRecipients(ctx context.Context, id, total int) error
	UpdateCounters(ctx context.Context, id, sent, failed int) error
	// AcquireRun takes or renews the run lease. It fails while another run
	// holds a lease renewed within staleAfter.
	AcquireRun(ctx context.Context, id int, runID string, staleAfter time.Duration) (bool, error)
	ReleaseRun(ctx context.Context, id int, runID string) error
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `id, name, template_key, audience_type, audience_filter, variables, status,
	total_recipients, sent_count, failed_count, scheduled_at, started_at, completed_at, created_at, updated_at`

// ====================== Campaign CRUD ======================

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) error {
	const op = "repository.CampaignRepository.Create"

	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.StatusDraft
	}
	filter, err := json.Marshal(c.AudienceFilter)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	vars, err := json.Marshal(c.Variables)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query := `
		INSERT INTO campaigns (name, template_key, audience_type, audience_filter, variables, status, scheduled_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err = r.DB.QueryRowContext(ctx, query,
		c.Name, c.TemplateKey, c.AudienceType, filter, vars, c.Status, c.ScheduledAt, c.CreatedAt,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *CampaignRepository) GetByID(ctx context.Context, id int) (*model.Campaign, error) {
	const op = "repository.CampaignRepository.GetByID"

	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id=$1`
	c, err := scanCampaign(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

func (r *CampaignRepository) ListCampaigns(ctx context.Context, offset, limit int, audienceType, status string) ([]*model.Campaign, int, error) {
	const op = "repository.CampaignRepository.ListCampaigns"

	where := ` WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if audienceType != "" {
		where += fmt.Sprintf(" AND audience_type=$%d", argPos)
		args = append(args, audienceType)
		argPos++
	}
	if status != "" {
		where += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	var total int
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s: count: %w", op, err)
	}

	query := `SELECT ` + campaignColumns + ` FROM campaigns` + where +
		fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: scan: %w", op, err)
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	return campaigns, total, nil
}

// ====================== Lifecycle ======================

func (r *CampaignRepository) TransitionStatus(ctx context.Context, id int, from []model.CampaignStatus, to model.CampaignStatus) (bool, error) {
	const op = "repository.CampaignRepository.TransitionStatus"

	fromStrings := make([]string, len(from))
	for i, s := range from {
		fromStrings[i] = string(s)
	}

	query := `
		UPDATE campaigns
		SET status=$1::text,
			started_at=CASE WHEN $1::text='sending' AND started_at IS NULL THEN NOW() ELSE started_at END,
			completed_at=CASE WHEN $1::text='completed' THEN NOW() ELSE completed_at END,
			updated_at=NOW()
		WHERE id=$2 AND status = ANY($3::text[])
	`
	res, err := r.DB.ExecContext(ctx, query, string(to), id, pq.Array(fromStrings))
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}

func (r *CampaignRepository) AcquireRun(ctx context.Context, id int, runID string, staleAfter time.Duration) (bool, error) {
	const op = "repository.CampaignRepository.AcquireRun"

	query := `
		UPDATE campaigns
		SET run_id=$2, run_heartbeat=NOW()
		WHERE id=$1
			AND (run_id IS NULL OR run_id=$2
				OR run_heartbeat < NOW() - $3::double precision * INTERVAL '1 second')
	`
	res, err := r.DB.ExecContext(ctx, query, id, runID, staleAfter.Seconds())
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}

func (r *CampaignRepository) ReleaseRun(ctx context.Context, id int, runID string) error {
	const op = "repository.CampaignRepository.ReleaseRun"

	query := `UPDATE campaigns SET run_id=NULL, run_heartbeat=NULL WHERE id=$1 AND run_id=$2`
	if _, err := r.DB.ExecContext(ctx, query, id, runID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *CampaignRepository) SetTotalRecipients(ctx context.Context, id, total int) error {
	const op = "repository.CampaignRepository.SetTotalRecipients"

	query := `UPDATE campaigns SET total_recipients=$1, updated_at=NOW() WHERE id=$2`
	if _, err := r.DB.ExecContext(ctx, query, total, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdateCounters writes absolute counter values; it is the batch checkpoint.
func (r *CampaignRepository) UpdateCounters(ctx context.Context, id, sent, failed int) error {
	const op = "repository.CampaignRepository.UpdateCounters"

	query := `UPDATE campaigns SET sent_count=$1, failed_count=$2, updated_at=NOW() WHERE id=$3`
	if _, err := r.DB.ExecContext(ctx, query, sent, failed, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCampaign(row rowScanner) (*model.Campaign, error) {
	var (
		c      model.Campaign
		status string
		filter []byte
		vars   []byte
	)
	err := row.Scan(
		&c.ID, &c.Name, &c.TemplateKey, &c.AudienceType, &filter, &vars, &status,
		&c.TotalRecipients, &c.SentCount, &c.FailedCount,
		&c.ScheduledAt, &c.StartedAt, &c.CompletedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Status = model.CampaignStatus(status)
	if len(filter) > 0 {
		if err := json.Unmarshal(filter, &c.AudienceFilter); err != nil {
			return nil, fmt.Errorf("decode audience_filter: %w", err)
		}
	}
	if len(vars) > 0 {
		if err := json.Unmarshal(vars, &c.Variables); err != nil {
			return nil, fmt.Errorf("decode variables: %w", err)
		}
	}
	return &c, nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
