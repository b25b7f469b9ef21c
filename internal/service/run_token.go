package service

import (
	"context"
	"log"

	"github.com/unclebandit/civic-notify/internal/model"
	"github.com/unclebandit/civic-notify/internal/repository"
)

// RunToken is consulted by the batch loop between batches. Stopped returns
// true with the observed status when the run must end early.
type RunToken interface {
	Stopped(ctx context.Context) (bool, model.CampaignStatus)
}

// statusToken stops a run once the persisted status is paused or cancelled.
type statusToken struct {
	repo repository.CampaignRepositoryInterface
	id   int
}

func (t statusToken) Stopped(ctx context.Context) (bool, model.CampaignStatus) {
	if ctx.Err() != nil {
		return true, ""
	}
	c, err := t.repo.GetByID(ctx, t.id)
	if err != nil {
		log.Printf("⚠️ status check for campaign %d failed, continuing: %v", t.id, err)
		return false, ""
	}
	if c.Status != model.StatusSending {
		return true, c.Status
	}
	return false, c.Status
}
