package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	appErrors "github.com/unclebandit/civic-notify/internal/errors"
	"github.com/unclebandit/civic-notify/internal/model"
	"github.com/unclebandit/civic-notify/internal/queue"
)

// CampaignRunner is the part of CampaignService the worker drives.
type CampaignRunner interface {
	Send(ctx context.Context, campaignID int) (*SendSummary, error)
	Continue(ctx context.Context, campaignID int) (*SendSummary, error)
}

// Worker executes queued campaign jobs.
type Worker struct {
	Runner CampaignRunner
	ctx    context.Context
}

// Constructor
func NewWorker(ctx context.Context, runner CampaignRunner) *Worker {
	return &Worker{Runner: runner, ctx: ctx}
}

// Handle runs one job. It is also the queue subscriber callback, so only
// errors worth a retry are returned; status conflicts and missing campaigns
// are logged and acknowledged. A send job for a campaign already sending is
// run as a continuation, which covers a run that died during setup.
func (w *Worker) Handle(payload any) error {
	job, ok := payload.(queue.Job)
	if !ok {
		log.Printf("⚠️ Invalid payload type %T, expected queue.Job", payload)
		return nil
	}

	ctx := w.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		summary *SendSummary
		err     error
	)
	switch job.Action {
	case queue.ActionSend:
		summary, err = w.Runner.Send(ctx, job.CampaignID)
		var conflict *appErrors.ErrStatusConflict
		if errors.As(err, &conflict) && conflict.Status == string(model.StatusSending) {
			log.Printf("🔁 job %s: campaign %d already sending, continuing", job.ID, job.CampaignID)
			summary, err = w.Runner.Continue(ctx, job.CampaignID)
		}
	case queue.ActionContinue:
		summary, err = w.Runner.Continue(ctx, job.CampaignID)
	default:
		log.Printf("⚠️ unknown job action %q for campaign %d", job.Action, job.CampaignID)
		return nil
	}

	if err != nil {
		if appErrors.IsStatusConflict(err) || appErrors.IsCampaignNotFound(err) {
			log.Printf("⚠️ job %s skipped: %v", job.ID, err)
			return nil
		}
		return fmt.Errorf("job %s: %w", job.ID, err)
	}
	log.Printf("✅ job %s finished: campaign %d %s (sent=%d failed=%d)",
		job.ID, summary.CampaignID, summary.Status, summary.Sent, summary.Failed)
	return nil
}
