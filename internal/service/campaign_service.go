// internal/service/campaign_service.go
package service

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	appErrors "github.com/unclebandit/civic-notify/internal/errors"
	"github.com/unclebandit/civic-notify/internal/model"
	"github.com/unclebandit/civic-notify/internal/queue"
	"github.com/unclebandit/civic-notify/internal/repository"
)

const (
	DefaultBatchSize    = 50
	DefaultBatchWorkers = 5
	DefaultLeaseTTL     = 5 * time.Minute
)

// CampaignService owns the campaign lifecycle and the batched send loop.
type CampaignService struct {
	CampaignRepo  repository.CampaignRepositoryInterface
	RecipientRepo repository.CampaignRecipientRepositoryInterface
	LogRepo       repository.DeliveryLogRepositoryInterface
	Audience      AudienceSource
	Dispatcher    MessageDispatcher
	Queue         queue.Queue
	Topic         string // defaults to queue.TopicCampaignRuns

	BatchSize  int
	BatchDelay time.Duration
	Workers    int
	// LeaseTTL is how long a run lease survives without renewal. Renewal
	// happens at every batch boundary.
	LeaseTTL   time.Duration

	// NewRunToken overrides the default persisted-status token.
	NewRunToken func(campaignID int) RunToken
}

type SendSummary struct {
	CampaignID      int                  `json:"campaign_id"`
	TotalRecipients int                  `json:"total_recipients"`
	Sent            int                  `json:"sent"`
	Failed          int                  `json:"failed"`
	Pending         int                  `json:"pending"`
	Status          model.CampaignStatus `json:"status"`
}

type CampaignDetails struct {
	*model.Campaign
	Stats    map[string]int `json:"stats"`
	Delivery map[string]int `json:"delivery,omitempty"`
}

// TriggeredBy tags used in the delivery log.
func CampaignTrigger(id int) string { return "campaign:" + strconv.Itoa(id) }
func PreviewTrigger(id int) string  { return "campaign_preview:" + strconv.Itoa(id) }

// ====================== Lifecycle ======================

// Send starts a draft or scheduled campaign and runs it to completion, or
// until it is paused or cancelled between batches.
func (s *CampaignService) Send(ctx context.Context, campaignID int) (*SendSummary, error) {
	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	sendable := []model.CampaignStatus{model.StatusDraft, model.StatusScheduled}
	if campaign.Status != model.StatusDraft && campaign.Status != model.StatusScheduled {
		return nil, appErrors.NewStatusConflict(campaignID, string(campaign.Status), "send")
	}

	runID, release, err := s.acquire(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.transition(ctx, campaignID, "send", sendable, model.StatusSending); err != nil {
		return nil, err
	}
	campaign.Status = model.StatusSending
	log.Printf("🚀 campaign %d sending (run %s)", campaignID, runID)

	if err := s.materialize(ctx, campaign); err != nil {
		return nil, err
	}
	return s.runBatches(ctx, campaign, runID)
}

// Continue processes the still-pending recipients of a campaign that is
// already sending, e.g. after resume or an interrupted run. A campaign left
// in sending without recipient rows has its audience resolved again.
func (s *CampaignService) Continue(ctx context.Context, campaignID int) (*SendSummary, error) {
	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.Status != model.StatusSending {
		return nil, appErrors.NewStatusConflict(campaignID, string(campaign.Status), "continue")
	}

	runID, release, err := s.acquire(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	defer release()

	stats, err := s.RecipientRepo.GetCampaignStats(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if stats["total"] == 0 {
		log.Printf("🔁 campaign %d has no recipient rows, resolving audience again", campaignID)
		if err := s.materialize(ctx, campaign); err != nil {
			return nil, err
		}
	}
	return s.runBatches(ctx, campaign, runID)
}

// acquire takes the run lease for a new run id. The returned release func
// drops the lease even when ctx is already cancelled.
func (s *CampaignService) acquire(ctx context.Context, campaignID int) (string, func(), error) {
	runID := uuid.NewString()
	ok, err := s.CampaignRepo.AcquireRun(ctx, campaignID, runID, s.leaseTTL())
	if err != nil {
		return "", nil, err
	}
	if !ok {
		return "", nil, appErrors.NewRunInProgress(campaignID)
	}
	release := func() {
		if err := s.CampaignRepo.ReleaseRun(context.WithoutCancel(ctx), campaignID, runID); err != nil {
			log.Printf("⚠️ failed to release run %s of campaign %d: %v", runID, campaignID, err)
		}
	}
	return runID, release, nil
}

// materialize resolves the audience into pending recipient rows. Existing
// rows are kept, so it is safe to repeat.
func (s *CampaignService) materialize(ctx context.Context, campaign *model.Campaign) error {
	emails, err := s.Audience.Resolve(ctx, campaign.AudienceType, campaign.AudienceFilter)
	if err != nil {
		return fmt.Errorf("resolve audience for campaign %d: %w", campaign.ID, err)
	}
	if err := s.CampaignRepo.SetTotalRecipients(ctx, campaign.ID, len(emails)); err != nil {
		return err
	}
	campaign.TotalRecipients = len(emails)

	if _, err := s.RecipientRepo.CreatePending(ctx, campaign.ID, emails); err != nil {
		return err
	}
	return nil
}

// SendAsync checks the campaign can be sent and queues the run.
func (s *CampaignService) SendAsync(ctx context.Context, campaignID int) error {
	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return err
	}
	if campaign.Status != model.StatusDraft && campaign.Status != model.StatusScheduled {
		return appErrors.NewStatusConflict(campaignID, string(campaign.Status), "send")
	}
	return s.enqueue(campaignID, queue.ActionSend)
}

func (s *CampaignService) Schedule(ctx context.Context, campaignID int) (bool, error) {
	err := s.transition(ctx, campaignID, "schedule", model.TransitionsInto(model.StatusScheduled), model.StatusScheduled)
	return err == nil, err
}

func (s *CampaignService) Pause(ctx context.Context, campaignID int) (bool, error) {
	err := s.transition(ctx, campaignID, "pause", model.TransitionsInto(model.StatusPaused), model.StatusPaused)
	return err == nil, err
}

// Resume sets a paused campaign back to sending and queues a Continue run
// for its pending recipients.
func (s *CampaignService) Resume(ctx context.Context, campaignID int) (bool, error) {
	if err := s.transition(ctx, campaignID, "resume", []model.CampaignStatus{model.StatusPaused}, model.StatusSending); err != nil {
		return false, err
	}
	if s.Queue != nil {
		if err := s.enqueue(campaignID, queue.ActionContinue); err != nil {
			log.Printf("⚠️ campaign %d resumed but continuation was not queued: %v", campaignID, err)
		}
	}
	return true, nil
}

func (s *CampaignService) Cancel(ctx context.Context, campaignID int) (bool, error) {
	err := s.transition(ctx, campaignID, "cancel", model.TransitionsInto(model.StatusCancelled), model.StatusCancelled)
	return err == nil, err
}

// Preview sends the campaign's template to one literal address. It does not
// touch the campaign status or create recipient rows.
func (s *CampaignService) Preview(ctx context.Context, campaignID int, address string) (*DeliveryResult, error) {
	if address == "" {
		return nil, fmt.Errorf("preview address is required")
	}
	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	result := s.Dispatcher.Send(ctx, SendRequest{
		TemplateKey:    campaign.TemplateKey,
		Variables:      campaign.Variables,
		RecipientEmail: address,
		ForceSend:      true,
		EntityType:     "campaign",
		EntityID:       strconv.Itoa(campaignID),
		TriggeredBy:    PreviewTrigger(campaignID),
	})
	return &result, nil
}

// transition applies a conditional status write. When no row matches, the
// current status is read back to build the conflict error.
func (s *CampaignService) transition(ctx context.Context, id int, action string, from []model.CampaignStatus, to model.CampaignStatus) error {
	ok, err := s.CampaignRepo.TransitionStatus(ctx, id, from, to)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	current, err := s.CampaignRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return appErrors.NewStatusConflict(id, string(current.Status), action)
}

func (s *CampaignService) enqueue(campaignID int, action string) error {
	if s.Queue == nil {
		return fmt.Errorf("no queue configured")
	}
	job := queue.NewJob(campaignID, action)
	topic := s.Topic
	if topic == "" {
		topic = queue.TopicCampaignRuns
	}
	if err := s.Queue.Publish(topic, job); err != nil {
		return fmt.Errorf("enqueue campaign %d: %w", campaignID, err)
	}
	log.Printf("📤 queued %s job %s for campaign %d", action, job.ID, campaignID)
	return nil
}

// ====================== Batch loop ======================

func (s *CampaignService) runBatches(ctx context.Context, campaign *model.Campaign, runID string) (*SendSummary, error) {
	pending, err := s.RecipientRepo.ListPending(ctx, campaign.ID)
	if err != nil {
		return nil, err
	}
	summary := &SendSummary{
		CampaignID:      campaign.ID,
		TotalRecipients: campaign.TotalRecipients,
		Sent:            campaign.SentCount,
		Failed:          campaign.FailedCount,
		Pending:         len(pending),
		Status:          model.StatusSending,
	}
	size := s.batchSize()
	token := s.runToken(campaign.ID)

	for start := 0; start < len(pending); start += size {
		if stopped, status := token.Stopped(ctx); stopped {
			if status == "" {
				return summary, ctx.Err()
			}
			log.Printf("⏸️ campaign %d stopped at %d/%d: %s", campaign.ID, start, len(pending), status)
			summary.Status = status
			return summary, nil
		}
		held, err := s.CampaignRepo.AcquireRun(context.WithoutCancel(ctx), campaign.ID, runID, s.leaseTTL())
		if err != nil {
			return summary, err
		}
		if !held {
			log.Printf("⚠️ campaign %d run %s lost its lease", campaign.ID, runID)
			return summary, appErrors.NewRunInProgress(campaign.ID)
		}

		end := start + size
		if end > len(pending) {
			end = len(pending)
		}
		unrecorded := s.processBatch(ctx, campaign, pending[start:end])

		if err := s.checkpoint(context.WithoutCancel(ctx), summary); err != nil {
			return summary, err
		}
		log.Printf("📦 campaign %d batch %d-%d done (sent=%d failed=%d unrecorded=%d)",
			campaign.ID, start+1, end, summary.Sent, summary.Failed, unrecorded)

		if end < len(pending) && s.BatchDelay > 0 {
			select {
			case <-ctx.Done():
				return summary, ctx.Err()
			case <-time.After(s.BatchDelay):
			}
		}
	}
	if len(pending) == 0 {
		if err := s.checkpoint(ctx, summary); err != nil {
			return summary, err
		}
	}

	// Rows whose result was not written stay pending for the next Continue.
	if summary.Pending > 0 {
		return summary, fmt.Errorf("campaign %d: %d recipients still pending after run", campaign.ID, summary.Pending)
	}

	ok, err := s.CampaignRepo.TransitionStatus(ctx, campaign.ID, model.TransitionsInto(model.StatusCompleted), model.StatusCompleted)
	if err != nil {
		return summary, err
	}
	if !ok {
		// Paused or cancelled during the last batch.
		current, err := s.CampaignRepo.GetByID(ctx, campaign.ID)
		if err != nil {
			return summary, err
		}
		summary.Status = current.Status
		return summary, nil
	}

	summary.Status = model.StatusCompleted
	log.Printf("✅ campaign %d completed: %d sent, %d failed of %d", campaign.ID, summary.Sent, summary.Failed, summary.TotalRecipients)
	return summary, nil
}

// checkpoint persists the campaign counters as counted from the recipient
// rows and copies them into summary.
func (s *CampaignService) checkpoint(ctx context.Context, summary *SendSummary) error {
	stats, err := s.RecipientRepo.GetCampaignStats(ctx, summary.CampaignID)
	if err != nil {
		return err
	}
	if err := s.CampaignRepo.UpdateCounters(ctx, summary.CampaignID, stats["sent"], stats["failed"]); err != nil {
		return err
	}
	summary.Sent, summary.Failed, summary.Pending = stats["sent"], stats["failed"], stats["pending"]
	summary.TotalRecipients = stats["total"]
	return nil
}

// processBatch dispatches one batch through a bounded worker pool and returns
// how many results could not be written. The batch runs to the end even if
// ctx is cancelled; cancellation is honoured between batches.
func (s *CampaignService) processBatch(ctx context.Context, campaign *model.Campaign, batch []model.CampaignRecipient) int {
	batchCtx := context.WithoutCancel(ctx)

	var (
		mu         sync.Mutex
		unrecorded int
		g          errgroup.Group
	)
	g.SetLimit(s.workers())

	for _, rec := range batch {
		rec := rec
		g.Go(func() error {
			result := s.Dispatcher.Send(batchCtx, SendRequest{
				TemplateKey:    campaign.TemplateKey,
				Variables:      campaign.Variables,
				RecipientEmail: rec.Email,
				ForceSend:      true,
				EntityType:     "campaign",
				EntityID:       strconv.Itoa(campaign.ID),
				TriggeredBy:    CampaignTrigger(campaign.ID),
			})

			status, detail := model.RecipientSent, ""
			if !result.Success {
				status, detail = model.RecipientFailed, result.Error
				if result.Skipped {
					detail = "skipped: " + result.Error
				}
			}
			changed, err := s.RecipientRepo.MarkResult(batchCtx, rec.ID, status, detail)
			switch {
			case err != nil:
				log.Printf("⚠️ failed to record result for %s: %v", rec.Email, err)
				mu.Lock()
				unrecorded++
				mu.Unlock()
			case !changed:
				log.Printf("⚠️ recipient %s of campaign %d was already resolved", rec.Email, campaign.ID)
			}
			return nil
		})
	}
	g.Wait()
	return unrecorded
}

func (s *CampaignService) batchSize() int {
	if s.BatchSize > 0 {
		return s.BatchSize
	}
	return DefaultBatchSize
}

func (s *CampaignService) workers() int {
	if s.Workers > 0 {
		return s.Workers
	}
	return DefaultBatchWorkers
}

func (s *CampaignService) leaseTTL() time.Duration {
	if s.LeaseTTL > 0 {
		return s.LeaseTTL
	}
	return DefaultLeaseTTL
}

func (s *CampaignService) runToken(id int) RunToken {
	if s.NewRunToken != nil {
		return s.NewRunToken(id)
	}
	return statusToken{repo: s.CampaignRepo, id: id}
}

// ====================== Reads ======================

func (s *CampaignService) CreateCampaign(ctx context.Context, c *model.Campaign) (*model.Campaign, error) {
	if c.TemplateKey == "" {
		return nil, fmt.Errorf("template_key is required")
	}
	c.Status = model.StatusDraft
	if c.ScheduledAt != nil {
		c.Status = model.StatusScheduled
	}
	if err := s.CampaignRepo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(ctx context.Context, page, pageSize int, audienceType, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.CampaignRepo.ListCampaigns(ctx, offset, pageSize, audienceType, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

// GetCampaignDetailsWithStats returns the campaign with per-status
// recipient counts and the delivery log tallies of its run.
func (s *CampaignService) GetCampaignDetailsWithStats(ctx context.Context, campaignID int) (*CampaignDetails, error) {
	campaign, err := s.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	stats, err := s.RecipientRepo.GetCampaignStats(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	details := &CampaignDetails{Campaign: campaign, Stats: stats}
	if s.LogRepo != nil {
		delivery, err := s.LogRepo.CountByTrigger(ctx, CampaignTrigger(campaignID))
		if err != nil {
			log.Println("⚠️ failed to load delivery tallies:", err)
		} else {
			details.Delivery = delivery
		}
	}
	return details, nil
}

// DeliveryTallies counts the delivery log entries of a campaign's run and of
// its previews, by outcome.
func (s *CampaignService) DeliveryTallies(ctx context.Context, campaignID int) (map[string]map[string]int, error) {
	if _, err := s.CampaignRepo.GetByID(ctx, campaignID); err != nil {
		return nil, err
	}
	if s.LogRepo == nil {
		return nil, fmt.Errorf("delivery log is not configured")
	}
	run, err := s.LogRepo.CountByTrigger(ctx, CampaignTrigger(campaignID))
	if err != nil {
		return nil, err
	}
	previews, err := s.LogRepo.CountByTrigger(ctx, PreviewTrigger(campaignID))
	if err != nil {
		return nil, err
	}
	return map[string]map[string]int{"campaign": run, "preview": previews}, nil
}
