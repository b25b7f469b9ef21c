// internal/controller/campaign_controller.go
package controller

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	appErrors "github.com/unclebandit/civic-notify/internal/errors"
	"github.com/unclebandit/civic-notify/internal/model"
	"github.com/unclebandit/civic-notify/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService
}

type actionRequest struct {
	CampaignID     int    `json:"campaign_id"`
	Action         string `json:"action"`
	PreviewAddress string `json:"preview_address"`
	Async          bool   `json:"async"`
}

// Actions is the single control endpoint for send, preview, schedule,
// pause, resume, cancel and continue.
func (c *CampaignController) Actions(w http.ResponseWriter, r *http.Request) {
	var body actionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	body.Action = strings.ToLower(strings.TrimSpace(body.Action))
	if body.CampaignID <= 0 || body.Action == "" {
		http.Error(w, "campaign_id and action are required", http.StatusBadRequest)
		return
	}

	// A synchronous run outlives a dropped client; it stops only when
	// paused or cancelled.
	ctx := context.WithoutCancel(r.Context())
	svc := c.CampaignService

	var (
		result any
		err    error
	)
	switch body.Action {
	case "send":
		if body.Async {
			if err = svc.SendAsync(ctx, body.CampaignID); err == nil {
				writeJSON(w, http.StatusAccepted, map[string]any{"success": true, "queued": true})
				return
			}
			break
		}
		result, err = svc.Send(ctx, body.CampaignID)
	case "continue":
		result, err = svc.Continue(ctx, body.CampaignID)
	case "preview":
		if strings.TrimSpace(body.PreviewAddress) == "" {
			http.Error(w, "preview_address is required", http.StatusBadRequest)
			return
		}
		result, err = svc.Preview(r.Context(), body.CampaignID, strings.TrimSpace(body.PreviewAddress))
	case "schedule":
		result, err = success(svc.Schedule(r.Context(), body.CampaignID))
	case "pause":
		result, err = success(svc.Pause(r.Context(), body.CampaignID))
	case "resume":
		result, err = success(svc.Resume(r.Context(), body.CampaignID))
	case "cancel":
		result, err = success(svc.Cancel(r.Context(), body.CampaignID))
	default:
		http.Error(w, "unknown action: "+body.Action, http.StatusBadRequest)
		return
	}

	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func success(ok bool, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return map[string]bool{"success": ok}, nil
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name           string               `json:"name"`
		TemplateKey    string               `json:"template_key"`
		AudienceType   string               `json:"audience_type"`
		AudienceFilter model.AudienceFilter `json:"audience_filter"`
		Variables      map[string]string    `json:"variables"`
		ScheduledAt    *time.Time           `json:"scheduled_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if body.TemplateKey == "" || body.AudienceType == "" {
		http.Error(w, "template_key and audience_type are required", http.StatusBadRequest)
		return
	}

	campaign, err := c.CampaignService.CreateCampaign(r.Context(), &model.Campaign{
		Name:           body.Name,
		TemplateKey:    body.TemplateKey,
		AudienceType:   body.AudienceType,
		AudienceFilter: body.AudienceFilter,
		Variables:      body.Variables,
		ScheduledAt:    body.ScheduledAt,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	// Parse query parameters
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	audienceType := r.URL.Query().Get("audience_type")
	status := r.URL.Query().Get("status")

	campaigns, pagination, err := c.CampaignService.ListCampaigns(r.Context(), page, pageSize, audienceType, status)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":       campaigns,
		"pagination": pagination, // page, page_size, total_count, total_pages
	})
}

// writeError maps service errors onto status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case appErrors.IsCampaignNotFound(err), appErrors.IsTemplateNotFound(err):
		http.Error(w, err.Error(), http.StatusNotFound)
	case appErrors.IsStatusConflict(err), appErrors.IsRunInProgress(err):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		log.Println("❌ request failed:", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Println("⚠️ failed to encode response:", err)
	}
}
