// internal/handler/campaign_handler.go
package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/unclebandit/civic-notify/internal/errors"
	"github.com/unclebandit/civic-notify/internal/service"
)

// CampaignHandler serves the read-only campaign endpoints
type CampaignHandler struct {
	Service *service.CampaignService
}

// NewCampaignHandler creates a new CampaignHandler backed by svc
func NewCampaignHandler(svc *service.CampaignService) *CampaignHandler {
	return &CampaignHandler{Service: svc}
}

func campaignID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// GetCampaignHandlerWithStats returns a campaign with per-status recipient counts
func (h *CampaignHandler) GetCampaignHandlerWithStats(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}

	log.Println("📥 Handler called for campaign ID:", id)

	details, err := h.Service.GetCampaignDetailsWithStats(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(details)
}

// GetDeliveryLogHandler returns sent/failed/skipped tallies for the
// campaign's run and its previews
func (h *CampaignHandler) GetDeliveryLogHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}

	tallies, err := h.Service.DeliveryTallies(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"campaign_id": id,
		"tallies":     tallies,
	})
}

func respondError(w http.ResponseWriter, err error) {
	if appErrors.IsCampaignNotFound(err) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	log.Println("❌ Error fetching campaign:", err)
	http.Error(w, "failed to fetch campaign: "+err.Error(), http.StatusInternalServerError)
}
