package controller

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/unclebandit/civic-notify/internal/service"
)

// NotificationController exposes the single-message dispatcher.
type NotificationController struct {
	Dispatcher service.MessageDispatcher
}

type sendRequest struct {
	TemplateKey    string            `json:"template_key"`
	Variables      map[string]string `json:"variables"`
	RecipientEmail string            `json:"recipient_email"`
	RecipientID    int               `json:"recipient_id"`
	Language       string            `json:"language"`
	ForceSend      bool              `json:"force_send"`
	EntityType     string            `json:"entity_type"`
	EntityID       string            `json:"entity_id"`
	TriggeredBy    string            `json:"triggered_by"`

	// Direct send
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Body    string `json:"body"`
}

// Send accepts a template send or a direct {to, subject, html} send. Delivery
// failures are reported in the body with status 200; only malformed requests
// are rejected.
func (c *NotificationController) Send(w http.ResponseWriter, r *http.Request) {
	var body sendRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	req := service.SendRequest{
		TemplateKey:    strings.TrimSpace(body.TemplateKey),
		Variables:      body.Variables,
		RecipientEmail: body.RecipientEmail,
		RecipientID:    body.RecipientID,
		Language:       body.Language,
		ForceSend:      body.ForceSend,
		EntityType:     body.EntityType,
		EntityID:       body.EntityID,
		TriggeredBy:    body.TriggeredBy,
	}
	if req.RecipientEmail == "" {
		req.RecipientEmail = body.To
	}
	if req.IsDirect() {
		req.Subject = body.Subject
		req.HTML = body.HTML
		if req.HTML == "" {
			req.HTML = body.Body
		}
		if req.Subject == "" || req.HTML == "" {
			http.Error(w, "template_key or subject and html are required", http.StatusBadRequest)
			return
		}
	}
	if strings.TrimSpace(req.RecipientEmail) == "" {
		http.Error(w, "recipient_email is required", http.StatusBadRequest)
		return
	}

	result := c.Dispatcher.Send(r.Context(), req)
	writeJSON(w, http.StatusOK, result)
}
