package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	appErrors "github.com/unclebandit/civic-notify/internal/errors"
	"github.com/unclebandit/civic-notify/internal/model"
	"github.com/unclebandit/civic-notify/internal/repository"
	"github.com/unclebandit/civic-notify/internal/transport"
)

const bodyPreviewLimit = 500

// SendRequest is either a template send (TemplateKey set) or a direct send
// carrying a literal Subject and HTML.
type SendRequest struct {
	TemplateKey    string
	Variables      map[string]string
	RecipientEmail string
	RecipientID    int
	Language       string
	ForceSend      bool
	EntityType     string
	EntityID       string
	TriggeredBy    string

	Subject string
	HTML    string
}

func (r SendRequest) IsDirect() bool {
	return r.TemplateKey == ""
}

type DeliveryResult struct {
	Success           bool   `json:"success"`
	ProviderMessageID string `json:"provider_message_id,omitempty"`
	Error             string `json:"error,omitempty"`
	Skipped           bool   `json:"skipped,omitempty"`
}

// MessageDispatcher is what the orchestrator needs from the dispatcher.
type MessageDispatcher interface {
	Send(ctx context.Context, req SendRequest) DeliveryResult
}

// Dispatcher sends one message and writes exactly one delivery log entry
// per call. It never retries.
type Dispatcher struct {
	Renderer   *TemplateRenderer
	Gate       *PreferenceGate
	Recipients repository.RecipientRepositoryInterface
	Logs       repository.DeliveryLogRepositoryInterface
	Sender     transport.Sender
	From       string
	Timeout    time.Duration
}

func (d *Dispatcher) Send(ctx context.Context, req SendRequest) DeliveryResult {
	to := strings.TrimSpace(req.RecipientEmail)
	entry := &model.DeliveryLogEntry{
		TemplateKey:    req.TemplateKey,
		RecipientEmail: to,
		TriggeredBy:    req.TriggeredBy,
		EntityType:     req.EntityType,
		EntityID:       req.EntityID,
	}
	if entry.TriggeredBy == "" {
		entry.TriggeredBy = "transactional"
	}

	who := d.identify(ctx, req, to)
	if who.ID > 0 {
		id := who.ID
		entry.RecipientID = &id
	}

	if to == "" {
		return d.finish(ctx, entry, DeliveryResult{Error: "recipient address is required"})
	}

	var (
		subject string
		body    string
		rich    bool
		tmpl    *model.Template
	)
	if req.IsDirect() {
		subject, body, rich = req.Subject, req.HTML, true
		entry.Subject = subject
		entry.BodyPreview = preview(body)
	} else {
		lang := req.Language
		if who.Language != "" {
			lang = who.Language
		}
		rendered, err := d.Renderer.Render(ctx, req.TemplateKey, req.Variables, lang)
		if err != nil {
			return d.finish(ctx, entry, DeliveryResult{Error: err.Error()})
		}
		tmpl = rendered.Template
		subject, body, rich = rendered.Subject, rendered.Body, rendered.IsRich
		entry.Subject = subject
		entry.BodyPreview = preview(rendered.Preview)
		entry.Language = rendered.Language
	}

	if !req.ForceSend && d.Gate != nil && (tmpl != nil || who.ID > 0) {
		suppress, reason, err := d.Gate.ShouldSuppress(ctx, RecipientRef{ID: who.ID, Email: to}, tmpl, false)
		if err != nil {
			log.Printf("⚠️ preference lookup failed for %s, sending anyway: %v", to, err)
		}
		if suppress {
			return d.finish(ctx, entry, DeliveryResult{Skipped: true, Error: reason})
		}
	}

	sendCtx := ctx
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	msg := transport.Message{From: d.From, To: []string{to}, Subject: subject}
	if rich {
		msg.HTML = body
	} else {
		msg.Text = body
	}
	id, err := d.Sender.Send(sendCtx, msg)
	if err != nil {
		log.Printf("❌ send to %s failed: %v", to, appErrors.NewTransportError(err))
		return d.finish(ctx, entry, DeliveryResult{Error: d.normalizeError(err)})
	}
	return d.finish(ctx, entry, DeliveryResult{Success: true, ProviderMessageID: id})
}

type identity struct {
	ID       int
	Language string
}

// identify looks up the stored recipient to learn its id and language.
func (d *Dispatcher) identify(ctx context.Context, req SendRequest, email string) identity {
	who := identity{ID: req.RecipientID}
	if d.Recipients == nil {
		return who
	}

	var (
		rec *model.Recipient
		err error
	)
	switch {
	case req.RecipientID > 0:
		rec, err = d.Recipients.GetByID(ctx, req.RecipientID)
	case email != "":
		rec, err = d.Recipients.GetByEmail(ctx, email)
	}
	if err != nil {
		log.Printf("⚠️ recipient lookup failed for %q: %v", email, err)
		return who
	}
	if rec != nil {
		who.ID = rec.ID
		who.Language = rec.Language
	}
	return who
}

// finish writes the log entry for result and returns result unchanged.
// The write is detached from ctx so a cancelled caller still leaves a record.
func (d *Dispatcher) finish(ctx context.Context, entry *model.DeliveryLogEntry, result DeliveryResult) DeliveryResult {
	switch {
	case result.Success:
		entry.Status = model.DeliverySent
		entry.ProviderMessageID = result.ProviderMessageID
	case result.Skipped:
		entry.Status = model.DeliverySkipped
		entry.ErrorMessage = result.Error
	default:
		entry.Status = model.DeliveryFailed
		entry.ErrorMessage = result.Error
	}

	if d.Logs != nil {
		if err := d.Logs.Create(context.WithoutCancel(ctx), entry); err != nil {
			log.Printf("⚠️ failed to write delivery log for %s: %v", entry.RecipientEmail, err)
		}
	}
	return result
}

func (d *Dispatcher) normalizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("transport timeout after %s", d.Timeout)
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return "unknown transport error"
	}
	return msg
}

func preview(body string) string {
	runes := []rune(body)
	if len(runes) <= bodyPreviewLimit {
		return body
	}
	return string(runes[:bodyPreviewLimit])
}
