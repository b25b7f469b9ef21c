// internal/model/delivery_log.go
package model

import "time"

const (
	DeliverySent    = "sent"
	DeliveryFailed  = "failed"
	DeliverySkipped = "skipped"
)

// DeliveryLogEntry is written once per attempted send and never updated.
type DeliveryLogEntry struct {
	ID                int       `db:"id" json:"id"`
	TemplateKey       string    `db:"template_key" json:"template_key,omitempty"`
	RecipientEmail    string    `db:"recipient_email" json:"recipient_email"`
	RecipientID       *int      `db:"recipient_id" json:"recipient_id,omitempty"`
	Subject           string    `db:"subject" json:"subject"`
	BodyPreview       string    `db:"body_preview" json:"body_preview"`
	Language          string    `db:"language" json:"language"`
	Status            string    `db:"status" json:"status"` // sent, failed, skipped
	ErrorMessage      string    `db:"error_message" json:"error_message,omitempty"`
	ProviderMessageID string    `db:"provider_message_id" json:"provider_message_id,omitempty"`
	TriggeredBy       string    `db:"triggered_by" json:"triggered_by"`
	EntityType        string    `db:"entity_type" json:"entity_type,omitempty"`
	EntityID          string    `db:"entity_id" json:"entity_id,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}
