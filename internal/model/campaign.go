// internal/model/campaign.go
package model

import "time"

type CampaignStatus string

const (
	StatusDraft     CampaignStatus = "draft"
	StatusScheduled CampaignStatus = "scheduled"
	StatusSending   CampaignStatus = "sending"
	StatusPaused    CampaignStatus = "paused"
	StatusCompleted CampaignStatus = "completed"
	StatusCancelled CampaignStatus = "cancelled"
)

// Audience types understood by the resolver.
const (
	AudienceAll          = "all"
	AudienceRole         = "role"
	AudienceMunicipality = "municipality"
	AudienceCustom       = "custom"
)

// campaignTransitions lists every legal edge of the lifecycle.
var campaignTransitions = map[CampaignStatus][]CampaignStatus{
	StatusDraft:     {StatusScheduled, StatusSending, StatusCancelled},
	StatusScheduled: {StatusSending, StatusCancelled},
	StatusSending:   {StatusCompleted, StatusPaused, StatusCancelled},
	StatusPaused:    {StatusSending, StatusCancelled},
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s CampaignStatus) CanTransitionTo(next CampaignStatus) bool {
	for _, allowed := range campaignTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TransitionsInto lists every status with a legal edge into to, in
// lifecycle order.
func TransitionsInto(to CampaignStatus) []CampaignStatus {
	var from []CampaignStatus
	for _, s := range []CampaignStatus{StatusDraft, StatusScheduled, StatusSending, StatusPaused} {
		if s.CanTransitionTo(to) {
			from = append(from, s)
		}
	}
	return from
}

// AudienceFilter is the filter half of an audience specification.
type AudienceFilter struct {
	Roles           []string `json:"roles,omitempty"`
	MunicipalityIDs []int    `json:"municipality_ids,omitempty"`
	CustomEmails    []string `json:"custom_emails,omitempty"`
	ExcludeEmails   []string `json:"exclude_emails,omitempty"`
}

type Campaign struct {
	ID              int               `db:"id" json:"id"`
	Name            string            `db:"name" json:"name"`
	TemplateKey     string            `db:"template_key" json:"template_key"`
	AudienceType    string            `db:"audience_type" json:"audience_type"`
	AudienceFilter  AudienceFilter    `db:"audience_filter" json:"audience_filter"`
	Variables       map[string]string `db:"variables" json:"variables"`
	Status          CampaignStatus    `db:"status" json:"status"`
	TotalRecipients int               `db:"total_recipients" json:"total_recipients"`
	SentCount       int               `db:"sent_count" json:"sent_count"`
	FailedCount     int               `db:"failed_count" json:"failed_count"`
	ScheduledAt     *time.Time        `db:"scheduled_at" json:"scheduled_at,omitempty"`
	StartedAt       *time.Time        `db:"started_at" json:"started_at,omitempty"`
	CompletedAt     *time.Time        `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt       *time.Time        `db:"updated_at" json:"updated_at,omitempty"`
}
