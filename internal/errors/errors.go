// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

// ErrCampaignNotFound is returned when no campaign has the requested ID.
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ErrTemplateNotFound means the key does not resolve to an active template.
type ErrTemplateNotFound struct {
	Key string
}

func (e *ErrTemplateNotFound) Error() string {
	return fmt.Sprintf("template %q not found or inactive", e.Key)
}

func NewTemplateNotFound(key string) error {
	return &ErrTemplateNotFound{Key: key}
}

// ErrStatusConflict rejects a campaign action requested from an illegal state.
type ErrStatusConflict struct {
	CampaignID int
	Status     string
	Action     string
}

func (e *ErrStatusConflict) Error() string {
	return fmt.Sprintf("campaign %d cannot %s in status %s", e.CampaignID, e.Action, e.Status)
}

func NewStatusConflict(id int, status, action string) error {
	return &ErrStatusConflict{CampaignID: id, Status: status, Action: action}
}

// TransportError wraps whatever the provider returned.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return "transport error"
	}
	return "transport error: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

func NewTransportError(err error) error {
	return &TransportError{Err: err}
}

// IsCampaignNotFound, IsTemplateNotFound and IsStatusConflict unwrap err.
func IsCampaignNotFound(err error) bool {
	var target *ErrCampaignNotFound
	return errors.As(err, &target)
}

func IsTemplateNotFound(err error) bool {
	var target *ErrTemplateNotFound
	return errors.As(err, &target)
}

func IsStatusConflict(err error) bool {
	var target *ErrStatusConflict
	return errors.As(err, &target)
}

// ErrRunInProgress means another batch run holds the campaign's lease.
type ErrRunInProgress struct {
	CampaignID int
}

func (e *ErrRunInProgress) Error() string {
	return fmt.Sprintf("campaign %d already has a run in progress", e.CampaignID)
}

func NewRunInProgress(id int) error {
	return &ErrRunInProgress{CampaignID: id}
}

func IsRunInProgress(err error) bool {
	var target *ErrRunInProgress
	return errors.As(err, &target)
}
