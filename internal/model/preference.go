// internal/model/preference.go
package model

// NotificationPreference holds one recipient's opt-outs.
type NotificationPreference struct {
	UserID       int             `db:"user_id" json:"user_id"`
	EmailEnabled bool            `db:"email_enabled" json:"email_enabled"`
	Categories   map[string]bool `db:"categories" json:"categories"`
}

// CategoryDisabled is true only when category is explicitly switched off.
func (p *NotificationPreference) CategoryDisabled(category string) bool {
	if p == nil || category == "" {
		return false
	}
	enabled, ok := p.Categories[category]
	return ok && !enabled
}
