package service

import (
	"context"
	"strings"

	"github.com/unclebandit/civic-notify/internal/model"
	"github.com/unclebandit/civic-notify/internal/repository"
)

// Security and account-integrity templates are never suppressible.
var criticalTemplateKeys = map[string]bool{
	"email_verification":  true,
	"verify_email":        true,
	"password_reset":      true,
	"password_changed":    true,
	"account_locked":      true,
	"account_deactivated": true,
	"security_alert":      true,
	"new_device_login":    true,
}

// IsCriticalKey reports whether key belongs to the fixed security set.
func IsCriticalKey(key string) bool {
	return criticalTemplateKeys[strings.ToLower(strings.TrimSpace(key))]
}

// RecipientRef identifies a recipient by user id, email, or both.
type RecipientRef struct {
	ID    int
	Email string
}

type PreferenceGate struct {
	Preferences repository.PreferenceRepositoryInterface
}

// ShouldSuppress decides whether tmpl may be withheld from the recipient.
// A nil tmpl (direct sends) is checked against the global switch only.
// It never writes anything; callers record the skip.
func (g *PreferenceGate) ShouldSuppress(ctx context.Context, who RecipientRef, tmpl *model.Template, forceSend bool) (bool, string, error) {
	if forceSend {
		return false, "", nil
	}
	if tmpl != nil && (tmpl.IsCritical || IsCriticalKey(tmpl.Key)) {
		return false, "", nil
	}

	pref, err := g.lookup(ctx, who)
	if err != nil {
		return false, "", err
	}
	if pref == nil {
		return false, "", nil
	}
	if !pref.EmailEnabled {
		return true, "global_opt_out", nil
	}
	if tmpl != nil && pref.CategoryDisabled(tmpl.Category) {
		return true, "category_opt_out:" + tmpl.Category, nil
	}
	return false, "", nil
}

func (g *PreferenceGate) lookup(ctx context.Context, who RecipientRef) (*model.NotificationPreference, error) {
	if g.Preferences == nil {
		return nil, nil
	}
	if who.ID > 0 {
		return g.Preferences.GetByUserID(ctx, who.ID)
	}
	if who.Email != "" {
		return g.Preferences.GetByEmail(ctx, who.Email)
	}
	return nil, nil
}
