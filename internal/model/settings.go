// internal/model/settings.go
package model

// SettingsSnapshot is an immutable copy of the portal settings used for
// envelope theming. Load it once per render.
type SettingsSnapshot struct {
	values map[string]string
}

const (
	SettingPortalName   = "portal_name"
	SettingContactEmail = "contact_email"
	SettingContactPhone = "contact_phone"
	SettingAddress      = "address"
	SettingTwitterURL   = "twitter_url"
	SettingFacebookURL  = "facebook_url"
	SettingLinkedInURL  = "linkedin_url"
	SettingAccentColor  = "accent_color"
	SettingLogoURL      = "logo_url"
)

func NewSettingsSnapshot(values map[string]string) SettingsSnapshot {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return SettingsSnapshot{values: copied}
}

// Get returns the setting or def when missing or blank.
func (s SettingsSnapshot) Get(key, def string) string {
	if v, ok := s.values[key]; ok && v != "" {
		return v
	}
	return def
}

// Values returns a copy of the underlying map.
func (s SettingsSnapshot) Values() map[string]string {
	copied := make(map[string]string, len(s.values))
	for k, v := range s.values {
		copied[k] = v
	}
	return copied
}
