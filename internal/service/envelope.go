package service

import (
	"fmt"
	"html/template"
	"regexp"
	"strings"

	"github.com/unclebandit/civic-notify/internal/model"
)

const (
	defaultPortalName  = "Municipal Innovation Portal"
	defaultAccentColor = "#1d4ed8"
)

var colorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Envelope is the themed HTML frame around a rich message body.
type Envelope struct {
	Lang        string
	Title       string
	BodyHTML    string
	AccentColor string
	CTALabel    string
	CTAURL      string
}

// Wrap renders the envelope. Every optional piece that is missing is left
// out, so Wrap always produces a usable document.
func (e Envelope) Wrap(settings model.SettingsSnapshot) string {
	portal := settings.Get(model.SettingPortalName, defaultPortalName)

	accent := strings.TrimSpace(e.AccentColor)
	if !colorPattern.MatchString(accent) {
		accent = settings.Get(model.SettingAccentColor, defaultAccentColor)
	}
	if !colorPattern.MatchString(accent) {
		accent = defaultAccentColor
	}

	dir := "ltr"
	if e.Lang == "ar" {
		dir = "rtl"
	}

	var header string
	if logo := settings.Get(model.SettingLogoURL, ""); isSafeURL(logo) {
		header = fmt.Sprintf(`<img src="%s" alt="%s" style="max-height:48px;" />`,
			template.HTMLEscapeString(logo), template.HTMLEscapeString(portal))
	} else {
		header = fmt.Sprintf(`<div style="font-size:18px;font-weight:700;color:#ffffff;">%s</div>`,
			template.HTMLEscapeString(portal))
	}

	titleSection := ""
	if t := strings.TrimSpace(e.Title); t != "" {
		titleSection = fmt.Sprintf(`<h1 style="margin:0 0 18px 0;font-size:22px;font-weight:700;color:#111827;line-height:1.35;">%s</h1>`,
			template.HTMLEscapeString(t))
	}

	buttonSection := ""
	if strings.TrimSpace(e.CTALabel) != "" && isSafeURL(e.CTAURL) {
		buttonSection = fmt.Sprintf(`<div style="text-align:center;margin:24px 0;">
<a href="%s" style="display:inline-block;padding:12px 28px;background-color:%s;color:#ffffff;text-decoration:none;border-radius:999px;font-weight:600;">%s</a>
</div>`, template.HTMLEscapeString(strings.TrimSpace(e.CTAURL)), accent, template.HTMLEscapeString(e.CTALabel))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="%s" dir="%s">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s</title>
</head>
<body style="margin:0;padding:0;background-color:#f3f4f6;font-family:'Segoe UI',Tahoma,Arial,sans-serif;">
<div style="max-width:640px;margin:0 auto;padding:24px 16px;">
<div style="background-color:%s;border-radius:12px 12px 0 0;padding:20px 24px;">%s</div>
<div style="background-color:#ffffff;padding:24px;color:#1f2937;font-size:16px;line-height:1.7;">
%s
<div>%s</div>
%s
</div>
%s
</div>
</body>
</html>`,
		e.Lang, dir,
		template.HTMLEscapeString(e.Title),
		accent, header,
		titleSection, e.BodyHTML, buttonSection,
		footer(settings, portal),
	)
}

func footer(settings model.SettingsSnapshot, portal string) string {
	var lines []string
	if email := settings.Get(model.SettingContactEmail, ""); email != "" {
		esc := template.HTMLEscapeString(email)
		lines = append(lines, fmt.Sprintf(`<a href="mailto:%s" style="color:#6b7280;">%s</a>`, esc, esc))
	}
	if phone := settings.Get(model.SettingContactPhone, ""); phone != "" {
		lines = append(lines, template.HTMLEscapeString(phone))
	}

	var social []string
	for _, s := range []struct{ key, label string }{
		{model.SettingTwitterURL, "X"},
		{model.SettingFacebookURL, "Facebook"},
		{model.SettingLinkedInURL, "LinkedIn"},
	} {
		if u := settings.Get(s.key, ""); isSafeURL(u) {
			social = append(social, fmt.Sprintf(`<a href="%s" style="color:#6b7280;">%s</a>`, template.HTMLEscapeString(u), s.label))
		}
	}
	if len(social) > 0 {
		lines = append(lines, strings.Join(social, " &middot; "))
	}
	if addr := settings.Get(model.SettingAddress, ""); addr != "" {
		lines = append(lines, template.HTMLEscapeString(addr))
	}
	lines = append(lines, "&copy; "+template.HTMLEscapeString(portal))

	return fmt.Sprintf(`<div style="padding:16px 24px;color:#6b7280;font-size:13px;line-height:1.7;text-align:center;">%s</div>`,
		strings.Join(lines, "<br />"))
}

func isSafeURL(u string) bool {
	u = strings.ToLower(strings.TrimSpace(u))
	return strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "mailto:")
}
