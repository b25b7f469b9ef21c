// internal/service/template_service.go
package service

import (
	"context"
	"html"
	"log"
	"regexp"
	"strings"

	"golang.org/x/text/language"

	"github.com/unclebandit/civic-notify/internal/model"
	"github.com/unclebandit/civic-notify/internal/repository"
)

const FallbackLanguage = "en"

var (
	supportedLanguages = []language.Tag{language.English, language.Arabic}
	languageMatcher    = language.NewMatcher(supportedLanguages)

	placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)
)

// SelectLanguage returns the first candidate that matches a supported
// language, or FallbackLanguage.
func SelectLanguage(candidates ...string) string {
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		tag, err := language.Parse(c)
		if err != nil {
			continue
		}
		_, idx, conf := languageMatcher.Match(tag)
		if conf == language.No {
			continue
		}
		base, _ := supportedLanguages[idx].Base()
		return base.String()
	}
	return FallbackLanguage
}

func otherLanguage(lang string) string {
	if lang == "ar" {
		return "en"
	}
	return "ar"
}

// RenderTemplate replaces every {{name}} in template with data[name], or
// with "" when the variable is missing. Replacement values are never
// re-scanned for placeholders.
func RenderTemplate(template string, data map[string]string) string {
	return interpolate(template, data, false)
}

func interpolate(template string, data map[string]string, escape bool) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		value := data[name]
		if escape {
			value = html.EscapeString(value)
		}
		return value
	})
}

// Rendered is a template resolved for one recipient.
type Rendered struct {
	Template *model.Template
	Subject  string
	Body     string
	Preview  string // interpolated body before the envelope
	IsRich   bool
	Language string
}

type TemplateRenderer struct {
	Templates       repository.TemplateRepositoryInterface
	Settings        repository.SettingsRepositoryInterface
	DefaultLanguage string
}

// Render resolves key and renders it for lang. An empty lang falls back to
// the renderer's default language and then to FallbackLanguage.
func (r *TemplateRenderer) Render(ctx context.Context, key string, vars map[string]string, lang string) (*Rendered, error) {
	tmpl, err := r.Templates.GetActiveByKey(ctx, key)
	if err != nil {
		return nil, err
	}

	lang = SelectLanguage(lang, r.DefaultLanguage)
	subject, body := tmpl.Content(lang)
	altSubject, altBody := tmpl.Content(otherLanguage(lang))
	if strings.TrimSpace(subject) == "" {
		subject = altSubject
	}
	if strings.TrimSpace(body) == "" {
		body = altBody
	}

	out := &Rendered{
		Template: tmpl,
		Subject:  RenderTemplate(subject, vars),
		IsRich:   tmpl.IsHTML,
		Language: lang,
	}
	if !tmpl.IsHTML {
		out.Body = RenderTemplate(body, vars)
		out.Preview = out.Body
		return out, nil
	}

	content := interpolate(body, vars, true)
	out.Preview = content

	env := Envelope{
		Lang:        lang,
		Title:       out.Subject,
		BodyHTML:    content,
		AccentColor: tmpl.AccentColor,
		CTALabel:    RenderTemplate(tmpl.CTALabel, vars),
	}
	if tmpl.CTAURLVariable != "" {
		env.CTAURL = vars[tmpl.CTAURLVariable]
	}
	out.Body = env.Wrap(r.loadSettings(ctx))
	return out, nil
}

func (r *TemplateRenderer) loadSettings(ctx context.Context) model.SettingsSnapshot {
	if r.Settings == nil {
		return model.NewSettingsSnapshot(nil)
	}
	values, err := r.Settings.LoadAll(ctx)
	if err != nil {
		log.Println("⚠️ failed to load portal settings, using defaults:", err)
		return model.NewSettingsSnapshot(nil)
	}
	return model.NewSettingsSnapshot(values)
}
