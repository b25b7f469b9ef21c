package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	appErrors "github.com/unclebandit/civic-notify/internal/errors"
	"github.com/unclebandit/civic-notify/internal/model"
	"github.com/unclebandit/civic-notify/internal/service"
)

func TestRenderTemplateSubstitutesVariables(t *testing.T) {
	tests := []struct {
		name string
		in   string
		vars map[string]string
		want string
	}{
		{"all present", "Hi {{first_name}}, idea {{idea}} moved", map[string]string{"first_name": "Amal", "idea": "Solar benches"}, "Hi Amal, idea Solar benches moved"},
		{"missing is empty", "Hi {{first_name}}{{last_name}}!", map[string]string{"first_name": "Amal"}, "Hi Amal!"},
		{"repeated", "{{x}}-{{x}}", map[string]string{"x": "1"}, "1-1"},
		{"inner spaces", "{{ name }}", map[string]string{"name": "ok"}, "ok"},
		{"single pass", "{{a}}", map[string]string{"a": "{{b}}", "b": "boom"}, "{{b}}"},
		{"no placeholders", "plain text", nil, "plain text"},
		{"single braces untouched", "{name}", map[string]string{"name": "x"}, "{name}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := service.RenderTemplate(tt.in, tt.vars); got != tt.want {
				t.Errorf("RenderTemplate(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSelectLanguage(t *testing.T) {
	tests := []struct {
		candidates []string
		want       string
	}{
		{[]string{"ar"}, "ar"},
		{[]string{"ar-SA"}, "ar"},
		{[]string{"", "ar"}, "ar"},
		{[]string{"en-GB", "ar"}, "en"},
		{[]string{"fr", "ar"}, "ar"},
		{[]string{"not a tag!"}, "en"},
		{nil, "en"},
	}
	for _, tt := range tests {
		if got := service.SelectLanguage(tt.candidates...); got != tt.want {
			t.Errorf("SelectLanguage(%v) = %q, want %q", tt.candidates, got, tt.want)
		}
	}
}

func newRenderer(settings map[string]string) *service.TemplateRenderer {
	return &service.TemplateRenderer{
		Templates: &MockTemplateRepo{templates: map[string]*model.Template{
			"idea_approved": {
				Key: "idea_approved", IsActive: true,
				SubjectEN: "Idea {{idea}} approved", BodyEN: "Dear {{name}}, congratulations.",
				SubjectAR: "تمت الموافقة على {{idea}}", BodyAR: "",
			},
			"challenge_launch": {
				Key: "challenge_launch", IsActive: true, IsHTML: true,
				SubjectEN: "New challenge: {{title}}", BodyEN: "<p>Join {{title}} before {{deadline}}.</p>",
				CTALabel: "View challenge", CTAURLVariable: "challenge_url", AccentColor: "#0f766e",
			},
			"retired": {Key: "retired", IsActive: false, SubjectEN: "x", BodyEN: "y"},
		}},
		Settings:        &MockSettingsRepo{values: settings},
		DefaultLanguage: "en",
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	r := newRenderer(nil)
	for _, key := range []string{"missing", "retired"} {
		_, err := r.Render(context.Background(), key, nil, "en")
		var nf *appErrors.ErrTemplateNotFound
		if !errors.As(err, &nf) {
			t.Errorf("Render(%q) err = %v, want ErrTemplateNotFound", key, err)
		}
	}
}

func TestRenderFallsBackToOtherLanguageField(t *testing.T) {
	r := newRenderer(nil)

	out, err := r.Render(context.Background(), "idea_approved", map[string]string{"idea": "Bike lanes", "name": "Omar"}, "ar")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out.Language != "ar" {
		t.Errorf("language = %q, want ar", out.Language)
	}
	if out.Subject != "تمت الموافقة على Bike lanes" {
		t.Errorf("subject = %q", out.Subject)
	}
	if out.Body != "Dear Omar, congratulations." {
		t.Errorf("body = %q, want english fallback", out.Body)
	}
	if out.IsRich {
		t.Error("plain template rendered as rich")
	}
}

func TestRenderDefaultsLanguage(t *testing.T) {
	r := newRenderer(nil)
	r.DefaultLanguage = ""

	out, err := r.Render(context.Background(), "idea_approved", nil, "")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out.Language != "en" || out.Subject != "Idea  approved" {
		t.Errorf("got (%q, %q)", out.Language, out.Subject)
	}
}

func TestRenderRichWrapsEnvelope(t *testing.T) {
	r := newRenderer(map[string]string{
		model.SettingPortalName:   "Riverside Innovation Hub",
		model.SettingContactEmail: "hello@riverside.gov",
		model.SettingAddress:      "1 Civic Square",
		model.SettingTwitterURL:   "https://x.com/riverside",
	})
	vars := map[string]string{
		"title":         "Cleaner <rivers>",
		"deadline":      "June 1",
		"challenge_url": "https://portal.riverside.gov/c/12",
	}

	out, err := r.Render(context.Background(), "challenge_launch", vars, "en")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !out.IsRich {
		t.Fatal("expected rich output")
	}

	for _, want := range []string{
		"<!DOCTYPE html>",
		"<p>Join Cleaner &lt;rivers&gt; before June 1.</p>",
		`href="https://portal.riverside.gov/c/12"`,
		"View challenge",
		"#0f766e",
		"Riverside Innovation Hub",
		"mailto:hello@riverside.gov",
		"1 Civic Square",
		"https://x.com/riverside",
	} {
		if !strings.Contains(out.Body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if strings.Contains(out.Body, "<rivers>") {
		t.Error("variable value was not escaped")
	}
	if out.Preview != "<p>Join Cleaner &lt;rivers&gt; before June 1.</p>" {
		t.Errorf("preview = %q", out.Preview)
	}
}

func TestRenderRichDegradesWithoutSettingsOrCTA(t *testing.T) {
	r := newRenderer(nil)
	r.Settings = &MockSettingsRepo{err: errors.New("settings table missing")}

	out, err := r.Render(context.Background(), "challenge_launch", map[string]string{"title": "Parks"}, "en")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(out.Body, "Municipal Innovation Portal") {
		t.Error("expected default portal name")
	}
	if strings.Contains(out.Body, "View challenge") {
		t.Error("CTA rendered without a target URL")
	}
}

func TestEnvelopeRejectsUnsafeValues(t *testing.T) {
	env := service.Envelope{
		Lang:        "ar",
		Title:       "x",
		BodyHTML:    "<p>body</p>",
		AccentColor: "red;background:url(evil)",
		CTALabel:    "Open",
		CTAURL:      "javascript:alert(1)",
	}
	out := env.Wrap(model.NewSettingsSnapshot(nil))

	if strings.Contains(out, "javascript:") {
		t.Error("unsafe CTA URL rendered")
	}
	if strings.Contains(out, "evil") {
		t.Error("unsafe accent color rendered")
	}
	if !strings.Contains(out, `dir="rtl"`) {
		t.Error("arabic envelope should be rtl")
	}
}
