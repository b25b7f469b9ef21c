// internal/model/template.go
package model

// Template is one active version of a notification template.
type Template struct {
	ID             int    `db:"id" json:"id"`
	Key            string `db:"template_key" json:"template_key"`
	SubjectEN      string `db:"subject_en" json:"subject_en"`
	BodyEN         string `db:"body_en" json:"body_en"`
	SubjectAR      string `db:"subject_ar" json:"subject_ar"`
	BodyAR         string `db:"body_ar" json:"body_ar"`
	IsCritical     bool   `db:"is_critical" json:"is_critical"`
	IsHTML         bool   `db:"is_html" json:"is_html"`
	Category       string `db:"category" json:"category,omitempty"`
	AccentColor    string `db:"accent_color" json:"accent_color,omitempty"`
	CTALabel       string `db:"cta_label" json:"cta_label,omitempty"`
	CTAURLVariable string `db:"cta_url_variable" json:"cta_url_variable,omitempty"`
	IsActive       bool   `db:"is_active" json:"is_active"`
}

// Content returns the subject and body stored for lang ("en" or "ar").
func (t *Template) Content(lang string) (subject, body string) {
	if lang == "ar" {
		return t.SubjectAR, t.BodyAR
	}
	return t.SubjectEN, t.BodyEN
}
