package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/unclebandit/civic-notify/internal/model"
	"github.com/unclebandit/civic-notify/internal/service"
	"github.com/unclebandit/civic-notify/internal/transport"
)

type dispatcherFixture struct {
	dispatcher *service.Dispatcher
	sender     *MockSender
	logs       *MockLogRepo
}

func newDispatcherFixture() *dispatcherFixture {
	prefs := &MockPreferenceRepo{
		byUser: map[int]*model.NotificationPreference{
			10: {UserID: 10, EmailEnabled: false},
			11: {UserID: 11, EmailEnabled: true, Categories: map[string]bool{"newsletter": false}},
		},
		byEmail: map[string]*model.NotificationPreference{
			"off@city.gov": {UserID: 10, EmailEnabled: false},
		},
	}
	directory := &MockDirectory{users: []model.Recipient{
		{ID: 10, Email: "off@city.gov", Language: "ar", IsActive: true},
		{ID: 11, Email: "news@city.gov", Language: "en", IsActive: true},
	}}
	templates := &MockTemplateRepo{templates: map[string]*model.Template{
		"password_reset": {
			Key: "password_reset", IsActive: true, IsCritical: true,
			SubjectEN: "Reset your password", BodyEN: "Use {{link}}",
			SubjectAR: "إعادة تعيين كلمة المرور", BodyAR: "استخدم {{link}}",
		},
		"monthly_digest": {
			Key: "monthly_digest", IsActive: true, Category: "newsletter",
			SubjectEN: "Digest", BodyEN: strings.Repeat("x", 800),
		},
	}}

	sender := &MockSender{}
	logs := &MockLogRepo{}
	return &dispatcherFixture{
		dispatcher: &service.Dispatcher{
			Renderer:   &service.TemplateRenderer{Templates: templates, DefaultLanguage: "en"},
			Gate:       &service.PreferenceGate{Preferences: prefs},
			Recipients: directory,
			Logs:       logs,
			Sender:     sender,
			From:       "no-reply@city.gov",
			Timeout:    time.Second,
		},
		sender: sender,
		logs:   logs,
	}
}

func TestDispatchCriticalTemplateBypassesGlobalOptOut(t *testing.T) {
	f := newDispatcherFixture()

	res := f.dispatcher.Send(context.Background(), service.SendRequest{
		TemplateKey:    "password_reset",
		Variables:      map[string]string{"link": "https://portal/r/abc"},
		RecipientEmail: "off@city.gov",
	})

	if !res.Success || res.ProviderMessageID != "msg-off@city.gov" {
		t.Fatalf("result = %+v, want success", res)
	}
	if f.sender.count() != 1 {
		t.Fatalf("transport calls = %d, want 1", f.sender.count())
	}

	entries := f.logs.all()
	if len(entries) != 1 {
		t.Fatalf("log entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Status != model.DeliverySent || e.Language != "ar" || e.TriggeredBy != "transactional" {
		t.Errorf("entry = %+v", e)
	}
	if e.RecipientID == nil || *e.RecipientID != 10 {
		t.Errorf("recipient id = %v, want 10", e.RecipientID)
	}
	if e.Subject != "إعادة تعيين كلمة المرور" {
		t.Errorf("subject = %q, want stored arabic preference", e.Subject)
	}
}

func TestDispatchPlainTemplateIsNotSentAsHTML(t *testing.T) {
	f := newDispatcherFixture()
	link := `<a href="https://elsewhere.example/">https://portal/r/abc</a>`

	res := f.dispatcher.Send(context.Background(), service.SendRequest{
		TemplateKey:    "password_reset",
		Variables:      map[string]string{"link": link},
		RecipientEmail: "resident@city.gov",
	})
	if !res.Success {
		t.Fatalf("result = %+v", res)
	}

	msg := f.sender.sent[0]
	if msg.HTML != "" {
		t.Errorf("plain template delivered as html: %q", msg.HTML)
	}
	if msg.Text != "Use "+link {
		t.Errorf("text = %q", msg.Text)
	}
}

func TestDispatchSuppressedWritesSkipLogOnly(t *testing.T) {
	f := newDispatcherFixture()

	res := f.dispatcher.Send(context.Background(), service.SendRequest{
		TemplateKey:    "monthly_digest",
		RecipientEmail: "news@city.gov",
		TriggeredBy:    "digest_job",
	})

	if res.Success || !res.Skipped || res.Error != "category_opt_out:newsletter" {
		t.Fatalf("result = %+v", res)
	}
	if f.sender.count() != 0 {
		t.Fatal("transport must not be called for suppressed sends")
	}
	entries := f.logs.all()
	if len(entries) != 1 || entries[0].Status != model.DeliverySkipped || entries[0].ErrorMessage != "category_opt_out:newsletter" {
		t.Fatalf("entries = %+v", entries)
	}
	if got := len([]rune(entries[0].BodyPreview)); got != 500 {
		t.Errorf("preview length = %d, want 500", got)
	}
}

func TestDispatchForceSendSkipsGate(t *testing.T) {
	f := newDispatcherFixture()

	res := f.dispatcher.Send(context.Background(), service.SendRequest{
		TemplateKey:    "monthly_digest",
		RecipientEmail: "news@city.gov",
		ForceSend:      true,
	})
	if !res.Success {
		t.Fatalf("result = %+v", res)
	}
}

func TestDispatchUnknownTemplateFails(t *testing.T) {
	f := newDispatcherFixture()

	res := f.dispatcher.Send(context.Background(), service.SendRequest{
		TemplateKey:    "does_not_exist",
		RecipientEmail: "news@city.gov",
	})
	if res.Success || res.Skipped || !strings.Contains(res.Error, "does_not_exist") {
		t.Fatalf("result = %+v", res)
	}
	if f.sender.count() != 0 {
		t.Fatal("transport called for unknown template")
	}
	if entries := f.logs.all(); len(entries) != 1 || entries[0].Status != model.DeliveryFailed {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestDispatchTransportErrorIsRecordedVerbatim(t *testing.T) {
	f := newDispatcherFixture()
	f.sender.SendFunc = func(ctx context.Context, msg transport.Message) (string, error) {
		return "", errors.New("421 service not available")
	}

	res := f.dispatcher.Send(context.Background(), service.SendRequest{
		TemplateKey:    "password_reset",
		RecipientEmail: "news@city.gov",
	})
	if res.Success || res.Error != "421 service not available" {
		t.Fatalf("result = %+v", res)
	}
	if f.sender.count() != 1 {
		t.Errorf("transport calls = %d, want exactly 1 (no retry)", f.sender.count())
	}
	if entries := f.logs.all(); len(entries) != 1 || entries[0].ErrorMessage != "421 service not available" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestDispatchTimeoutIsAFailedSend(t *testing.T) {
	f := newDispatcherFixture()
	f.dispatcher.Timeout = 20 * time.Millisecond
	f.sender.SendFunc = func(ctx context.Context, msg transport.Message) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}

	res := f.dispatcher.Send(context.Background(), service.SendRequest{
		TemplateKey:    "password_reset",
		RecipientEmail: "news@city.gov",
	})
	if res.Success || !strings.HasPrefix(res.Error, "transport timeout") {
		t.Fatalf("result = %+v", res)
	}
}

func TestDispatchDirectSend(t *testing.T) {
	f := newDispatcherFixture()

	res := f.dispatcher.Send(context.Background(), service.SendRequest{
		RecipientEmail: "someone@else.org",
		Subject:        "Ad-hoc notice",
		HTML:           "<p>Road closure</p>",
	})
	if !res.Success {
		t.Fatalf("result = %+v", res)
	}
	msg := f.sender.sent[0]
	if msg.Subject != "Ad-hoc notice" || msg.HTML != "<p>Road closure</p>" || msg.From != "no-reply@city.gov" {
		t.Errorf("message = %+v", msg)
	}
	if e := f.logs.all()[0]; e.TemplateKey != "" || e.Status != model.DeliverySent {
		t.Errorf("entry = %+v", e)
	}
}

func TestDispatchDirectSendHonoursGlobalSwitch(t *testing.T) {
	f := newDispatcherFixture()

	res := f.dispatcher.Send(context.Background(), service.SendRequest{
		RecipientEmail: "off@city.gov",
		RecipientID:    10,
		Subject:        "Ad-hoc notice",
		HTML:           "<p>x</p>",
	})
	if !res.Skipped {
		t.Fatalf("result = %+v, want skipped", res)
	}
}

func TestDispatchMissingRecipient(t *testing.T) {
	f := newDispatcherFixture()

	res := f.dispatcher.Send(context.Background(), service.SendRequest{TemplateKey: "password_reset"})
	if res.Success || res.Error == "" {
		t.Fatalf("result = %+v", res)
	}
	if len(f.logs.all()) != 1 {
		t.Fatal("every attempt must be logged")
	}
}
