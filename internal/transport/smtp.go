package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	mail "github.com/go-mail/mail/v2"
	"github.com/google/uuid"

	"github.com/unclebandit/civic-notify/internal/config"
)

const defaultDialTimeout = 10 * time.Second

type dialSender interface {
	DialAndSend(m ...*mail.Message) error
}

// SMTPSender delivers through an SMTP relay with mandatory STARTTLS.
type SMTPSender struct {
	from   string
	domain string
	dialer dialSender
}

// NewSMTPSender builds a sender whose dial and I/O timeout matches the
// delivery timeout, so a send abandoned on ctx does not outlive it for long.
func NewSMTPSender(cfg config.SMTP, timeout time.Duration) (*SMTPSender, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, fmt.Errorf("smtp not configured (SMTP_HOST/SMTP_FROM)")
	}

	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.SkipTLSVerify,
	}
	d.Timeout = defaultDialTimeout
	if timeout > 0 {
		d.Timeout = timeout
	}

	return &SMTPSender{from: cfg.From, domain: messageDomain(cfg.From), dialer: d}, nil
}

// Send generates the Message-ID itself because SMTP relays do not return one.
// The dial runs in its own goroutine so ctx bounds the call; a dial already
// past DATA may still deliver after ctx is done.
func (s *SMTPSender) Send(ctx context.Context, msg Message) (string, error) {
	if len(msg.To) == 0 {
		return "", fmt.Errorf("no recipients")
	}
	from := msg.From
	if from == "" {
		from = s.from
	}

	id := uuid.NewString()
	m := mail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", fmt.Sprintf("<%s@%s>", id, s.domain))
	if msg.HTML != "" {
		m.SetBody("text/html", msg.HTML)
	} else {
		m.SetBody("text/plain", msg.Text)
	}

	done := make(chan error, 1)
	go func() { done <- s.dialer.DialAndSend(m) }()

	select {
	case err := <-done:
		if err != nil {
			return "", err
		}
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func messageDomain(from string) string {
	addr := from
	if i := strings.LastIndex(addr, "<"); i >= 0 {
		addr = strings.TrimSuffix(addr[i+1:], ">")
	}
	if i := strings.LastIndex(addr, "@"); i >= 0 && i < len(addr)-1 {
		return strings.TrimSpace(addr[i+1:])
	}
	return "localhost"
}
