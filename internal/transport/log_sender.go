package transport

import (
	"context"
	"log"

	"github.com/google/uuid"
)

// LogSender prints messages instead of sending them. Used when SMTP is not
// configured in development.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	log.Printf("📧 [dev] to=%v subject=%q id=%s", msg.To, msg.Subject, id)
	return id, nil
}
