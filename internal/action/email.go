package action

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/hray3182/gabay/internal/models"
	"gopkg.in/mail.v2"
)

// EmailTag is the action tag of deferred emails.
const EmailTag = "email"

// EmailPayload is the JSON payload of an email action.
type EmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type sender interface {
	DialAndSend(m ...*mail.Message) error
}

type EmailHandler struct {
	dialer sender
	from   string
}

func NewEmailHandler(host string, port int, username, password, from string) *EmailHandler {
	return &EmailHandler{
		dialer: mail.NewDialer(host, port, username, password),
		from:   from,
	}
}

func (h *EmailHandler) Handle(ctx context.Context, ownerID, payload string) error {
	var p EmailPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return errors.Mark(errors.Wrap(err, "decode email payload"), models.ErrActionExecution)
	}
	if strings.TrimSpace(p.To) == "" {
		return errors.Mark(errors.New("email payload has no recipient"), models.ErrActionExecution)
	}
	if p.Subject == "" {
		p.Subject = "Reminder"
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := mail.NewMessage()
	m.SetHeader("From", h.from)
	m.SetHeader("To", p.To)
	m.SetHeader("Subject", p.Subject)
	m.SetBody("text/plain", p.Body)

	if err := h.dialer.DialAndSend(m); err != nil {
		return errors.Wrapf(err, "send email for owner %s", ownerID)
	}
	return nil
}
