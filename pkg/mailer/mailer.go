// Package mailer delivers outbound lead emails through SendGrid, or only
// logs them when no API key is configured.
package mailer

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/Web-Star-Studio/noturno-kimi/pkg/logger"
)

const sendEndpoint = "/v3/mail/send"

// Config for the mailer
type Config struct {
	APIKey   string
	FromName string
	FromAddr string
	Host     string // optional API host override
}

// SendGridDeliverer sends mail through the SendGrid v3 API
type SendGridDeliverer struct {
	client *sendgrid.Client
	from   *mail.Email
	log    logger.Logger
}

// NewSendGridDeliverer creates a deliverer for cfg
func NewSendGridDeliverer(cfg Config, log logger.Logger) *SendGridDeliverer {
	if log == nil {
		log = logger.Default()
	}
	req := sendgrid.GetRequest(cfg.APIKey, sendEndpoint, cfg.Host)
	req.Method = "POST"

	return &SendGridDeliverer{
		client: &sendgrid.Client{Request: req},
		from:   mail.NewEmail(cfg.FromName, cfg.FromAddr),
		log:    log,
	}
}

// Deliver sends a plain text email to the given address
func (d *SendGridDeliverer) Deliver(ctx context.Context, to, subject, body string) error {
	message := mail.NewSingleEmail(d.from, subject, mail.NewEmail("", to), body, htmlBody(body))

	response, err := d.client.SendWithContext(ctx, message)
	if err != nil {
		d.log.Error("sendgrid request failed", "error", err)
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		d.log.Error("sendgrid rejected email", "status", response.StatusCode, "body", response.Body)
		return fmt.Errorf("sendgrid returned error status: %d", response.StatusCode)
	}

	d.log.Info("email delivered", "status", response.StatusCode)
	return nil
}

func htmlBody(body string) string {
	return "<html><body><p>" + strings.ReplaceAll(html.EscapeString(body), "\n", "<br>") + "</p></body></html>"
}

// ConsoleDeliverer logs emails instead of sending them
type ConsoleDeliverer struct {
	log logger.Logger
}

// NewConsoleDeliverer creates a deliverer that only logs
func NewConsoleDeliverer(log logger.Logger) *ConsoleDeliverer {
	if log == nil {
		log = logger.Default()
	}
	return &ConsoleDeliverer{log: log}
}

// Deliver implements the deliverer contract without sending anything
func (d *ConsoleDeliverer) Deliver(_ context.Context, to, subject, body string) error {
	d.log.Warn("email not sent, console mode", "to", to, "subject", subject, "body_length", len(body))
	return nil
}

// Deliverer is satisfied by both deliverers
type Deliverer interface {
	Deliver(ctx context.Context, to, subject, body string) error
}

// New picks SendGrid when an API key is configured and console mode
// otherwise
func New(cfg Config, log logger.Logger) Deliverer {
	if log == nil {
		log = logger.Default()
	}
	if cfg.APIKey == "" {
		log.Warn("email delivery in console-only mode, set SENDGRID_API_KEY to send")
		return NewConsoleDeliverer(log)
	}
	log.Info("email delivery through sendgrid")
	return NewSendGridDeliverer(cfg, log)
}
