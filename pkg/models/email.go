package models

import (
	"strings"
	"time"
)

// EmailStatus is the lifecycle status of an outbound email. Only draft and
// sent carry behavior; any other non-empty value is stored as given.
type EmailStatus string

const (
	EmailStatusDraft EmailStatus = "rascunho"
	EmailStatusSent  EmailStatus = "enviado"
)

// ParseEmailStatus trims s and maps the English aliases onto the wire
// values. It returns false for an empty status.
func ParseEmailStatus(s string) (EmailStatus, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return "", false
	case "draft":
		return EmailStatusDraft, true
	case "sent":
		return EmailStatusSent, true
	}
	return EmailStatus(s), true
}

// IsTerminal reports whether the email can no longer be edited or deleted
func (s EmailStatus) IsTerminal() bool {
	return s == EmailStatusSent
}

// Email is an outbound message drafted for a lead
type Email struct {
	ID           string      `json:"id"`
	LeadID       string      `json:"lead_id"`
	Subject      string      `json:"subject"`
	Body         string      `json:"body"`
	Status       EmailStatus `json:"status"`
	SentAt       *time.Time  `json:"sent_at,omitempty"`
	ErrorMessage *string     `json:"error_message,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// CreateEmailRequest represents a request to create an email draft
type CreateEmailRequest struct {
	LeadID  string `json:"lead_id" validate:"required"`
	Subject string `json:"subject" validate:"required,max=300"`
	Body    string `json:"body" validate:"required"`
	Status  string `json:"status,omitempty"`
}

// UpdateEmailRequest represents a partial update of an email draft
type UpdateEmailRequest struct {
	Subject *string `json:"subject,omitempty"`
	Body    *string `json:"body,omitempty"`
}

// SendResult is the soft result of a send attempt
type SendResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// EmailGeneration is the soft result of an AI email generation
type EmailGeneration struct {
	Success bool   `json:"success"`
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body,omitempty"`
	Error   string `json:"error,omitempty"`
}
