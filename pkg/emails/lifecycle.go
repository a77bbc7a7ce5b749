package emails

import (
	"context"
	"errors"
	"time"

	"github.com/Web-Star-Studio/noturno-kimi/pkg/access"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/ai"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/domain"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/models"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/store"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/validation"
)

const (
	msgAlreadySent = "Email já foi enviado"
	msgNoAddress   = "Lead não possui email cadastrado"
	msgSent        = "Email enviado com sucesso"
	msgSendFailed  = "Falha ao enviar email"
)

// UpdateStatus overwrites the status of a draft. Moving into sent stamps
// the send time.
func (s *Service) UpdateStatus(ctx context.Context, id, status string) (email *models.Email, err error) {
	defer s.observe("update_status", time.Now(), &err)

	user, err := s.Auth.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	parsed, ok := models.ParseEmailStatus(status)
	if !ok {
		return nil, errNoStatus
	}

	err = s.Store.WithTx(ctx, func(tx *store.Store) error {
		found, err := s.mutable(ctx, tx, user.ID, id)
		if err != nil {
			return err
		}
		found.Status = parsed
		if parsed == models.EmailStatusSent {
			now := tx.Now()
			found.SentAt = &now
		}
		email = found
		return tx.UpdateEmail(ctx, found)
	})
	if err != nil {
		return nil, err
	}
	return email, nil
}

// Send delivers a draft to its lead. Already sent emails, leads without
// an address and delivery failures are reported in the result; a failed
// delivery leaves the email a draft with the error recorded.
func (s *Service) Send(ctx context.Context, id string) (res *models.SendResult, err error) {
	defer s.observe("send", time.Now(), &err)

	user, err := s.Auth.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	email, err := s.Store.GetEmail(ctx, id)
	if err != nil {
		return nil, err
	}
	if email == nil {
		return nil, domain.NewNotFoundError("Email")
	}
	lead, err := s.ParentLead(ctx, s.Store, user.ID, "email", email.ID, email.LeadID)
	if err != nil {
		return nil, err
	}

	if email.Status.IsTerminal() {
		s.Metrics.RecordEmailSend("already_sent")
		return &models.SendResult{Success: false, Message: msgAlreadySent}, nil
	}
	if !lead.HasEmail() {
		s.Metrics.RecordEmailSend("no_address")
		return &models.SendResult{Success: false, Message: msgNoAddress}, nil
	}

	// delivery runs outside any transaction
	if derr := s.deliverer.Deliver(ctx, *lead.Email, email.Subject, email.Body); derr != nil {
		s.Metrics.RecordEmailSend("failed")
		s.Log.Warn("email delivery failed", "email_id", email.ID, "error", derr)
		if _, err := s.Store.SetEmailError(ctx, email.ID, derr.Error()); err != nil {
			return nil, err
		}
		return &models.SendResult{Success: false, Message: msgSendFailed + ": " + derr.Error()}, nil
	}

	marked, err := s.Store.MarkEmailSent(ctx, email.ID, s.Store.Now())
	if err != nil {
		return nil, err
	}
	if !marked {
		s.Metrics.RecordEmailSend("already_sent")
		return &models.SendResult{Success: false, Message: msgAlreadySent}, nil
	}

	s.Metrics.RecordEmailSend("sent")
	s.Log.Info("email sent", "email_id", email.ID, "lead_id", lead.ID)
	return &models.SendResult{Success: true, Message: msgSent}, nil
}

// Generate drafts an email for a lead under one of the caller's ICPs. The
// draft is returned, not stored. Failures other than a missing caller are
// reported in the result.
func (s *Service) Generate(ctx context.Context, leadID, icpID, prompt string) (*models.EmailGeneration, error) {
	start := time.Now()
	user, err := s.Auth.Authenticate(ctx)
	if err != nil {
		s.observe("generate", start, &err)
		return nil, err
	}

	out, err := s.generate(ctx, user, leadID, icpID, prompt)
	s.observe("generate", start, &err)
	if err != nil {
		s.Log.Warn("email generation failed", "lead_id", leadID, "error", err)
		return &models.EmailGeneration{Success: false, Error: softMessage(err)}, nil
	}
	return &models.EmailGeneration{Success: true, Subject: out.Subject, Body: out.Body}, nil
}

func (s *Service) generate(ctx context.Context, user *models.User, leadID, icpID, prompt string) (*ai.EmailContent, error) {
	if !s.limiter.Allow(user.ID) {
		return nil, errRateLimited
	}
	lead, err := access.OwnedLead(ctx, s.Store, user.ID, leadID)
	if err != nil {
		return nil, err
	}
	icp, err := access.OwnedICP(ctx, s.Store, user.ID, icpID)
	if err != nil {
		return nil, err
	}

	lc := ai.FromLead(lead, icp, user.Name)
	lc.Prompt = validation.Clean(prompt)
	out, err := s.generator.GenerateEmail(ctx, lc)
	if err != nil {
		return nil, domain.NewInternalError(err)
	}
	return out, nil
}

var errRateLimited = domain.NewValidationError("Limite de gerações atingido, tente novamente em instantes")

func softMessage(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return "Erro desconhecido ao gerar email"
}
