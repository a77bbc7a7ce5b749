// Package emails manages outbound emails drafted for leads. An email is
// editable while it is a draft and frozen once sent.
package emails

import (
	"context"
	"time"

	"github.com/Web-Star-Studio/noturno-kimi/pkg/access"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/ai"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/domain"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/mailer"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/models"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/pagination"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/ratelimit"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/store"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/validation"
)

// Deliverer hands an email to the outside world
type Deliverer interface {
	Deliver(ctx context.Context, to, subject, body string) error
}

// Service handles email operations for the calling user
type Service struct {
	access.Deps
	deliverer Deliverer
	generator ai.Generator
	limiter   *ratelimit.Limiter
}

// NewService creates a new email service. A nil deliverer only logs, a nil
// generator falls back to the fixed templates and a nil limiter does not
// throttle generation.
func NewService(deps access.Deps, deliverer Deliverer, generator ai.Generator, limiter *ratelimit.Limiter) *Service {
	deps = deps.WithDefaults()
	if deliverer == nil {
		deliverer = mailer.NewConsoleDeliverer(deps.Log)
	}
	if generator == nil {
		generator = ai.TemplateGenerator{}
	}
	return &Service{Deps: deps, deliverer: deliverer, generator: generator, limiter: limiter}
}

func (s *Service) observe(op string, start time.Time, errp *error) {
	s.Metrics.RecordOperation("email", op, start, *errp)
}

// Create stores a new email for a lead the caller owns. The status
// defaults to draft.
func (s *Service) Create(ctx context.Context, req models.CreateEmailRequest) (email *models.Email, err error) {
	defer s.observe("create", time.Now(), &err)

	user, err := s.Auth.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	subject, body, err := cleanContent(req.Subject, req.Body)
	if err != nil {
		return nil, err
	}
	status := models.EmailStatusDraft
	if parsed, ok := models.ParseEmailStatus(req.Status); ok {
		status = parsed
	}

	email = &models.Email{LeadID: validation.Clean(req.LeadID), Subject: subject, Body: body, Status: status}
	if status == models.EmailStatusSent {
		now := s.Store.Now()
		email.SentAt = &now
	}
	err = s.Store.WithTx(ctx, func(tx *store.Store) error {
		if _, err := access.OwnedLead(ctx, tx, user.ID, email.LeadID); err != nil {
			return err
		}
		return tx.InsertEmail(ctx, email)
	})
	if err != nil {
		return nil, err
	}
	return email, nil
}

// Get returns the email with the given id, or nil when it does not exist
func (s *Service) Get(ctx context.Context, id string) (email *models.Email, err error) {
	defer s.observe("get", time.Now(), &err)

	user, err := s.Auth.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	email, err = s.Store.GetEmail(ctx, id)
	if err != nil || email == nil {
		return nil, err
	}
	if _, err := s.ParentLead(ctx, s.Store, user.ID, "email", email.ID, email.LeadID); err != nil {
		return nil, err
	}
	return email, nil
}

// Update edits the subject and/or body of a draft
func (s *Service) Update(ctx context.Context, id string, req models.UpdateEmailRequest) (email *models.Email, err error) {
	defer s.observe("update", time.Now(), &err)

	user, err := s.Auth.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	err = s.Store.WithTx(ctx, func(tx *store.Store) error {
		found, err := s.mutable(ctx, tx, user.ID, id)
		if err != nil {
			return err
		}
		if req.Subject != nil {
			v := validation.Clean(*req.Subject)
			if v == "" {
				return errNoSubject
			}
			if err := validation.Var("subject", v, "max=300"); err != nil {
				return err
			}
			found.Subject = v
		}
		if req.Body != nil {
			v := validation.Clean(*req.Body)
			if v == "" {
				return errNoBody
			}
			found.Body = v
		}
		email = found
		return tx.UpdateEmail(ctx, found)
	})
	if err != nil {
		return nil, err
	}
	return email, nil
}

// Delete removes a draft
func (s *Service) Delete(ctx context.Context, id string) (err error) {
	defer s.observe("delete", time.Now(), &err)

	user, err := s.Auth.Authenticate(ctx)
	if err != nil {
		return err
	}
	return s.Store.WithTx(ctx, func(tx *store.Store) error {
		email, err := s.mutable(ctx, tx, user.ID, id)
		if err != nil {
			return err
		}
		return tx.DeleteEmail(ctx, email.ID)
	})
}

// mutable loads an email the caller owns and may still change
func (s *Service) mutable(ctx context.Context, tx *store.Store, callerID, id string) (*models.Email, error) {
	email, err := tx.GetEmail(ctx, id)
	if err != nil {
		return nil, err
	}
	if email == nil {
		return nil, domain.NewNotFoundError("Email")
	}
	if _, err := s.ParentLead(ctx, tx, callerID, "email", email.ID, email.LeadID); err != nil {
		return nil, err
	}
	if email.Status.IsTerminal() {
		return nil, errAlreadySent
	}
	return email, nil
}

func emailPosition(e *models.Email) pagination.Position {
	return store.Position(e.CreatedAt, e.ID)
}

func (s *Service) scan(key string, f store.EmailFilter, keep func(*models.Email) bool) pagination.Scan[*models.Email] {
	return pagination.Scan[*models.Email]{
		Key: key,
		Fetch: func(ctx context.Context, after *pagination.Position, n int) ([]*models.Email, error) {
			return s.Store.ScanEmails(ctx, f, after, n)
		},
		Position: emailPosition,
		Keep:     keep,
	}
}

// ListByLead pages through the emails of a lead the caller owns
func (s *Service) ListByLead(ctx context.Context, leadID string, req pagination.Request) (page *pagination.Page[*models.Email], err error) {
	defer s.observe("list_by_lead", time.Now(), &err)

	user, err := s.Auth.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	lead, err := access.OwnedLead(ctx, s.Store, user.ID, leadID)
	if err != nil {
		return nil, err
	}
	return pagination.Paginate(ctx, s.scan("emails:lead:"+lead.ID, store.EmailFilter{LeadID: lead.ID}, nil), req)
}

// List pages through every email of the caller's leads
func (s *Service) List(ctx context.Context, req pagination.Request) (page *pagination.Page[*models.Email], err error) {
	defer s.observe("list", time.Now(), &err)

	user, err := s.Auth.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	keep, err := s.ownedLeads(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return pagination.Paginate(ctx, s.scan("emails:owner:"+user.ID, store.EmailFilter{}, keep), req)
}

// ListByStatus pages through the caller's emails in one status
func (s *Service) ListByStatus(ctx context.Context, status string, req pagination.Request) (page *pagination.Page[*models.Email], err error) {
	defer s.observe("list_by_status", time.Now(), &err)

	user, err := s.Auth.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	parsed, ok := models.ParseEmailStatus(status)
	if !ok {
		return nil, errNoStatus
	}
	keep, err := s.ownedLeads(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	key := "emails:status:" + string(parsed) + ":" + user.ID
	return pagination.Paginate(ctx, s.scan(key, store.EmailFilter{Status: parsed}, keep), req)
}

// ownedLeads is the residual filter for email scans that cannot use the
// lead index
func (s *Service) ownedLeads(ctx context.Context, ownerID string) (func(*models.Email) bool, error) {
	ids, err := s.Store.LeadIDsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return func(e *models.Email) bool {
		_, ok := ids[e.LeadID]
		return ok
	}, nil
}

func cleanContent(subject, body string) (string, string, error) {
	subject = validation.Clean(subject)
	body = validation.Clean(body)
	if subject == "" {
		return "", "", errNoSubject
	}
	if body == "" {
		return "", "", errNoBody
	}
	if err := validation.Var("subject", subject, "max=300"); err != nil {
		return "", "", err
	}
	return subject, body, nil
}

var (
	errNoSubject   = domain.NewValidationError("Assunto é obrigatório")
	errNoBody      = domain.NewValidationError("Corpo do email é obrigatório")
	errNoStatus    = domain.NewValidationError("Status é obrigatório")
	errAlreadySent = domain.NewConflictError("Email já enviado não pode ser alterado")
)
