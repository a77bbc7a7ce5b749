// Package reports stores the single pre-call report a lead may have and
// drafts it with an AI generator on request.
package reports

import (
	"context"
	"errors"
	"time"

	"github.com/Web-Star-Studio/noturno-kimi/pkg/access"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/ai"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/domain"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/models"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/ratelimit"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/store"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/validation"
)

// Service handles pre-call report operations for the calling user
type Service struct {
	access.Deps
	generator ai.Generator
	limiter   *ratelimit.Limiter
}

// NewService creates a new report service. A nil generator falls back to
// the fixed templates; a nil limiter does not throttle.
func NewService(deps access.Deps, generator ai.Generator, limiter *ratelimit.Limiter) *Service {
	if generator == nil {
		generator = ai.TemplateGenerator{}
	}
	return &Service{Deps: deps.WithDefaults(), generator: generator, limiter: limiter}
}

func (s *Service) observe(op string, start time.Time, errp *error) {
	s.Metrics.RecordOperation("report", op, start, *errp)
}

// Create stores the report of a lead. A lead has at most one report.
func (s *Service) Create(ctx context.Context, req models.CreateReportRequest) (report *models.PreCallReport, err error) {
	defer s.observe("create", time.Now(), &err)

	user, err := s.Auth.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, user.ID, req)
}

func (s *Service) create(ctx context.Context, ownerID string, req models.CreateReportRequest) (*models.PreCallReport, error) {
	req.LeadID = validation.Clean(req.LeadID)
	req.Content = validation.Clean(req.Content)
	req.Summary = validation.Clean(req.Summary)
	if req.Content == "" {
		return nil, domain.NewValidationError("Conteúdo do relatório é obrigatório")
	}
	if req.Summary == "" {
		return nil, domain.NewValidationError("Resumo do relatório é obrigatório")
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	report := &models.PreCallReport{LeadID: req.LeadID, Content: req.Content, Summary: req.Summary}
	err := s.Store.WithTx(ctx, func(tx *store.Store) error {
		if _, err := access.OwnedLead(ctx, tx, ownerID, req.LeadID); err != nil {
			return err
		}
		n, err := tx.CountReportsByLead(ctx, req.LeadID)
		if err != nil {
			return err
		}
		if n > 0 {
			return errDuplicate
		}
		return tx.InsertReport(ctx, report)
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// GetByLead returns the report of a lead the caller owns, or nil
func (s *Service) GetByLead(ctx context.Context, leadID string) (report *models.PreCallReport, err error) {
	defer s.observe("get_by_lead", time.Now(), &err)

	user, err := s.Auth.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := access.OwnedLead(ctx, s.Store, user.ID, leadID); err != nil {
		return nil, err
	}
	return s.Store.GetReportByLead(ctx, leadID)
}

// Get returns the report with the given id, or nil when it does not exist
func (s *Service) Get(ctx context.Context, id string) (report *models.PreCallReport, err error) {
	defer s.observe("get", time.Now(), &err)

	user, err := s.Auth.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	report, err = s.Store.GetReport(ctx, id)
	if err != nil || report == nil {
		return nil, err
	}
	if _, err := s.ParentLead(ctx, s.Store, user.ID, "relatório", report.ID, report.LeadID); err != nil {
		return nil, err
	}
	return report, nil
}

// Generate drafts and stores the report of a lead. Failures other than a
// missing caller are reported in the result rather than returned.
func (s *Service) Generate(ctx context.Context, leadID string) (*models.ReportGeneration, error) {
	start := time.Now()
	user, err := s.Auth.Authenticate(ctx)
	if err != nil {
		s.observe("generate", start, &err)
		return nil, err
	}

	report, err := s.generate(ctx, user, leadID)
	s.observe("generate", start, &err)
	if err != nil {
		s.Log.Warn("report generation failed", "lead_id", leadID, "error", err)
		return &models.ReportGeneration{Success: false, Error: softMessage(err)}, nil
	}
	return &models.ReportGeneration{Success: true, ReportID: report.ID}, nil
}

func (s *Service) generate(ctx context.Context, user *models.User, leadID string) (*models.PreCallReport, error) {
	if !s.limiter.Allow(user.ID) {
		return nil, errRateLimited
	}

	lead, err := access.OwnedLead(ctx, s.Store, user.ID, leadID)
	if err != nil {
		return nil, err
	}
	existing, err := s.Store.GetReportByLead(ctx, lead.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errDuplicate
	}

	var icp *models.ICP
	if lead.ICPID != nil {
		if icp, err = s.Store.GetICP(ctx, *lead.ICPID); err != nil {
			return nil, err
		}
	}

	out, err := s.generator.GenerateReport(ctx, ai.FromLead(lead, icp, user.Name))
	if err != nil {
		return nil, domain.NewInternalError(err)
	}
	return s.create(ctx, user.ID, models.CreateReportRequest{LeadID: lead.ID, Content: out.Content, Summary: out.Summary})
}

var (
	errDuplicate   = domain.NewConflictError("Já existe um relatório para este lead")
	errRateLimited = domain.NewValidationError("Limite de gerações atingido, tente novamente em instantes")
)

func softMessage(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return "Erro desconhecido ao gerar relatório"
}
