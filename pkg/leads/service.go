// Package leads manages prospective companies and contacts, their status
// and the cascade removal of everything attached to them.
package leads

import (
	"context"
	"errors"
	"time"

	"github.com/Web-Star-Studio/noturno-kimi/pkg/access"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/domain"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/models"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/phone"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/store"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/validation"
)

// Service handles lead operations for the calling user
type Service struct {
	access.Deps
	phones *phone.Normalizer
}

// NewService creates a new lead service. Phones are normalized relative
// to the normalizer's region, or BR when it is nil.
func NewService(deps access.Deps, phones *phone.Normalizer) *Service {
	if phones == nil {
		phones = phone.NewNormalizer(phone.DefaultRegion)
	}
	return &Service{Deps: deps.WithDefaults(), phones: phones}
}

func (s *Service) observe(op string, start time.Time, errp *error) {
	s.Metrics.RecordOperation("lead", op, start, *errp)
}

// Create stores a new lead. A referenced ICP must belong to the caller.
func (s *Service) Create(ctx context.Context, req models.CreateLeadRequest) (lead *models.Lead, err error) {
	defer s.observe("create", time.Now(), &err)

	user, err := s.Auth.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	lead, err = s.build(user.ID, req)
	if err != nil {
		return nil, err
	}

	err = s.Store.WithTx(ctx, func(tx *store.Store) error {
		if lead.ICPID != nil {
			if _, err := access.OwnedICP(ctx, tx, user.ID, *lead.ICPID); err != nil {
				return err
			}
		}
		return tx.InsertLead(ctx, lead)
	})
	if err != nil {
		return nil, err
	}
	return lead, nil
}

// CreateMany inserts a batch of leads. Every referenced ICP is checked
// once up front and any failure there aborts the call; after that each
// row succeeds or fails on its own.
func (s *Service) CreateMany(ctx context.Context, reqs []models.CreateLeadRequest) (res *models.CreateManyResult, err error) {
	defer s.observe("create_many", time.Now(), &err)

	user, err := s.Auth.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	checked := make(map[string]bool)
	for _, req := range reqs {
		icpID := validation.CleanOptional(req.ICPID)
		if icpID == nil || checked[*icpID] {
			continue
		}
		if _, err := access.OwnedICP(ctx, s.Store, user.ID, *icpID); err != nil {
			return nil, err
		}
		checked[*icpID] = true
	}

	res = &models.CreateManyResult{CreatedIDs: []string{}, Errors: []models.BatchError{}}
	for i, req := range reqs {
		lead, err := s.build(user.ID, req)
		if err == nil {
			err = s.Store.WithTx(ctx, func(tx *store.Store) error {
				if lead.ICPID != nil {
					if _, err := access.OwnedICP(ctx, tx, user.ID, *lead.ICPID); err != nil {
						return err
					}
				}
				return tx.InsertLead(ctx, lead)
			})
		}
		if err != nil {
			res.Errors = append(res.Errors, models.BatchError{Index: i, Message: batchMessage(err)})
			continue
		}
		res.CreatedIDs = append(res.CreatedIDs, lead.ID)
	}
	res.Created = len(res.CreatedIDs)
	res.Failed = len(res.Errors)

	s.Log.Info("lead batch processed", "owner_id", user.ID, "created", res.Created, "failed", res.Failed)
	return res, nil
}

// Get returns the lead with the given id, or nil when it does not exist
func (s *Service) Get(ctx context.Context, id string) (lead *models.Lead, err error) {
	defer s.observe("get", time.Now(), &err)

	user, err := s.Auth.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	lead, err = s.Store.GetLead(ctx, id)
	if err != nil || lead == nil {
		return nil, err
	}
	if err := access.CheckOwner("lead", lead.OwnerID, user.ID); err != nil {
		return nil, err
	}
	return lead, nil
}

// Update applies a partial update. Optional fields set to "" are cleared.
func (s *Service) Update(ctx context.Context, id string, req models.UpdateLeadRequest) (lead *models.Lead, err error) {
	defer s.observe("update", time.Now(), &err)

	user, err := s.Auth.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	lead, err = access.OwnedLead(ctx, s.Store, user.ID, id)
	if err != nil {
		return nil, err
	}

	if req.CompanyName != nil {
		name := validation.Clean(*req.CompanyName)
		if err := validation.Var("company_name", name, "required,max=200"); err != nil {
			return nil, err
		}
		lead.CompanyName = name
	}
	if req.Source != nil {
		if !req.Source.Valid() {
			return nil, domain.NewValidationError("Origem de lead inválida")
		}
		lead.Source = *req.Source
	}

	optional := []struct {
		name string
		tag  string
		in   *string
		out  **string
	}{
		{"contact_name", "max=200", req.ContactName, &lead.ContactName},
		{"email", "email", req.Email, &lead.Email},
		{"website", "url", req.Website, &lead.Website},
		{"title", "max=200", req.Title, &lead.Title},
		{"location", "max=200", req.Location, &lead.Location},
		{"notes", "max=5000", req.Notes, &lead.Notes},
	}
	for _, f := range optional {
		if f.in == nil {
			continue
		}
		v := validation.CleanOptional(f.in)
		if v != nil {
			if err := validation.Var(f.name, *v, f.tag); err != nil {
				return nil, err
			}
		}
		*f.out = v
	}
	if req.Phone != nil {
		lead.Phone, err = s.normalizePhone(validation.CleanOptional(req.Phone))
		if err != nil {
			return nil, err
		}
	}

	if err := s.Store.UpdateLead(ctx, lead); err != nil {
		return nil, err
	}
	return lead, nil
}

// UpdateStatus moves the lead to status
func (s *Service) UpdateStatus(ctx context.Context, id string, status models.LeadStatus) (lead *models.Lead, err error) {
	defer s.observe("update_status", time.Now(), &err)

	user, err := s.Auth.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, errInvalidStatus
	}
	lead, err = access.OwnedLead(ctx, s.Store, user.ID, id)
	if err != nil {
		return nil, err
	}

	lead.Status = status
	if err := s.Store.UpdateLead(ctx, lead); err != nil {
		return nil, err
	}
	return lead, nil
}

// Delete removes the lead together with its reports and emails
func (s *Service) Delete(ctx context.Context, id string) (err error) {
	defer s.observe("delete", time.Now(), &err)

	user, err := s.Auth.Authenticate(ctx)
	if err != nil {
		return err
	}

	var reports, emails int64
	err = s.Store.WithTx(ctx, func(tx *store.Store) error {
		lead, err := access.OwnedLead(ctx, tx, user.ID, id)
		if err != nil {
			return err
		}
		if reports, err = tx.DeleteReportsByLead(ctx, lead.ID); err != nil {
			return err
		}
		if emails, err = tx.DeleteEmailsByLead(ctx, lead.ID); err != nil {
			return err
		}
		return tx.DeleteLead(ctx, lead.ID)
	})
	if err != nil {
		return err
	}

	s.Log.Info("lead deleted", "lead_id", id, "reports", reports, "emails", emails)
	return nil
}

// build validates req and turns it into a lead row for owner
func (s *Service) build(ownerID string, req models.CreateLeadRequest) (*models.Lead, error) {
	req.CompanyName = validation.Clean(req.CompanyName)
	req.ContactName = validation.Clean(req.ContactName)
	req.Email = validation.Clean(req.Email)
	req.Phone = validation.Clean(req.Phone)
	req.Website = validation.Clean(req.Website)
	req.Title = validation.Clean(req.Title)
	req.Location = validation.Clean(req.Location)
	req.Notes = validation.Clean(req.Notes)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = models.LeadStatusNew
	}
	phoneNumber, err := s.normalizePhone(validation.OptionalString(req.Phone))
	if err != nil {
		return nil, err
	}

	return &models.Lead{
		OwnerID:     ownerID,
		ICPID:       validation.CleanOptional(req.ICPID),
		CompanyName: req.CompanyName,
		ContactName: validation.OptionalString(req.ContactName),
		Email:       validation.OptionalString(req.Email),
		Phone:       phoneNumber,
		Website:     validation.OptionalString(req.Website),
		Title:       validation.OptionalString(req.Title),
		Location:    validation.OptionalString(req.Location),
		Notes:       validation.OptionalString(req.Notes),
		Source:      req.Source,
		Status:      status,
	}, nil
}

func (s *Service) normalizePhone(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	e164, err := s.phones.Normalize(*raw)
	if err != nil {
		return nil, domain.NewValidationError("Telefone inválido: " + *raw)
	}
	return &e164, nil
}

// batchMessage is the per-row message reported by CreateMany
func batchMessage(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return "Falha ao criar lead"
}

var errInvalidStatus = domain.NewValidationError("Status de lead inválido")
