// Package icps manages ideal customer profiles and keeps exactly one of
// them flagged as the owner's default.
package icps

import (
	"context"
	"time"

	"github.com/Web-Star-Studio/noturno-kimi/pkg/access"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/domain"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/models"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/store"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/validation"
)

// Service handles ICP operations for the calling user
type Service struct {
	access.Deps
}

// NewService creates a new ICP service
func NewService(deps access.Deps) *Service {
	return &Service{Deps: deps.WithDefaults()}
}

func (s *Service) observe(op string, start time.Time, errp *error) {
	s.Metrics.RecordOperation("icp", op, start, *errp)
}

// Create stores a new ICP. The owner's first ICP, or one created with
// IsDefault, becomes the default.
func (s *Service) Create(ctx context.Context, req models.CreateICPRequest) (icp *models.ICP, err error) {
	defer s.observe("create", time.Now(), &err)

	user, err := s.Auth.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	req.Name = validation.Clean(req.Name)
	req.Niche = validation.Clean(req.Niche)
	req.Region = validation.Clean(req.Region)
	req.Keywords = validation.CleanKeywords(req.Keywords)
	if len(req.Keywords) == 0 {
		return nil, errNoKeywords
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	icp = &models.ICP{
		OwnerID:  user.ID,
		Name:     req.Name,
		Niche:    req.Niche,
		Region:   req.Region,
		Keywords: req.Keywords,
	}
	err = s.Store.WithTx(ctx, func(tx *store.Store) error {
		count, err := tx.CountICPs(ctx, user.ID)
		if err != nil {
			return err
		}
		icp.IsDefault = req.IsDefault || count == 0
		if icp.IsDefault {
			if _, err := tx.ClearDefaultICPs(ctx, user.ID, ""); err != nil {
				return err
			}
		}
		if err := tx.InsertICP(ctx, icp); err != nil {
			return err
		}
		return s.checkDefault(ctx, tx, user.ID)
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("icp created", "icp_id", icp.ID, "owner_id", user.ID, "is_default", icp.IsDefault)
	return icp, nil
}

// Get returns the ICP with the given id, or nil when it does not exist
func (s *Service) Get(ctx context.Context, id string) (icp *models.ICP, err error) {
	defer s.observe("get", time.Now(), &err)

	user, err := s.Auth.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	icp, err = s.Store.GetICP(ctx, id)
	if err != nil || icp == nil {
		return nil, err
	}
	if err := access.CheckOwner("ICP", icp.OwnerID, user.ID); err != nil {
		return nil, err
	}
	return icp, nil
}

// GetDefault returns the caller's default ICP, or nil when they have none
func (s *Service) GetDefault(ctx context.Context) (icp *models.ICP, err error) {
	defer s.observe("get_default", time.Now(), &err)

	user, err := s.Auth.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	return s.Store.GetDefaultICP(ctx, user.ID)
}

// List returns every ICP of the caller in creation order
func (s *Service) List(ctx context.Context) (icps []*models.ICP, err error) {
	defer s.observe("list", time.Now(), &err)

	user, err := s.Auth.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	return s.Store.ListICPsByOwner(ctx, user.ID)
}

// Update changes the descriptive fields of an ICP. The default flag only
// moves through SetDefault.
func (s *Service) Update(ctx context.Context, id string, req models.UpdateICPRequest) (icp *models.ICP, err error) {
	defer s.observe("update", time.Now(), &err)

	user, err := s.Auth.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	icp, err = access.OwnedICP(ctx, s.Store, user.ID, id)
	if err != nil {
		return nil, err
	}

	fields := []struct {
		name string
		in   *string
		out  *string
	}{
		{"name", req.Name, &icp.Name},
		{"niche", req.Niche, &icp.Niche},
		{"region", req.Region, &icp.Region},
	}
	for _, f := range fields {
		if f.in == nil {
			continue
		}
		v := validation.Clean(*f.in)
		if err := validation.Var(f.name, v, "required,max=200"); err != nil {
			return nil, err
		}
		*f.out = v
	}
	if req.Keywords != nil {
		keywords := validation.CleanKeywords(req.Keywords)
		if len(keywords) == 0 {
			return nil, errNoKeywords
		}
		if err := validation.Var("keywords", keywords, "max=50,dive,max=100"); err != nil {
			return nil, err
		}
		icp.Keywords = keywords
	}

	if err := s.Store.UpdateICP(ctx, icp); err != nil {
		return nil, err
	}
	return icp, nil
}

var errNoKeywords = domain.NewValidationError("Pelo menos uma palavra-chave é obrigatória")
