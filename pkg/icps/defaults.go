package icps

import (
	"context"
	"fmt"
	"time"

	"github.com/Web-Star-Studio/noturno-kimi/pkg/access"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/domain"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/models"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/store"
)

// SetDefault makes the ICP the caller's only default
func (s *Service) SetDefault(ctx context.Context, id string) (icp *models.ICP, err error) {
	defer s.observe("set_default", time.Now(), &err)

	user, err := s.Auth.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	err = s.Store.WithTx(ctx, func(tx *store.Store) error {
		found, err := access.OwnedICP(ctx, tx, user.ID, id)
		if err != nil {
			return err
		}
		icp = found
		cleared, err := tx.ClearDefaultICPs(ctx, user.ID, icp.ID)
		if err != nil {
			return err
		}
		if !icp.IsDefault {
			if err := tx.SetICPDefault(ctx, icp.ID, true); err != nil {
				return err
			}
			icp.IsDefault = true
		}
		s.Log.Debug("icp default moved", "icp_id", icp.ID, "cleared", cleared)
		return s.checkDefault(ctx, tx, user.ID)
	})
	if err != nil {
		return nil, err
	}
	return icp, nil
}

// Delete removes an ICP nothing references. When the default is removed
// the oldest remaining ICP inherits the flag.
func (s *Service) Delete(ctx context.Context, id string) (err error) {
	defer s.observe("delete", time.Now(), &err)

	user, err := s.Auth.Authenticate(ctx)
	if err != nil {
		return err
	}

	var promoted string
	err = s.Store.WithTx(ctx, func(tx *store.Store) error {
		promoted = ""
		icp, err := access.OwnedICP(ctx, tx, user.ID, id)
		if err != nil {
			return err
		}

		hasLeads, err := tx.HasLeadsForICP(ctx, icp.ID)
		if err != nil {
			return err
		}
		if hasLeads {
			return domain.NewConflictError("Não é possível excluir um ICP com leads associados")
		}
		hasJobs, err := tx.HasSearchJobsForICP(ctx, icp.ID)
		if err != nil {
			return err
		}
		if hasJobs {
			return domain.NewConflictError("Não é possível excluir um ICP com buscas associadas")
		}

		if err := tx.DeleteICP(ctx, icp.ID); err != nil {
			return err
		}
		if !icp.IsDefault {
			return nil
		}

		remaining, err := tx.ListICPsByOwner(ctx, user.ID)
		if err != nil {
			return err
		}
		if len(remaining) == 0 {
			return nil
		}
		promoted = remaining[0].ID
		if err := tx.SetICPDefault(ctx, promoted, true); err != nil {
			return err
		}
		return s.checkDefault(ctx, tx, user.ID)
	})
	if err != nil {
		return err
	}

	s.Log.Info("icp deleted", "icp_id", id, "owner_id", user.ID, "promoted", promoted)
	return nil
}

// checkDefault verifies, inside the writing transaction, that the owner
// has exactly one default ICP
func (s *Service) checkDefault(ctx context.Context, tx *store.Store, ownerID string) error {
	n, err := tx.CountDefaultICPs(ctx, ownerID)
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	verr := domain.NewInvariantViolation(fmt.Sprintf("Usuário possui %d ICPs padrão", n))
	s.Reporter.ReportInvariant(ctx, verr, map[string]string{"entity": "icp", "owner_id": ownerID})
	return verr
}
