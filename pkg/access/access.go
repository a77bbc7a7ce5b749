// Package access holds the collaborators shared by the entity services and
// the ownership checks they all apply.
package access

import (
	"context"
	"fmt"

	"github.com/Web-Star-Studio/noturno-kimi/pkg/domain"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/errtrack"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/identity"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/logger"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/metrics"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/models"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/store"
)

// Deps are the collaborators of an entity service. Store and Auth are
// required; the rest default to no-ops.
type Deps struct {
	Store    *store.Store
	Auth     identity.Authenticator
	Log      logger.Logger
	Metrics  *metrics.Metrics
	Reporter errtrack.Reporter
}

// WithDefaults fills the optional collaborators
func (d Deps) WithDefaults() Deps {
	if d.Log == nil {
		d.Log = logger.Default()
	}
	if d.Reporter == nil {
		d.Reporter = errtrack.Nop()
	}
	return d
}

// CheckOwner fails with Forbidden when the caller does not own the row
func CheckOwner(what, ownerID, callerID string) error {
	if ownerID != callerID {
		return domain.NewForbiddenError(fmt.Sprintf("Você não tem permissão para acessar este %s", what))
	}
	return nil
}

// OwnedICP loads an ICP the caller must own
func OwnedICP(ctx context.Context, st *store.Store, callerID, icpID string) (*models.ICP, error) {
	icp, err := st.GetICP(ctx, icpID)
	if err != nil {
		return nil, err
	}
	if icp == nil {
		return nil, domain.NewNotFoundError("ICP")
	}
	if err := CheckOwner("ICP", icp.OwnerID, callerID); err != nil {
		return nil, err
	}
	return icp, nil
}

// OwnedLead loads a lead the caller must own
func OwnedLead(ctx context.Context, st *store.Store, callerID, leadID string) (*models.Lead, error) {
	lead, err := st.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if lead == nil {
		return nil, domain.NewNotFoundError("Lead")
	}
	if err := CheckOwner("lead", lead.OwnerID, callerID); err != nil {
		return nil, err
	}
	return lead, nil
}

// ParentLead loads the lead a transitively owned row points at. A missing
// parent means the cascade delete was bypassed, which is reported.
func (d Deps) ParentLead(ctx context.Context, st *store.Store, callerID, entity, rowID, leadID string) (*models.Lead, error) {
	lead, err := st.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if lead == nil {
		verr := domain.NewInvariantViolation(fmt.Sprintf("%s %s aponta para um lead inexistente", entity, rowID))
		d.Reporter.ReportInvariant(ctx, verr, map[string]string{"entity": entity, "row_id": rowID, "lead_id": leadID})
		d.Log.Error("orphaned row", "entity", entity, "row_id", rowID, "lead_id", leadID)
		return nil, verr
	}
	if err := CheckOwner(entity, lead.OwnerID, callerID); err != nil {
		return nil, err
	}
	return lead, nil
}
