package leads

import (
	"context"
	"time"

	"github.com/Web-Star-Studio/noturno-kimi/pkg/access"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/models"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/pagination"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/store"
)

func leadPosition(l *models.Lead) pagination.Position {
	return store.Position(l.CreatedAt, l.ID)
}

func (s *Service) scan(key string, f store.LeadFilter, keep func(*models.Lead) bool) pagination.Scan[*models.Lead] {
	return pagination.Scan[*models.Lead]{
		Key: key,
		Fetch: func(ctx context.Context, after *pagination.Position, n int) ([]*models.Lead, error) {
			return s.Store.ScanLeads(ctx, f, after, n)
		},
		Position: leadPosition,
		Keep:     keep,
	}
}

// List pages through the caller's leads in creation order
func (s *Service) List(ctx context.Context, req pagination.Request) (page *pagination.Page[*models.Lead], err error) {
	defer s.observe("list", time.Now(), &err)

	user, err := s.Auth.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	return pagination.Paginate(ctx, s.scan("leads:owner:"+user.ID, store.LeadFilter{OwnerID: user.ID}, nil), req)
}

// ListByICP pages through the leads attached to one of the caller's ICPs
func (s *Service) ListByICP(ctx context.Context, icpID string, req pagination.Request) (page *pagination.Page[*models.Lead], err error) {
	defer s.observe("list_by_icp", time.Now(), &err)

	user, err := s.Auth.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	icp, err := access.OwnedICP(ctx, s.Store, user.ID, icpID)
	if err != nil {
		return nil, err
	}
	return pagination.Paginate(ctx, s.scan("leads:icp:"+icp.ID, store.LeadFilter{ICPID: icp.ID}, ownedBy(user.ID)), req)
}

// ListByStatus pages through the caller's leads in one status. The scan
// runs on the status index and drops other owners' rows.
func (s *Service) ListByStatus(ctx context.Context, status models.LeadStatus, req pagination.Request) (page *pagination.Page[*models.Lead], err error) {
	defer s.observe("list_by_status", time.Now(), &err)

	user, err := s.Auth.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, errInvalidStatus
	}
	key := "leads:status:" + string(status) + ":" + user.ID
	return pagination.Paginate(ctx, s.scan(key, store.LeadFilter{Status: status}, ownedBy(user.ID)), req)
}

func ownedBy(ownerID string) func(*models.Lead) bool {
	return func(l *models.Lead) bool { return l.OwnerID == ownerID }
}
