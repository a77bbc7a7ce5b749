package store

import (
	"context"
	"database/sql"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/Web-Star-Studio/noturno-kimi/pkg/models"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/pagination"
)

var leadColumns = []string{
	colID, "owner_id", "icp_id", "company_name", "contact_name", "email", "phone",
	"website", "title", "location", "notes", "source", "status", colCreatedAt, colUpdatedAt,
}

func scanLead(sc scanner) (*models.Lead, error) {
	var l models.Lead
	var icpID, contact, email, phone, website, title, location, notes sql.NullString
	var source, status string
	var created, updated int64
	if err := sc.Scan(&l.ID, &l.OwnerID, &icpID, &l.CompanyName, &contact, &email, &phone,
		&website, &title, &location, &notes, &source, &status, &created, &updated); err != nil {
		return nil, fmt.Errorf("failed to scan lead: %w", err)
	}
	l.ICPID = stringPtr(icpID)
	l.ContactName = stringPtr(contact)
	l.Email = stringPtr(email)
	l.Phone = stringPtr(phone)
	l.Website = stringPtr(website)
	l.Title = stringPtr(title)
	l.Location = stringPtr(location)
	l.Notes = stringPtr(notes)
	l.Source = models.LeadSource(source)
	l.Status = models.LeadStatus(status)
	l.CreatedAt = fromNanos(created)
	l.UpdatedAt = fromNanos(updated)
	return &l, nil
}

// LeadFilter selects the index a lead scan runs on. Empty fields are
// ignored.
type LeadFilter struct {
	OwnerID string
	ICPID   string
	Status  models.LeadStatus
}

func (f LeadFilter) predicates() []*entsql.Predicate {
	var preds []*entsql.Predicate
	if f.OwnerID != "" {
		preds = append(preds, entsql.EQ("owner_id", f.OwnerID))
	}
	if f.ICPID != "" {
		preds = append(preds, entsql.EQ("icp_id", f.ICPID))
	}
	if f.Status != "" {
		preds = append(preds, entsql.EQ("status", string(f.Status)))
	}
	return preds
}

// GetLead returns the lead with the given id, or nil
func (s *Store) GetLead(ctx context.Context, id string) (*models.Lead, error) {
	sel := s.selectFrom(tableLeads, leadColumns...).Where(entsql.EQ(colID, id))
	return queryFirst(ctx, s, sel, scanLead)
}

// ScanLeads returns up to n leads matching f after the given position
func (s *Store) ScanLeads(ctx context.Context, f LeadFilter, after *pagination.Position, n int) ([]*models.Lead, error) {
	return queryAll(ctx, s, s.page(tableLeads, leadColumns, f.predicates(), after, n), scanLead)
}

// LeadIDsByOwner returns the set of lead ids an owner holds
func (s *Store) LeadIDsByOwner(ctx context.Context, ownerID string) (map[string]struct{}, error) {
	sel := s.selectFrom(tableLeads, colID).Where(entsql.EQ("owner_id", ownerID))
	ids, err := queryAll(ctx, s, sel, func(sc scanner) (string, error) {
		var id string
		err := sc.Scan(&id)
		return id, err
	})
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// HasLeadsForICP reports whether any lead references the ICP
func (s *Store) HasLeadsForICP(ctx context.Context, icpID string) (bool, error) {
	return s.exists(ctx, tableLeads, entsql.EQ("icp_id", icpID))
}

// InsertLead stores l, assigning its id and timestamps
func (s *Store) InsertLead(ctx context.Context, l *models.Lead) error {
	now := s.clock.next()
	if l.ID == "" {
		l.ID = newID()
	}
	query, args := s.builder().Insert(tableLeads).
		Columns(leadColumns...).
		Values(l.ID, l.OwnerID, nullable(l.ICPID), l.CompanyName, nullable(l.ContactName),
			nullable(l.Email), nullable(l.Phone), nullable(l.Website), nullable(l.Title),
			nullable(l.Location), nullable(l.Notes), string(l.Source), string(l.Status), now, now).
		Query()
	if _, err := s.exec(ctx, query, args); err != nil {
		return fmt.Errorf("failed to insert lead: %w", err)
	}
	l.CreatedAt = fromNanos(now)
	l.UpdatedAt = l.CreatedAt
	return nil
}

// UpdateLead writes the mutable fields of l
func (s *Store) UpdateLead(ctx context.Context, l *models.Lead) error {
	now := s.clock.next()
	query, args := s.builder().Update(tableLeads).
		Set("company_name", l.CompanyName).
		Set("contact_name", nullable(l.ContactName)).
		Set("email", nullable(l.Email)).
		Set("phone", nullable(l.Phone)).
		Set("website", nullable(l.Website)).
		Set("title", nullable(l.Title)).
		Set("location", nullable(l.Location)).
		Set("notes", nullable(l.Notes)).
		Set("source", string(l.Source)).
		Set("status", string(l.Status)).
		Set(colUpdatedAt, now).
		Where(entsql.EQ(colID, l.ID)).
		Query()
	if _, err := s.exec(ctx, query, args); err != nil {
		return fmt.Errorf("failed to update lead: %w", err)
	}
	l.UpdatedAt = fromNanos(now)
	return nil
}

// DeleteLead removes a lead row only. Dependents are removed by the caller.
func (s *Store) DeleteLead(ctx context.Context, id string) error {
	query, args := s.builder().Delete(tableLeads).Where(entsql.EQ(colID, id)).Query()
	if _, err := s.exec(ctx, query, args); err != nil {
		return fmt.Errorf("failed to delete lead: %w", err)
	}
	return nil
}
