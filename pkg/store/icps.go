package store

import (
	"context"
	"encoding/json"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/Web-Star-Studio/noturno-kimi/pkg/models"
)

var icpColumns = []string{colID, "owner_id", "name", "niche", "region", "keywords", "is_default", colCreatedAt, colUpdatedAt}

func scanICP(sc scanner) (*models.ICP, error) {
	var icp models.ICP
	var keywords string
	var created, updated int64
	if err := sc.Scan(&icp.ID, &icp.OwnerID, &icp.Name, &icp.Niche, &icp.Region, &keywords, &icp.IsDefault, &created, &updated); err != nil {
		return nil, fmt.Errorf("failed to scan icp: %w", err)
	}
	if err := json.Unmarshal([]byte(keywords), &icp.Keywords); err != nil {
		return nil, fmt.Errorf("failed to decode icp keywords: %w", err)
	}
	icp.CreatedAt = fromNanos(created)
	icp.UpdatedAt = fromNanos(updated)
	return &icp, nil
}

func encodeKeywords(keywords []string) (string, error) {
	if keywords == nil {
		keywords = []string{}
	}
	raw, err := json.Marshal(keywords)
	if err != nil {
		return "", fmt.Errorf("failed to encode icp keywords: %w", err)
	}
	return string(raw), nil
}

// GetICP returns the ICP with the given id, or nil
func (s *Store) GetICP(ctx context.Context, id string) (*models.ICP, error) {
	sel := s.selectFrom(tableICPs, icpColumns...).Where(entsql.EQ(colID, id))
	return queryFirst(ctx, s, sel, scanICP)
}

// ListICPsByOwner returns every ICP of an owner in creation order
func (s *Store) ListICPsByOwner(ctx context.Context, ownerID string) ([]*models.ICP, error) {
	sel := s.selectFrom(tableICPs, icpColumns...).
		Where(entsql.EQ("owner_id", ownerID)).
		OrderBy(entsql.Asc(colCreatedAt), entsql.Asc(colID))
	return queryAll(ctx, s, sel, scanICP)
}

// GetDefaultICP returns the owner's first ICP flagged default, or nil
func (s *Store) GetDefaultICP(ctx context.Context, ownerID string) (*models.ICP, error) {
	sel := s.selectFrom(tableICPs, icpColumns...).
		Where(entsql.And(entsql.EQ("owner_id", ownerID), entsql.EQ("is_default", true))).
		OrderBy(entsql.Asc(colCreatedAt), entsql.Asc(colID))
	return queryFirst(ctx, s, sel, scanICP)
}

// CountICPs returns how many ICPs an owner has
func (s *Store) CountICPs(ctx context.Context, ownerID string) (int, error) {
	return s.count(ctx, tableICPs, entsql.EQ("owner_id", ownerID))
}

// CountDefaultICPs returns how many of the owner's ICPs are flagged default
func (s *Store) CountDefaultICPs(ctx context.Context, ownerID string) (int, error) {
	return s.count(ctx, tableICPs, entsql.And(entsql.EQ("owner_id", ownerID), entsql.EQ("is_default", true)))
}

// InsertICP stores icp, assigning its id and timestamps
func (s *Store) InsertICP(ctx context.Context, icp *models.ICP) error {
	keywords, err := encodeKeywords(icp.Keywords)
	if err != nil {
		return err
	}
	now := s.clock.next()
	if icp.ID == "" {
		icp.ID = newID()
	}
	query, args := s.builder().Insert(tableICPs).
		Columns(icpColumns...).
		Values(icp.ID, icp.OwnerID, icp.Name, icp.Niche, icp.Region, keywords, icp.IsDefault, now, now).
		Query()
	if _, err := s.exec(ctx, query, args); err != nil {
		return fmt.Errorf("failed to insert icp: %w", err)
	}
	icp.CreatedAt = fromNanos(now)
	icp.UpdatedAt = icp.CreatedAt
	return nil
}

// UpdateICP writes the descriptive fields of icp. The default flag is only
// changed through ClearDefaultICPs and SetICPDefault.
func (s *Store) UpdateICP(ctx context.Context, icp *models.ICP) error {
	keywords, err := encodeKeywords(icp.Keywords)
	if err != nil {
		return err
	}
	now := s.clock.next()
	query, args := s.builder().Update(tableICPs).
		Set("name", icp.Name).
		Set("niche", icp.Niche).
		Set("region", icp.Region).
		Set("keywords", keywords).
		Set(colUpdatedAt, now).
		Where(entsql.EQ(colID, icp.ID)).
		Query()
	if _, err := s.exec(ctx, query, args); err != nil {
		return fmt.Errorf("failed to update icp: %w", err)
	}
	icp.UpdatedAt = fromNanos(now)
	return nil
}

// ClearDefaultICPs unflags every default ICP of the owner except exceptID
// and returns how many rows changed
func (s *Store) ClearDefaultICPs(ctx context.Context, ownerID, exceptID string) (int64, error) {
	preds := []*entsql.Predicate{entsql.EQ("owner_id", ownerID), entsql.EQ("is_default", true)}
	if exceptID != "" {
		preds = append(preds, entsql.NEQ(colID, exceptID))
	}
	query, args := s.builder().Update(tableICPs).
		Set("is_default", false).
		Set(colUpdatedAt, s.clock.next()).
		Where(entsql.And(preds...)).
		Query()
	n, err := s.exec(ctx, query, args)
	if err != nil {
		return 0, fmt.Errorf("failed to clear default icps: %w", err)
	}
	return n, nil
}

// SetICPDefault sets the default flag of one ICP
func (s *Store) SetICPDefault(ctx context.Context, id string, isDefault bool) error {
	query, args := s.builder().Update(tableICPs).
		Set("is_default", isDefault).
		Set(colUpdatedAt, s.clock.next()).
		Where(entsql.EQ(colID, id)).
		Query()
	if _, err := s.exec(ctx, query, args); err != nil {
		return fmt.Errorf("failed to set icp default: %w", err)
	}
	return nil
}

// DeleteICP removes an ICP row
func (s *Store) DeleteICP(ctx context.Context, id string) error {
	query, args := s.builder().Delete(tableICPs).Where(entsql.EQ(colID, id)).Query()
	if _, err := s.exec(ctx, query, args); err != nil {
		return fmt.Errorf("failed to delete icp: %w", err)
	}
	return nil
}
