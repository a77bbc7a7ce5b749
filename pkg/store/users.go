package store

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/Web-Star-Studio/noturno-kimi/pkg/models"
)

var userColumns = []string{colID, "external_id", "email", "name", colCreatedAt, colUpdatedAt}

func scanUser(sc scanner) (*models.User, error) {
	var u models.User
	var created, updated int64
	if err := sc.Scan(&u.ID, &u.ExternalID, &u.Email, &u.Name, &created, &updated); err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	u.CreatedAt = fromNanos(created)
	u.UpdatedAt = fromNanos(updated)
	return &u, nil
}

// GetUser returns the user with the given id, or nil
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	sel := s.selectFrom(tableUsers, userColumns...).Where(entsql.EQ(colID, id))
	return queryFirst(ctx, s, sel, scanUser)
}

// GetUserByExternalID returns the user linked to an external identity, or nil
func (s *Store) GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	sel := s.selectFrom(tableUsers, userColumns...).Where(entsql.EQ("external_id", externalID))
	return queryFirst(ctx, s, sel, scanUser)
}

// InsertUser stores u, assigning its id and timestamps
func (s *Store) InsertUser(ctx context.Context, u *models.User) error {
	now := s.clock.next()
	if u.ID == "" {
		u.ID = newID()
	}
	query, args := s.builder().Insert(tableUsers).
		Columns(userColumns...).
		Values(u.ID, u.ExternalID, u.Email, u.Name, now, now).
		Query()
	if _, err := s.exec(ctx, query, args); err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	u.CreatedAt = fromNanos(now)
	u.UpdatedAt = u.CreatedAt
	return nil
}

// UpdateUser writes the mutable profile fields of u
func (s *Store) UpdateUser(ctx context.Context, u *models.User) error {
	now := s.clock.next()
	query, args := s.builder().Update(tableUsers).
		Set("email", u.Email).
		Set("name", u.Name).
		Set(colUpdatedAt, now).
		Where(entsql.EQ(colID, u.ID)).
		Query()
	if _, err := s.exec(ctx, query, args); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	u.UpdatedAt = fromNanos(now)
	return nil
}

// DeleteUserByExternalID removes the user linked to externalID and reports
// whether a row existed
func (s *Store) DeleteUserByExternalID(ctx context.Context, externalID string) (bool, error) {
	query, args := s.builder().Delete(tableUsers).Where(entsql.EQ("external_id", externalID)).Query()
	n, err := s.exec(ctx, query, args)
	if err != nil {
		return false, fmt.Errorf("failed to delete user: %w", err)
	}
	return n > 0, nil
}
