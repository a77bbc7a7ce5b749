package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/Web-Star-Studio/noturno-kimi/pkg/models"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/pagination"
)

var emailColumns = []string{colID, "lead_id", "subject", "body", "status", "sent_at", "error_message", colCreatedAt, colUpdatedAt}

func scanEmail(sc scanner) (*models.Email, error) {
	var e models.Email
	var status string
	var sentAt sql.NullInt64
	var errMsg sql.NullString
	var created, updated int64
	if err := sc.Scan(&e.ID, &e.LeadID, &e.Subject, &e.Body, &status, &sentAt, &errMsg, &created, &updated); err != nil {
		return nil, fmt.Errorf("failed to scan email: %w", err)
	}
	e.Status = models.EmailStatus(status)
	e.SentAt = timePtr(sentAt)
	e.ErrorMessage = stringPtr(errMsg)
	e.CreatedAt = fromNanos(created)
	e.UpdatedAt = fromNanos(updated)
	return &e, nil
}

// EmailFilter selects the index an email scan runs on. Empty fields are
// ignored; with both empty the scan covers every email.
type EmailFilter struct {
	LeadID string
	Status models.EmailStatus
}

func (f EmailFilter) predicates() []*entsql.Predicate {
	var preds []*entsql.Predicate
	if f.LeadID != "" {
		preds = append(preds, entsql.EQ("lead_id", f.LeadID))
	}
	if f.Status != "" {
		preds = append(preds, entsql.EQ("status", string(f.Status)))
	}
	return preds
}

// GetEmail returns the email with the given id, or nil
func (s *Store) GetEmail(ctx context.Context, id string) (*models.Email, error) {
	sel := s.selectFrom(tableEmails, emailColumns...).Where(entsql.EQ(colID, id))
	return queryFirst(ctx, s, sel, scanEmail)
}

// ScanEmails returns up to n emails matching f after the given position
func (s *Store) ScanEmails(ctx context.Context, f EmailFilter, after *pagination.Position, n int) ([]*models.Email, error) {
	return queryAll(ctx, s, s.page(tableEmails, emailColumns, f.predicates(), after, n), scanEmail)
}

// CountEmailsByLead returns how many emails reference the lead
func (s *Store) CountEmailsByLead(ctx context.Context, leadID string) (int, error) {
	return s.count(ctx, tableEmails, entsql.EQ("lead_id", leadID))
}

// InsertEmail stores e, assigning its id and timestamps
func (s *Store) InsertEmail(ctx context.Context, e *models.Email) error {
	now := s.clock.next()
	if e.ID == "" {
		e.ID = newID()
	}
	query, args := s.builder().Insert(tableEmails).
		Columns(emailColumns...).
		Values(e.ID, e.LeadID, e.Subject, e.Body, string(e.Status), nanosOrNil(e.SentAt), nullable(e.ErrorMessage), now, now).
		Query()
	if _, err := s.exec(ctx, query, args); err != nil {
		return fmt.Errorf("failed to insert email: %w", err)
	}
	e.CreatedAt = fromNanos(now)
	e.UpdatedAt = e.CreatedAt
	return nil
}

// UpdateEmail writes the mutable fields of e
func (s *Store) UpdateEmail(ctx context.Context, e *models.Email) error {
	now := s.clock.next()
	query, args := s.builder().Update(tableEmails).
		Set("subject", e.Subject).
		Set("body", e.Body).
		Set("status", string(e.Status)).
		Set("sent_at", nanosOrNil(e.SentAt)).
		Set("error_message", nullable(e.ErrorMessage)).
		Set(colUpdatedAt, now).
		Where(entsql.EQ(colID, e.ID)).
		Query()
	if _, err := s.exec(ctx, query, args); err != nil {
		return fmt.Errorf("failed to update email: %w", err)
	}
	e.UpdatedAt = fromNanos(now)
	return nil
}

// MarkEmailSent moves an email to sent unless it already is. It reports
// false when another writer got there first.
func (s *Store) MarkEmailSent(ctx context.Context, id string, sentAt time.Time) (bool, error) {
	query, args := s.builder().Update(tableEmails).
		Set("status", string(models.EmailStatusSent)).
		Set("sent_at", sentAt.UnixNano()).
		Set("error_message", nil).
		Set(colUpdatedAt, s.clock.next()).
		Where(entsql.And(
			entsql.EQ(colID, id),
			entsql.NEQ("status", string(models.EmailStatusSent)),
		)).
		Query()
	n, err := s.exec(ctx, query, args)
	if err != nil {
		return false, fmt.Errorf("failed to mark email sent: %w", err)
	}
	return n == 1, nil
}

// SetEmailError records the last delivery failure of an email that has
// not been sent
func (s *Store) SetEmailError(ctx context.Context, id, message string) (bool, error) {
	query, args := s.builder().Update(tableEmails).
		Set("error_message", message).
		Set(colUpdatedAt, s.clock.next()).
		Where(entsql.And(
			entsql.EQ(colID, id),
			entsql.NEQ("status", string(models.EmailStatusSent)),
		)).
		Query()
	n, err := s.exec(ctx, query, args)
	if err != nil {
		return false, fmt.Errorf("failed to record email error: %w", err)
	}
	return n == 1, nil
}

// DeleteEmail removes an email row
func (s *Store) DeleteEmail(ctx context.Context, id string) error {
	query, args := s.builder().Delete(tableEmails).Where(entsql.EQ(colID, id)).Query()
	if _, err := s.exec(ctx, query, args); err != nil {
		return fmt.Errorf("failed to delete email: %w", err)
	}
	return nil
}

// DeleteEmailsByLead removes every email of a lead, sent ones included
func (s *Store) DeleteEmailsByLead(ctx context.Context, leadID string) (int64, error) {
	query, args := s.builder().Delete(tableEmails).Where(entsql.EQ("lead_id", leadID)).Query()
	n, err := s.exec(ctx, query, args)
	if err != nil {
		return 0, fmt.Errorf("failed to delete emails: %w", err)
	}
	return n, nil
}
