package store

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/Web-Star-Studio/noturno-kimi/pkg/models"
)

var reportColumns = []string{colID, "lead_id", "content", "summary", colCreatedAt, colUpdatedAt}

func scanReport(sc scanner) (*models.PreCallReport, error) {
	var r models.PreCallReport
	var created, updated int64
	if err := sc.Scan(&r.ID, &r.LeadID, &r.Content, &r.Summary, &created, &updated); err != nil {
		return nil, fmt.Errorf("failed to scan pre-call report: %w", err)
	}
	r.CreatedAt = fromNanos(created)
	r.UpdatedAt = fromNanos(updated)
	return &r, nil
}

// GetReport returns the report with the given id, or nil
func (s *Store) GetReport(ctx context.Context, id string) (*models.PreCallReport, error) {
	sel := s.selectFrom(tableReports, reportColumns...).Where(entsql.EQ(colID, id))
	return queryFirst(ctx, s, sel, scanReport)
}

// GetReportByLead returns the report of a lead, or nil
func (s *Store) GetReportByLead(ctx context.Context, leadID string) (*models.PreCallReport, error) {
	sel := s.selectFrom(tableReports, reportColumns...).
		Where(entsql.EQ("lead_id", leadID)).
		OrderBy(entsql.Asc(colCreatedAt), entsql.Asc(colID))
	return queryFirst(ctx, s, sel, scanReport)
}

// CountReportsByLead returns how many reports reference the lead
func (s *Store) CountReportsByLead(ctx context.Context, leadID string) (int, error) {
	return s.count(ctx, tableReports, entsql.EQ("lead_id", leadID))
}

// InsertReport stores r, assigning its id and timestamps
func (s *Store) InsertReport(ctx context.Context, r *models.PreCallReport) error {
	now := s.clock.next()
	if r.ID == "" {
		r.ID = newID()
	}
	query, args := s.builder().Insert(tableReports).
		Columns(reportColumns...).
		Values(r.ID, r.LeadID, r.Content, r.Summary, now, now).
		Query()
	if _, err := s.exec(ctx, query, args); err != nil {
		return fmt.Errorf("failed to insert pre-call report: %w", err)
	}
	r.CreatedAt = fromNanos(now)
	r.UpdatedAt = r.CreatedAt
	return nil
}

// DeleteReportsByLead removes every report of a lead
func (s *Store) DeleteReportsByLead(ctx context.Context, leadID string) (int64, error) {
	query, args := s.builder().Delete(tableReports).Where(entsql.EQ("lead_id", leadID)).Query()
	n, err := s.exec(ctx, query, args)
	if err != nil {
		return 0, fmt.Errorf("failed to delete pre-call reports: %w", err)
	}
	return n, nil
}
