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

var searchJobColumns = []string{colID, "owner_id", "icp_id", "status", "progress", "total_leads", "error_message", colCreatedAt, colUpdatedAt}

func scanSearchJob(sc scanner) (*models.SearchJob, error) {
	var j models.SearchJob
	var status string
	var total sql.NullInt64
	var errMsg sql.NullString
	var created, updated int64
	if err := sc.Scan(&j.ID, &j.OwnerID, &j.ICPID, &status, &j.Progress, &total, &errMsg, &created, &updated); err != nil {
		return nil, fmt.Errorf("failed to scan search job: %w", err)
	}
	j.Status = models.SearchJobStatus(status)
	if total.Valid {
		n := int(total.Int64)
		j.TotalLeads = &n
	}
	j.ErrorMessage = stringPtr(errMsg)
	j.CreatedAt = fromNanos(created)
	j.UpdatedAt = fromNanos(updated)
	return &j, nil
}

func intOrNil(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

// SearchJobFilter selects search jobs by owner and status. Empty fields
// are ignored.
type SearchJobFilter struct {
	OwnerID  string
	Statuses []models.SearchJobStatus
}

func (f SearchJobFilter) predicates() []*entsql.Predicate {
	var preds []*entsql.Predicate
	if f.OwnerID != "" {
		preds = append(preds, entsql.EQ("owner_id", f.OwnerID))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]any, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		preds = append(preds, entsql.In("status", statuses...))
	}
	return preds
}

// GetSearchJob returns the search job with the given id, or nil
func (s *Store) GetSearchJob(ctx context.Context, id string) (*models.SearchJob, error) {
	sel := s.selectFrom(tableSearchJobs, searchJobColumns...).Where(entsql.EQ(colID, id))
	return queryFirst(ctx, s, sel, scanSearchJob)
}

// ScanSearchJobs returns up to n jobs matching f after the given position
func (s *Store) ScanSearchJobs(ctx context.Context, f SearchJobFilter, after *pagination.Position, n int) ([]*models.SearchJob, error) {
	return queryAll(ctx, s, s.page(tableSearchJobs, searchJobColumns, f.predicates(), after, n), scanSearchJob)
}

// HasSearchJobsForICP reports whether any search job references the ICP
func (s *Store) HasSearchJobsForICP(ctx context.Context, icpID string) (bool, error) {
	return s.exists(ctx, tableSearchJobs, entsql.EQ("icp_id", icpID))
}

// ListStaleSearchJobs returns jobs in status whose last update is older
// than before
func (s *Store) ListStaleSearchJobs(ctx context.Context, status models.SearchJobStatus, before time.Time) ([]*models.SearchJob, error) {
	sel := s.selectFrom(tableSearchJobs, searchJobColumns...).
		Where(entsql.And(
			entsql.EQ("status", string(status)),
			entsql.LT(colUpdatedAt, before.UnixNano()),
		)).
		OrderBy(entsql.Asc(colUpdatedAt))
	return queryAll(ctx, s, sel, scanSearchJob)
}

// InsertSearchJob stores j, assigning its id and timestamps
func (s *Store) InsertSearchJob(ctx context.Context, j *models.SearchJob) error {
	now := s.clock.next()
	if j.ID == "" {
		j.ID = newID()
	}
	query, args := s.builder().Insert(tableSearchJobs).
		Columns(searchJobColumns...).
		Values(j.ID, j.OwnerID, j.ICPID, string(j.Status), j.Progress, intOrNil(j.TotalLeads), nullable(j.ErrorMessage), now, now).
		Query()
	if _, err := s.exec(ctx, query, args); err != nil {
		return fmt.Errorf("failed to insert search job: %w", err)
	}
	j.CreatedAt = fromNanos(now)
	j.UpdatedAt = j.CreatedAt
	return nil
}

// UpdateSearchJob writes the mutable fields of j
func (s *Store) UpdateSearchJob(ctx context.Context, j *models.SearchJob) error {
	now := s.clock.next()
	query, args := s.builder().Update(tableSearchJobs).
		Set("status", string(j.Status)).
		Set("progress", j.Progress).
		Set("total_leads", intOrNil(j.TotalLeads)).
		Set("error_message", nullable(j.ErrorMessage)).
		Set(colUpdatedAt, now).
		Where(entsql.EQ(colID, j.ID)).
		Query()
	if _, err := s.exec(ctx, query, args); err != nil {
		return fmt.Errorf("failed to update search job: %w", err)
	}
	j.UpdatedAt = fromNanos(now)
	return nil
}

// FailStaleSearchJob fails the job if it is still running and was last
// updated before the cutoff. It reports whether the row changed.
func (s *Store) FailStaleSearchJob(ctx context.Context, id string, before time.Time, message string) (bool, error) {
	query, args := s.builder().Update(tableSearchJobs).
		Set("status", string(models.SearchJobFailed)).
		Set("error_message", message).
		Set(colUpdatedAt, s.clock.next()).
		Where(entsql.And(
			entsql.EQ(colID, id),
			entsql.EQ("status", string(models.SearchJobRunning)),
			entsql.LT(colUpdatedAt, before.UnixNano()),
		)).
		Query()
	n, err := s.exec(ctx, query, args)
	if err != nil {
		return false, fmt.Errorf("failed to fail stale search job: %w", err)
	}
	return n == 1, nil
}

// DeleteSearchJob removes a search job row
func (s *Store) DeleteSearchJob(ctx context.Context, id string) error {
	query, args := s.builder().Delete(tableSearchJobs).Where(entsql.EQ(colID, id)).Query()
	if _, err := s.exec(ctx, query, args); err != nil {
		return fmt.Errorf("failed to delete search job: %w", err)
	}
	return nil
}
