// Package searchjobs tracks long-running lead discovery jobs and their
// progress.
package searchjobs

import (
	"context"
	"time"

	"github.com/Web-Star-Studio/noturno-kimi/pkg/access"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/domain"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/models"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/pagination"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/store"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/validation"
)

// Service handles search job operations
type Service struct {
	access.Deps
}

// NewService creates a new search job service
func NewService(deps access.Deps) *Service {
	return &Service{Deps: deps.WithDefaults()}
}

func (s *Service) observe(op string, start time.Time, errp *error) {
	s.Metrics.RecordOperation("search_job", op, start, *errp)
}

// Create starts a pending job for one of the caller's ICPs
func (s *Service) Create(ctx context.Context, icpID string) (job *models.SearchJob, err error) {
	defer s.observe("create", time.Now(), &err)

	user, err := s.Auth.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	job = &models.SearchJob{OwnerID: user.ID, ICPID: validation.Clean(icpID), Status: models.SearchJobPending}
	err = s.Store.WithTx(ctx, func(tx *store.Store) error {
		if _, err := access.OwnedICP(ctx, tx, user.ID, job.ICPID); err != nil {
			return err
		}
		return tx.InsertSearchJob(ctx, job)
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("search job created", "job_id", job.ID, "icp_id", job.ICPID)
	return job, nil
}

// Get returns the job with the given id, or nil when it does not exist
func (s *Service) Get(ctx context.Context, id string) (job *models.SearchJob, err error) {
	defer s.observe("get", time.Now(), &err)

	user, err := s.Auth.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	job, err = s.Store.GetSearchJob(ctx, id)
	if err != nil || job == nil {
		return nil, err
	}
	if err := access.CheckOwner("job", job.OwnerID, user.ID); err != nil {
		return nil, err
	}
	return job, nil
}

// Delete removes a job of the caller
func (s *Service) Delete(ctx context.Context, id string) (err error) {
	defer s.observe("delete", time.Now(), &err)

	user, err := s.Auth.Authenticate(ctx)
	if err != nil {
		return err
	}
	job, err := s.owned(ctx, s.Store, user.ID, id)
	if err != nil {
		return err
	}
	return s.Store.DeleteSearchJob(ctx, job.ID)
}

func (s *Service) owned(ctx context.Context, st *store.Store, callerID, id string) (*models.SearchJob, error) {
	job, err := st.GetSearchJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, domain.NewNotFoundError("Job")
	}
	if err := access.CheckOwner("job", job.OwnerID, callerID); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *Service) scan(key string, f store.SearchJobFilter, keep func(*models.SearchJob) bool) pagination.Scan[*models.SearchJob] {
	return pagination.Scan[*models.SearchJob]{
		Key: key,
		Fetch: func(ctx context.Context, after *pagination.Position, n int) ([]*models.SearchJob, error) {
			return s.Store.ScanSearchJobs(ctx, f, after, n)
		},
		Position: func(j *models.SearchJob) pagination.Position { return store.Position(j.CreatedAt, j.ID) },
		Keep:     keep,
	}
}

// List pages through the caller's jobs in creation order
func (s *Service) List(ctx context.Context, req pagination.Request) (page *pagination.Page[*models.SearchJob], err error) {
	defer s.observe("list", time.Now(), &err)

	user, err := s.Auth.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	return pagination.Paginate(ctx, s.scan("jobs:owner:"+user.ID, store.SearchJobFilter{OwnerID: user.ID}, nil), req)
}

// ListActive pages through the caller's pending and running jobs. The
// owner index is scanned and finished jobs are filtered out.
func (s *Service) ListActive(ctx context.Context, req pagination.Request) (page *pagination.Page[*models.SearchJob], err error) {
	defer s.observe("list_active", time.Now(), &err)

	user, err := s.Auth.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	active := func(j *models.SearchJob) bool {
		for _, st := range models.ActiveSearchJobStatuses() {
			if j.Status == st {
				return true
			}
		}
		return false
	}
	return pagination.Paginate(ctx, s.scan("jobs:active:"+user.ID, store.SearchJobFilter{OwnerID: user.ID}, active), req)
}
