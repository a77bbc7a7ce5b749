package searchjobs

import (
	"context"
	"time"

	"github.com/Web-Star-Studio/noturno-kimi/pkg/domain"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/models"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/store"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/validation"
)

// StaleMessage is recorded on jobs failed by FailStale
const StaleMessage = "Job interrompido: sem atualização de progresso"

var (
	errNoStatus      = domain.NewValidationError("Status não pode estar vazio")
	errBadStatus     = domain.NewValidationError("Status de job inválido")
	errProgressRange = domain.NewValidationError("Progresso deve estar entre 0 e 100")
	errNegativeTotal = domain.NewValidationError("Total de leads não pode ser negativo")
	errNoMessage     = domain.NewValidationError("Mensagem de erro é obrigatória")
)

// UpdateProgress sets the status and/or progress of a job. Fields left
// nil are kept.
func (s *Service) UpdateProgress(ctx context.Context, id string, req models.UpdateProgressRequest) (job *models.SearchJob, err error) {
	defer s.observe("update_progress", time.Now(), &err)

	user, err := s.Auth.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	var status *models.SearchJobStatus
	if req.Status != nil {
		st := models.SearchJobStatus(validation.Clean(string(*req.Status)))
		if st == "" {
			return nil, errNoStatus
		}
		if !st.Settable() {
			return nil, errBadStatus
		}
		status = &st
	}
	if req.Progress != nil && (*req.Progress < 0 || *req.Progress > 100) {
		return nil, errProgressRange
	}

	return s.transition(ctx, user.ID, id, func(j *models.SearchJob) {
		if status != nil {
			j.Status = *status
		}
		if req.Progress != nil {
			j.Progress = *req.Progress
		}
	})
}

// Complete marks a job completed with the number of leads it found
func (s *Service) Complete(ctx context.Context, id string, totalLeads int) (job *models.SearchJob, err error) {
	defer s.observe("complete", time.Now(), &err)

	user, err := s.Auth.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	if totalLeads < 0 {
		return nil, errNegativeTotal
	}
	return s.transition(ctx, user.ID, id, func(j *models.SearchJob) {
		j.Status = models.SearchJobCompleted
		j.Progress = 100
		j.TotalLeads = &totalLeads
	})
}

// Fail marks a job failed with message
func (s *Service) Fail(ctx context.Context, id, message string) (job *models.SearchJob, err error) {
	defer s.observe("fail", time.Now(), &err)

	user, err := s.Auth.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	message = validation.Clean(message)
	if message == "" {
		return nil, errNoMessage
	}
	return s.transition(ctx, user.ID, id, func(j *models.SearchJob) {
		j.Status = models.SearchJobFailed
		j.ErrorMessage = &message
	})
}

func (s *Service) transition(ctx context.Context, callerID, id string, apply func(*models.SearchJob)) (*models.SearchJob, error) {
	var job *models.SearchJob
	err := s.Store.WithTx(ctx, func(tx *store.Store) error {
		j, err := s.owned(ctx, tx, callerID, id)
		if err != nil {
			return err
		}
		from := j.Status
		apply(j)
		if from.IsTerminal() {
			s.Log.Warn("search job updated after finishing", "job_id", j.ID, "from", from, "to", j.Status)
		}
		if err := tx.UpdateSearchJob(ctx, j); err != nil {
			return err
		}
		job = j
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// FailStale fails every running job whose progress has not been updated
// for olderThan. It runs without a caller and returns the number of jobs
// failed.
func (s *Service) FailStale(ctx context.Context, olderThan time.Duration) (n int, err error) {
	defer s.observe("fail_stale", time.Now(), &err)

	cutoff := s.Store.Now().Add(-olderThan)
	jobs, err := s.Store.ListStaleSearchJobs(ctx, models.SearchJobRunning, cutoff)
	if err != nil {
		return 0, err
	}
	for _, j := range jobs {
		ok, err := s.Store.FailStaleSearchJob(ctx, j.ID, cutoff, StaleMessage)
		if err != nil {
			return n, err
		}
		if ok {
			n++
			s.Log.Warn("stale search job failed", "job_id", j.ID, "owner_id", j.OwnerID, "last_update", j.UpdatedAt)
		}
	}
	s.Metrics.RecordSearchJobsReaped(n)
	return n, nil
}
