package models

import "time"

// SearchJobStatus is the lifecycle status of a lead discovery job
type SearchJobStatus string

const (
	SearchJobPending   SearchJobStatus = "pending"
	SearchJobRunning   SearchJobStatus = "running"
	SearchJobCompleted SearchJobStatus = "completed"
	SearchJobFailed    SearchJobStatus = "failed"

	// Reserved. No operation moves a job into these states.
	SearchJobPaused    SearchJobStatus = "paused"
	SearchJobCancelled SearchJobStatus = "cancelled"
)

// Settable reports whether a progress update may set the job to s
func (s SearchJobStatus) Settable() bool {
	switch s {
	case SearchJobPending, SearchJobRunning, SearchJobCompleted, SearchJobFailed:
		return true
	}
	return false
}

// IsTerminal reports whether s ends the job
func (s SearchJobStatus) IsTerminal() bool {
	return s == SearchJobCompleted || s == SearchJobFailed || s == SearchJobCancelled
}

// ActiveSearchJobStatuses are the statuses of jobs still doing work
func ActiveSearchJobStatuses() []SearchJobStatus {
	return []SearchJobStatus{SearchJobPending, SearchJobRunning}
}

// SearchJob tracks a long-running lead discovery task for one ICP
type SearchJob struct {
	ID           string          `json:"id"`
	OwnerID      string          `json:"owner_id"`
	ICPID        string          `json:"icp_id"`
	Status       SearchJobStatus `json:"status"`
	Progress     int             `json:"progress"`
	TotalLeads   *int            `json:"total_leads,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// UpdateProgressRequest sets status and/or progress independently
type UpdateProgressRequest struct {
	Status   *SearchJobStatus `json:"status,omitempty"`
	Progress *int             `json:"progress,omitempty"`
}
