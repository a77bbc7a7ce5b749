package models

import "time"

// PreCallReport is a research brief tied to exactly one lead
type PreCallReport struct {
	ID        string    `json:"id"`
	LeadID    string    `json:"lead_id"`
	Content   string    `json:"content"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateReportRequest represents a request to store a pre-call report
type CreateReportRequest struct {
	LeadID  string `json:"lead_id" validate:"required"`
	Content string `json:"content" validate:"required"`
	Summary string `json:"summary" validate:"required,max=2000"`
}

// ReportGeneration is the soft result of an AI report generation
type ReportGeneration struct {
	Success  bool   `json:"success"`
	ReportID string `json:"report_id,omitempty"`
	Error    string `json:"error,omitempty"`
}
