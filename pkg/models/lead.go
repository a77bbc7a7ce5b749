package models

import "time"

// LeadSource tells where a lead came from
type LeadSource string

const (
	LeadSourceManual LeadSource = "manual"
	LeadSourceAPI    LeadSource = "api"
	LeadSourceImport LeadSource = "import"
	LeadSourceSearch LeadSource = "search"
)

// LeadStatus is the sales status of a lead
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "novo"
	LeadStatusQualified LeadStatus = "qualificado"
	LeadStatusDiscarded LeadStatus = "descartado"
	LeadStatusInContact LeadStatus = "em_contato"
	LeadStatusConverted LeadStatus = "convertido"
)

// LeadStatuses returns every valid lead status
func LeadStatuses() []LeadStatus {
	return []LeadStatus{LeadStatusNew, LeadStatusQualified, LeadStatusDiscarded, LeadStatusInContact, LeadStatusConverted}
}

// Valid reports whether s is a known lead status
func (s LeadStatus) Valid() bool {
	for _, v := range LeadStatuses() {
		if s == v {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known lead source
func (s LeadSource) Valid() bool {
	switch s {
	case LeadSourceManual, LeadSourceAPI, LeadSourceImport, LeadSourceSearch:
		return true
	}
	return false
}

// Lead is a prospective company or contact owned by a user
type Lead struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id"`
	ICPID       *string    `json:"icp_id,omitempty"`
	CompanyName string     `json:"company_name"`
	ContactName *string    `json:"contact_name,omitempty"`
	Email       *string    `json:"email,omitempty"`
	Phone       *string    `json:"phone,omitempty"`
	Website     *string    `json:"website,omitempty"`
	Title       *string    `json:"title,omitempty"`
	Location    *string    `json:"location,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
	Source      LeadSource `json:"source"`
	Status      LeadStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// HasEmail reports whether the lead carries a deliverable address
func (l *Lead) HasEmail() bool {
	return l.Email != nil && *l.Email != ""
}

// CreateLeadRequest represents a request to create a lead
type CreateLeadRequest struct {
	ICPID       *string    `json:"icp_id,omitempty"`
	CompanyName string     `json:"company_name" validate:"required,max=200"`
	ContactName string     `json:"contact_name,omitempty" validate:"max=200"`
	Email       string     `json:"email,omitempty" validate:"omitempty,email"`
	Phone       string     `json:"phone,omitempty" validate:"max=40"`
	Website     string     `json:"website,omitempty" validate:"omitempty,url"`
	Title       string     `json:"title,omitempty" validate:"max=200"`
	Location    string     `json:"location,omitempty" validate:"max=200"`
	Notes       string     `json:"notes,omitempty" validate:"max=5000"`
	Source      LeadSource `json:"source" validate:"required,oneof=manual api import search"`
	Status      LeadStatus `json:"status,omitempty" validate:"omitempty,oneof=novo qualificado descartado em_contato convertido"`
}

// UpdateLeadRequest represents a partial lead update. Nil fields are left
// untouched; optional fields set to "" are cleared.
type UpdateLeadRequest struct {
	CompanyName *string     `json:"company_name,omitempty"`
	ContactName *string     `json:"contact_name,omitempty"`
	Email       *string     `json:"email,omitempty"`
	Phone       *string     `json:"phone,omitempty"`
	Website     *string     `json:"website,omitempty"`
	Title       *string     `json:"title,omitempty"`
	Location    *string     `json:"location,omitempty"`
	Notes       *string     `json:"notes,omitempty"`
	Source      *LeadSource `json:"source,omitempty"`
}

// BatchError is a per-row failure of a batch operation
type BatchError struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// CreateManyResult is the outcome of a lead batch insert
type CreateManyResult struct {
	CreatedIDs []string     `json:"created_ids"`
	Errors     []BatchError `json:"errors"`
	Created    int          `json:"created"`
	Failed     int          `json:"failed"`
}
