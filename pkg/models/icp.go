package models

import "time"

// ICP is an ideal customer profile owned by a user
type ICP struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Niche     string    `json:"niche"`
	Region    string    `json:"region"`
	Keywords  []string  `json:"keywords"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateICPRequest represents a request to create an ICP
type CreateICPRequest struct {
	Name      string   `json:"name" validate:"required,max=200"`
	Niche     string   `json:"niche" validate:"required,max=200"`
	Region    string   `json:"region" validate:"required,max=200"`
	Keywords  []string `json:"keywords" validate:"required,min=1,max=50,dive,max=100"`
	IsDefault bool     `json:"is_default"`
}

// UpdateICPRequest represents a partial ICP update. Nil fields are left
// untouched.
type UpdateICPRequest struct {
	Name     *string  `json:"name,omitempty"`
	Niche    *string  `json:"niche,omitempty"`
	Region   *string  `json:"region,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}
