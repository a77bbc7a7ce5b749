package database

import (
	"context"
	"fmt"
)

// Tables carry no foreign keys. Referential integrity is checked by the
// services, which re-fetch parents and compare owners.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		external_id TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS icps (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		niche TEXT NOT NULL,
		region TEXT NOT NULL,
		keywords TEXT NOT NULL,
		is_default BOOLEAN NOT NULL DEFAULT FALSE,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS icps_owner_created ON icps (owner_id, created_at, id)`,
	`CREATE INDEX IF NOT EXISTS icps_owner_default ON icps (owner_id, is_default)`,
	`CREATE TABLE IF NOT EXISTS leads (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		icp_id TEXT,
		company_name TEXT NOT NULL,
		contact_name TEXT,
		email TEXT,
		phone TEXT,
		website TEXT,
		title TEXT,
		location TEXT,
		notes TEXT,
		source TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS leads_owner_created ON leads (owner_id, created_at, id)`,
	`CREATE INDEX IF NOT EXISTS leads_owner_icp_created ON leads (owner_id, icp_id, created_at, id)`,
	`CREATE INDEX IF NOT EXISTS leads_icp ON leads (icp_id)`,
	`CREATE INDEX IF NOT EXISTS leads_status_created ON leads (status, created_at, id)`,
	`CREATE TABLE IF NOT EXISTS pre_call_reports (
		id TEXT PRIMARY KEY,
		lead_id TEXT NOT NULL,
		content TEXT NOT NULL,
		summary TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS pre_call_reports_lead ON pre_call_reports (lead_id)`,
	`CREATE TABLE IF NOT EXISTS emails (
		id TEXT PRIMARY KEY,
		lead_id TEXT NOT NULL,
		subject TEXT NOT NULL,
		body TEXT NOT NULL,
		status TEXT NOT NULL,
		sent_at BIGINT,
		error_message TEXT,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS emails_lead_created ON emails (lead_id, created_at, id)`,
	`CREATE INDEX IF NOT EXISTS emails_status_created ON emails (status, created_at, id)`,
	`CREATE INDEX IF NOT EXISTS emails_created ON emails (created_at, id)`,
	`CREATE TABLE IF NOT EXISTS search_jobs (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		icp_id TEXT NOT NULL,
		status TEXT NOT NULL,
		progress INTEGER NOT NULL DEFAULT 0,
		total_leads INTEGER,
		error_message TEXT,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS search_jobs_owner_created ON search_jobs (owner_id, created_at, id)`,
	`CREATE INDEX IF NOT EXISTS search_jobs_icp ON search_jobs (icp_id)`,
	`CREATE INDEX IF NOT EXISTS search_jobs_status_updated ON search_jobs (status, updated_at)`,
}

// Migrate creates the tables and indexes. It is idempotent.
func (c *Client) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := c.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed creating schema resources: %w", err)
		}
	}
	return nil
}
