package schema

import (
	"context"

	xerrors "github.com/spinvfx/spinfab/pkg/errors"

	"github.com/spinvfx/spinfab/pkg/conn/db/postgres/pool"
)

// Names derives the physical table names for one tenant.
//
// Prefix separates tenants sharing a database. Suffix separates
// test tables from live ones.
type Names struct {
	Prefix string
	Suffix string
}

func (n Names) table(base string) string {
	return n.Prefix + base + n.Suffix
}

func (n Names) Configs() string         { return n.table("configs") }
func (n Names) Profiles() string        { return n.table("profiles") }
func (n Names) ProfileComments() string { return n.table("profile_comments") }
func (n Names) Bundles() string         { return n.table("bundles") }
func (n Names) Sgtree() string          { return n.table("sgtree") }
func (n Names) Jobrequest() string      { return n.table("jobrequest") }

// Create makes every table and index, idempotently.
//
// Daemons call this at startup so a fresh database is usable without
// a separate migration step.
func Create(ctx context.Context, conn pool.Queryer, n Names) error {
	ddls := []string{
		`CREATE TABLE IF NOT EXISTS "` + n.Configs() + `" (
			"id" VARCHAR(64) PRIMARY KEY,
			"name" VARCHAR(128) NOT NULL,
			"path" VARCHAR(1024) NOT NULL,
			"description" TEXT NOT NULL DEFAULT '',
			"inherits" BOOLEAN NOT NULL DEFAULT TRUE,
			"active" BIGINT NOT NULL DEFAULT 0,
			"created" BIGINT NOT NULL,
			"updated" BIGINT NOT NULL,
			"created_by" VARCHAR(256) NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS "idx_` + n.Configs() + `_path_name" ON "` + n.Configs() + `" ("path", "name")`,
		`CREATE INDEX IF NOT EXISTS "idx_` + n.Configs() + `_name_active" ON "` + n.Configs() + `" ("name", "active")`,

		`CREATE TABLE IF NOT EXISTS "` + n.Profiles() + `" (
			"id" VARCHAR(64) PRIMARY KEY,
			"path" VARCHAR(1024) NOT NULL UNIQUE,
			"name" VARCHAR(256) NOT NULL DEFAULT '',
			"description" TEXT NOT NULL DEFAULT '',
			"created_at" VARCHAR(32) NOT NULL DEFAULT '',
			"created_by" VARCHAR(256) NOT NULL DEFAULT '',
			"profile_status" VARCHAR(16) NOT NULL DEFAULT 'pending',
			"profile_rxt" TEXT NOT NULL DEFAULT '',
			"packages" JSONB NOT NULL DEFAULT '[]',
			"bundles" JSONB NOT NULL DEFAULT '[]'
		)`,

		`CREATE TABLE IF NOT EXISTS "` + n.ProfileComments() + `" (
			"id" BIGSERIAL PRIMARY KEY,
			"profile_id" VARCHAR(64) NOT NULL,
			"comment" TEXT NOT NULL,
			"created_by" VARCHAR(256) NOT NULL DEFAULT '',
			"created_at" VARCHAR(32) NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS "idx_` + n.ProfileComments() + `_profile" ON "` + n.ProfileComments() + `" ("profile_id")`,

		`CREATE TABLE IF NOT EXISTS "` + n.Bundles() + `" (
			"name" VARCHAR(256) PRIMARY KEY,
			"description" TEXT NOT NULL DEFAULT '',
			"packages" JSONB NOT NULL DEFAULT '[]'
		)`,

		`CREATE TABLE IF NOT EXISTS "` + n.Sgtree() + `" (
			"catalog" VARCHAR(64) NOT NULL,
			"id" BIGINT NOT NULL,
			"filename" VARCHAR(256) NOT NULL DEFAULT '',
			"comment" TEXT NOT NULL DEFAULT '',
			PRIMARY KEY ("catalog", "id")
		)`,

		`CREATE TABLE IF NOT EXISTS "` + n.Jobrequest() + `" (
			"job_id" VARCHAR(256) PRIMARY KEY,
			"catalog" VARCHAR(64) NOT NULL DEFAULT 'global',
			"triggering_event_type" VARCHAR(256) NOT NULL DEFAULT '',
			"due_ns" BIGINT NOT NULL DEFAULT 0,
			"tool_config" JSONB NOT NULL DEFAULT '{}',
			"event" JSONB NOT NULL DEFAULT '{}',
			"registered_ns" BIGINT NOT NULL DEFAULT 0,
			"prepared_ns" BIGINT NOT NULL DEFAULT 0,
			"started_ns" BIGINT NOT NULL DEFAULT 0,
			"finished_ns" BIGINT NOT NULL DEFAULT 0,
			"exit_code" INTEGER NOT NULL DEFAULT -1,
			"scheduled_by_job_id" VARCHAR(256) NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS "idx_` + n.Jobrequest() + `_due" ON "` + n.Jobrequest() + `" ("catalog", "due_ns")`,
	}

	for _, ddl := range ddls {
		if _, err := conn.Exec(ctx, ddl); err != nil {
			return xerrors.Wrap(err)
		}
	}
	return nil
}
