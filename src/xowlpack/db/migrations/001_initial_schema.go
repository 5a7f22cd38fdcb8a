package migrations

import "database/sql"

// migration001InitialSchema creates the build history and artifact cache tables
func migration001InitialSchema() Migration {
	return Migration{
		Version:     1,
		Description: "Initial schema with builds, build stages, build logs and artifact cache",
		Up:          migration001Up,
	}
}

func migration001Up(tx *sql.Tx) error {
	statements := []string{
		buildsTableSQL,
		buildsIndexesSQL,
		buildStagesTableSQL,
		buildStagesIndexesSQL,
		buildLogsTableSQL,
		buildLogsIndexesSQL,
		artifactCacheTableSQL,
		artifactCacheIndexesSQL,
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

const buildsTableSQL = `
CREATE TABLE IF NOT EXISTS builds (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	coordinate TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	current_stage TEXT DEFAULT '',
	target_dir TEXT DEFAULT '',
	error_message TEXT DEFAULT '',
	error_stage TEXT DEFAULT '',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	started_at DATETIME,
	completed_at DATETIME
)`

const buildsIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_builds_status ON builds(status);
CREATE INDEX IF NOT EXISTS idx_builds_created ON builds(created_at)`

const buildStagesTableSQL = `
CREATE TABLE IF NOT EXISTS build_stages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	build_id TEXT NOT NULL,
	name TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	started_at DATETIME,
	completed_at DATETIME,
	duration_ms INTEGER DEFAULT 0,
	error_message TEXT DEFAULT '',
	FOREIGN KEY (build_id) REFERENCES builds(id) ON DELETE CASCADE
)`

const buildStagesIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_build_stages_build ON build_stages(build_id)`

const buildLogsTableSQL = `
CREATE TABLE IF NOT EXISTS build_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	build_id TEXT NOT NULL,
	stage TEXT NOT NULL DEFAULT '',
	level TEXT NOT NULL DEFAULT 'info',
	message TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (build_id) REFERENCES builds(id) ON DELETE CASCADE
)`

const buildLogsIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_build_logs_build ON build_logs(build_id)`

const artifactCacheTableSQL = `
CREATE TABLE IF NOT EXISTS artifact_cache (
	id TEXT PRIMARY KEY,
	coordinate TEXT NOT NULL UNIQUE,
	remote_key TEXT NOT NULL,
	checksum TEXT NOT NULL,
	cache_path TEXT NOT NULL,
	size_bytes INTEGER DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	last_used_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	use_count INTEGER DEFAULT 1
)`

const artifactCacheIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_artifact_cache_last_used ON artifact_cache(last_used_at)`
