package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/cenotelie/xowl-toolkit/src/common/errors"
	"github.com/google/uuid"
)

// BuildRepository handles build history database operations
type BuildRepository struct {
	db *Database
}

// NewBuildRepository creates a new build repository
func NewBuildRepository(db *Database) *BuildRepository {
	return &BuildRepository{db: db}
}

// Create inserts a new build
func (r *BuildRepository) Create(build *Build) error {
	if build.ID == "" {
		build.ID = uuid.New().String()
	}
	build.CreatedAt = time.Now()
	if build.Status == "" {
		build.Status = BuildStatusPending
	}

	query := `
		INSERT INTO builds (id, kind, coordinate, status, current_stage, target_dir,
			error_message, error_stage, created_at, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.DB().Exec(query,
		build.ID, build.Kind, build.Coordinate, build.Status, build.CurrentStage, build.TargetDir,
		build.ErrorMessage, build.ErrorStage, build.CreatedAt, build.StartedAt, build.CompletedAt,
	)
	if err != nil {
		return errors.ErrDatabaseQuery.WithMessage("failed to create build").WithCause(err)
	}

	return nil
}

// selectBuildsQuery is the base SELECT query for builds
const selectBuildsQuery = `
	SELECT id, kind, coordinate, status, current_stage, target_dir,
		error_message, error_stage, created_at, started_at, completed_at
	FROM builds
`

// GetByID retrieves a build by ID, nil when it does not exist
func (r *BuildRepository) GetByID(id string) (*Build, error) {
	row := r.db.DB().QueryRow(selectBuildsQuery+` WHERE id = ?`, id)
	return r.scanBuild(row)
}

// List retrieves the most recent builds, newest first
func (r *BuildRepository) List(limit int) ([]Build, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.DB().Query(selectBuildsQuery+` ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.ErrDatabaseQuery.WithMessage("failed to list builds").WithCause(err)
	}
	defer rows.Close()

	var builds []Build
	for rows.Next() {
		b, err := r.scanBuildRow(rows)
		if err != nil {
			return nil, err
		}
		builds = append(builds, *b)
	}
	return builds, rows.Err()
}

// Delete removes a build and its stages, logs and outputs
func (r *BuildRepository) Delete(id string) error {
	result, err := r.db.DB().Exec("DELETE FROM builds WHERE id = ?", id)
	if err != nil {
		return errors.ErrDatabaseQuery.WithMessage("failed to delete build").WithCause(err)
	}
	return checkAffected(result, id)
}

// MarkStarted marks a build as started
func (r *BuildRepository) MarkStarted(id string) error {
	query := `UPDATE builds SET status = ?, started_at = ? WHERE id = ?`
	result, err := r.db.DB().Exec(query, BuildStatusResolving, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark build started: %w", err)
	}
	return checkAffected(result, id)
}

// UpdateStage records the stage a build is currently running
func (r *BuildRepository) UpdateStage(id, stage string, status BuildStatus) error {
	query := `UPDATE builds SET current_stage = ?, status = ? WHERE id = ?`
	result, err := r.db.DB().Exec(query, stage, status, id)
	if err != nil {
		return fmt.Errorf("failed to update build stage: %w", err)
	}
	return checkAffected(result, id)
}

// MarkCompleted marks a build as done
func (r *BuildRepository) MarkCompleted(id string) error {
	query := `
		UPDATE builds
		SET status = ?, completed_at = ?, error_message = ''
		WHERE id = ?
	`
	result, err := r.db.DB().Exec(query, BuildStatusDone, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark build completed: %w", err)
	}
	return checkAffected(result, id)
}

// MarkFailed marks a build as failed
func (r *BuildRepository) MarkFailed(id, errorMsg, errorStage string) error {
	query := `
		UPDATE builds
		SET status = ?, completed_at = ?, error_message = ?, error_stage = ?
		WHERE id = ?
	`
	result, err := r.db.DB().Exec(query, BuildStatusFailed, time.Now(), errorMsg, errorStage, id)
	if err != nil {
		return fmt.Errorf("failed to mark build failed: %w", err)
	}
	return checkAffected(result, id)
}

// CreateStage inserts a running stage for a build
func (r *BuildRepository) CreateStage(stage *BuildStage) error {
	now := time.Now()
	if stage.Status == "" {
		stage.Status = StageStatusRunning
	}
	stage.StartedAt = &now

	query := `
		INSERT INTO build_stages (build_id, name, status, started_at)
		VALUES (?, ?, ?, ?)
	`
	result, err := r.db.DB().Exec(query, stage.BuildID, stage.Name, stage.Status, stage.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to create build stage: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	stage.ID = id

	return nil
}

// MarkStageCompleted marks a build stage as completed
func (r *BuildRepository) MarkStageCompleted(buildID, stageName string, durationMs int64) error {
	query := `
		UPDATE build_stages
		SET status = ?, completed_at = ?, duration_ms = ?
		WHERE build_id = ? AND name = ?
	`
	_, err := r.db.DB().Exec(query, StageStatusCompleted, time.Now(), durationMs, buildID, stageName)
	if err != nil {
		return fmt.Errorf("failed to mark stage completed: %w", err)
	}
	return nil
}

// MarkStageFailed marks a build stage as failed
func (r *BuildRepository) MarkStageFailed(buildID, stageName, errMsg string) error {
	query := `
		UPDATE build_stages
		SET status = ?, completed_at = ?, error_message = ?
		WHERE build_id = ? AND name = ?
	`
	_, err := r.db.DB().Exec(query, StageStatusFailed, time.Now(), errMsg, buildID, stageName)
	if err != nil {
		return fmt.Errorf("failed to mark stage failed: %w", err)
	}
	return nil
}

// GetStages retrieves all stages of a build in execution order
func (r *BuildRepository) GetStages(buildID string) ([]BuildStage, error) {
	query := `
		SELECT id, build_id, name, status, started_at, completed_at, duration_ms, error_message
		FROM build_stages
		WHERE build_id = ?
		ORDER BY id ASC
	`
	rows, err := r.db.DB().Query(query, buildID)
	if err != nil {
		return nil, fmt.Errorf("failed to get build stages: %w", err)
	}
	defer rows.Close()

	var stages []BuildStage
	for rows.Next() {
		var stage BuildStage
		var startedAt, completedAt sql.NullTime
		var errorMsg sql.NullString

		if err := rows.Scan(
			&stage.ID, &stage.BuildID, &stage.Name, &stage.Status,
			&startedAt, &completedAt, &stage.DurationMs, &errorMsg,
		); err != nil {
			return nil, fmt.Errorf("failed to scan build stage: %w", err)
		}

		if startedAt.Valid {
			stage.StartedAt = &startedAt.Time
		}
		if completedAt.Valid {
			stage.CompletedAt = &completedAt.Time
		}
		stage.ErrorMessage = errorMsg.String

		stages = append(stages, stage)
	}

	return stages, rows.Err()
}

// AppendLog appends a log entry for a build
func (r *BuildRepository) AppendLog(buildID, stage, level, message string) error {
	query := `
		INSERT INTO build_logs (build_id, stage, level, message, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.DB().Exec(query, buildID, stage, level, message, time.Now())
	if err != nil {
		return fmt.Errorf("failed to append build log: %w", err)
	}
	return nil
}

// GetLogs retrieves the log entries of a build in insertion order
func (r *BuildRepository) GetLogs(buildID string) ([]BuildLog, error) {
	query := `
		SELECT id, build_id, stage, level, message, created_at
		FROM build_logs
		WHERE build_id = ?
		ORDER BY id ASC
	`
	rows, err := r.db.DB().Query(query, buildID)
	if err != nil {
		return nil, fmt.Errorf("failed to get build logs: %w", err)
	}
	defer rows.Close()

	var logs []BuildLog
	for rows.Next() {
		var l BuildLog
		if err := rows.Scan(&l.ID, &l.BuildID, &l.Stage, &l.Level, &l.Message, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan build log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// AddOutput records an artifact attached by a build
func (r *BuildRepository) AddOutput(out *BuildOutput) error {
	out.CreatedAt = time.Now()
	query := `
		INSERT INTO build_outputs (build_id, kind, classifier, path, storage_key, checksum, size_bytes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.DB().Exec(query,
		out.BuildID, out.Kind, out.Classifier, out.Path, out.StorageKey, out.Checksum, out.SizeBytes, out.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record build output: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	out.ID = id
	return nil
}

// GetOutputs retrieves the artifacts attached by a build
func (r *BuildRepository) GetOutputs(buildID string) ([]BuildOutput, error) {
	query := `
		SELECT id, build_id, kind, classifier, path, storage_key, checksum, size_bytes, created_at
		FROM build_outputs
		WHERE build_id = ?
		ORDER BY id ASC
	`
	rows, err := r.db.DB().Query(query, buildID)
	if err != nil {
		return nil, fmt.Errorf("failed to get build outputs: %w", err)
	}
	defer rows.Close()

	var outputs []BuildOutput
	for rows.Next() {
		var o BuildOutput
		var classifier, storageKey, checksum sql.NullString
		if err := rows.Scan(
			&o.ID, &o.BuildID, &o.Kind, &classifier, &o.Path, &storageKey, &checksum, &o.SizeBytes, &o.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan build output: %w", err)
		}
		o.Classifier = classifier.String
		o.StorageKey = storageKey.String
		o.Checksum = checksum.String
		outputs = append(outputs, o)
	}
	return outputs, rows.Err()
}

// rowScanner is implemented by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// scanBuild scans a single build row
func (r *BuildRepository) scanBuild(row *sql.Row) (*Build, error) {
	b, err := r.scanBuildRow(row)
	if err != nil && errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

func (r *BuildRepository) scanBuildRow(row rowScanner) (*Build, error) {
	var b Build
	var startedAt, completedAt sql.NullTime
	var currentStage, targetDir, errorMsg, errorStage sql.NullString

	err := row.Scan(
		&b.ID, &b.Kind, &b.Coordinate, &b.Status, &currentStage, &targetDir,
		&errorMsg, &errorStage, &b.CreatedAt, &startedAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan build: %w", err)
	}

	if startedAt.Valid {
		b.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		b.CompletedAt = &completedAt.Time
	}
	b.CurrentStage = currentStage.String
	b.TargetDir = targetDir.String
	b.ErrorMessage = errorMsg.String
	b.ErrorStage = errorStage.String

	return &b, nil
}

// checkAffected turns an update that touched no row into ErrBuildNotFound
func checkAffected(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return errors.ErrBuildNotFound.WithMessagef("build not found: %s", id)
	}
	return nil
}
