package db

import "time"

// BuildStatus represents the lifecycle state of a build
type BuildStatus string

// Build states, in pipeline order
const (
	BuildStatusPending        BuildStatus = "pending"
	BuildStatusResolving      BuildStatus = "resolving"
	BuildStatusBaseExtraction BuildStatus = "base_extraction"
	BuildStatusOverlaying     BuildStatus = "overlaying"
	BuildStatusDescribing     BuildStatus = "describing"
	BuildStatusPackaging      BuildStatus = "packaging"
	BuildStatusPublishing     BuildStatus = "publishing"
	BuildStatusDone           BuildStatus = "done"
	BuildStatusFailed         BuildStatus = "failed"
)

// IsTerminal reports whether no further transition can happen
func (s BuildStatus) IsTerminal() bool {
	return s == BuildStatusDone || s == BuildStatusFailed
}

// Stage statuses
const (
	StageStatusRunning   = "running"
	StageStatusCompleted = "completed"
	StageStatusFailed    = "failed"
)

// Build is one recorded assembler run
type Build struct {
	ID           string      `json:"id"`
	Kind         string      `json:"kind"`
	Coordinate   string      `json:"coordinate"`
	Status       BuildStatus `json:"status"`
	CurrentStage string      `json:"current_stage,omitempty"`
	TargetDir    string      `json:"target_dir,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
	ErrorStage   string      `json:"error_stage,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	StartedAt    *time.Time  `json:"started_at,omitempty"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
}

// Duration returns the wall time of a finished build, zero otherwise
func (b *Build) Duration() time.Duration {
	if b.StartedAt == nil || b.CompletedAt == nil {
		return 0
	}
	return b.CompletedAt.Sub(*b.StartedAt)
}

// BuildStage is one stage execution within a build
type BuildStage struct {
	ID           int64      `json:"id"`
	BuildID      string     `json:"build_id"`
	Name         string     `json:"name"`
	Status       string     `json:"status"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	DurationMs   int64      `json:"duration_ms"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// BuildLog is a log line captured during a build
type BuildLog struct {
	ID        int64     `json:"id"`
	BuildID   string    `json:"build_id"`
	Stage     string    `json:"stage"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// BuildOutput is an artifact attached by a build
type BuildOutput struct {
	ID         int64     `json:"id"`
	BuildID    string    `json:"build_id"`
	Kind       string    `json:"kind"`
	Classifier string    `json:"classifier,omitempty"`
	Path       string    `json:"path"`
	StorageKey string    `json:"storage_key,omitempty"`
	Checksum   string    `json:"checksum,omitempty"`
	SizeBytes  int64     `json:"size_bytes"`
	CreatedAt  time.Time `json:"created_at"`
}

// ArtifactCacheEntry is a remote artifact downloaded into the local cache
type ArtifactCacheEntry struct {
	ID         string    `json:"id"`
	Coordinate string    `json:"coordinate"`
	RemoteKey  string    `json:"remote_key"`
	Checksum   string    `json:"checksum"`
	CachePath  string    `json:"cache_path"`
	SizeBytes  int64     `json:"size_bytes"`
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at"`
	UseCount   int       `json:"use_count"`
}
