package build

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cenotelie/xowl-toolkit/src/common/errors"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/archive"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/db"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/descriptor"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/project"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/storage"
	"github.com/google/uuid"
)

// Config holds the assembler configuration
type Config struct {
	// CompressionLevel is the DEFLATE level of zip packages (0 to 9)
	CompressionLevel int
	// Descriptor holds the descriptor generator settings
	Descriptor descriptor.Config
}

// DefaultConfig returns the default assembler configuration
func DefaultConfig() Config {
	return Config{
		CompressionLevel: archive.DefaultCompressionLevel,
		Descriptor:       descriptor.DefaultConfig(),
	}
}

// Recorder persists the history of builds. *db.BuildRepository implements it.
type Recorder interface {
	Create(build *db.Build) error
	MarkStarted(id string) error
	UpdateStage(id, stage string, status db.BuildStatus) error
	MarkCompleted(id string) error
	MarkFailed(id, errorMsg, errorStage string) error
	CreateStage(stage *db.BuildStage) error
	MarkStageCompleted(buildID, stageName string, durationMs int64) error
	MarkStageFailed(buildID, stageName, errMsg string) error
	AppendLog(buildID, stage, level, message string) error
	AddOutput(out *db.BuildOutput) error
}

// Result describes a successful build
type Result struct {
	BuildID   string        `json:"build_id"`
	Kind      Kind          `json:"kind"`
	TargetDir string        `json:"target_dir"`
	Outputs   []Output      `json:"outputs"`
	Duration  time.Duration `json:"duration"`
}

// Assembler runs the packaging pipeline of one kind over a project
type Assembler struct {
	host      Host
	config    Config
	generator *descriptor.Generator
	recorder  Recorder
}

// NewAssembler creates an assembler producing files through host
func NewAssembler(host Host, cfg Config) *Assembler {
	return &Assembler{
		host:      host,
		config:    cfg,
		generator: descriptor.NewGenerator(cfg.Descriptor),
	}
}

// SetRecorder records every following run in r. A nil recorder disables recording.
func (a *Assembler) SetRecorder(r Recorder) {
	a.recorder = r
}

// Run assembles p as kind. Stages run sequentially and the first failure
// aborts the build, leaving already written files in place.
func (a *Assembler) Run(ctx context.Context, kind Kind, p *project.Project) (*Result, error) {
	if _, err := ParseKind(string(kind)); err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errors.ErrInvalidProject.WithMessage("no project to assemble")
	}

	targetDir := a.host.WorkingDirectory()
	if targetDir == "" {
		targetDir = p.TargetDir()
	}
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return nil, errors.ErrDirectoryCreation.WithMessagef("failed to create target directory %s", targetDir).WithCause(err)
	}

	build := &db.Build{
		ID:         uuid.New().String(),
		Kind:       string(kind),
		Coordinate: p.Coordinate().String(),
		TargetDir:  targetDir,
	}
	a.record("create build", func(r Recorder) error { return r.Create(build) })

	sc := &StageContext{
		BuildID:          build.ID,
		Kind:             kind,
		Project:          p,
		Host:             a.host,
		Generator:        a.generator,
		TargetDir:        targetDir,
		CompressionLevel: a.config.CompressionLevel,
	}

	log.Info("Starting build",
		"build_id", build.ID,
		"kind", kind,
		"project", p.Coordinate().Identifier(),
		"target", targetDir,
	)
	start := time.Now()
	a.record("mark build started", func(r Recorder) error { return r.MarkStarted(build.ID) })

	for _, stage := range pipeline(kind) {
		if err := a.runStage(ctx, sc, stage); err != nil {
			return nil, err
		}
	}

	a.recordOutputs(sc)
	a.record("mark build completed", func(r Recorder) error { return r.MarkCompleted(build.ID) })

	result := &Result{
		BuildID:   build.ID,
		Kind:      kind,
		TargetDir: targetDir,
		Outputs:   sc.Outputs,
		Duration:  time.Since(start),
	}
	log.Info("Build completed successfully",
		"build_id", build.ID,
		"outputs", describeOutputs(sc.Outputs),
		"duration", result.Duration.Round(time.Millisecond),
	)
	return result, nil
}

// runStage validates and executes one stage, recording its outcome
func (a *Assembler) runStage(ctx context.Context, sc *StageContext, stage Stage) error {
	name := string(stage.Name())

	if err := ctx.Err(); err != nil {
		a.fail(sc, name, err)
		return err
	}

	a.record("update build stage", func(r Recorder) error { return r.UpdateStage(sc.BuildID, name, stage.Name()) })
	a.record("create stage record", func(r Recorder) error {
		return r.CreateStage(&db.BuildStage{BuildID: sc.BuildID, Name: name})
	})
	a.appendLog(sc.BuildID, name, "info", fmt.Sprintf("Starting stage: %s", name))

	stageStart := time.Now()
	if err := stage.Validate(ctx, sc); err != nil {
		a.appendLog(sc.BuildID, name, "error", fmt.Sprintf("Stage validation failed: %v", err))
		a.fail(sc, name, err)
		return err
	}

	progress := func(percent int, message string) {
		if message == "" {
			return
		}
		log.Debug(message, "build_id", sc.BuildID, "stage", name, "percent", percent)
		a.appendLog(sc.BuildID, name, "info", message)
	}
	if err := stage.Execute(ctx, sc, progress); err != nil {
		a.appendLog(sc.BuildID, name, "error", fmt.Sprintf("Stage execution failed: %v", err))
		a.fail(sc, name, err)
		return err
	}

	durationMs := time.Since(stageStart).Milliseconds()
	a.record("mark stage completed", func(r Recorder) error { return r.MarkStageCompleted(sc.BuildID, name, durationMs) })
	a.appendLog(sc.BuildID, name, "info", fmt.Sprintf("Stage completed in %dms", durationMs))
	return nil
}

// fail marks the stage and the build as failed
func (a *Assembler) fail(sc *StageContext, stage string, err error) {
	log.Error("Build failed", "build_id", sc.BuildID, "stage", stage, "error", err)
	a.record("mark stage failed", func(r Recorder) error { return r.MarkStageFailed(sc.BuildID, stage, err.Error()) })
	a.record("mark build failed", func(r Recorder) error { return r.MarkFailed(sc.BuildID, err.Error(), stage) })
}

// recordOutputs stores the published files with their checksum
func (a *Assembler) recordOutputs(sc *StageContext) {
	if a.recorder == nil {
		return
	}
	keyer, _ := a.host.(OutputKeyer)
	for _, out := range sc.Outputs {
		record := &db.BuildOutput{
			BuildID:    sc.BuildID,
			Kind:       out.Kind,
			Classifier: out.Classifier,
			Path:       out.Path,
		}
		if sum, size, err := storage.FileChecksum(out.Path); err == nil {
			record.Checksum = sum
			record.SizeBytes = size
		} else {
			log.Warn("Failed to checksum output", "path", out.Path, "error", err)
		}
		if keyer != nil {
			record.StorageKey = keyer.OutputKey(out.Path)
		}
		a.record("record build output", func(r Recorder) error { return r.AddOutput(record) })
	}
}

func (a *Assembler) appendLog(buildID, stage, level, message string) {
	a.record("append build log", func(r Recorder) error { return r.AppendLog(buildID, stage, level, message) })
}

// record runs fn against the recorder. History failures never fail a build.
func (a *Assembler) record(what string, fn func(Recorder) error) {
	if a.recorder == nil {
		return
	}
	if err := fn(a.recorder); err != nil {
		log.Warn("Failed to "+what, "error", err)
	}
}
