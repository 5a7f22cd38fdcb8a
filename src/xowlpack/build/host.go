package build

import (
	"context"

	"github.com/cenotelie/xowl-toolkit/src/xowlpack/artifact"
)

// Host is what the assembler needs from its environment
type Host interface {
	// Resolve returns the local file of an artifact
	Resolve(ctx context.Context, c artifact.Coordinate) (string, error)

	// AttachOutput hands a finished file to the publishing step
	AttachOutput(ctx context.Context, kind, classifier, file string) error

	// WorkingDirectory returns the directory produced files are written to
	WorkingDirectory() string
}

// Attacher publishes produced files
type Attacher interface {
	AttachOutput(ctx context.Context, kind, classifier, file string) error
}

// Rollbacker is implemented by hosts and attachers able to withdraw the
// outputs they already published
type Rollbacker interface {
	Rollback(ctx context.Context) error
}

// OutputKeyer is implemented by attachers that store outputs under a key
type OutputKeyer interface {
	OutputKey(file string) string
}

// LocalHost is a Host over a resolver and an optional attacher
type LocalHost struct {
	resolver artifact.Resolver
	attacher Attacher
	dir      string
}

// NewHost creates a host writing into dir. A nil attacher keeps outputs local.
func NewHost(resolver artifact.Resolver, attacher Attacher, dir string) *LocalHost {
	return &LocalHost{resolver: resolver, attacher: attacher, dir: dir}
}

// Resolve implements Host
func (h *LocalHost) Resolve(ctx context.Context, c artifact.Coordinate) (string, error) {
	return h.resolver.Resolve(ctx, c)
}

// AttachOutput implements Host
func (h *LocalHost) AttachOutput(ctx context.Context, kind, classifier, file string) error {
	if h.attacher == nil {
		log.Info("Output kept locally", "kind", kind, "classifier", classifier, "path", file)
		return nil
	}
	return h.attacher.AttachOutput(ctx, kind, classifier, file)
}

// Rollback withdraws what the attacher published, when it supports it
func (h *LocalHost) Rollback(ctx context.Context) error {
	if r, ok := h.attacher.(Rollbacker); ok {
		return r.Rollback(ctx)
	}
	return nil
}

// WorkingDirectory implements Host
func (h *LocalHost) WorkingDirectory() string {
	return h.dir
}

// OutputKey returns the storage key of file when the attacher stores outputs
func (h *LocalHost) OutputKey(file string) string {
	if k, ok := h.attacher.(OutputKeyer); ok {
		return k.OutputKey(file)
	}
	return ""
}
