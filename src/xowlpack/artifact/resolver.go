package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cenotelie/xowl-toolkit/src/common/errors"
	"github.com/cenotelie/xowl-toolkit/src/common/logs"
	"github.com/cenotelie/xowl-toolkit/src/common/paths"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the artifact package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// Resolver maps a coordinate to a local file
type Resolver interface {
	// Resolve returns the path of the local file holding the artifact
	Resolve(ctx context.Context, c Coordinate) (string, error)
}

// ResolverFunc adapts a function to the Resolver interface
type ResolverFunc func(ctx context.Context, c Coordinate) (string, error)

// Resolve calls f(ctx, c)
func (f ResolverFunc) Resolve(ctx context.Context, c Coordinate) (string, error) {
	return f(ctx, c)
}

// ResolutionError reports a coordinate that could not be resolved.
// It matches errors.ErrResolution.
type ResolutionError struct {
	Coordinate Coordinate
	Err        error
}

// Error implements the error interface
func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("%s.%s: failed to resolve artifact %s (%s)",
		errors.ErrResolution.Domain, errors.ErrResolution.Code, e.Coordinate.FileName(), e.Coordinate)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the resolution sentinel and the underlying cause
func (e *ResolutionError) Unwrap() []error {
	if e.Err == nil {
		return []error{errors.ErrResolution}
	}
	return []error{errors.ErrResolution, e.Err}
}

// NewResolutionError creates a ResolutionError for a coordinate
func NewResolutionError(c Coordinate, cause error) *ResolutionError {
	return &ResolutionError{Coordinate: c.Normalize(), Err: cause}
}

// ResolveAll resolves coordinates in declaration order and returns the results in the same order.
// Resolution stops at the first failure: no resolver call is issued after it.
func ResolveAll(ctx context.Context, r Resolver, coords []Coordinate) ([]Resolved, error) {
	results := make([]Resolved, 0, len(coords))
	for _, c := range coords {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		c = c.Normalize()
		log.Info("Resolving artifact", "name", c.FileName())

		path, err := r.Resolve(ctx, c)
		if err != nil {
			var re *ResolutionError
			if errors.As(err, &re) {
				return nil, err
			}
			return nil, NewResolutionError(c, err)
		}
		if path == "" {
			return nil, NewResolutionError(c, fmt.Errorf("resolver returned no file"))
		}
		results = append(results, Resolved{Coordinate: c, Path: path})
	}
	return results, nil
}

// LocalRepository resolves artifacts from a directory using the Maven repository layout
type LocalRepository struct {
	Root string
}

// NewLocalRepository creates a resolver over a local Maven-layout directory
func NewLocalRepository(root string) *LocalRepository {
	return &LocalRepository{Root: paths.Expand(root)}
}

// Resolve implements Resolver
func (r *LocalRepository) Resolve(ctx context.Context, c Coordinate) (string, error) {
	c = c.Normalize()
	if err := c.Validate(); err != nil {
		return "", NewResolutionError(c, err)
	}
	path := filepath.Join(r.Root, filepath.FromSlash(c.RepositoryPath()))
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", NewResolutionError(c, fmt.Errorf("not found in %s", r.Root))
		}
		return "", NewResolutionError(c, err)
	}
	if !info.Mode().IsRegular() {
		return "", NewResolutionError(c, fmt.Errorf("%s is not a regular file", path))
	}
	return path, nil
}

// Chain tries each resolver in turn and returns the first success
type Chain []Resolver

// Resolve implements Resolver
func (ch Chain) Resolve(ctx context.Context, c Coordinate) (string, error) {
	if len(ch) == 0 {
		return "", NewResolutionError(c, fmt.Errorf("no repository configured"))
	}
	var causes []string
	for _, r := range ch {
		path, err := r.Resolve(ctx, c)
		if err == nil {
			return path, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		log.Debug("Repository miss", "artifact", c.FileName(), "error", err)
		var re *ResolutionError
		if errors.As(err, &re) && re.Err != nil {
			causes = append(causes, re.Err.Error())
		} else {
			causes = append(causes, err.Error())
		}
	}
	return "", NewResolutionError(c, fmt.Errorf("%s", strings.Join(causes, "; ")))
}
