package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cenotelie/xowl-toolkit/src/common/errors"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/artifact"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/db"
)

// BundleFileName returns the name of a bundle inside felix/bundle: the
// canonical name, or artifactId-version.ext for Felix's own artifacts
func BundleFileName(c artifact.Coordinate) string {
	if c.GroupID == FelixGroupID {
		return c.ShortFileName()
	}
	return c.FileName()
}

// OverlayStage deploys bundles and resources over the base distribution
type OverlayStage struct{}

// Name implements Stage
func (s *OverlayStage) Name() db.BuildStatus {
	return db.BuildStatusOverlaying
}

// Validate implements Stage
func (s *OverlayStage) Validate(ctx context.Context, sc *StageContext) error {
	if sc.DistributionDir == "" {
		return errors.ErrStageFailed.WithMessage("no distribution tree to overlay")
	}
	return nil
}

// Execute implements Stage
func (s *OverlayStage) Execute(ctx context.Context, sc *StageContext, progress ProgressFunc) error {
	bundleDir := filepath.Join(sc.DistributionDir, FelixDirName, BundleDirName)
	if err := os.MkdirAll(bundleDir, 0755); err != nil {
		return errors.ErrDirectoryCreation.WithMessagef("failed to create %s", bundleDir).WithCause(err)
	}

	bundles := sc.bundles()
	progress(0, fmt.Sprintf("Deploying %d bundles", len(bundles)))
	deployed := make(map[string]string, len(bundles))
	for _, b := range bundles {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := BundleFileName(b.Coordinate)
		if previous, ok := deployed[name]; ok {
			return errors.ErrDuplicateEntry.WithMessagef("bundles %s and %s are both deployed as %s", previous, b.Coordinate, name)
		}
		deployed[name] = b.Coordinate.String()
		target := filepath.Join(bundleDir, name)
		log.Debug("Deploying bundle", "bundle", b.Identifier(), "target", target)
		if err := copyFile(b.Path, target); err != nil {
			return err
		}
	}

	resources := sc.Project.ResourcePaths()
	progress(50, fmt.Sprintf("Deploying %d resources", len(resources)))
	for _, res := range resources {
		if err := ctx.Err(); err != nil {
			return err
		}
		target := filepath.Join(sc.DistributionDir, filepath.Base(res))
		log.Debug("Deploying resource", "resource", res, "target", target)
		if err := copyTree(res, target); err != nil {
			return err
		}
	}

	progress(100, "Overlay complete")
	return nil
}
