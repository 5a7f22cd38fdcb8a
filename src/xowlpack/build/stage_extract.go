package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cenotelie/xowl-toolkit/src/common/errors"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/archive"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/db"
)

// Distribution tree layout
const (
	DistributionDirName = "distribution"
	FelixDirName        = "felix"
	BundleDirName       = "bundle"
	tempDirName         = "temp"
)

// BaseExtractionStage unpacks the base distribution of a platform
type BaseExtractionStage struct{}

// Name implements Stage
func (s *BaseExtractionStage) Name() db.BuildStatus {
	return db.BuildStatusBaseExtraction
}

// Validate implements Stage
func (s *BaseExtractionStage) Validate(ctx context.Context, sc *StageContext) error {
	if sc.Base == nil {
		return errors.ErrMissingBaseDistribution
	}
	if !archive.IsSupported(sc.Base.Path) {
		return errors.ErrUnsupportedArchive.WithMessagef("base distribution %s is not a tar archive: %s",
			sc.Base.Identifier(), sc.Base.Path)
	}
	return nil
}

// Execute implements Stage
func (s *BaseExtractionStage) Execute(ctx context.Context, sc *StageContext, progress ProgressFunc) error {
	distribution := filepath.Join(sc.TargetDir, DistributionDirName)
	if err := os.RemoveAll(distribution); err != nil {
		return errors.ErrDirectoryCreation.WithMessagef("failed to clear %s", distribution).WithCause(err)
	}

	progress(0, fmt.Sprintf("Extracting %s", sc.Base.FileName()))

	var err error
	switch sc.BaseKind {
	case BaseFelix:
		err = extractFelix(ctx, sc.Base.Path, distribution)
	case BasePlatform:
		err = extractPlatform(ctx, sc.Base.Path, sc.TargetDir, distribution)
	default:
		err = errors.ErrMissingBaseDistribution
	}
	if err != nil {
		return err
	}

	sc.DistributionDir = distribution
	progress(100, "Base distribution extracted")
	return nil
}

// extractFelix unpacks a Felix distribution into distribution/ and renames
// its top directory to felix
func extractFelix(ctx context.Context, archivePath, distribution string) error {
	if _, err := archive.Extract(ctx, archivePath, distribution); err != nil {
		return err
	}
	root, err := archive.SingleRoot(distribution)
	if err != nil {
		return err
	}
	felix := filepath.Join(distribution, FelixDirName)
	if root == felix {
		return nil
	}
	if err := os.Rename(root, felix); err != nil {
		return errors.ErrExtraction.WithMessagef("failed to rename %s to %s", root, felix).WithCause(err)
	}
	log.Debug("Felix distribution extracted", "root", filepath.Base(root), "target", felix)
	return nil
}

// extractPlatform unpacks a previous platform build into temp/ and moves its
// top directory to distribution
func extractPlatform(ctx context.Context, archivePath, targetDir, distribution string) error {
	temp := filepath.Join(targetDir, tempDirName)
	if err := os.RemoveAll(temp); err != nil {
		return errors.ErrDirectoryCreation.WithMessagef("failed to clear %s", temp).WithCause(err)
	}
	if _, err := archive.Extract(ctx, archivePath, temp); err != nil {
		return err
	}
	root, err := archive.SingleRoot(temp)
	if err != nil {
		return err
	}
	if err := os.Rename(root, distribution); err != nil {
		return errors.ErrExtraction.WithMessagef("failed to move %s to %s", root, distribution).WithCause(err)
	}
	if err := os.RemoveAll(temp); err != nil {
		log.Warn("Failed to remove temporary directory", "path", temp, "error", err)
	}
	log.Debug("Platform distribution extracted", "root", filepath.Base(root), "target", distribution)
	return nil
}
