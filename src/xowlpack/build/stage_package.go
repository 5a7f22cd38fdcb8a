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

// PackageStage writes the final package
type PackageStage struct{}

// Name implements Stage
func (s *PackageStage) Name() db.BuildStatus {
	return db.BuildStatusPackaging
}

// Validate implements Stage
func (s *PackageStage) Validate(ctx context.Context, sc *StageContext) error {
	if sc.DescriptorPath == "" {
		return errors.ErrStageFailed.WithMessage("no descriptor to package")
	}
	if sc.Kind == KindAddon && sc.Project.Build.IncludeSelf && sc.Project.Build.MainArtifact == "" {
		return errors.ErrInvalidProject.WithMessage("includeSelf requires mainArtifact to ship the project's own jar")
	}
	shipsMain := sc.Kind == KindProduct || (sc.Kind == KindAddon && sc.Project.Build.IncludeSelf)
	if shipsMain && sc.Project.Build.MainArtifact != "" {
		main := sc.Project.Path(sc.Project.Build.MainArtifact)
		if _, err := os.Stat(main); err != nil {
			return errors.ErrFileNotFound.WithMessagef("file not found: %s", main)
		}
	}
	return nil
}

// Execute implements Stage
func (s *PackageStage) Execute(ctx context.Context, sc *StageContext, progress ProgressFunc) error {
	progress(0, "Packaging")

	var err error
	switch sc.Kind {
	case KindAddon:
		err = s.packageZip(sc, OutputAddon, "", filepath.Join(sc.TargetDir, sc.ArtifactName()+".zip"), addonEntries(sc))
	case KindMarketplace:
		err = s.packageZip(sc, OutputMarketplace, "", filepath.Join(sc.TargetDir, sc.ArtifactName()+".zip"), marketplaceEntries(sc))
	case KindProduct:
		name := sc.Project.GroupID + "." + sc.ArtifactName() + "-product.zip"
		err = s.packageZip(sc, OutputProduct, "", filepath.Join(sc.TargetDir, name), productEntries(sc))
	case KindPlatform:
		err = s.packagePlatform(ctx, sc)
	default:
		err = errors.ErrUnknownKind.WithMessagef("unknown build kind %q", sc.Kind)
	}
	if err != nil {
		return err
	}

	progress(100, "Packaging complete")
	return nil
}

// addonEntries lays out an addon: its descriptor, every bundle under its
// canonical name, then the project's own jar when it lists itself as a bundle
func addonEntries(sc *StageContext) []archive.Entry {
	entries := []archive.Entry{{Name: AddonDescriptorName, Source: sc.DescriptorPath}}
	for _, b := range sc.Resolved {
		entries = append(entries, archive.Entry{Name: b.FileName(), Source: b.Path})
	}
	if sc.Project.Build.IncludeSelf {
		entries = append(entries, archive.Entry{
			Name:   sc.Project.Coordinate().FileName(),
			Source: sc.Project.Path(sc.Project.Build.MainArtifact),
		})
	}
	return entries
}

// marketplaceEntries lays out a marketplace: its descriptor then the package
// and descriptor of every addon. Addons were resolved as zip/json pairs.
func marketplaceEntries(sc *StageContext) []archive.Entry {
	entries := []archive.Entry{{Name: MarketplaceDescriptorName, Source: sc.DescriptorPath}}
	for i := 0; i+1 < len(sc.Resolved); i += 2 {
		pkg, desc := sc.Resolved[i], sc.Resolved[i+1]
		entries = append(entries,
			archive.Entry{Name: pkg.Identifier() + ".zip", Source: pkg.Path},
			archive.Entry{Name: desc.Identifier() + ".descriptor", Source: desc.Path},
		)
	}
	return entries
}

// productEntries lays out a product: its descriptor, the main artifact when
// configured, then every bundle
func productEntries(sc *StageContext) []archive.Entry {
	entries := []archive.Entry{{Name: filepath.Base(sc.DescriptorPath), Source: sc.DescriptorPath}}
	if sc.Project.Build.MainArtifact != "" {
		entries = append(entries, archive.Entry{
			Name:   sc.ArtifactName() + ".jar",
			Source: sc.Project.Path(sc.Project.Build.MainArtifact),
		})
	}
	for _, b := range sc.Resolved {
		entries = append(entries, archive.Entry{Name: b.FileName(), Source: b.Path})
	}
	return entries
}

func (s *PackageStage) packageZip(sc *StageContext, kind, classifier, path string, entries []archive.Entry) error {
	log.Info("Writing package", "kind", sc.Kind, "package", filepath.Base(path), "entries", len(entries))

	w, err := archive.CreateZip(path, sc.CompressionLevel)
	if err != nil {
		return err
	}
	if err := w.AddEntries(entries); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	sc.addOutput(kind, classifier, path)
	if sc.Kind == KindProduct {
		sc.addOutput(OutputDescriptor, "", sc.DescriptorPath)
		sc.addOutput(OutputDefinition, "", sc.DefinitionPath)
	} else {
		sc.addOutput(OutputJSON, "", sc.DescriptorPath)
	}
	return nil
}

// packagePlatform archives the distribution tree under artifactId/ and deletes the tree
func (s *PackageStage) packagePlatform(ctx context.Context, sc *StageContext) error {
	path := filepath.Join(sc.TargetDir, sc.ArtifactName()+".tar.gz")
	log.Info("Writing package", "kind", sc.Kind, "package", filepath.Base(path))

	w, err := archive.CreateTarGz(path)
	if err != nil {
		return err
	}
	if err := w.AddTree(sc.DistributionDir, sc.Project.ArtifactID); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	if err := os.RemoveAll(sc.DistributionDir); err != nil {
		return errors.ErrIO.WithMessagef("failed to delete %s", sc.DistributionDir).WithCause(err)
	}
	log.Debug("Distribution tree deleted", "path", sc.DistributionDir)

	sc.addOutput(OutputPlatform, "", path)
	sc.addOutput(OutputJSON, "", sc.DescriptorPath)
	return nil
}

// describeOutputs renders outputs for log messages
func describeOutputs(outputs []Output) string {
	s := ""
	for i, o := range outputs {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s:%s", o.Kind, filepath.Base(o.Path))
	}
	return s
}
