package build

import (
	"context"
	"path/filepath"

	"github.com/cenotelie/xowl-toolkit/src/xowlpack/db"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/descriptor"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/project"
)

// Descriptor file names
const (
	AddonDescriptorName       = "descriptor.json"
	MarketplaceDescriptorName = "marketplace.json"
	PlatformDescriptorName    = "descriptor.json"
)

// DescribeStage writes the descriptors of the build
type DescribeStage struct{}

// Name implements Stage
func (s *DescribeStage) Name() db.BuildStatus {
	return db.BuildStatusDescribing
}

// Validate implements Stage
func (s *DescribeStage) Validate(ctx context.Context, sc *StageContext) error {
	return nil
}

// Execute implements Stage
func (s *DescribeStage) Execute(ctx context.Context, sc *StageContext, progress ProgressFunc) error {
	progress(0, "Writing descriptors")

	fields, err := projectFields(sc.Project)
	if err != nil {
		return err
	}

	name := sc.ArtifactName()
	switch sc.Kind {
	case KindAddon:
		for _, b := range sc.Resolved {
			fields.Bundles = append(fields.Bundles, descriptor.BundleRefOf(b.Coordinate))
		}
		if sc.Project.Build.IncludeSelf {
			fields.Bundles = append(fields.Bundles, fields.Self())
		}
		sc.DescriptorPath = filepath.Join(sc.TargetDir, name+".json")
		if err := descriptor.Write(sc.DescriptorPath, sc.Generator.Addon(fields)); err != nil {
			return err
		}

	case KindMarketplace:
		sc.DescriptorPath = filepath.Join(sc.TargetDir, name+".json")
		if err := descriptor.Write(sc.DescriptorPath, sc.Generator.Marketplace(sc.Project.Addons)); err != nil {
			return err
		}

	case KindPlatform:
		sc.DescriptorPath = filepath.Join(sc.TargetDir, name+".json")
		if err := descriptor.Write(sc.DescriptorPath, sc.Generator.Platform(fields)); err != nil {
			return err
		}
		if err := copyFile(sc.DescriptorPath, filepath.Join(sc.DistributionDir, PlatformDescriptorName)); err != nil {
			return err
		}
		manifest := descriptor.NewManifest(fields, sc.Base.Identifier())
		if err := manifest.Write(filepath.Join(sc.DistributionDir, descriptor.ManifestFileName)); err != nil {
			return err
		}

	case KindProduct:
		for _, b := range sc.Resolved {
			fields.Bundles = append(fields.Bundles, descriptor.BundleRefOf(b.Coordinate))
		}
		sc.DescriptorPath = filepath.Join(sc.TargetDir, name+".descriptor")
		if err := descriptor.Write(sc.DescriptorPath, sc.Generator.Product(fields)); err != nil {
			return err
		}
		sc.DefinitionPath = filepath.Join(sc.TargetDir, name+".product")
		if err := descriptor.Write(sc.DefinitionPath, sc.Generator.ProductDefinition(fields)); err != nil {
			return err
		}
	}

	sc.Fields = fields
	log.Info("Descriptor written", "path", sc.DescriptorPath)
	progress(100, "Descriptors written")
	return nil
}

// projectFields collects the descriptor fields of a project, loading its icon and license text
func projectFields(p *project.Project) (descriptor.Fields, error) {
	icon, err := descriptor.LoadIcon(p.Path(p.Build.Icon))
	if err != nil {
		return descriptor.Fields{}, err
	}

	var license descriptor.License
	if l, ok := p.License(); ok {
		license, err = descriptor.NewLicense(l.Name, l.URL, p.Path(l.TextFile))
		if err != nil {
			return descriptor.Fields{}, err
		}
	}

	return descriptor.Fields{
		GroupID:      p.GroupID,
		ArtifactID:   p.ArtifactID,
		Version:      p.Version,
		Name:         p.Name,
		Description:  p.Description,
		URL:          p.URL,
		Organization: descriptor.Organization{Name: p.Organization.Name, URL: p.Organization.URL},
		License:      license,
		Build: descriptor.Build{
			ScmTag:    p.Build.ScmTag,
			User:      p.Build.BuildUser,
			Tag:       p.Build.BuildTag,
			Timestamp: p.Build.BuildTimestamp,
		},
		Icon:    icon,
		Pricing: p.Build.Pricing,
		Tags:    p.Build.Tags,
	}, nil
}
