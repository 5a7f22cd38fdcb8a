package build

import (
	"context"
	"fmt"
	"strings"

	"github.com/cenotelie/xowl-toolkit/src/common/errors"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/artifact"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/db"
)

// Base distribution signatures
const (
	FelixGroupID                = "org.apache.felix"
	FelixDistributionArtifactID = "org.apache.felix.main.distribution"
	PlatformType                = "xowl-platform"
)

// BaseKind tells how a base distribution is laid out
type BaseKind int

const (
	BaseNone BaseKind = iota
	// BaseFelix is a bare Felix distribution whose root becomes felix/
	BaseFelix
	// BasePlatform is a previous platform build whose root becomes the distribution
	BasePlatform
)

// String implements fmt.Stringer
func (k BaseKind) String() string {
	switch k {
	case BaseFelix:
		return "felix"
	case BasePlatform:
		return "platform"
	default:
		return "none"
	}
}

// baseKindOf classifies a platform dependency
func baseKindOf(c artifact.Coordinate) BaseKind {
	if c.GroupID == FelixGroupID && c.ArtifactID == FelixDistributionArtifactID {
		return BaseFelix
	}
	if c.Type == PlatformType {
		return BasePlatform
	}
	return BaseNone
}

// SelectBase finds the single base distribution among platform dependencies
// and returns its index
func SelectBase(deps []artifact.Coordinate) (int, BaseKind, error) {
	index := -1
	kind := BaseNone
	var found []string
	for i, c := range deps {
		k := baseKindOf(c.Normalize())
		if k == BaseNone {
			continue
		}
		found = append(found, c.Identifier())
		if index < 0 {
			index, kind = i, k
		}
	}
	switch len(found) {
	case 0:
		return -1, BaseNone, errors.ErrMissingBaseDistribution
	case 1:
		return index, kind, nil
	default:
		return -1, BaseNone, errors.ErrMissingBaseDistribution.WithMessagef(
			"expected a single base distribution (Felix or xOWL platform), found %s", strings.Join(found, ", "))
	}
}

// inputs returns the coordinates a kind resolves, in declaration order
func inputs(sc *StageContext) []artifact.Coordinate {
	p := sc.Project
	switch sc.Kind {
	case KindAddon, KindProduct:
		return p.Bundles
	case KindPlatform:
		return p.Dependencies
	case KindMarketplace:
		coords := make([]artifact.Coordinate, 0, len(p.Addons)*2)
		for _, a := range p.Addons {
			coords = append(coords, a.WithType("zip"), a.WithType("json"))
		}
		return coords
	}
	return nil
}

// ResolveStage resolves every artifact the build needs
type ResolveStage struct{}

// Name implements Stage
func (s *ResolveStage) Name() db.BuildStatus {
	return db.BuildStatusResolving
}

// Validate implements Stage. A platform without a single base fails here,
// before anything is resolved or extracted.
func (s *ResolveStage) Validate(ctx context.Context, sc *StageContext) error {
	if sc.Kind == KindPlatform {
		index, kind, err := SelectBase(sc.Project.Dependencies)
		if err != nil {
			return err
		}
		sc.BaseKind = kind
		log.Info("Selected base distribution", "base", sc.Project.Dependencies[index].Identifier(), "kind", kind)
	}
	if sc.Kind == KindMarketplace && len(sc.Project.Addons) == 0 {
		log.Warn("Marketplace declares no addon")
	}
	return nil
}

// Execute implements Stage
func (s *ResolveStage) Execute(ctx context.Context, sc *StageContext, progress ProgressFunc) error {
	coords := inputs(sc)
	progress(0, fmt.Sprintf("Resolving %d artifacts", len(coords)))

	resolved, err := artifact.ResolveAll(ctx, artifact.ResolverFunc(sc.Host.Resolve), coords)
	if err != nil {
		return err
	}
	sc.Resolved = resolved

	if sc.Kind == KindPlatform {
		index, _, err := SelectBase(sc.Project.Dependencies)
		if err != nil {
			return err
		}
		base := resolved[index]
		sc.Base = &base
	}

	progress(100, fmt.Sprintf("Resolved %d artifacts", len(resolved)))
	return nil
}
