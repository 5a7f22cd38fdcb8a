// Package build assembles addons, marketplaces, platform distributions and
// products from resolved artifacts, descriptors and archives.
package build

import (
	"context"
	"strings"

	"github.com/cenotelie/xowl-toolkit/src/common/errors"
	"github.com/cenotelie/xowl-toolkit/src/common/logs"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/artifact"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/db"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/descriptor"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/project"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the build package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// Kind selects what an assembler run produces
type Kind string

const (
	KindAddon       Kind = "addon"
	KindMarketplace Kind = "marketplace"
	KindPlatform    Kind = "platform"
	KindProduct     Kind = "product"
)

// Kinds lists every supported kind
var Kinds = []Kind{KindAddon, KindMarketplace, KindPlatform, KindProduct}

// ParseKind returns the kind named s
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", errors.ErrUnknownKind.WithMessagef("unknown build kind %q", s)
}

// Output kinds handed to Host.AttachOutput
const (
	OutputAddon       = "xowl-addon"
	OutputMarketplace = "xowl-marketplace"
	OutputPlatform    = "xowl-platform"
	OutputJSON        = "json"
	OutputProduct     = "xowl-product"
	OutputDescriptor  = "descriptor"
	OutputDefinition  = "product"
)

// Output is a file produced by a build
type Output struct {
	Kind       string `json:"kind"`
	Classifier string `json:"classifier,omitempty"`
	Path       string `json:"path"`
}

// Stage defines one step of the assembly pipeline
type Stage interface {
	// Name returns the build state the stage runs in
	Name() db.BuildStatus

	// Validate checks whether this stage can run given the current context
	Validate(ctx context.Context, sc *StageContext) error

	// Execute runs the stage, reporting progress via the callback
	Execute(ctx context.Context, sc *StageContext, progress ProgressFunc) error
}

// ProgressFunc reports stage progress (0-100) with an optional message
type ProgressFunc func(percent int, message string)

// StageContext holds the state shared by the stages of one build
type StageContext struct {
	BuildID   string
	Kind      Kind
	Project   *project.Project
	Host      Host
	Generator *descriptor.Generator
	TargetDir string

	// CompressionLevel is the DEFLATE level of zip packages
	CompressionLevel int

	// Populated by the resolve stage, in declaration order
	Resolved []artifact.Resolved
	// Base is the base distribution of a platform, populated by the resolve stage
	Base *artifact.Resolved
	// BaseKind tells how the base is laid out
	BaseKind BaseKind

	// DistributionDir is the platform tree, populated by the base extraction stage
	DistributionDir string

	// Populated by the describe stage
	Fields         descriptor.Fields
	DescriptorPath string
	DefinitionPath string

	// Outputs is the ordered list of files handed to the host when publishing
	Outputs []Output
}

// ArtifactName returns artifactId-version
func (sc *StageContext) ArtifactName() string {
	return sc.Project.ArtifactName()
}

// bundles returns the resolved artifacts other than the platform base
func (sc *StageContext) bundles() []artifact.Resolved {
	if sc.Base == nil {
		return sc.Resolved
	}
	out := make([]artifact.Resolved, 0, len(sc.Resolved))
	for _, r := range sc.Resolved {
		if r.Coordinate == sc.Base.Coordinate {
			continue
		}
		out = append(out, r)
	}
	return out
}

// addOutput records a produced file
func (sc *StageContext) addOutput(kind, classifier, path string) {
	sc.Outputs = append(sc.Outputs, Output{Kind: kind, Classifier: classifier, Path: path})
}

// pipeline returns the stages run for a kind, in order
func pipeline(kind Kind) []Stage {
	switch kind {
	case KindPlatform:
		return []Stage{
			&ResolveStage{},
			&BaseExtractionStage{},
			&OverlayStage{},
			&DescribeStage{},
			&PackageStage{},
			&PublishStage{},
		}
	default:
		return []Stage{
			&ResolveStage{},
			&DescribeStage{},
			&PackageStage{},
			&PublishStage{},
		}
	}
}
