// Package project loads the project files describing what xowlpack assembles.
package project

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/cenotelie/xowl-toolkit/src/common/errors"
	"github.com/cenotelie/xowl-toolkit/src/common/paths"
	"github.com/cenotelie/xowl-toolkit/src/xowlpack/artifact"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the project file looked up when none is given
const DefaultFileName = "xowl-project.yaml"

// DefaultTargetDir is the build directory, relative to the project file
const DefaultTargetDir = "target"

// Organization is the vendor publishing the project
type Organization struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// License is a license declared by the project. Only the first one is described.
type License struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
	// TextFile replaces the URL as the license full text when set
	TextFile string `yaml:"textFile,omitempty"`
}

// Build holds the build parameters
type Build struct {
	ScmTag         string   `yaml:"scmTag,omitempty"`
	BuildTag       string   `yaml:"buildTag,omitempty"`
	BuildTimestamp string   `yaml:"buildTimestamp,omitempty"`
	BuildUser      string   `yaml:"buildUser,omitempty"`
	Icon           string   `yaml:"icon,omitempty"`
	Pricing        string   `yaml:"pricing,omitempty"`
	Tags           []string `yaml:"tags,omitempty"`
	Resources      []string `yaml:"resources,omitempty"`
	// IncludeSelf ships MainArtifact in an addon and lists the project as its last bundle
	IncludeSelf bool `yaml:"includeSelf,omitempty"`
	// MainArtifact is the project's own jar shipped in a product package or a self-including addon
	MainArtifact string `yaml:"mainArtifact,omitempty"`
	Target       string `yaml:"target,omitempty"`
}

// Project describes one packaging project.
//
// Dependencies feed platform distributions (base and overlaid bundles),
// Bundles feed addons and products, and Addons feed marketplaces.
type Project struct {
	GroupID      string                `yaml:"groupId"`
	ArtifactID   string                `yaml:"artifactId"`
	Version      string                `yaml:"version"`
	Name         string                `yaml:"name"`
	Description  string                `yaml:"description"`
	URL          string                `yaml:"url"`
	Organization Organization          `yaml:"organization"`
	Licenses     []License             `yaml:"licenses,omitempty"`
	Dependencies []artifact.Coordinate `yaml:"dependencies,omitempty"`
	Bundles      []artifact.Coordinate `yaml:"bundles,omitempty"`
	Addons       []artifact.Coordinate `yaml:"addons,omitempty"`
	Build        Build                 `yaml:"build"`

	// dir is the directory relative paths are resolved against
	dir string
}

// Load reads and validates the project file at path
func Load(path string) (*Project, error) {
	path = paths.Expand(path)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ErrProjectNotFound.WithMessagef("project file not found: %s", path)
		}
		return nil, errors.ErrRead.WithMessagef("failed to open project file %s", path).WithCause(err)
	}
	defer f.Close()

	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, errors.ErrRead.WithMessagef("failed to resolve %s", path).WithCause(err)
	}
	return Parse(f, dir)
}

// Parse decodes a project from r. Relative paths in the project are resolved against dir.
func Parse(r io.Reader, dir string) (*Project, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.ErrRead.WithMessage("failed to read project").WithCause(err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var p Project
	if err := dec.Decode(&p); err != nil {
		if err == io.EOF {
			return nil, errors.ErrInvalidProject.WithMessage("project file is empty")
		}
		return nil, errors.ErrInvalidProject.WithMessage("failed to parse project").WithCause(err)
	}
	p.dir = dir
	p.normalize()

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Project) normalize() {
	p.GroupID = strings.TrimSpace(p.GroupID)
	p.ArtifactID = strings.TrimSpace(p.ArtifactID)
	p.Version = strings.TrimSpace(p.Version)
	for _, list := range [][]artifact.Coordinate{p.Dependencies, p.Bundles, p.Addons} {
		for i := range list {
			list[i] = list[i].Normalize()
		}
	}
	if p.Build.BuildUser == "" {
		p.Build.BuildUser = currentUser()
	}
}

// Validate checks that the project is complete enough to be packaged
func (p *Project) Validate() error {
	var problems []string
	if p.GroupID == "" {
		problems = append(problems, "groupId is required")
	}
	if p.ArtifactID == "" {
		problems = append(problems, "artifactId is required")
	}
	if p.Version == "" {
		problems = append(problems, "version is required")
	}

	check := func(section string, list []artifact.Coordinate) {
		for i, c := range list {
			if err := c.Validate(); err != nil {
				problems = append(problems, fmt.Sprintf("%s[%d]: %v", section, i, err))
			}
		}
	}
	check("dependencies", p.Dependencies)
	check("bundles", p.Bundles)
	check("addons", p.Addons)

	for i, l := range p.Licenses {
		if l.Name == "" {
			problems = append(problems, fmt.Sprintf("licenses[%d]: name is required", i))
		}
	}

	if len(problems) > 0 {
		return errors.ErrInvalidProject.WithMessagef("invalid project: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Coordinate returns the coordinate of the project itself
func (p *Project) Coordinate() artifact.Coordinate {
	return artifact.Coordinate{GroupID: p.GroupID, ArtifactID: p.ArtifactID, Version: p.Version}.Normalize()
}

// ArtifactName returns artifactId-version, the prefix of every produced file
func (p *Project) ArtifactName() string {
	return p.ArtifactID + "-" + p.Version
}

// Dir returns the directory holding the project file
func (p *Project) Dir() string {
	return p.dir
}

// SetDir changes the directory relative paths are resolved against
func (p *Project) SetDir(dir string) {
	p.dir = dir
}

// Path resolves a path from the project file. Empty stays empty.
func (p *Project) Path(rel string) string {
	if rel == "" {
		return ""
	}
	rel = paths.Expand(rel)
	if filepath.IsAbs(rel) || p.dir == "" {
		return rel
	}
	return filepath.Join(p.dir, rel)
}

// TargetDir returns the directory produced files are written to
func (p *Project) TargetDir() string {
	if p.Build.Target != "" {
		return p.Path(p.Build.Target)
	}
	return p.Path(DefaultTargetDir)
}

// License returns the first declared license, if any
func (p *Project) License() (License, bool) {
	if len(p.Licenses) == 0 {
		return License{}, false
	}
	return p.Licenses[0], true
}

// ResourcePaths returns the configured resources resolved from the project directory
func (p *Project) ResourcePaths() []string {
	out := make([]string, 0, len(p.Build.Resources))
	for _, r := range p.Build.Resources {
		if r == "" {
			continue
		}
		out = append(out, p.Path(r))
	}
	return out
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}
