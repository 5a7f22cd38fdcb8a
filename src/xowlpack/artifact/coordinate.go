// Package artifact maps logical dependency coordinates to local artifact files.
package artifact

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultType is the artifact type assumed when a dependency declares none
const DefaultType = "jar"

// Handler describes how an artifact type is stored in a repository
type Handler struct {
	// Extension is the file extension used for the type
	Extension string
	// Classifier is the classifier implied by the type when the dependency has none
	Classifier string
}

// handlers maps artifact types to their repository representation.
// Types not listed here use the type name as the extension.
var handlers = map[string]Handler{
	"jar":           {Extension: "jar"},
	"bundle":        {Extension: "jar"},
	"maven-plugin":  {Extension: "jar"},
	"ejb":           {Extension: "jar"},
	"test-jar":      {Extension: "jar", Classifier: "tests"},
	"java-source":   {Extension: "jar", Classifier: "sources"},
	"javadoc":       {Extension: "jar", Classifier: "javadoc"},
	"pom":           {Extension: "pom"},
	"xowl-platform": {Extension: "tar.gz"},
}

// RegisterHandler adds or replaces the handler for an artifact type
func RegisterHandler(artifactType string, h Handler) {
	handlers[artifactType] = h
}

// Coordinate identifies a resolvable artifact
type Coordinate struct {
	GroupID    string `yaml:"groupId" json:"groupId"`
	ArtifactID string `yaml:"artifactId" json:"artifactId"`
	Version    string `yaml:"version" json:"version"`
	Classifier string `yaml:"classifier,omitempty" json:"classifier,omitempty"`
	Type       string `yaml:"type,omitempty" json:"type,omitempty"`
}

// Normalize returns the coordinate with defaults applied:
// an empty type becomes "jar" and an empty classifier takes the one implied by the type handler.
func (c Coordinate) Normalize() Coordinate {
	c.GroupID = strings.TrimSpace(c.GroupID)
	c.ArtifactID = strings.TrimSpace(c.ArtifactID)
	c.Version = strings.TrimSpace(c.Version)
	c.Classifier = strings.TrimSpace(c.Classifier)
	c.Type = strings.TrimSpace(c.Type)
	if c.Type == "" {
		c.Type = DefaultType
	}
	if c.Classifier == "" {
		if h, ok := handlers[c.Type]; ok {
			c.Classifier = h.Classifier
		}
	}
	return c
}

// Extension returns the file extension for the coordinate's type
func (c Coordinate) Extension() string {
	t := c.Type
	if t == "" {
		t = DefaultType
	}
	if h, ok := handlers[t]; ok && h.Extension != "" {
		return h.Extension
	}
	return t
}

// Validate checks that the identifying fields are present
func (c Coordinate) Validate() error {
	var missing []string
	if c.GroupID == "" {
		missing = append(missing, "groupId")
	}
	if c.ArtifactID == "" {
		missing = append(missing, "artifactId")
	}
	if c.Version == "" {
		missing = append(missing, "version")
	}
	if len(missing) > 0 {
		return fmt.Errorf("coordinate %s is missing %s", c, strings.Join(missing, ", "))
	}
	return nil
}

// Identifier returns groupId.artifactId-version
func (c Coordinate) Identifier() string {
	return c.GroupID + "." + c.ArtifactID + "-" + c.Version
}

// FileName returns the canonical archive entry name:
// groupId.artifactId-version[-classifier].extension
func (c Coordinate) FileName() string {
	return c.GroupID + "." + c.ShortFileName()
}

// ShortFileName returns artifactId-version[-classifier].extension
func (c Coordinate) ShortFileName() string {
	c = c.Normalize()
	name := c.ArtifactID + "-" + c.Version
	if c.Classifier != "" {
		name += "-" + c.Classifier
	}
	return name + "." + c.Extension()
}

// WithType returns a copy of the coordinate with another type and no classifier
func (c Coordinate) WithType(artifactType string) Coordinate {
	c.Type = artifactType
	c.Classifier = ""
	return c
}

// String returns the Maven-style groupId:artifactId:version[:classifier]:type form
func (c Coordinate) String() string {
	n := c.Normalize()
	if n.Classifier != "" {
		return fmt.Sprintf("%s:%s:%s:%s:%s", n.GroupID, n.ArtifactID, n.Version, n.Classifier, n.Type)
	}
	return fmt.Sprintf("%s:%s:%s:%s", n.GroupID, n.ArtifactID, n.Version, n.Type)
}

// RepositoryPath returns the slash-separated Maven repository layout path of the artifact file
func (c Coordinate) RepositoryPath() string {
	n := c.Normalize()
	return strings.ReplaceAll(n.GroupID, ".", "/") + "/" + n.ArtifactID + "/" + n.Version + "/" + n.ShortFileName()
}

// Parse parses groupId:artifactId:version[:type] or groupId:artifactId:version:classifier:type
func Parse(s string) (Coordinate, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	var c Coordinate
	switch len(parts) {
	case 3:
		c = Coordinate{GroupID: parts[0], ArtifactID: parts[1], Version: parts[2]}
	case 4:
		c = Coordinate{GroupID: parts[0], ArtifactID: parts[1], Version: parts[2], Type: parts[3]}
	case 5:
		c = Coordinate{GroupID: parts[0], ArtifactID: parts[1], Version: parts[2], Classifier: parts[3], Type: parts[4]}
	default:
		return Coordinate{}, fmt.Errorf("invalid coordinate %q: expected groupId:artifactId:version[:classifier][:type]", s)
	}
	c = c.Normalize()
	if err := c.Validate(); err != nil {
		return Coordinate{}, err
	}
	return c, nil
}

// UnmarshalYAML accepts either a mapping or the short form understood by Parse
func (c *Coordinate) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		parsed, err := Parse(node.Value)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	}
	type plain Coordinate
	return node.Decode((*plain)(c))
}

// Resolved is a coordinate bound to the local file it was resolved to
type Resolved struct {
	Coordinate
	Path string
}
