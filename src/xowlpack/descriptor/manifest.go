package descriptor

import (
	"os"
	"strings"

	"github.com/cenotelie/xowl-toolkit/src/common/errors"
)

// ManifestFileName is the name of the manifest at the root of a platform distribution
const ManifestFileName = "manifest.txt"

// Manifest is the plaintext manifest of a platform distribution
type Manifest struct {
	Version   string
	Changeset string
	BuildDate string
	BuildTag  string
	BuildUser string
	Base      string
}

// NewManifest builds the manifest of a platform from its fields and the identifier of its base
func NewManifest(f Fields, base string) Manifest {
	return Manifest{
		Version:   f.Version,
		Changeset: f.Build.ScmTag,
		BuildDate: f.Build.Timestamp,
		BuildTag:  f.Build.Tag,
		BuildUser: f.Build.User,
		Base:      base,
	}
}

// Render returns the "key = value" lines of the manifest, values written as is
func (m Manifest) Render() []byte {
	var sb strings.Builder
	line := func(key, value string) {
		sb.WriteString(key)
		sb.WriteString(" = ")
		sb.WriteString(value)
		sb.WriteByte('\n')
	}
	line("version", m.Version)
	line("changeset", m.Changeset)
	line("build-date", m.BuildDate)
	line("build-tag", m.BuildTag)
	line("build-user", m.BuildUser)
	line("base", m.Base)
	return []byte(sb.String())
}

// Write writes the manifest to path
func (m Manifest) Write(path string) error {
	if err := os.WriteFile(path, m.Render(), 0644); err != nil {
		return errors.ErrIO.WithMessagef("failed to write manifest %s", path).WithCause(err)
	}
	return nil
}
