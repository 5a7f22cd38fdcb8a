package descriptor

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cenotelie/xowl-toolkit/src/common/errors"
)

// License is the license block of a descriptor. The zero License renders as {}.
type License struct {
	Name     string
	FullText string
}

// IsZero reports whether no license was declared
func (l License) IsZero() bool {
	return l.Name == "" && l.FullText == ""
}

// MarshalJSON implements json.Marshaler
func (l License) MarshalJSON() ([]byte, error) {
	if l.IsZero() {
		return []byte("{}"), nil
	}
	return encode(struct {
		Name     string `json:"name"`
		FullText string `json:"fullText"`
	}{l.Name, l.FullText}, "")
}

// NewLicense returns the license block for a declared license. The full text is
// the content of textPath when given, otherwise the license URL.
func NewLicense(name, url, textPath string) (License, error) {
	if name == "" && url == "" && textPath == "" {
		return License{}, nil
	}
	text := url
	if textPath != "" {
		content, err := LoadText(textPath)
		if err != nil {
			return License{}, err
		}
		text = content
	}
	return License{Name: name, FullText: text}, nil
}

// Icon is an icon embedded in a descriptor
type Icon struct {
	Name    string
	Content string
}

// LoadIcon reads the icon at path and encodes it in base64. An empty path
// yields an empty icon and a warning.
func LoadIcon(path string) (Icon, error) {
	if path == "" {
		log.Warn("No icon has been specified")
		return Icon{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Icon{}, errors.ErrRead.WithMessagef("failed to read the specified icon (%s)", path).WithCause(err)
	}
	return Icon{
		Name:    filepath.Base(path),
		Content: base64.StdEncoding.EncodeToString(data),
	}, nil
}

// LoadText reads a UTF-8 text file such as a license text
func LoadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.ErrRead.WithMessagef("failed to read %s", path).WithCause(err)
	}
	return string(data), nil
}

// encode serializes v without HTML escaping, using indent when not empty,
// and drops the trailing newline the encoder appends
func encode(v any, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Render serializes a descriptor as tab-indented JSON terminated by a newline
func Render(doc Document) ([]byte, error) {
	data, err := encode(doc, "\t")
	if err != nil {
		return nil, fmt.Errorf("failed to render %s descriptor: %w", doc.Kind(), err)
	}
	return append(data, '\n'), nil
}

// Write renders doc, validates it against the schema of its kind and writes it to path
func Write(path string, doc Document) error {
	data, err := Render(doc)
	if err != nil {
		return errors.ErrInternal.WithMessagef("failed to render descriptor %s", path).WithCause(err)
	}
	if err := Validate(doc.Kind(), data); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.ErrIO.WithMessagef("failed to write descriptor %s", path).WithCause(err)
	}
	log.Debug("Wrote descriptor", "kind", doc.Kind(), "path", path)
	return nil
}
