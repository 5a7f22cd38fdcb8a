package descriptor

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"sync"

	"github.com/cenotelie/xowl-toolkit/src/common/errors"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBase = "xowlpack://descriptor/"

var (
	schemasOnce sync.Once
	schemas     map[Kind]*jsonschema.Schema
	schemasErr  error
)

// compileSchemas loads every embedded schema into one compiler so that
// cross-file references resolve
func compileSchemas() (map[Kind]*jsonschema.Schema, error) {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("read embedded schemas: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	for _, entry := range entries {
		data, err := schemaFS.ReadFile(path.Join("schemas", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", entry.Name(), err)
		}
		if err := compiler.AddResource(schemaBase+entry.Name(), bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("add schema resource %s: %w", entry.Name(), err)
		}
	}

	compiled := make(map[Kind]*jsonschema.Schema)
	for _, kind := range []Kind{KindAddon, KindPlatform, KindMarketplace, KindProduct, KindProductDefinition} {
		s, err := compiler.Compile(schemaBase + string(kind) + ".json")
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", kind, err)
		}
		compiled[kind] = s
	}
	return compiled, nil
}

// Validate checks rendered descriptor data against the schema of kind
func Validate(kind Kind, data []byte) error {
	schemasOnce.Do(func() {
		schemas, schemasErr = compileSchemas()
	})
	if schemasErr != nil {
		return errors.ErrInternal.WithMessage("descriptor schemas are unusable").WithCause(schemasErr)
	}

	schema, ok := schemas[kind]
	if !ok {
		return errors.ErrDescriptorInvalid.WithMessagef("no schema for descriptor kind %q", kind)
	}

	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return errors.ErrDescriptorInvalid.WithMessagef("%s descriptor is not valid JSON", kind).WithCause(err)
	}
	if err := schema.Validate(payload); err != nil {
		return errors.ErrDescriptorInvalid.WithMessagef("%s descriptor does not match its schema", kind).WithCause(err)
	}
	return nil
}
