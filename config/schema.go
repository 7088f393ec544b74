package config

import (
	"sort"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Schemas maps each file kind the engine reads to the JSON schema describing it.
var Schemas = map[string]*jsonschema.Schema{
	"config": jsonschema.Reflect(&Config{}),
	"scene":  jsonschema.Reflect(&Scene{}),
}

// SchemaFor returns the schema for a file kind.
func SchemaFor(kind string) (*jsonschema.Schema, error) {
	schema, ok := Schemas[kind]
	if !ok {
		return nil, errors.Errorf("no schema for %q, expected one of %v", kind, SchemaKinds())
	}
	return schema, nil
}

// SchemaKinds lists the kinds accepted by SchemaFor in sorted order.
func SchemaKinds() []string {
	kinds := lo.Keys(Schemas)
	sort.Strings(kinds)
	return kinds
}
