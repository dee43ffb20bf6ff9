package schema

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"

	"github.com/membercore/integra/internal/record"
)

//go:embed registry.cue
var registrySchema string

// registryFile is the YAML shape of a declared registry. Refs and rules are
// lists, not maps, so declaration order survives decoding.
type registryFile struct {
	Refs  []refDecl     `yaml:"refs"`
	Rules []ruleSetDecl `yaml:"rules"`
}

type refDecl struct {
	Child  string `yaml:"child"`
	Parent string `yaml:"parent"`
	Field  string `yaml:"field"`
}

type ruleSetDecl struct {
	Parent   string     `yaml:"parent"`
	OnDelete []ruleDecl `yaml:"onDelete"`
	OnUpdate []ruleDecl `yaml:"onUpdate"`
}

type ruleDecl struct {
	Child  string `yaml:"child"`
	Action string `yaml:"action"`
}

// LoadRegistry reads a YAML registry file, validates it against the
// embedded CUE schema, and builds a Registry from it.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	reg, err := ParseRegistry(data)
	if err != nil {
		return nil, fmt.Errorf("registry %s: %w", path, err)
	}
	return reg, nil
}

// ParseRegistry validates and builds a Registry from YAML bytes.
//
// Validation happens twice, deliberately at different levels: the CUE schema
// rejects structural problems (unknown collections, LOG on onDelete) with
// positioned messages, and the Declare/OnDelete/OnUpdate calls re-check the
// same constraints plus duplicates while building.
func ParseRegistry(data []byte) (*Registry, error) {
	if err := validateRegistry(data); err != nil {
		return nil, err
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}

	reg := NewRegistry()
	for _, ref := range file.Refs {
		if err := reg.DeclareRef(record.Collection(ref.Child), record.Collection(ref.Parent), ref.Field); err != nil {
			return nil, err
		}
	}
	for _, set := range file.Rules {
		parent := record.Collection(set.Parent)
		for _, rule := range set.OnDelete {
			action, err := ParseAction(rule.Action)
			if err != nil {
				return nil, err
			}
			if err := reg.OnDelete(parent, record.Collection(rule.Child), action); err != nil {
				return nil, err
			}
		}
		for _, rule := range set.OnUpdate {
			action, err := ParseAction(rule.Action)
			if err != nil {
				return nil, err
			}
			if err := reg.OnUpdate(parent, record.Collection(rule.Child), action); err != nil {
				return nil, err
			}
		}
	}
	return reg, nil
}

// validateRegistry unifies the YAML document with the #Registry definition
// from the embedded CUE schema.
func validateRegistry(data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(registrySchema, cue.Filename("registry.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile registry schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Registry"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("lookup #Registry: %w", err)
	}

	file, err := cueyaml.Extract("registry.yaml", data)
	if err != nil {
		return fmt.Errorf("parse registry YAML: %w", err)
	}
	doc := ctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return fmt.Errorf("build registry YAML: %w", err)
	}

	unified := def.Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid registry:\n%s", cueerrors.Details(err, nil))
	}
	return nil
}
