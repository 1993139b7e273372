package transform

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"marketscan/internal/models"
)

//go:embed mapping.yaml
var defaultMappingYAML []byte

// mappingDoc mirrors the YAML mapping document shape.
type mappingDoc struct {
	Version int               `yaml:"version"`
	Aliases map[string]string `yaml:"aliases"`
	Kinds   map[string]struct {
		Aliases map[string]string `yaml:"aliases"`
		Rules   []ruleDoc         `yaml:"rules"`
	} `yaml:"kinds"`
}

type ruleDoc struct {
	Source   string `yaml:"source"`
	Target   string `yaml:"target"`
	Coerce   string `yaml:"coerce"`
	Default  string `yaml:"default"`
	Optional bool   `yaml:"optional"`
}

// fieldRule is one compiled mapping entry.
type fieldRule struct {
	Source   string
	Target   string
	Coerce   coerceFunc
	Default  any
	Optional bool
}

// kindMapping is the compiled mapping for one record kind.
type kindMapping struct {
	Aliases map[string]string
	Rules   []fieldRule
}

// Mapping is the eagerly compiled mapping document. References to unknown
// coercions, duplicate targets, or unknown kinds fail at load time, never at
// record time.
type Mapping struct {
	aliases map[string]string
	kinds   map[models.RecordKind]kindMapping
}

// LoadDefaultMapping compiles the embedded mapping document.
func LoadDefaultMapping() (*Mapping, error) {
	return compileMapping(defaultMappingYAML)
}

// LoadMappingFile compiles a mapping document from disk.
func LoadMappingFile(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping document: %w", err)
	}
	return compileMapping(data)
}

func compileMapping(data []byte) (*Mapping, error) {
	var doc mappingDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse mapping document: %w", err)
	}
	if doc.Version != 1 {
		return nil, fmt.Errorf("unsupported mapping document version %d", doc.Version)
	}

	m := &Mapping{
		aliases: doc.Aliases,
		kinds:   make(map[models.RecordKind]kindMapping, len(doc.Kinds)),
	}
	if m.aliases == nil {
		m.aliases = map[string]string{}
	}

	for name, kd := range doc.Kinds {
		kind := models.RecordKind(name)
		if !kind.Valid() {
			return nil, fmt.Errorf("mapping document names unknown kind %q", name)
		}

		km := kindMapping{Aliases: kd.Aliases, Rules: make([]fieldRule, 0, len(kd.Rules))}
		seen := make(map[string]bool, len(kd.Rules))
		for _, rd := range kd.Rules {
			if rd.Source == "" {
				return nil, fmt.Errorf("%s: rule with empty source", name)
			}
			target := rd.Target
			if target == "" {
				target = rd.Source
			}
			if seen[target] {
				return nil, fmt.Errorf("%s: duplicate target field %q", name, target)
			}
			seen[target] = true

			fn, ok := coercions[rd.Coerce]
			if !ok {
				return nil, fmt.Errorf("%s/%s: unknown coercion %q", name, rd.Source, rd.Coerce)
			}

			rule := fieldRule{Source: rd.Source, Target: target, Coerce: fn, Optional: rd.Optional}
			if rd.Default != "" {
				// Defaults pass through the same coercion so they are always
				// well-typed after compile.
				v, err := fn(rd.Default)
				if err != nil {
					return nil, fmt.Errorf("%s/%s: default %q does not coerce: %w", name, rd.Source, rd.Default, err)
				}
				rule.Default = v
			}
			km.Rules = append(km.Rules, rule)
		}
		m.kinds[kind] = km
	}

	for _, kind := range []models.RecordKind{models.KindOhlcv, models.KindTrade, models.KindTbbo, models.KindStatistics, models.KindDefinition} {
		if _, ok := m.kinds[kind]; !ok {
			return nil, fmt.Errorf("mapping document is missing kind %q", kind)
		}
	}
	return m, nil
}

// kindFor returns the compiled mapping for a kind.
func (m *Mapping) kindFor(kind models.RecordKind) (kindMapping, bool) {
	km, ok := m.kinds[kind]
	return km, ok
}

// canonicalName resolves a source field through the global and per-kind
// alias tables.
func (m *Mapping) canonicalName(km kindMapping, field string) string {
	if canon, ok := km.Aliases[field]; ok {
		return canon
	}
	if canon, ok := m.aliases[field]; ok {
		return canon
	}
	return field
}
