package transform

import (
	"errors"
	"fmt"

	"marketscan/internal/models"
)

// Engine applies a compiled Mapping to raw records. It is a pure function
// over its inputs: order is preserved, inputs are never mutated, and no
// clocks or external services are consulted.
type Engine struct {
	mapping *Mapping
}

func NewEngine(m *Mapping) *Engine {
	return &Engine{mapping: m}
}

// TransformBatch normalizes a batch of raw records for the given kind.
// A record that fails to coerce is passed through unchanged and its error is
// reported in the same position of errs; downstream validation decides its
// fate. len(out) == len(records) always.
func (e *Engine) TransformBatch(records []models.RawRecord, kind models.RecordKind) (out []models.RawRecord, errs []error) {
	out = make([]models.RawRecord, len(records))
	errs = make([]error, len(records))

	km, ok := e.mapping.kindFor(kind)
	if !ok {
		for i, rec := range records {
			out[i] = rec
			errs[i] = fmt.Errorf("no mapping for kind %q", kind)
		}
		return out, errs
	}

	for i, rec := range records {
		normalized, err := e.transformOne(km, rec)
		if err != nil {
			out[i] = rec
			errs[i] = err
			continue
		}
		out[i] = normalized
	}
	return out, errs
}

func (e *Engine) transformOne(km kindMapping, rec models.RawRecord) (models.RawRecord, error) {
	// Rename aliased source fields to their canonical names first, so rules
	// only ever see canonical sources.
	src := make(map[string]any, len(rec.Fields))
	for name, v := range rec.Fields {
		src[e.mapping.canonicalName(km, name)] = v
	}

	dst := make(map[string]any, len(src))
	mapped := make(map[string]bool, len(km.Rules))

	for _, rule := range km.Rules {
		mapped[rule.Source] = true
		raw, present := src[rule.Source]
		if !present || raw == nil {
			if rule.Default != nil {
				dst[rule.Target] = rule.Default
			}
			// Missing optional fields stay absent; missing required fields
			// without a default pass through for validation to catch.
			continue
		}

		v, err := rule.Coerce(raw)
		if err != nil {
			if errors.Is(err, errAbsent) {
				if rule.Optional {
					continue
				}
				if rule.Default != nil {
					dst[rule.Target] = rule.Default
					continue
				}
				continue
			}
			return models.RawRecord{}, fmt.Errorf("field %s: %w", rule.Source, err)
		}
		dst[rule.Target] = v
	}

	// Unmapped source fields ride along untouched. The repair step depends on
	// this (e.g. statistics records arriving with a bare 'price' field).
	for name, v := range src {
		if !mapped[name] {
			if _, taken := dst[name]; !taken {
				dst[name] = v
			}
		}
	}

	return models.RawRecord{Kind: rec.Kind, Fields: dst}, nil
}
