package models

import (
	"fmt"
	"strings"
)

// schemaAliases maps the shorthand schema names accepted in job documents to
// their canonical form.
var schemaAliases = map[string]string{
	"definitions": "definition",
	"stats":       "statistics",
	"ohlcv":       "ohlcv-1d",
}

// NormalizeSchema canonicalizes a job schema string.
func NormalizeSchema(schema string) string {
	s := strings.ToLower(strings.TrimSpace(schema))
	if canonical, ok := schemaAliases[s]; ok {
		return canonical
	}
	return s
}

// KindForSchema resolves a normalized schema to its record kind and, for
// OHLCV schemas, the granularity encoded in the trailing token.
func KindForSchema(schema string) (RecordKind, Granularity, error) {
	s := NormalizeSchema(schema)
	switch s {
	case "trades":
		return KindTrade, "", nil
	case "tbbo":
		return KindTbbo, "", nil
	case "statistics":
		return KindStatistics, "", nil
	case "definition":
		return KindDefinition, "", nil
	}
	if rest, ok := strings.CutPrefix(s, "ohlcv-"); ok {
		g, err := ParseGranularity(rest)
		if err != nil {
			return "", "", fmt.Errorf("schema %q: %w", schema, err)
		}
		return KindOhlcv, g, nil
	}
	return "", "", fmt.Errorf("unknown schema %q", schema)
}
