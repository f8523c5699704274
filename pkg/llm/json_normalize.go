package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
)

// NormalizeJSONStringsToArrays walks a JSON structure and converts string values of the
// named object fields into arrays by splitting on commas. This handles cases where the
// LLM returns a string where a list is expected
// (e.g., {"technical_skills": "Python, SQL"} becomes {"technical_skills": ["Python", "SQL"]}).
//
// Note: Top-level values are preserved. Only values within object fields are normalized.
//
// Returns:
//   - normalized JSON bytes
//   - bool indicating whether any normalization occurred
//   - error if JSON parsing fails
func NormalizeJSONStringsToArrays(jsonBytes []byte, listFields ...string) ([]byte, bool, error) {
	var data interface{}
	if err := json.Unmarshal(jsonBytes, &data); err != nil {
		return nil, false, fmt.Errorf("failed to parse JSON: %w", err)
	}

	fields := make(map[string]bool, len(listFields))
	for _, f := range listFields {
		fields[f] = true
	}

	changed := false
	normalized := normalizeValue(data, fields, &changed)

	result, err := json.Marshal(normalized)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal normalized JSON: %w", err)
	}

	return result, changed, nil
}

func normalizeValue(value interface{}, fields map[string]bool, changed *bool) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		for key, val := range v {
			if s, ok := val.(string); ok && fields[key] {
				*changed = true
				result[key] = splitList(s)
				continue
			}
			result[key] = normalizeValue(val, fields, changed)
		}
		return result

	case []interface{}:
		result := make([]interface{}, len(v))
		for i, elem := range v {
			result[i] = normalizeValue(elem, fields, changed)
		}
		return result

	default:
		return value
	}
}

// splitList splits a comma-separated string, dropping blank parts.
func splitList(s string) []interface{} {
	out := []interface{}{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// listFieldsOf returns the JSON names of the []string fields of the struct
// schema points to. Any other schema yields nil.
func listFieldsOf(schema any) []string {
	t := reflect.TypeOf(schema)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}

	var names []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Type.Kind() != reflect.Slice || f.Type.Elem().Kind() != reflect.String {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		names = append(names, name)
	}
	return names
}

// decodeSchema strips code fences, coerces list fields and unmarshals raw into schema.
func decodeSchema(raw string, schema any, logger *slog.Logger) error {
	cleaned := stripMarkdownCodeFence(raw)

	normalized, changed, err := NormalizeJSONStringsToArrays([]byte(cleaned), listFieldsOf(schema)...)
	if err != nil {
		return fmt.Errorf("failed to normalize LLM response: %w", err)
	}

	if changed && logger != nil {
		logger.Warn("LLM response contained string values where lists expected; split on commas")
	}

	if err := json.Unmarshal(normalized, schema); err != nil {
		return fmt.Errorf("failed to unmarshal LLM response: %w", err)
	}

	return nil
}
