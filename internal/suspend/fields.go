package suspend

import (
	"encoding/base64"
	"math"
)

// Validation helpers shared by every format decoder. Each checks presence
// and type of one field and fails with a corruption error naming it; the
// first violation aborts the whole resume.

func getObject(obj map[string]any, field string) (map[string]any, error) {
	raw, ok := obj[field]
	if !ok {
		return nil, corruptedf(field, "missing required field")
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, corruptedf(field, "expected object, got %T", raw)
	}
	return m, nil
}

func getList(obj map[string]any, field string) ([]any, error) {
	raw, ok := obj[field]
	if !ok {
		return nil, corruptedf(field, "missing required field")
	}
	l, ok := raw.([]any)
	if !ok {
		return nil, corruptedf(field, "expected list, got %T", raw)
	}
	return l, nil
}

func getStringList(obj map[string]any, field string) ([]string, error) {
	raw, err := getList(obj, field)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, corruptedf(field, "expected string element, got %T", item)
		}
		out = append(out, s)
	}
	return out, nil
}

func getString(obj map[string]any, field string) (string, error) {
	raw, ok := obj[field]
	if !ok {
		return "", corruptedf(field, "missing required field")
	}
	s, ok := raw.(string)
	if !ok {
		return "", corruptedf(field, "expected string, got %T", raw)
	}
	return s, nil
}

// getStringOrNull accepts a string or an explicit null; the field must
// still be present.
func getStringOrNull(obj map[string]any, field string) (string, error) {
	raw, ok := obj[field]
	if !ok {
		return "", corruptedf(field, "missing required field")
	}
	if raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", corruptedf(field, "expected string or null, got %T", raw)
	}
	return s, nil
}

func getIntOrNull(obj map[string]any, field string) (*int, error) {
	raw, ok := obj[field]
	if !ok {
		return nil, corruptedf(field, "missing required field")
	}
	if raw == nil {
		return nil, nil
	}
	f, ok := raw.(float64)
	if !ok || f != math.Trunc(f) {
		return nil, corruptedf(field, "expected integer or null, got %v", raw)
	}
	n := int(f)
	return &n, nil
}

func getFloatOrNull(obj map[string]any, field string) (*float64, error) {
	raw, ok := obj[field]
	if !ok {
		return nil, corruptedf(field, "missing required field")
	}
	if raw == nil {
		return nil, nil
	}
	f, ok := raw.(float64)
	if !ok {
		return nil, corruptedf(field, "expected number or null, got %v", raw)
	}
	return &f, nil
}

// getBase64OrNull decodes a base64 string field, accepting explicit null.
func getBase64OrNull(obj map[string]any, field string) ([]byte, error) {
	s, err := getStringOrNull(obj, field)
	if err != nil {
		return nil, err
	}
	if s == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, corruptedf(field, "invalid base64: %v", err)
	}
	return data, nil
}
