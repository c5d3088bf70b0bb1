package tools

import (
	"fmt"
	"math"
)

// validateArgs checks an argument payload against a tool schema. It reports
// the first violation found; nothing is executed on failure.
func validateArgs(s Schema, args map[string]any) error {
	for _, req := range s.Required {
		if _, ok := args[req]; !ok {
			return fmt.Errorf("missing required property %q", req)
		}
	}
	for key, val := range args {
		prop, ok := s.Properties[key]
		if !ok {
			return fmt.Errorf("unknown property %q", key)
		}
		if err := validateValue(prop, val); err != nil {
			return fmt.Errorf("property %q: %w", key, err)
		}
	}
	return nil
}

func validateValue(p *Prop, val any) error {
	switch p.Type {
	case "string":
		s, ok := val.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", val)
		}
		if len(p.Enum) > 0 {
			for _, e := range p.Enum {
				if s == e {
					return nil
				}
			}
			return fmt.Errorf("value %q not in %v", s, p.Enum)
		}
	case "boolean":
		if _, ok := val.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", val)
		}
	case "integer", "number":
		n, ok := toFloat(val)
		if !ok {
			return fmt.Errorf("expected %s, got %T", p.Type, val)
		}
		if p.Type == "integer" && n != math.Trunc(n) {
			return fmt.Errorf("expected integer, got %v", val)
		}
		if p.Minimum != nil && n < *p.Minimum {
			return fmt.Errorf("value %v below minimum %v", val, *p.Minimum)
		}
		if p.Maximum != nil && n > *p.Maximum {
			return fmt.Errorf("value %v above maximum %v", val, *p.Maximum)
		}
	case "array":
		items, ok := val.([]any)
		if !ok {
			return fmt.Errorf("expected array, got %T", val)
		}
		if p.Items != nil {
			for i, item := range items {
				if err := validateValue(p.Items, item); err != nil {
					return fmt.Errorf("item %d: %w", i, err)
				}
			}
		}
	default:
		return fmt.Errorf("unsupported schema type %q", p.Type)
	}
	return nil
}

func toFloat(val any) (float64, bool) {
	switch n := val.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// Typed accessors used by the dispatcher after validation has passed.

func argString(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func argStrings(args map[string]any, key string) []string {
	items, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func argBool(args map[string]any, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}

func argInt(args map[string]any, key string, def int) int {
	if v, ok := toFloat(args[key]); ok {
		return int(v)
	}
	return def
}
