package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// overlay holds values read from a YAML config file, keyed by environment
// variable name.
type overlay map[string]string

// readOverlay parses path, if set. Keys are matched case-insensitively against
// variable names, so risk_limit and RISK_LIMIT are the same setting. Lists are
// joined with commas.
func readOverlay(path string) (overlay, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator.
	if err != nil {
		return nil, fmt.Errorf("reading SCREENER_CONFIG: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing SCREENER_CONFIG %s: %w", path, err)
	}

	out := make(overlay, len(raw))

	for k, v := range raw {
		key := strings.ToUpper(strings.TrimSpace(k))

		switch val := v.(type) {
		case nil:
			continue
		case []any:
			parts := make([]string, 0, len(val))
			for _, p := range val {
				parts = append(parts, fmt.Sprint(p))
			}
			out[key] = strings.Join(parts, ",")
		case map[string]any:
			return nil, fmt.Errorf("SCREENER_CONFIG key %q must be a scalar or a list", k)
		default:
			out[key] = fmt.Sprint(val)
		}
	}

	return out, nil
}

func (o overlay) getOrDefault(key, fallback string) string {
	if v, ok := o[key]; ok && v != "" {
		return v
	}

	return fallback
}
