package tools

import (
	"encoding/base64"
	"fmt"
)

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func requiredStringArg(args map[string]any, key string) (string, error) {
	v := stringArg(args, key)
	if v == "" {
		return "", fmt.Errorf("%q is required", key)
	}
	return v, nil
}

func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

func boolArg(args map[string]any, key string) bool {
	v, _ := args[key].(bool)
	return v
}

func int64Arg(args map[string]any, key string) (int64, error) {
	switch v := args[key].(type) {
	case float64:
		return int64(v), nil
	case string:
		var id int64
		if _, err := fmt.Sscanf(v, "%d", &id); err != nil {
			return 0, fmt.Errorf("%q is not a valid id: %w", key, err)
		}
		return id, nil
	default:
		return 0, fmt.Errorf("%q is required", key)
	}
}

func base64Arg(args map[string]any, key string) ([]byte, error) {
	v := stringArg(args, key)
	if v == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(v)
}

func stringSliceArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
