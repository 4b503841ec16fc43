package tools

import "testing"

func TestStringArgMissingReturnsEmpty(t *testing.T) {
	if v := stringArg(map[string]any{}, "query"); v != "" {
		t.Fatalf("expected empty string, got %q", v)
	}
}

func TestRequiredStringArgErrorsWhenMissing(t *testing.T) {
	if _, err := requiredStringArg(map[string]any{"query": ""}, "query"); err == nil {
		t.Fatal("expected error for empty required string")
	}
}

func TestIntArgDecodesJSONFloat64(t *testing.T) {
	if v := intArg(map[string]any{"top_k": float64(7)}, "top_k", 10); v != 7 {
		t.Fatalf("expected 7, got %d", v)
	}
}

func TestIntArgFallsBackToDefault(t *testing.T) {
	if v := intArg(map[string]any{}, "top_k", 10); v != 10 {
		t.Fatalf("expected default 10, got %d", v)
	}
}

func TestInt64ArgAcceptsNumberOrString(t *testing.T) {
	id, err := int64Arg(map[string]any{"entity_id": float64(42)}, "entity_id")
	if err != nil || id != 42 {
		t.Fatalf("expected 42, got %d (err=%v)", id, err)
	}
	id, err = int64Arg(map[string]any{"entity_id": "42"}, "entity_id")
	if err != nil || id != 42 {
		t.Fatalf("expected 42 from string, got %d (err=%v)", id, err)
	}
}

func TestInt64ArgErrorsWhenMissing(t *testing.T) {
	if _, err := int64Arg(map[string]any{}, "entity_id"); err == nil {
		t.Fatal("expected error for missing entity_id")
	}
}

func TestBase64ArgEmptyIsNilNotError(t *testing.T) {
	b, err := base64Arg(map[string]any{}, "query_image_base64")
	if err != nil || b != nil {
		t.Fatalf("expected nil,nil for absent key, got %v, %v", b, err)
	}
}

func TestBase64ArgRejectsInvalidEncoding(t *testing.T) {
	if _, err := base64Arg(map[string]any{"query_image_base64": "not-base64!!"}, "query_image_base64"); err == nil {
		t.Fatal("expected decode error")
	}
}
