package retrieve

import (
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// CleanNarrative strips a FHIR Narrative datatype's embedded XHTML
// (`<div xmlns="http://www.w3.org/1999/xhtml">...</div>`) down to plain
// prose before a snippet is shown to a clinician; HybridSearch runs it over
// every fused result's snippet.
// Text that isn't actually markup passes through unchanged.
func CleanNarrative(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if !strings.Contains(trimmed, "<") {
		return trimmed
	}
	out, err := htmltomarkdown.ConvertString(trimmed)
	if err != nil {
		return trimmed
	}
	return strings.TrimSpace(out)
}
