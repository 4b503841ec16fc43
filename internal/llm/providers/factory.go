// Package providers dispatches on config.LLMConfig.Provider to construct the
// matching llm.Provider adapter.
package providers

import (
	"fmt"
	"net/http"
	"strings"

	"clinicalrag/internal/config"
	"clinicalrag/internal/llm"
	"clinicalrag/internal/llm/anthropic"
	"clinicalrag/internal/llm/google"
	openaillm "clinicalrag/internal/llm/openai"
)

// Build constructs an llm.Provider based on the configured provider name.
func Build(cfg config.LLMConfig, httpClient *http.Client) (llm.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "openai":
		return openaillm.New(cfg.URL, cfg.APIKey, cfg.Model, httpClient), nil
	case "anthropic":
		return anthropic.New(cfg.URL, cfg.APIKey, cfg.Model, httpClient), nil
	case "google", "gemini":
		return google.New(cfg.URL, cfg.APIKey, cfg.Model, httpClient)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}
