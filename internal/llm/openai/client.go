// Package openai adapts the OpenAI-compatible chat-completions API (also
// served by most self-hosted OpenAI-shaped runtimes) to the normalized
// llm.Provider interface.
package openai

import (
	"context"
	"net/http"
	"strings"
	"time"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"go.opentelemetry.io/otel"

	"clinicalrag/internal/llm"
	"clinicalrag/internal/observability"
)

// Client drives the OpenAI chat-completions endpoint, including
// self-hosted, OpenAI-compatible deployments (e.g. vLLM, llama.cpp server)
// reachable at a custom BaseURL.
type Client struct {
	sdk     sdk.Client
	model   string
	baseURL string
}

// New constructs a Client. baseURL may be empty to use the public OpenAI
// API; httpClient may be nil to use http.DefaultClient.
func New(baseURL, apiKey, model string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithHTTPClient(httpClient)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Client{sdk: sdk.NewClient(opts...), model: model, baseURL: baseURL}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// Chat implements llm.Provider.Chat using OpenAI Chat Completions.
func (c *Client) Chat(ctx context.Context, msgs []llm.Message, tools []llm.ToolSchema, model string, temperature float64) (llm.Message, error) {
	effectiveModel := firstNonEmpty(model, c.model)
	log := observability.LoggerWithTrace(ctx)

	ctx, span := otel.Tracer("clinicalrag/llm").Start(ctx, "openai.Chat")
	defer span.End()

	params := sdk.ChatCompletionNewParams{
		Model:       sdk.ChatModel(effectiveModel),
		Messages:    AdaptMessages(msgs),
		Temperature: sdk.Float(temperature),
	}
	if len(tools) > 0 {
		params.Tools = AdaptSchemas(tools)
	}

	start := time.Now()
	comp, err := c.sdk.Chat.Completions.New(ctx, params)
	dur := time.Since(start)
	if err != nil {
		log.Error().Err(err).Str("model", effectiveModel).Dur("duration", dur).Msg("openai_chat_error")
		span.RecordError(err)
		return llm.Message{}, err
	}
	log.Debug().Str("model", effectiveModel).Dur("duration", dur).
		Int("prompt_tokens", int(comp.Usage.PromptTokens)).
		Int("completion_tokens", int(comp.Usage.CompletionTokens)).
		Msg("openai_chat_ok")

	if len(comp.Choices) == 0 {
		return llm.Message{}, nil
	}
	msg := comp.Choices[0].Message
	out := llm.Message{Role: "assistant", Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		if fn, ok := tc.AsAny().(sdk.ChatCompletionMessageFunctionToolCall); ok {
			out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
				ID:   fn.ID,
				Name: fn.Function.Name,
				Args: []byte(fn.Function.Arguments),
			})
		}
	}
	return out, nil
}
