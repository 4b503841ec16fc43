// Package embedding is the single process-wide client to the remote
// text+image embedding service (spec.md §4.1). It is lazily initialized,
// thread-safe, and downgrades to a sticky mock mode rather than failing
// every caller when the remote service cannot be reached.
package embedding

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"sync"
	"sync/atomic"

	"clinicalrag/internal/apperr"
	"clinicalrag/internal/observability"

	"github.com/rs/zerolog/log"
)

const (
	TextDim  = 384
	ImageDim = 1024
)

type embedReq struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResp struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Client is the lazily-initialized, thread-safe embedding client. Construct
// once per process and share it; it carries its own mock-mode state.
type Client struct {
	httpClient *http.Client
	baseURL    string
	imageURL   string
	retry      apperr.RetryPolicy

	mu       sync.Mutex
	once     sync.Once
	mockMode atomic.Bool
}

// New constructs a Client. baseURL serves text embeddings; imageURL serves
// image embeddings (may be the same endpoint). Health is verified lazily on
// first use, not at construction, matching the teacher's lazy-init pattern.
func New(baseURL, imageURL string, retry apperr.RetryPolicy) *Client {
	return &Client{
		httpClient: observability.NewHTTPClient(nil),
		baseURL:    baseURL,
		imageURL:   imageURL,
		retry:      retry,
	}
}

// IsMockMode reports the sticky downgrade flag: once the health check fails,
// this client serves zero-vectors for the remainder of the process lifetime
// rather than retrying indefinitely on every call.
func (c *Client) IsMockMode() bool { return c.mockMode.Load() }

func (c *Client) ensureHealthy(ctx context.Context) {
	c.once.Do(func() {
		if _, err := c.EmbedText(ctx, "test"); err != nil {
			c.mockMode.Store(true)
			log.Ctx(ctx).Warn().Err(err).Msg("embedding service unreachable at startup, downgrading to mock mode")
		}
	})
}

// EmbedText returns an L2-normalized 384-dim vector for s. It always calls
// the service: it neither runs the health check nor serves mock-mode zero
// vectors, so it returns an error when the service cannot be reached.
func (c *Client) EmbedText(ctx context.Context, s string) ([]float32, error) {
	vecs, err := c.embedBatch(ctx, c.baseURL, []string{s}, TextDim)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch returns one L2-normalized 384-dim vector per input string.
func (c *Client) EmbedBatch(ctx context.Context, inputs []string) ([][]float32, error) {
	c.ensureHealthy(ctx)
	if c.mockMode.Load() {
		return mockVectors(len(inputs), TextDim), nil
	}
	return c.embedBatch(ctx, c.baseURL, inputs, TextDim)
}

// EmbedImage returns an L2-normalized 1024-dim vector for the given image
// bytes, base64-encoded in the request body.
func (c *Client) EmbedImage(ctx context.Context, data []byte) ([]float32, error) {
	c.ensureHealthy(ctx)
	if c.mockMode.Load() {
		return mockVectors(1, ImageDim)[0], nil
	}
	vecs, err := c.embedBatch(ctx, c.imageURL, []string{encodeBase64(data)}, ImageDim)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (c *Client) embedBatch(ctx context.Context, url string, inputs []string, wantDim int) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, apperr.Input("no inputs to embed")
	}
	var out [][]float32
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		vecs, err := c.doRequest(ctx, url, inputs)
		if err != nil {
			return err
		}
		out = vecs
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i, v := range out {
		if wantDim > 0 && len(v) != wantDim {
			return nil, apperr.Data("embedding dimension mismatch: got %d want %d at index %d", len(v), wantDim, i)
		}
		out[i] = normalize(v)
	}
	return out, nil
}

func (c *Client) doRequest(ctx context.Context, url string, inputs []string) ([][]float32, error) {
	body, _ := json.Marshal(embedReq{Model: "default", Input: inputs})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.WrapInternal(err, "build embedding request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.WrapDependencyUnavailable(err, "embedding service unreachable")
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.WrapDependencyUnavailable(err, "reading embedding response")
	}
	if resp.StatusCode/100 != 2 {
		return nil, apperr.DependencyUnavailable("embedding service returned %s: %s", resp.Status, truncate(string(b), 200))
	}
	var er embedResp
	if err := json.Unmarshal(b, &er); err != nil {
		return nil, apperr.WrapData(err, "parsing embedding response")
	}
	if len(er.Data) != len(inputs) {
		return nil, apperr.Data("embedding count mismatch: got %d want %d", len(er.Data), len(inputs))
	}
	out := make([][]float32, len(er.Data))
	for i := range er.Data {
		out[i] = er.Data[i].Embedding
	}
	return out, nil
}

func normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return v
	}
	norm := float32(math.Sqrt(sumSq))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

func mockVectors(n, dim int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = make([]float32, dim)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func encodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
