package embedding

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clinicalrag/internal/apperr"

	"github.com/stretchr/testify/require"
)

func fixedDimServer(t *testing.T, dim int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := embedResp{}
		for range req.Input {
			vec := make([]float32, dim)
			vec[0] = 3
			vec[1] = 4
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
			}{Embedding: vec})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestEmbedTextNormalizes(t *testing.T) {
	srv := fixedDimServer(t, TextDim)
	defer srv.Close()

	c := New(srv.URL, srv.URL, apperr.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond})
	vec, err := c.EmbedText(t.Context(), "hello")
	require.NoError(t, err)
	require.Len(t, vec, TextDim)
	require.InDelta(t, 0.6, vec[0], 0.001)
	require.InDelta(t, 0.8, vec[1], 0.001)
	require.False(t, c.IsMockMode())
}

func TestEmbedBatchDowngradesToMockOnUnreachableService(t *testing.T) {
	c := New("http://127.0.0.1:0/unreachable", "http://127.0.0.1:0/unreachable", apperr.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond})
	vecs, err := c.EmbedBatch(t.Context(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	require.Len(t, vecs[0], TextDim)
	require.True(t, c.IsMockMode())
}

func TestEmbedImageDimension(t *testing.T) {
	srv := fixedDimServer(t, ImageDim)
	defer srv.Close()

	c := New(srv.URL, srv.URL, apperr.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond})
	vec, err := c.EmbedImage(t.Context(), []byte{1, 2, 3})
	require.NoError(t, err)
	require.Len(t, vec, ImageDim)
}

func TestEmbedTextDimensionMismatchIsDataError(t *testing.T) {
	srv := fixedDimServer(t, TextDim-1)
	defer srv.Close()

	c := New(srv.URL, srv.URL, apperr.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond})
	_, err := c.EmbedText(t.Context(), "hello")
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.KindData))
}
