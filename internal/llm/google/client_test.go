package google

import (
	"testing"

	"github.com/stretchr/testify/require"

	genai "google.golang.org/genai"

	"clinicalrag/internal/llm"
)

func TestToContentsMapsRoles(t *testing.T) {
	contents, err := toContents([]llm.Message{
		{Role: "system", Content: "you are a clinical assistant"},
		{Role: "user", Content: "what is the impression?"},
		{Role: "assistant", Content: "no acute findings"},
	})
	require.NoError(t, err)
	require.Len(t, contents, 3)
	require.Equal(t, genai.RoleModel, contents[2].Role)
}

func TestToContentsRejectsEmptyHistory(t *testing.T) {
	_, err := toContents(nil)
	require.Error(t, err)
}

func TestAdaptToolsRejectsEmptyName(t *testing.T) {
	_, _, err := adaptTools([]llm.ToolSchema{{Name: ""}})
	require.Error(t, err)
}

func TestMessageFromResponseExtractsText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Role:  genai.RoleModel,
					Parts: []*genai.Part{{Text: "impression: stable"}},
				},
			},
		},
	}
	msg, err := messageFromResponse(resp)
	require.NoError(t, err)
	require.Equal(t, "impression: stable", msg.Content)
}
