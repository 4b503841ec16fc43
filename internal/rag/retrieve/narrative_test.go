package retrieve

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCleanNarrativeStripsXHTML(t *testing.T) {
	raw := `<div xmlns="http://www.w3.org/1999/xhtml"><p>Patient presents with <b>chest pain</b>.</p></div>`
	out := CleanNarrative(raw)
	require.Contains(t, out, "chest pain")
	require.NotContains(t, out, "<div")
	require.NotContains(t, out, "<b>")
}

func TestCleanNarrativePassesThroughPlainText(t *testing.T) {
	require.Equal(t, "no markup here", CleanNarrative("no markup here"))
}

func TestCleanNarrativeEmptyInput(t *testing.T) {
	require.Equal(t, "", CleanNarrative("   "))
}
