package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePathExtractsIdentifiers(t *testing.T) {
	subject, study, image, ok := parsePath("/data/mimic/files/p10/p10000032/s50414267/02aa804e-bde0afdd.dcm")
	require.True(t, ok)
	require.Equal(t, "p10000032", subject)
	require.Equal(t, "s50414267", study)
	require.Equal(t, "02aa804e-bde0afdd", image)
}

func TestParsePathRejectsUnrecognizedLayout(t *testing.T) {
	_, _, _, ok := parsePath("/data/mimic/readme.txt")
	require.False(t, ok)
}

func TestDiscoverWalksAndFiltersLargeFiles(t *testing.T) {
	orig := maxImageBytes
	maxImageBytes = 10
	defer func() { maxImageBytes = orig }()

	root := t.TempDir()
	small := filepath.Join(root, "files", "p10", "p10000032", "s50414267")
	require.NoError(t, os.MkdirAll(small, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(small, "img-a.dcm"), []byte("small"), 0o644))

	big := filepath.Join(root, "files", "p11", "p11000032", "s50414268")
	require.NoError(t, os.MkdirAll(big, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(big, "img-b.dcm"), make([]byte, maxImageBytes+1), 0o644))

	images, filteredLarge, err := Discover(context.Background(), root)
	require.NoError(t, err)
	require.Equal(t, 1, filteredLarge)
	require.Len(t, images, 1)
	require.Equal(t, "img-a", images[0].ImageID)
	require.Equal(t, "p10000032", images[0].SubjectID)
}
