package objectstore

import (
	"bytes"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalStorePutGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	require.NoError(t, err)

	etag, err := store.Put(t.Context(), "studies/s1/img_a.dcm", bytes.NewReader([]byte("dicom-bytes")), PutOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, etag)

	r, attrs, err := store.Get(t.Context(), "studies/s1/img_a.dcm")
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "dicom-bytes", string(data))
	require.Equal(t, int64(len("dicom-bytes")), attrs.Size)

	exists, err := store.Exists(t.Context(), "studies/s1/img_a.dcm")
	require.NoError(t, err)
	require.True(t, exists)

	require.NoError(t, store.Delete(t.Context(), "studies/s1/img_a.dcm"))
	_, _, err = store.Get(t.Context(), "studies/s1/img_a.dcm")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStorePutLeavesNoTempFileOnSuccess(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	require.NoError(t, err)
	_, err = store.Put(t.Context(), "a.bin", bytes.NewReader([]byte("x")), PutOptions{})
	require.NoError(t, err)

	matches, _ := filepath.Glob(filepath.Join(dir, ".tmp-*"))
	require.Empty(t, matches)
}

func TestNewSelectsLocalForNonS3URI(t *testing.T) {
	dir := t.TempDir()
	store, err := New(t.Context(), dir, "us-east-1")
	require.NoError(t, err)
	_, ok := store.(*LocalStore)
	require.True(t, ok)
}
