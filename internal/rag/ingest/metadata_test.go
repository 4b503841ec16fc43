package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestImageMetadataPromptUsesViewPosition(t *testing.T) {
	m := ImageMetadata{ViewPosition: "PA"}
	require.Equal(t, "Chest X-ray PA view", m.Prompt())
}

func TestImageMetadataPromptDefaultsToUnknownView(t *testing.T) {
	m := ImageMetadata{}
	require.Equal(t, "Chest X-ray unknown view", m.Prompt())
}

func TestFixtureReaderReturnsConfiguredMetadata(t *testing.T) {
	r := FixtureReader{ByPath: map[string]ImageMetadata{
		"/a.dcm": {ViewPosition: "AP", Modality: "CR", StudyDate: "20200101"},
	}}
	m, err := r.ReadMetadata(context.Background(), "/a.dcm")
	require.NoError(t, err)
	require.Equal(t, "AP", m.ViewPosition)

	_, err = r.ReadMetadata(context.Background(), "/missing.dcm")
	require.Error(t, err)
}

func TestParseStudyDateHandlesDICOMFormat(t *testing.T) {
	d := parseStudyDate("20200101")
	require.Equal(t, 2020, d.Year())
	require.Equal(t, 1, int(d.Month()))

	require.True(t, parseStudyDate("").IsZero())
	require.True(t, parseStudyDate("garbage").IsZero())
}

func TestS3PrefixStripsBucket(t *testing.T) {
	require.Equal(t, "mimic/files", s3Prefix("s3://my-bucket/mimic/files"))
	require.Equal(t, "", s3Prefix("s3://my-bucket"))
}
