package ingest

import (
	"context"
	"fmt"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// ImageMetadata is the minimal DICOM header information the pipeline needs
// to build an embedding prompt and materialize a FHIR ImagingStudy.
type ImageMetadata struct {
	ViewPosition string
	Modality     string
	StudyDate    string
}

// Prompt renders the fixed embedding prompt template from spec.md §4.8 step 3.
func (m ImageMetadata) Prompt() string {
	view := m.ViewPosition
	if view == "" {
		view = "unknown"
	}
	return fmt.Sprintf("Chest X-ray %s view", view)
}

// MetadataReader abstracts DICOM header parsing so the pipeline never
// depends on a concrete decoder, and tests can inject fixture metadata
// without real DICOM files on disk.
type MetadataReader interface {
	ReadMetadata(ctx context.Context, filePath string) (ImageMetadata, error)
}

// DefaultReader parses the minimal tag set (ViewPosition, Modality,
// StudyDate) from a DICOM file's header, explicitly skipping pixel data so
// large studies don't need to be decoded in full just to build a prompt.
type DefaultReader struct{}

func (DefaultReader) ReadMetadata(ctx context.Context, filePath string) (ImageMetadata, error) {
	ds, err := dicom.ParseFile(filePath, nil, dicom.SkipPixelData())
	if err != nil {
		return ImageMetadata{}, err
	}
	return ImageMetadata{
		ViewPosition: firstString(ds, tag.ViewPosition),
		Modality:     firstString(ds, tag.Modality),
		StudyDate:    firstString(ds, tag.StudyDate),
	}, nil
}

func firstString(ds dicom.Dataset, t tag.Tag) string {
	elem, err := ds.FindElementByTag(t)
	if err != nil {
		return ""
	}
	vals, ok := elem.Value.GetValue().([]string)
	if !ok || len(vals) == 0 {
		return ""
	}
	return vals[0]
}

// FixtureReader serves canned metadata by file path, for tests that don't
// want real DICOM fixtures on disk.
type FixtureReader struct {
	ByPath map[string]ImageMetadata
}

func (f FixtureReader) ReadMetadata(ctx context.Context, filePath string) (ImageMetadata, error) {
	m, ok := f.ByPath[filePath]
	if !ok {
		return ImageMetadata{}, fmt.Errorf("no fixture metadata for %s", filePath)
	}
	return m, nil
}
