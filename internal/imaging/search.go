package imaging

import (
	"context"
)

// SearchOptions filters an image search.
type SearchOptions struct {
	TopK         int
	SubjectID    string
	ViewPosition string
}

// SearchHit is one ranked image result, left-joined against the patient
// mapping when available.
type SearchHit struct {
	ImageID            string
	Score              float64
	SubjectID          string
	StudyID            string
	ViewPosition       string
	ImagePath          string
	DisplayPatientName string
	HasPatientMapping  bool
	FHIRResourceID     string
}

// EmbeddingLookup mirrors kg.EmbeddingLookup but for image modality
// embeddings, so imaging.Search only depends on the shape it uses.
type EmbeddingLookup interface {
	EmbedImage(ctx context.Context, data []byte) ([]float32, error)
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Search embeds either a free-text description or raw image bytes
// (whichever is non-empty) and queries the Qdrant-backed vector store,
// optionally filtered by subject_id/view_position. Results are left-joined
// against PatientMapping in Go to attach a display patient name.
func (s *Store) Search(ctx context.Context, embedder EmbeddingLookup, queryText string, queryImage []byte, opts SearchOptions) ([]SearchHit, error) {
	k := opts.TopK
	if k <= 0 {
		k = 10
	}

	var vec []float32
	var err error
	if len(queryImage) > 0 {
		vec, err = embedder.EmbedImage(ctx, queryImage)
	} else {
		vec, err = embedder.EmbedText(ctx, queryText)
	}
	if err != nil {
		return nil, err
	}

	filter := map[string]string{}
	if opts.SubjectID != "" {
		filter["subject_id"] = opts.SubjectID
	}
	if opts.ViewPosition != "" {
		filter["view_position"] = opts.ViewPosition
	}

	results, err := s.vectors.SimilaritySearch(ctx, vec, k, filter)
	if err != nil {
		return nil, err
	}

	hits := make([]SearchHit, 0, len(results))
	for _, r := range results {
		hit := SearchHit{
			ImageID:      r.ID,
			Score:        r.Score,
			SubjectID:    r.Metadata["subject_id"],
			StudyID:      r.Metadata["study_id"],
			ViewPosition: r.Metadata["view_position"],
			ImagePath:    r.Metadata["image_path"],
		}
		if name, ok, err := s.patientDisplayName(ctx, hit.SubjectID); err == nil && ok {
			hit.DisplayPatientName = name
			hit.HasPatientMapping = true
		}
		if resourceID, err := s.fhirResourceID(ctx, hit.ImageID); err == nil {
			hit.FHIRResourceID = resourceID
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (s *Store) patientDisplayName(ctx context.Context, subjectID string) (string, bool, error) {
	if subjectID == "" {
		return "", false, nil
	}
	var name string
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(fhir_patient_name, '') FROM patient_image_mapping WHERE mimic_subject_id = $1`, subjectID).Scan(&name)
	if err != nil {
		return "", false, err
	}
	return name, name != "", nil
}

func (s *Store) fhirResourceID(ctx context.Context, imageID string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(fhir_resource_id, '') FROM mimic_cxr_images WHERE image_id = $1`, imageID).Scan(&id)
	return id, err
}
