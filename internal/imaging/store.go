// Package imaging is the radiology image vector search backend: a
// Qdrant-backed store of 1024-dim embeddings over MIMIC-CXR images, joined
// in application code against a Postgres table mapping MIMIC subject ids to
// FHIR patient ids.
package imaging

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"clinicalrag/internal/persistence/databases"
)

// Record is one ingested radiology image row.
type Record struct {
	ImageID        string
	SubjectID      string
	StudyID        string
	ViewPosition   string
	ImagePath      string
	EmbeddingModel string
	FHIRResourceID string
	EncounterID    string
}

// PatientMapping maps a MIMIC subject id to a FHIR patient id.
type PatientMapping struct {
	SubjectID       string
	FHIRPatientID   string
	FHIRPatientName string
	MatchConfidence float64
	MatchType       string
}

// Store combines a vector store (image embeddings) with a Postgres pool
// (image metadata and patient mapping).
type Store struct {
	vectors databases.VectorStore
	pool    *pgxpool.Pool
}

// NewStore wraps an existing VectorStore (typically Qdrant, collection
// "mimic_cxr_images") and a metadata pool, bootstrapping the metadata
// tables idempotently.
func NewStore(ctx context.Context, vectors databases.VectorStore, pool *pgxpool.Pool) (*Store, error) {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS mimic_cxr_images (
			image_id         TEXT PRIMARY KEY,
			subject_id       TEXT NOT NULL,
			study_id         TEXT NOT NULL,
			view_position    TEXT,
			image_path       TEXT NOT NULL,
			embedding_model  TEXT,
			fhir_resource_id TEXT,
			created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS mimic_cxr_images_subject ON mimic_cxr_images(subject_id)`,
		`ALTER TABLE mimic_cxr_images ADD COLUMN IF NOT EXISTS encounter_id TEXT`,
		`CREATE INDEX IF NOT EXISTS mimic_cxr_images_study ON mimic_cxr_images(study_id)`,
		`CREATE INDEX IF NOT EXISTS mimic_cxr_images_encounter ON mimic_cxr_images(encounter_id)`,
		`CREATE TABLE IF NOT EXISTS patient_image_mapping (
			mimic_subject_id  TEXT PRIMARY KEY,
			fhir_patient_id   TEXT NOT NULL,
			fhir_patient_name TEXT,
			match_confidence  DOUBLE PRECISION NOT NULL DEFAULT 1.0,
			match_type        TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return nil, err
		}
	}
	return &Store{vectors: vectors, pool: pool}, nil
}

// UpsertRecord writes the image's vector and metadata row. Re-upserting the
// same image_id overwrites both, matching the ingestion pipeline's
// idempotent-by-id contract.
func (s *Store) UpsertRecord(ctx context.Context, rec Record, vec []float32) error {
	meta := map[string]string{
		"subject_id":    rec.SubjectID,
		"study_id":      rec.StudyID,
		"view_position": rec.ViewPosition,
		"image_path":    rec.ImagePath,
	}
	if err := s.vectors.Upsert(ctx, rec.ImageID, vec, meta); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO mimic_cxr_images (image_id, subject_id, study_id, view_position, image_path, embedding_model, fhir_resource_id)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
		ON CONFLICT (image_id) DO UPDATE SET
			subject_id = EXCLUDED.subject_id,
			study_id = EXCLUDED.study_id,
			view_position = EXCLUDED.view_position,
			image_path = EXCLUDED.image_path,
			embedding_model = EXCLUDED.embedding_model,
			fhir_resource_id = COALESCE(EXCLUDED.fhir_resource_id, mimic_cxr_images.fhir_resource_id)
	`, rec.ImageID, rec.SubjectID, rec.StudyID, rec.ViewPosition, rec.ImagePath, rec.EmbeddingModel, rec.FHIRResourceID)
	return err
}

// SetFHIRResourceID back-fills the fhir_resource_id column after successful
// FHIR materialization (spec.md §4.8 step 5).
func (s *Store) SetFHIRResourceID(ctx context.Context, imageID, resourceID string) error {
	_, err := s.pool.Exec(ctx, `UPDATE mimic_cxr_images SET fhir_resource_id = $1 WHERE image_id = $2`, resourceID, imageID)
	return err
}

// SetEncounterID back-fills the encounter_id column once the ingestion
// pipeline resolves an encounter match within the materialization window.
func (s *Store) SetEncounterID(ctx context.Context, imageID, encounterID string) error {
	if encounterID == "" {
		return nil
	}
	_, err := s.pool.Exec(ctx, `UPDATE mimic_cxr_images SET encounter_id = $1 WHERE image_id = $2`, encounterID, imageID)
	return err
}

// UpsertPatientMapping records a MIMIC subject id -> FHIR patient id match.
func (s *Store) UpsertPatientMapping(ctx context.Context, m PatientMapping) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO patient_image_mapping (mimic_subject_id, fhir_patient_id, fhir_patient_name, match_confidence, match_type)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (mimic_subject_id) DO UPDATE SET
			fhir_patient_id = EXCLUDED.fhir_patient_id,
			fhir_patient_name = EXCLUDED.fhir_patient_name,
			match_confidence = EXCLUDED.match_confidence,
			match_type = EXCLUDED.match_type
	`, m.SubjectID, m.FHIRPatientID, m.FHIRPatientName, m.MatchConfidence, m.MatchType)
	return err
}

// ExistingImageIDs returns the set of image ids already present in the
// metadata table, used by the ingestion pipeline's skip_existing option.
func (s *Store) ExistingImageIDs(ctx context.Context) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx, `SELECT image_id FROM mimic_cxr_images`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

// LookupPatientByMIMICID finds the FHIR patient id for a MIMIC subject id,
// used by the ingestion pipeline's optional FHIR materialization step.
func (s *Store) LookupPatientByMIMICID(ctx context.Context, subjectID string) (string, bool, error) {
	var id string
	err := s.pool.QueryRow(ctx, `SELECT fhir_patient_id FROM patient_image_mapping WHERE mimic_subject_id = $1`, subjectID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return id, true, nil
}
