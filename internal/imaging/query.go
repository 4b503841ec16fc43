package imaging

import "context"

// StudySummary is one imaging study (a group of same-study_id images)
// surfaced by the patient-level browsing tools.
type StudySummary struct {
	StudyID        string
	SubjectID      string
	ImageCount     int
	ViewPositions  []string
	FHIRResourceID string
}

// ListStudiesForPatient groups a patient's images by study_id, used by
// get_patient_imaging_studies.
func (s *Store) ListStudiesForPatient(ctx context.Context, subjectID string) ([]StudySummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT study_id,
		       subject_id,
		       COUNT(*),
		       array_agg(DISTINCT view_position) FILTER (WHERE view_position IS NOT NULL AND view_position != ''),
		       COALESCE(MAX(fhir_resource_id), '')
		FROM mimic_cxr_images
		WHERE subject_id = $1
		GROUP BY study_id, subject_id
		ORDER BY study_id
	`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StudySummary
	for rows.Next() {
		var sum StudySummary
		if err := rows.Scan(&sum.StudyID, &sum.SubjectID, &sum.ImageCount, &sum.ViewPositions, &sum.FHIRResourceID); err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// GetStudyImages returns every image row belonging to studyID, used by
// get_imaging_study_details.
func (s *Store) GetStudyImages(ctx context.Context, studyID string) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT image_id, subject_id, study_id, COALESCE(view_position, ''), image_path,
		       COALESCE(embedding_model, ''), COALESCE(fhir_resource_id, ''), COALESCE(encounter_id, '')
		FROM mimic_cxr_images
		WHERE study_id = $1
		ORDER BY image_id
	`, studyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ListImagesForEncounter returns every image row materialized against
// encounterID, used by get_encounter_imaging.
func (s *Store) ListImagesForEncounter(ctx context.Context, encounterID string) ([]Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT image_id, subject_id, study_id, COALESCE(view_position, ''), image_path,
		       COALESCE(embedding_model, ''), COALESCE(fhir_resource_id, ''), COALESCE(encounter_id, '')
		FROM mimic_cxr_images
		WHERE encounter_id = $1
		ORDER BY study_id, image_id
	`, encounterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ListPatientsWithImaging returns patient mappings that have at least one
// ingested image, optionally filtered by a case-insensitive name substring,
// used by search_patients_with_imaging.
func (s *Store) ListPatientsWithImaging(ctx context.Context, nameQuery string, limit int) ([]PatientMapping, error) {
	if limit <= 0 {
		limit = 25
	}
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT m.mimic_subject_id, m.fhir_patient_id, COALESCE(m.fhir_patient_name, ''), m.match_confidence, m.match_type
		FROM patient_image_mapping m
		JOIN mimic_cxr_images i ON i.subject_id = m.mimic_subject_id
		WHERE $1 = '' OR m.fhir_patient_name ILIKE '%' || $1 || '%'
		ORDER BY m.mimic_subject_id
		LIMIT $2
	`, nameQuery, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PatientMapping
	for rows.Next() {
		var m PatientMapping
		if err := rows.Scan(&m.SubjectID, &m.FHIRPatientID, &m.FHIRPatientName, &m.MatchConfidence, &m.MatchType); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListRecentStudies browses the most recently ingested studies across all
// patients, optionally filtered by subject_id, used by list_radiology_queries
// to let the agent discover what imaging is available before searching it.
func (s *Store) ListRecentStudies(ctx context.Context, subjectID string, limit int) ([]StudySummary, error) {
	if limit <= 0 {
		limit = 25
	}
	rows, err := s.pool.Query(ctx, `
		SELECT study_id,
		       subject_id,
		       COUNT(*),
		       array_agg(DISTINCT view_position) FILTER (WHERE view_position IS NOT NULL AND view_position != ''),
		       COALESCE(MAX(fhir_resource_id), ''),
		       MAX(created_at) AS last_seen
		FROM mimic_cxr_images
		WHERE $1 = '' OR subject_id = $1
		GROUP BY study_id, subject_id
		ORDER BY last_seen DESC
		LIMIT $2
	`, subjectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StudySummary
	for rows.Next() {
		var sum StudySummary
		var lastSeen any
		if err := rows.Scan(&sum.StudyID, &sum.SubjectID, &sum.ImageCount, &sum.ViewPositions, &sum.FHIRResourceID, &lastSeen); err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

func scanRecords(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]Record, error) {
	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ImageID, &r.SubjectID, &r.StudyID, &r.ViewPosition, &r.ImagePath, &r.EmbeddingModel, &r.FHIRResourceID, &r.EncounterID); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
