package tools

import (
	"context"
	"fmt"

	"clinicalrag/internal/agent"
	"clinicalrag/internal/imaging"
	"clinicalrag/internal/rag/retrieve"
)

func retrievalTools(deps Deps) []agent.Tool {
	return []agent.Tool{
		searchFHIRDocumentsTool{deps},
		searchKnowledgeGraphTool{deps},
		hybridSearchTool{deps},
		getDocumentDetailsTool{deps},
		searchMedicalImagesTool{deps},
		getPatientImagingStudiesTool{deps},
		getImagingStudyDetailsTool{deps},
		getRadiologyReportsTool{deps},
		searchPatientsWithImagingTool{deps},
		getEncounterImagingTool{deps},
		listRadiologyQueriesTool{deps},
		getEntityStatisticsTool{deps},
		getEntityRelationshipsTool{deps},
	}
}

// --- search_fhir_documents ---

type searchFHIRDocumentsTool struct{ deps Deps }

func (t searchFHIRDocumentsTool) Describe() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "search_fhir_documents",
		Description: "Semantic (falling back to lexical) search over embedded FHIR documents: DocumentReference and DiagnosticReport narrative text.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query":        map[string]any{"type": "string"},
				"top_k":        map[string]any{"type": "integer", "default": 10},
				"patient_id":   map[string]any{"type": "string"},
				"encounter_id": map[string]any{"type": "string"},
			},
			"required": []string{"query"},
		},
	}
}

func (t searchFHIRDocumentsTool) Execute(ctx context.Context, args map[string]any) (agent.ToolResult, error) {
	if t.deps.Documents == nil {
		return agent.ToolResult{Status: "fail", Error: "fhir document search is not configured"}, nil
	}
	query, err := requiredStringArg(args, "query")
	if err != nil {
		return agent.ToolResult{Status: "fail", Error: err.Error()}, nil
	}
	filters := map[string]string{}
	if v := stringArg(args, "patient_id"); v != "" {
		filters["patient_id"] = v
	}
	if v := stringArg(args, "encounter_id"); v != "" {
		filters["encounter_id"] = v
	}

	hits, mode, reason, err := t.deps.Documents.Search(ctx, t.deps.Embedder, query, intArg(args, "top_k", 10), filters)
	if err != nil {
		return agent.ToolResult{Status: "fail", Error: err.Error()}, nil
	}
	return agent.ToolResult{Status: "ok", Data: hits, SearchMode: string(mode), FallbackReason: reason}, nil
}

// --- search_knowledge_graph ---

type searchKnowledgeGraphTool struct{ deps Deps }

func (t searchKnowledgeGraphTool) Describe() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "search_knowledge_graph",
		Description: "Search the medical knowledge graph for entities (conditions, symptoms, medications, anatomy, procedures) matching a free-text query.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string"},
				"limit": map[string]any{"type": "integer", "default": 10},
			},
			"required": []string{"query"},
		},
	}
}

func (t searchKnowledgeGraphTool) Execute(ctx context.Context, args map[string]any) (agent.ToolResult, error) {
	if t.deps.Entities == nil {
		return agent.ToolResult{Status: "fail", Error: "knowledge graph is not configured"}, nil
	}
	query, err := requiredStringArg(args, "query")
	if err != nil {
		return agent.ToolResult{Status: "fail", Error: err.Error()}, nil
	}
	results, err := t.deps.Entities.Search(ctx, t.deps.Embedder, query, intArg(args, "limit", 10))
	if err != nil {
		return agent.ToolResult{Status: "fail", Error: err.Error()}, nil
	}
	return agent.ToolResult{Status: "ok", Data: results}, nil
}

// --- hybrid_search ---

type hybridSearchTool struct{ deps Deps }

func (t hybridSearchTool) Describe() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "hybrid_search",
		Description: "Fused FHIR document + knowledge graph (+ optional imaging) search, ranked by weighted reciprocal-rank fusion. Prefer this for open-ended clinical questions.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query":          map[string]any{"type": "string"},
				"top_k":          map[string]any{"type": "integer", "default": 10},
				"patient_id":     map[string]any{"type": "string"},
				"encounter_id":   map[string]any{"type": "string"},
				"include_images": map[string]any{"type": "boolean", "default": false},
			},
			"required": []string{"query"},
		},
	}
}

func (t hybridSearchTool) Execute(ctx context.Context, args map[string]any) (agent.ToolResult, error) {
	if t.deps.Retrieve == nil {
		return agent.ToolResult{Status: "fail", Error: "hybrid search is not configured"}, nil
	}
	query, err := requiredStringArg(args, "query")
	if err != nil {
		return agent.ToolResult{Status: "fail", Error: err.Error()}, nil
	}
	queryImage, err := base64Arg(args, "query_image_base64")
	if err != nil {
		return agent.ToolResult{Status: "fail", Error: "query_image_base64 is not valid base64"}, nil
	}
	resp, err := t.deps.Retrieve.HybridSearch(ctx, retrieve.Options{
		Query:        query,
		TopK:         intArg(args, "top_k", 10),
		PatientID:    stringArg(args, "patient_id"),
		EncounterID:  stringArg(args, "encounter_id"),
		IncludeImage: boolArg(args, "include_images"),
		QueryImage:   queryImage,
	})
	if err != nil {
		return agent.ToolResult{Status: "fail", Error: err.Error()}, nil
	}
	return agent.ToolResult{Status: "ok", Data: resp.Results, SearchMode: string(resp.SearchMode), FallbackReason: resp.FallbackReason}, nil
}

// --- get_document_details ---

type getDocumentDetailsTool struct{ deps Deps }

func (t getDocumentDetailsTool) Describe() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "get_document_details",
		Description: "Fetch the full text and metadata of one FHIR document by id.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"document_id": map[string]any{"type": "string"}},
			"required":   []string{"document_id"},
		},
	}
}

func (t getDocumentDetailsTool) Execute(ctx context.Context, args map[string]any) (agent.ToolResult, error) {
	if t.deps.Documents == nil {
		return agent.ToolResult{Status: "fail", Error: "fhir document search is not configured"}, nil
	}
	id, err := requiredStringArg(args, "document_id")
	if err != nil {
		return agent.ToolResult{Status: "fail", Error: err.Error()}, nil
	}
	doc, ok, err := t.deps.Documents.Get(ctx, id)
	if err != nil {
		return agent.ToolResult{Status: "fail", Error: err.Error()}, nil
	}
	if !ok {
		return agent.ToolResult{Status: "fail", Error: fmt.Sprintf("document %q not found", id)}, nil
	}
	return agent.ToolResult{Status: "ok", Data: doc}, nil
}

// --- search_medical_images ---

type searchMedicalImagesTool struct{ deps Deps }

func (t searchMedicalImagesTool) Describe() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "search_medical_images",
		Description: "Vector search over radiology images (MIMIC-CXR) by free-text description or a base64-encoded query image.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query":               map[string]any{"type": "string"},
				"query_image_base64":  map[string]any{"type": "string"},
				"subject_id":          map[string]any{"type": "string"},
				"view_position":       map[string]any{"type": "string"},
				"top_k":               map[string]any{"type": "integer", "default": 10},
			},
		},
	}
}

func (t searchMedicalImagesTool) Execute(ctx context.Context, args map[string]any) (agent.ToolResult, error) {
	if t.deps.Images == nil {
		return agent.ToolResult{Status: "fail", Error: "medical image search is not configured"}, nil
	}
	queryImage, err := base64Arg(args, "query_image_base64")
	if err != nil {
		return agent.ToolResult{Status: "fail", Error: "query_image_base64 is not valid base64"}, nil
	}
	hits, err := t.deps.Images.Search(ctx, t.deps.Embedder, stringArg(args, "query"), queryImage, imaging.SearchOptions{
		TopK:         intArg(args, "top_k", 10),
		SubjectID:    stringArg(args, "subject_id"),
		ViewPosition: stringArg(args, "view_position"),
	})
	if err != nil {
		return agent.ToolResult{Status: "fail", Error: err.Error()}, nil
	}
	return agent.ToolResult{Status: "ok", Data: hits}, nil
}

// --- get_patient_imaging_studies ---

type getPatientImagingStudiesTool struct{ deps Deps }

func (t getPatientImagingStudiesTool) Describe() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "get_patient_imaging_studies",
		Description: "List a patient's imaging studies (grouped by study id) by MIMIC subject id.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"subject_id": map[string]any{"type": "string"}},
			"required":   []string{"subject_id"},
		},
	}
}

func (t getPatientImagingStudiesTool) Execute(ctx context.Context, args map[string]any) (agent.ToolResult, error) {
	if t.deps.Images == nil {
		return agent.ToolResult{Status: "fail", Error: "imaging store is not configured"}, nil
	}
	subjectID, err := requiredStringArg(args, "subject_id")
	if err != nil {
		return agent.ToolResult{Status: "fail", Error: err.Error()}, nil
	}
	studies, err := t.deps.Images.ListStudiesForPatient(ctx, subjectID)
	if err != nil {
		return agent.ToolResult{Status: "fail", Error: err.Error()}, nil
	}
	return agent.ToolResult{Status: "ok", Data: studies}, nil
}

// --- get_imaging_study_details ---

type getImagingStudyDetailsTool struct{ deps Deps }

func (t getImagingStudyDetailsTool) Describe() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "get_imaging_study_details",
		Description: "List every image within one imaging study by study id.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"study_id": map[string]any{"type": "string"}},
			"required":   []string{"study_id"},
		},
	}
}

func (t getImagingStudyDetailsTool) Execute(ctx context.Context, args map[string]any) (agent.ToolResult, error) {
	if t.deps.Images == nil {
		return agent.ToolResult{Status: "fail", Error: "imaging store is not configured"}, nil
	}
	studyID, err := requiredStringArg(args, "study_id")
	if err != nil {
		return agent.ToolResult{Status: "fail", Error: err.Error()}, nil
	}
	images, err := t.deps.Images.GetStudyImages(ctx, studyID)
	if err != nil {
		return agent.ToolResult{Status: "fail", Error: err.Error()}, nil
	}
	if len(images) == 0 {
		return agent.ToolResult{Status: "fail", Error: fmt.Sprintf("study %q not found", studyID)}, nil
	}
	return agent.ToolResult{Status: "ok", Data: images}, nil
}

// --- get_radiology_reports ---

type getRadiologyReportsTool struct{ deps Deps }

func (t getRadiologyReportsTool) Describe() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "get_radiology_reports",
		Description: "Fetch DiagnosticReport resources (radiology reads) for a FHIR patient id.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"patient_id": map[string]any{"type": "string"}},
			"required":   []string{"patient_id"},
		},
	}
}

func (t getRadiologyReportsTool) Execute(ctx context.Context, args map[string]any) (agent.ToolResult, error) {
	if t.deps.FHIR == nil {
		return agent.ToolResult{Status: "fail", Error: "fhir client is not configured"}, nil
	}
	patientID, err := requiredStringArg(args, "patient_id")
	if err != nil {
		return agent.ToolResult{Status: "fail", Error: err.Error()}, nil
	}
	reports, err := t.deps.FHIR.SearchDiagnosticReportsForPatient(ctx, patientID)
	if err != nil {
		return agent.ToolResult{Status: "fail", Error: err.Error()}, nil
	}
	result := agent.ToolResult{Status: "ok", Data: reports}
	if t.deps.FHIR.DemoMode() {
		result.FallbackReason = "fhir server unreachable, running in demo mode"
	}
	return result, nil
}

// --- search_patients_with_imaging ---

type searchPatientsWithImagingTool struct{ deps Deps }

func (t searchPatientsWithImagingTool) Describe() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "search_patients_with_imaging",
		Description: "List patients that have at least one ingested image, optionally filtered by a name substring.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name_query": map[string]any{"type": "string"},
				"limit":      map[string]any{"type": "integer", "default": 25},
			},
		},
	}
}

func (t searchPatientsWithImagingTool) Execute(ctx context.Context, args map[string]any) (agent.ToolResult, error) {
	if t.deps.Images == nil {
		return agent.ToolResult{Status: "fail", Error: "imaging store is not configured"}, nil
	}
	patients, err := t.deps.Images.ListPatientsWithImaging(ctx, stringArg(args, "name_query"), intArg(args, "limit", 25))
	if err != nil {
		return agent.ToolResult{Status: "fail", Error: err.Error()}, nil
	}
	return agent.ToolResult{Status: "ok", Data: patients}, nil
}

// --- get_encounter_imaging ---

type getEncounterImagingTool struct{ deps Deps }

func (t getEncounterImagingTool) Describe() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "get_encounter_imaging",
		Description: "List the images and radiology reports materialized against one encounter id.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"encounter_id": map[string]any{"type": "string"}},
			"required":   []string{"encounter_id"},
		},
	}
}

func (t getEncounterImagingTool) Execute(ctx context.Context, args map[string]any) (agent.ToolResult, error) {
	if t.deps.Images == nil {
		return agent.ToolResult{Status: "fail", Error: "imaging store is not configured"}, nil
	}
	encounterID, err := requiredStringArg(args, "encounter_id")
	if err != nil {
		return agent.ToolResult{Status: "fail", Error: err.Error()}, nil
	}
	images, err := t.deps.Images.ListImagesForEncounter(ctx, encounterID)
	if err != nil {
		return agent.ToolResult{Status: "fail", Error: err.Error()}, nil
	}
	data := map[string]any{"images": images}
	if t.deps.FHIR != nil {
		if reports, err := t.deps.FHIR.SearchDiagnosticReportsForEncounter(ctx, encounterID); err == nil {
			data["reports"] = reports
		}
	}
	return agent.ToolResult{Status: "ok", Data: data}, nil
}

// --- list_radiology_queries ---

type listRadiologyQueriesTool struct{ deps Deps }

func (t listRadiologyQueriesTool) Describe() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "list_radiology_queries",
		Description: "Browse recently ingested imaging studies, optionally narrowed to one patient, to discover what's available before searching it.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"subject_id": map[string]any{"type": "string"},
				"limit":      map[string]any{"type": "integer", "default": 25},
			},
		},
	}
}

func (t listRadiologyQueriesTool) Execute(ctx context.Context, args map[string]any) (agent.ToolResult, error) {
	if t.deps.Images == nil {
		return agent.ToolResult{Status: "fail", Error: "imaging store is not configured"}, nil
	}
	studies, err := t.deps.Images.ListRecentStudies(ctx, stringArg(args, "subject_id"), intArg(args, "limit", 25))
	if err != nil {
		return agent.ToolResult{Status: "fail", Error: err.Error()}, nil
	}
	return agent.ToolResult{Status: "ok", Data: studies}, nil
}

// --- get_entity_statistics ---

type getEntityStatisticsTool struct{ deps Deps }

func (t getEntityStatisticsTool) Describe() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "get_entity_statistics",
		Description: "Summarize the knowledge graph: entity counts by type and total relationship count.",
		Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
	}
}

func (t getEntityStatisticsTool) Execute(ctx context.Context, args map[string]any) (agent.ToolResult, error) {
	if t.deps.Entities == nil {
		return agent.ToolResult{Status: "fail", Error: "knowledge graph is not configured"}, nil
	}
	stats, err := t.deps.Entities.Statistics(ctx)
	if err != nil {
		return agent.ToolResult{Status: "fail", Error: err.Error()}, nil
	}
	return agent.ToolResult{Status: "ok", Data: stats}, nil
}

// --- get_entity_relationships ---

type getEntityRelationshipsTool struct{ deps Deps }

func (t getEntityRelationshipsTool) Describe() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "get_entity_relationships",
		Description: "List the outbound relationships of one knowledge-graph entity, identified either by id or by its canonical entity text.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"entity_id": map[string]any{"type": "integer"},
				"entity":    map[string]any{"type": "string", "description": "canonical entity text, resolved to an id when entity_id is not given"},
			},
		},
	}
}

func (t getEntityRelationshipsTool) Execute(ctx context.Context, args map[string]any) (agent.ToolResult, error) {
	if t.deps.Entities == nil {
		return agent.ToolResult{Status: "fail", Error: "knowledge graph is not configured"}, nil
	}
	id, err := t.resolveEntityID(ctx, args)
	if err != nil {
		return agent.ToolResult{Status: "fail", Error: err.Error()}, nil
	}
	edges, err := t.deps.Entities.Relationships(ctx, id)
	if err != nil {
		return agent.ToolResult{Status: "fail", Error: err.Error()}, nil
	}
	return agent.ToolResult{Status: "ok", Data: edges}, nil
}

// resolveEntityID accepts either an entity_id or an entity name, so a caller
// that only has the canonical text (spec.md §8 scenario 3) doesn't need a
// prior search_knowledge_graph round trip just to get an id.
func (t getEntityRelationshipsTool) resolveEntityID(ctx context.Context, args map[string]any) (int64, error) {
	if _, ok := args["entity_id"]; ok {
		return int64Arg(args, "entity_id")
	}
	name := stringArg(args, "entity")
	if name == "" {
		return 0, fmt.Errorf("either entity_id or entity is required")
	}
	e, err := t.deps.Entities.FindByText(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("entity %q not found: %w", name, err)
	}
	return e.ID, nil
}
