package tools

import (
	"context"
	"testing"

	"clinicalrag/internal/agent"
)

func expectedToolNames() []string {
	return []string{
		"search_fhir_documents", "search_knowledge_graph", "hybrid_search",
		"get_document_details", "search_medical_images", "get_patient_imaging_studies",
		"get_imaging_study_details", "get_radiology_reports", "search_patients_with_imaging",
		"get_encounter_imaging", "list_radiology_queries", "get_entity_statistics",
		"get_entity_relationships",
		"plot_symptom_frequency", "plot_entity_distribution", "plot_patient_timeline",
		"plot_entity_network", "visualize_graphrag_results",
		"remember_information", "recall_information", "get_memory_stats",
	}
}

func TestRegisterAllRegistersEveryCatalogTool(t *testing.T) {
	reg := agent.NewRegistry()
	RegisterAll(reg, Deps{})

	specs := reg.Spec()
	byName := map[string]bool{}
	for _, s := range specs {
		byName[s.Name] = true
	}
	for _, name := range expectedToolNames() {
		if !byName[name] {
			t.Errorf("expected tool %q to be registered", name)
		}
	}
	if len(specs) != len(expectedToolNames()) {
		t.Errorf("expected %d tools, got %d", len(expectedToolNames()), len(specs))
	}
}

func TestToolsDegradeGracefullyWithoutBackends(t *testing.T) {
	reg := agent.NewRegistry()
	RegisterAll(reg, Deps{})

	minimalArgs := map[string]any{
		"query": "fever", "document_id": "doc-1", "subject_id": "10000032",
		"study_id": "s1", "patient_id": "p1", "encounter_id": "enc-1",
		"entity_id": float64(1), "session_id": "sess-1", "text": "note",
	}
	for _, name := range expectedToolNames() {
		result, err := reg.Execute(context.Background(), name, minimalArgs)
		if err != nil {
			t.Errorf("%s: expected no Go error, got %v", name, err)
			continue
		}
		if result.Status != "fail" {
			t.Errorf("%s: expected fail status without backends, got %q", name, result.Status)
		}
		if result.Error == "" {
			t.Errorf("%s: expected a non-empty error message", name)
		}
	}
}

func TestUnknownToolNameErrors(t *testing.T) {
	reg := agent.NewRegistry()
	RegisterAll(reg, Deps{})
	if _, err := reg.Execute(context.Background(), "not_a_real_tool", nil); err == nil {
		t.Fatal("expected an error for an unknown tool name")
	}
}
