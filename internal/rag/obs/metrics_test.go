package obs

import "testing"

func TestMockMetrics_RecordsCountsAndHists(t *testing.T) {
	m := NewMockMetrics()
	m.IncCounter("ingestion_images_total", map[string]string{"source": "dicom"})
	m.IncCounter("ingestion_images_total", map[string]string{"source": "dicom"})
	m.ObserveHistogram("retrieval_stage_ms", 12, map[string]string{"stage": "fhir"})
	m.ObserveHistogram("retrieval_stage_ms", 34, map[string]string{"stage": "kg"})
	if m.Counters["ingestion_images_total"] != 2 {
		t.Fatalf("expected 2 images, got %d", m.Counters["ingestion_images_total"])
	}
	if len(m.Hists["retrieval_stage_ms"]) != 2 {
		t.Fatalf("expected 2 histogram records, got %d", len(m.Hists["retrieval_stage_ms"]))
	}
}
