// Package ingest is the DICOM ingestion pipeline: it walks a directory tree
// of DICOM files, batches image embeddings, upserts image rows, optionally
// materializes FHIR ImagingStudy resources, and checkpoints progress so a
// resumed run never reprocesses an already-committed image.
package ingest

import "time"

// Config describes one ingestion run. Source is either a local directory or
// an s3://bucket/prefix root; BatchSize/Limit/SkipExisting/DryRun/CreateFHIR
// mirror the CLI flags the pipeline is invoked with.
type Config struct {
	Source       string
	BatchSize    int
	Limit        int
	SkipExisting bool
	DryRun       bool
	CreateFHIR   bool
	EncounterWindow time.Duration
}

// DiscoveredImage is one DICOM file found during the discovery phase, with
// identifiers parsed from its canonical path.
type DiscoveredImage struct {
	SubjectID string
	StudyID   string
	ImageID   string
	FilePath  string
}

// Report summarizes one completed (or partially completed, on cancellation)
// ingestion run.
type Report struct {
	Discovered   int
	Skipped      int // already checkpointed or already present
	FilteredLarge int
	Processed    int
	Inserted     int
	Errored      int
	FHIRLinked   int
	FHIRSkipped  int
	FHIRErrored  int
	Duration     time.Duration
}
