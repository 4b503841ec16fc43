package ingest

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"clinicalrag/internal/fhir"
	"clinicalrag/internal/imaging"
	"clinicalrag/internal/objectstore"
	"clinicalrag/internal/rag/obs"
)

// Embedder is the narrow capability the pipeline needs from the embedding
// client: batch text embedding for the per-image prompt built in step 3.
type Embedder interface {
	EmbedBatch(ctx context.Context, inputs []string) ([][]float32, error)
}

// Pipeline wires the dependencies for one or more ingestion runs.
type Pipeline struct {
	Store    *imaging.Store
	Embedder Embedder
	FHIR     *fhir.Client // nil disables FHIR materialization regardless of Config.CreateFHIR
	Objects  objectstore.ObjectStore
	Metadata MetadataReader
	Events   EventPublisher
	Metrics  obs.Metrics
}

func (p *Pipeline) metrics() obs.Metrics {
	if p.Metrics != nil {
		return p.Metrics
	}
	return obs.NoopMetrics{}
}

func (p *Pipeline) metadataReader() MetadataReader {
	if p.Metadata != nil {
		return p.Metadata
	}
	return DefaultReader{}
}

func (p *Pipeline) events() EventPublisher {
	if p.Events != nil {
		return p.Events
	}
	return LogPublisher{}
}

// Run executes all seven phases of spec.md §4.8 against cfg, returning an
// aggregate Report. Context cancellation stops discovery of further batches,
// but a batch already started is allowed to finish and commit.
func (p *Pipeline) Run(ctx context.Context, cfg Config) (Report, error) {
	start := time.Now()
	defer func() {
		p.metrics().ObserveHistogram("ingestion_run_ms", float64(time.Since(start).Milliseconds()), map[string]string{"source": cfg.Source})
	}()
	var report Report

	images, filteredLarge, err := p.discover(ctx, cfg.Source)
	if err != nil {
		return report, err
	}
	report.Discovered = len(images) + filteredLarge
	report.FilteredLarge = filteredLarge

	checkpoint, err := loadCheckpoint(ctx, p.Objects)
	if err != nil {
		return report, err
	}

	existing := map[string]bool{}
	if cfg.SkipExisting {
		existing, err = p.Store.ExistingImageIDs(ctx)
		if err != nil {
			return report, err
		}
	}

	pending := make([]DiscoveredImage, 0, len(images))
	for _, img := range images {
		if checkpoint[img.ImageID] || existing[img.ImageID] {
			report.Skipped++
			continue
		}
		pending = append(pending, img)
	}
	if cfg.Limit > 0 && len(pending) > cfg.Limit {
		pending = pending[:cfg.Limit]
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 32
	}

	sinceCheckpoint := 0
	for i := 0; i < len(pending); i += batchSize {
		if ctx.Err() != nil {
			break
		}
		batch := pending[i:min(i+batchSize, len(pending))]
		p.runBatch(context.WithoutCancel(ctx), cfg, batch, checkpoint, &report)
		sinceCheckpoint += len(batch)

		if sinceCheckpoint >= checkpointEvery && !cfg.DryRun {
			if err := saveCheckpoint(ctx, p.Objects, checkpoint); err != nil {
				log.Ctx(ctx).Warn().Err(err).Msg("persisting ingest checkpoint")
			}
			sinceCheckpoint = 0
		}

		elapsed := time.Since(start).Seconds()
		rate := 0.0
		if elapsed > 0 {
			rate = float64(report.Processed) / elapsed
		}
		eta := 0.0
		if rate > 0 {
			eta = float64(len(pending)-report.Processed) / rate
		}
		p.events().Publish(ctx, ProgressEvent{
			Processed:   report.Processed,
			Total:       len(pending),
			RateImgSec:  rate,
			ETASeconds:  eta,
			FHIRSkipped: report.FHIRSkipped,
		})
	}

	if !cfg.DryRun {
		if err := saveCheckpoint(ctx, p.Objects, checkpoint); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("persisting final ingest checkpoint")
		}
	}

	report.Duration = time.Since(start)
	return report, nil
}

func (p *Pipeline) discover(ctx context.Context, source string) ([]DiscoveredImage, int, error) {
	if strings.HasPrefix(source, "s3://") {
		return DiscoverObjectStore(ctx, p.Objects, s3Prefix(source))
	}
	return Discover(ctx, source)
}

// s3Prefix strips the s3://bucket/ portion, leaving the key prefix; the
// bucket itself is already bound into the ObjectStore the pipeline was
// constructed with.
func s3Prefix(source string) string {
	rest := strings.TrimPrefix(source, "s3://")
	if idx := strings.Index(rest, "/"); idx >= 0 {
		return rest[idx+1:]
	}
	return ""
}

func (p *Pipeline) runBatch(ctx context.Context, cfg Config, batch []DiscoveredImage, checkpoint map[string]bool, report *Report) {
	type prepared struct {
		img  DiscoveredImage
		meta ImageMetadata
	}

	var preparedImages []prepared
	var prompts []string
	for _, img := range batch {
		meta, err := p.metadataReader().ReadMetadata(ctx, img.FilePath)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("image_id", img.ImageID).Msg("reading DICOM metadata")
			report.Errored++
			continue
		}
		preparedImages = append(preparedImages, prepared{img: img, meta: meta})
		prompts = append(prompts, meta.Prompt())
	}
	if len(preparedImages) == 0 {
		return
	}

	var vectors [][]float32
	if !cfg.DryRun {
		var err error
		vectors, err = p.Embedder.EmbedBatch(ctx, prompts)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Int("batch_size", len(prompts)).Msg("embedding DICOM batch")
			report.Errored += len(preparedImages)
			return
		}
	}

	for i, pr := range preparedImages {
		report.Processed++
		if cfg.DryRun {
			continue
		}
		rec := imaging.Record{
			ImageID:        pr.img.ImageID,
			SubjectID:      pr.img.SubjectID,
			StudyID:        pr.img.StudyID,
			ViewPosition:   pr.meta.ViewPosition,
			ImagePath:      pr.img.FilePath,
			EmbeddingModel: "default",
		}
		if err := p.Store.UpsertRecord(ctx, rec, vectors[i]); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("image_id", rec.ImageID).Msg("upserting image record")
			report.Errored++
			continue
		}
		report.Inserted++
		checkpoint[rec.ImageID] = true
		p.metrics().IncCounter("ingestion_images_total", map[string]string{"source": "dicom"})

		if cfg.CreateFHIR && p.FHIR != nil {
			p.materializeFHIR(ctx, rec, pr.meta, cfg.EncounterWindow, report)
		}
	}
}

// materializeFHIR implements step 5: look up the FHIR patient by MIMIC
// subject id, build and PUT an ImagingStudy, and back-fill fhir_resource_id
// on success. A missing patient mapping increments fhir_skipped, never the
// error count.
func (p *Pipeline) materializeFHIR(ctx context.Context, rec imaging.Record, meta ImageMetadata, encounterWindow time.Duration, report *Report) {
	patientID, ok, err := p.Store.LookupPatientByMIMICID(ctx, rec.SubjectID)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("subject_id", rec.SubjectID).Msg("looking up FHIR patient mapping")
		report.FHIRErrored++
		return
	}
	if !ok {
		report.FHIRSkipped++
		return
	}

	studyDate := parseStudyDate(meta.StudyDate)

	window := encounterWindow
	if window <= 0 {
		window = 24 * time.Hour
	}
	var encounterID string
	if !studyDate.IsZero() {
		if id, ok := fhir.MatchEncounter(ctx, p.FHIR, patientID, studyDate, window); ok {
			encounterID = id
		}
	}
	if encounterID != "" {
		if err := p.Store.SetEncounterID(ctx, rec.ImageID, encounterID); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("image_id", rec.ImageID).Msg("back-filling encounter_id")
		}
	}

	study := p.FHIR.BuildImagingStudy(fhir.ImagingStudyData{
		ID:           "imgstudy-" + rec.StudyID,
		PatientID:    patientID,
		EncounterID:  encounterID,
		Started:      studyDate,
		SeriesUID:    rec.StudyID,
		Modality:     meta.Modality,
		NumInstances: 1,
	})

	resourceID, err := p.FHIR.Put(ctx, study)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("image_id", rec.ImageID).Msg("materializing FHIR ImagingStudy")
		report.FHIRErrored++
		return
	}
	if err := p.Store.SetFHIRResourceID(ctx, rec.ImageID, resourceID); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("image_id", rec.ImageID).Msg("back-filling fhir_resource_id")
		report.FHIRErrored++
		return
	}
	report.FHIRLinked++
}

func parseStudyDate(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	if t, err := time.Parse("20060102", raw); err == nil {
		return t
	}
	return time.Time{}
}
