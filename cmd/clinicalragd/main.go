package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"clinicalrag/internal/config"
	"clinicalrag/internal/observability"
	"clinicalrag/internal/objectstore"
	"clinicalrag/internal/rag/ingest"
	"clinicalrag/internal/rag/retrieve"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading configuration: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger("", cfg.LogLevel)

	ctx := context.Background()
	cmd, args := os.Args[1], os.Args[2:]

	var runErr error
	switch cmd {
	case "check-health":
		runErr = runCheckHealth(ctx, cfg, args)
	case "fix-environment":
		runErr = runFixEnvironment(cfg)
	case "chat":
		runErr = runChat(ctx, cfg, args)
	case "ingest-mimic":
		runErr = runIngestMimic(ctx, cfg, args)
	default:
		usage()
		os.Exit(1)
	}

	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `clinicalragd: clinical RAG service CLI

Usage:
  clinicalragd check-health [--smoke-test]
  clinicalragd fix-environment
  clinicalragd chat <query> [--provider name] [--quiet]
  clinicalragd ingest-mimic --source PATH [--batch-size N] [--limit N] [--skip-existing|--no-skip-existing] [--dry-run] [--create-fhir]`)
}

// runCheckHealth implements spec.md §6's `check-health` command: probe every
// configured backend and report reachability, exiting 1 if any configured
// backend is unreachable.
func runCheckHealth(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("check-health", flag.ExitOnError)
	smokeTest := fs.Bool("smoke-test", false, "also run a trivial end-to-end hybrid search")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	app, err := buildApp(ctx, cfg)
	if err != nil {
		fmt.Printf("FAIL  startup: %v\n", err)
		return fmt.Errorf("check-health failed")
	}
	defer app.Close()

	healthy := true
	report := func(name string, ok bool, detail string) {
		status := "OK"
		if !ok {
			status = "FAIL"
			healthy = false
		}
		if detail != "" {
			fmt.Printf("%-4s  %-12s  %s\n", status, name, detail)
		} else {
			fmt.Printf("%-4s  %-12s\n", status, name)
		}
	}

	if cfg.IRIS.DSN() == "" {
		report("iris", true, "not configured")
	} else if app.Pool == nil {
		report("iris", false, "pool not constructed")
	} else if err := app.Pool.Ping(ctx); err != nil {
		report("iris", false, err.Error())
	} else {
		report("iris", true, "")
	}

	if _, err := app.Embedder.EmbedText(ctx, "health check"); err != nil {
		report("embedding", false, err.Error())
	} else if app.Embedder.IsMockMode() {
		report("embedding", true, "running in mock mode")
	} else {
		report("embedding", true, "")
	}

	report("fhir", !app.FHIR.DemoMode(), ifDemoMode(app.FHIR))

	if cfg.Qdrant.Addr == "" {
		report("qdrant", true, "not configured")
	} else if app.Images == nil {
		report("qdrant", false, "image store not constructed")
	} else {
		report("qdrant", true, "")
	}

	if *smokeTest && app.Deps.Retrieve != nil {
		_, err := app.Deps.Retrieve.HybridSearch(ctx, retrieve.Options{Query: "fever", TopK: 1})
		report("smoke-test", err == nil, errString(err))
	}

	if !healthy {
		return fmt.Errorf("one or more backends are unhealthy")
	}
	fmt.Println("all configured backends healthy")
	return nil
}

func ifDemoMode(c interface{ DemoMode() bool }) string {
	if c.DemoMode() {
		return "running in demo mode (FHIR server unreachable at startup)"
	}
	return ""
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// runFixEnvironment reports which required settings are missing from the
// resolved configuration and writes a `.env` template with sane defaults
// for anything absent, without overwriting values already set.
func runFixEnvironment(cfg config.Config) error {
	type requirement struct {
		name    string
		value   string
		envVar  string
		example string
	}
	reqs := []requirement{
		{"FHIR base URL", cfg.FHIRBaseURL, "FHIR_BASE_URL", "http://localhost:8080/fhir"},
		{"embedding service URL", cfg.EmbeddingURL, "EMBEDDING_URL", "http://localhost:8000/embed"},
		{"LLM API key", cfg.LLM.APIKey, "LLM_API_KEY", "sk-..."},
		{"IRIS/Postgres host", cfg.IRIS.Host, "IRIS_HOST", "localhost"},
	}

	missing := make([]requirement, 0, len(reqs))
	for _, r := range reqs {
		if r.value == "" {
			missing = append(missing, r)
			fmt.Printf("MISSING  %-24s  set %s (e.g. %s)\n", r.name, r.envVar, r.example)
		} else {
			fmt.Printf("OK       %-24s\n", r.name)
		}
	}

	if len(missing) == 0 {
		fmt.Println("environment looks complete")
		return nil
	}

	const envPath = ".env"
	existing := map[string]bool{}
	if b, err := os.ReadFile(envPath); err == nil {
		for _, line := range splitLines(string(b)) {
			if eq := indexByte(line, '='); eq > 0 {
				existing[line[:eq]] = true
			}
		}
	}

	f, err := os.OpenFile(envPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", envPath, err)
	}
	defer f.Close()

	appended := 0
	for _, r := range missing {
		if existing[r.envVar] {
			continue
		}
		if _, err := fmt.Fprintf(f, "%s=%s\n", r.envVar, r.example); err != nil {
			return fmt.Errorf("writing %s: %w", envPath, err)
		}
		appended++
	}
	if appended > 0 {
		fmt.Printf("appended %d placeholder value(s) to %s; replace them before relying on this environment\n", appended, envPath)
	}
	return nil
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// runChat implements spec.md §6's `chat` command: one turn of the agent
// loop against a freshly generated session and turn id.
func runChat(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	provider := fs.String("provider", "", "override LLM_PROVIDER for this turn")
	quiet := fs.Bool("quiet", false, "suppress logging, print only the answer")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("chat requires a query argument")
	}
	query := fs.Arg(0)
	// Flags may also follow the query, as in the usage line.
	if err := fs.Parse(fs.Args()[1:]); err != nil {
		return err
	}

	if *provider != "" {
		cfg.LLM.Provider = *provider
	}
	if *quiet {
		observability.InitLogger(os.DevNull, cfg.LogLevel)
	}

	app, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	session := uuid.NewString()
	turnID := uuid.NewString()
	answer, err := app.Engine.Run(ctx, session, turnID, query)
	if err != nil {
		return fmt.Errorf("agent turn failed: %w", err)
	}
	fmt.Println(answer)
	return nil
}

// runIngestMimic implements spec.md §6's `ingest-mimic` command, wiring
// internal/rag/ingest.Pipeline against a local directory or s3:// root.
func runIngestMimic(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("ingest-mimic", flag.ExitOnError)
	source := fs.String("source", "", "ingestion root: local directory or s3://bucket/prefix")
	batchSize := fs.Int("batch-size", 32, "images embedded per batch")
	limit := fs.Int("limit", 0, "stop after this many pending images (0 = no limit)")
	skipExisting := fs.Bool("skip-existing", true, "skip images already present in the imaging store")
	noSkipExisting := fs.Bool("no-skip-existing", false, "also re-ingest images already present in the imaging store")
	dryRun := fs.Bool("dry-run", false, "discover and report, but do not embed or write")
	createFHIR := fs.Bool("create-fhir", false, "materialize a FHIR ImagingStudy per ingested image")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *noSkipExisting {
		*skipExisting = false
	}
	if *source == "" {
		return fmt.Errorf("ingest-mimic requires --source")
	}

	app, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	if app.Images == nil {
		return fmt.Errorf("ingest-mimic requires IRIS and Qdrant to both be configured")
	}

	store, err := objectstore.New(ctx, *source, cfg.ObjectStore.Region)
	if err != nil {
		return fmt.Errorf("opening ingestion root %s: %w", *source, err)
	}

	var fhirClient = app.FHIR
	if !*createFHIR {
		fhirClient = nil
	}

	events, closeEvents := buildEventPublisher(cfg)
	defer closeEvents()

	pipeline := ingest.Pipeline{
		Store:    app.Images,
		Embedder: app.Embedder,
		FHIR:     fhirClient,
		Objects:  store,
		Events:   events,
	}

	runCfg := ingest.Config{
		Source:       *source,
		BatchSize:    *batchSize,
		Limit:        *limit,
		SkipExisting: *skipExisting,
		DryRun:       *dryRun,
		CreateFHIR:   *createFHIR,
	}

	report, err := pipeline.Run(ctx, runCfg)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	log.Info().
		Int("discovered", report.Discovered).
		Int("skipped", report.Skipped).
		Int("filtered_large", report.FilteredLarge).
		Int("processed", report.Processed).
		Int("inserted", report.Inserted).
		Int("errored", report.Errored).
		Int("fhir_linked", report.FHIRLinked).
		Int("fhir_skipped", report.FHIRSkipped).
		Int("fhir_errored", report.FHIRErrored).
		Dur("duration", report.Duration).
		Msg("ingestion run complete")
	return nil
}

// buildEventPublisher wires ingest.NewKafkaPublisher against cfg.Kafka when
// brokers are configured, per SPEC_FULL §4.14; otherwise progress is only
// logged, via ingest.Pipeline's own LogPublisher default (Events left nil).
func buildEventPublisher(cfg config.Config) (ingest.EventPublisher, func()) {
	brokers := strings.Join(cfg.Kafka.Brokers, ",")
	publisher, ok := ingest.NewKafkaPublisher(brokers, cfg.Kafka.Topic)
	if !ok {
		return nil, func() {}
	}
	return publisher, func() {
		if err := publisher.Close(); err != nil {
			log.Warn().Err(err).Msg("closing kafka ingest event publisher")
		}
	}
}
