package fhir

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"clinicalrag/internal/apperr"
	"clinicalrag/internal/observability"
)

const requestTimeout = 10 * time.Second

// Client is a REST client against a FHIR R4 server. Construction probes the
// base URL; if unreachable, the client enters a sticky demo mode where
// mutating operations become no-ops returning synthetic urn:demo:<uuid> ids.
type Client struct {
	httpClient *http.Client
	baseURL    string
	demoMode   atomic.Bool
}

// NewClient constructs a Client against baseURL. httpClient may be nil to
// use an OTel-instrumented default. The constructor performs a best-effort
// reachability probe (GET {baseURL}/metadata) and sets DemoMode on failure;
// it never returns an error, matching the adapter's "always usable" contract.
func NewClient(ctx context.Context, baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = observability.NewHTTPClient(nil)
	}
	c := &Client{httpClient: httpClient, baseURL: strings.TrimSuffix(baseURL, "/")}
	probeCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	if strings.TrimSpace(baseURL) == "" {
		c.demoMode.Store(true)
		return c
	}
	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.baseURL+"/metadata", nil)
	if err != nil {
		c.demoMode.Store(true)
		return c
	}
	resp, err := c.httpClient.Do(req)
	if err != nil || resp.StatusCode >= 500 {
		c.demoMode.Store(true)
		return c
	}
	resp.Body.Close()
	return c
}

// DemoMode reports whether the server was unreachable at construction time.
func (c *Client) DemoMode() bool { return c.demoMode.Load() }

func demoID() string { return "urn:demo:" + uuid.NewString() }

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return apperr.WrapInternal(err, "marshal fhir request body")
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperr.WrapInternal(err, "build fhir request")
	}
	req.Header.Set("Content-Type", "application/fhir+json")
	req.Header.Set("Accept", "application/fhir+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.WrapDependencyUnavailable(err, "fhir server unreachable")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.WrapDependencyUnavailable(err, "read fhir response")
	}
	if resp.StatusCode >= 400 {
		return apperr.DependencyUnavailable("fhir server returned %d: %s", resp.StatusCode, string(data))
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return apperr.WrapData(err, "decode fhir response")
		}
	}
	return nil
}

// Get fetches a single resource by kind and id (e.g. kind="Patient").
func (c *Client) Get(ctx context.Context, kind, id string) (map[string]any, error) {
	if c.demoMode.Load() {
		return nil, apperr.DependencyUnavailable("fhir client in demo mode: cannot fetch %s/%s", kind, id)
	}
	var out map[string]any
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/%s/%s", kind, id), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Put idempotently creates-or-replaces a resource by its own (client-assigned)
// id. In demo mode this is a no-op that returns a synthetic id.
func (c *Client) Put(ctx context.Context, resource Resource) (string, error) {
	if c.demoMode.Load() {
		return demoID(), nil
	}
	id := resource.ResourceID()
	if strings.TrimSpace(id) == "" {
		return "", apperr.Input("fhir Put requires a client-assigned resource id")
	}
	path := fmt.Sprintf("/%s/%s", resource.ResourceType(), id)
	if err := c.do(ctx, http.MethodPut, path, resource, nil); err != nil {
		return "", err
	}
	return id, nil
}

// SearchByIdentifier returns the Bundle for a search of kind resources whose
// identifier value matches value.
func (c *Client) SearchByIdentifier(ctx context.Context, kind, value string) (*Bundle, error) {
	if c.demoMode.Load() {
		return &Bundle{ResourceType: "Bundle"}, nil
	}
	var b Bundle
	path := fmt.Sprintf("/%s?identifier=%s", kind, value)
	if err := c.do(ctx, http.MethodGet, path, nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// SearchEncountersForPatient returns all Encounters referencing patientID.
func (c *Client) SearchEncountersForPatient(ctx context.Context, patientID string) ([]Encounter, error) {
	if c.demoMode.Load() {
		return nil, nil
	}
	var b Bundle
	path := fmt.Sprintf("/Encounter?subject=Patient/%s", patientID)
	if err := c.do(ctx, http.MethodGet, path, nil, &b); err != nil {
		return nil, err
	}
	out := make([]Encounter, 0, len(b.Entry))
	for _, e := range b.Entry {
		raw, err := json.Marshal(e.Resource)
		if err != nil {
			continue
		}
		var enc Encounter
		if err := json.Unmarshal(raw, &enc); err != nil {
			continue
		}
		out = append(out, enc)
	}
	return out, nil
}

// SearchDiagnosticReportsForPatient returns all DiagnosticReport resources
// referencing patientID, used by the get_radiology_reports tool.
func (c *Client) SearchDiagnosticReportsForPatient(ctx context.Context, patientID string) ([]DiagnosticReport, error) {
	return c.searchDiagnosticReports(ctx, fmt.Sprintf("/DiagnosticReport?subject=Patient/%s", patientID))
}

// SearchDiagnosticReportsForEncounter returns all DiagnosticReport resources
// referencing encounterID, used by the get_encounter_imaging tool to surface
// the radiology read alongside the encounter's images.
func (c *Client) SearchDiagnosticReportsForEncounter(ctx context.Context, encounterID string) ([]DiagnosticReport, error) {
	return c.searchDiagnosticReports(ctx, fmt.Sprintf("/DiagnosticReport?encounter=Encounter/%s", encounterID))
}

func (c *Client) searchDiagnosticReports(ctx context.Context, path string) ([]DiagnosticReport, error) {
	if c.demoMode.Load() {
		return nil, nil
	}
	var b Bundle
	if err := c.do(ctx, http.MethodGet, path, nil, &b); err != nil {
		return nil, err
	}
	out := make([]DiagnosticReport, 0, len(b.Entry))
	for _, e := range b.Entry {
		raw, err := json.Marshal(e.Resource)
		if err != nil {
			continue
		}
		var rep DiagnosticReport
		if err := json.Unmarshal(raw, &rep); err != nil {
			continue
		}
		out = append(out, rep)
	}
	return out, nil
}

// ImagingStudyData is the minimal input needed to assemble a FHIR
// ImagingStudy for a newly ingested DICOM series.
type ImagingStudyData struct {
	ID          string
	PatientID   string
	EncounterID string // optional, may be empty
	Started     time.Time
	SeriesUID   string
	Modality    string
	NumInstances int
}

// BuildImagingStudy assembles a minimal ImagingStudy referencing Patient and,
// when known, Encounter. It performs no network call.
func (c *Client) BuildImagingStudy(data ImagingStudyData) ImagingStudy {
	study := ImagingStudy{
		ID:      data.ID,
		Status:  "available",
		Subject: Ref{Reference: "Patient/" + data.PatientID},
		Started: data.Started,
		Series: []ImagingStudySeries{
			{UID: data.SeriesUID, Modality: data.Modality, NumberOfInstances: data.NumInstances},
		},
	}
	if data.EncounterID != "" {
		study.Encounter = &Ref{Reference: "Encounter/" + data.EncounterID}
	}
	return study
}
