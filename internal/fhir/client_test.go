package fhir

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"clinicalrag/internal/apperr"
)

func TestNewClientEntersDemoModeWhenUnreachable(t *testing.T) {
	c := NewClient(t.Context(), "http://127.0.0.1:0", nil)
	require.True(t, c.DemoMode())

	id, err := c.Put(t.Context(), Patient{ID: "p1"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(id, "urn:demo:"))
}

func TestNewClientReachableIsNotDemoMode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"resourceType":"CapabilityStatement"}`))
	}))
	defer srv.Close()

	c := NewClient(t.Context(), srv.URL, srv.Client())
	require.False(t, c.DemoMode())
}

func TestPutIsIdempotentByClientAssignedID(t *testing.T) {
	var puts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/metadata":
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPut && r.URL.Path == "/ImagingStudy/study-1":
			puts++
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(t.Context(), srv.URL, srv.Client())
	require.False(t, c.DemoMode())

	study := ImagingStudy{ID: "study-1", Status: "available", Subject: Ref{Reference: "Patient/p1"}}
	id1, err := c.Put(t.Context(), study)
	require.NoError(t, err)
	id2, err := c.Put(t.Context(), study)
	require.NoError(t, err)
	require.Equal(t, id1, id2)
	require.Equal(t, 2, puts)
}

func TestPutRequiresResourceID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(t.Context(), srv.URL, srv.Client())
	_, err := c.Put(t.Context(), Patient{})
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.KindInput))
}
