package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	os.Clearenv()
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 60, cfg.FusionK)
	require.Equal(t, 1.0, cfg.FusionWeightFHIR)
	require.Equal(t, 0.7, cfg.FusionWeightKG)
	require.Equal(t, 256, cfg.MemoryCapacity)
	require.Equal(t, 3, cfg.Retry.MaxAttempts)
}

func TestLoadOverridesFromEnv(t *testing.T) {
	os.Clearenv()
	t.Setenv("IRIS_HOST", "iris.internal")
	t.Setenv("IRIS_PORT", "1972")
	t.Setenv("FHIR_BASE_URL", "https://fhir.internal/r4")
	t.Setenv("LLM_PROVIDER", "anthropic")
	t.Setenv("MEMORY_RECALL_MIN_SIMILARITY", "0.45")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "iris.internal", cfg.IRIS.Host)
	require.Equal(t, 1972, cfg.IRIS.Port)
	require.Equal(t, "https://fhir.internal/r4", cfg.FHIRBaseURL)
	require.Equal(t, "anthropic", cfg.LLM.Provider)
	require.InDelta(t, 0.45, cfg.MemoryRecallMinSim, 0.0001)
}

func TestIRISDSN(t *testing.T) {
	c := IRISConfig{Host: "localhost", Port: 5432, Username: "u", Password: "p", Namespace: "clinicalrag"}
	require.Equal(t, "postgres://u:p@localhost:5432/clinicalrag", c.DSN())
}
