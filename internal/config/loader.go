package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

func lookupEnv(key string) (string, bool) { return os.LookupEnv(key) }

// Load reads configuration from environment variables, optionally overlaid
// by a .env file. Precedence follows the teacher's pattern: Overload lets a
// local .env deterministically control development runs, overriding any
// value the process environment already set before godotenv ran.
func Load() (Config, error) {
	_ = godotenv.Overload()

	cfg := Config{}

	cfg.IRIS.Host = strings.TrimSpace(getenv("IRIS_HOST", ""))
	cfg.IRIS.Port = getenvInt("IRIS_PORT", 1972)
	cfg.IRIS.Username = strings.TrimSpace(getenv("IRIS_USERNAME", ""))
	cfg.IRIS.Password = strings.TrimSpace(getenv("IRIS_PASSWORD", ""))
	cfg.IRIS.Namespace = strings.TrimSpace(getenv("IRIS_NAMESPACE", "USER"))

	cfg.FHIRBaseURL = strings.TrimSpace(getenv("FHIR_BASE_URL", ""))
	cfg.EmbeddingURL = strings.TrimSpace(getenv("EMBEDDING_URL", ""))
	cfg.ImageEmbedURL = strings.TrimSpace(getenv("IMAGE_EMBEDDING_URL", cfg.EmbeddingURL))

	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(getenv("LLM_PROVIDER", "openai")))
	cfg.LLM.URL = strings.TrimSpace(getenv("LLM_URL", ""))
	cfg.LLM.APIKey = strings.TrimSpace(getenv("LLM_API_KEY", ""))
	cfg.LLM.Model = strings.TrimSpace(getenv("LLM_MODEL", "gpt-4o-mini"))

	cfg.ConfigPath = strings.TrimSpace(getenv("CONFIG_PATH", ""))

	cfg.Qdrant.Addr = strings.TrimSpace(getenv("QDRANT_ADDR", "localhost:6334"))
	cfg.Qdrant.APIKey = strings.TrimSpace(getenv("QDRANT_API_KEY", ""))
	cfg.Qdrant.Collection = strings.TrimSpace(getenv("QDRANT_COLLECTION", "radiology_images"))

	cfg.Redis.Addr = strings.TrimSpace(getenv("REDIS_URL", ""))
	cfg.Redis.Password = strings.TrimSpace(getenv("REDIS_PASSWORD", ""))
	cfg.Redis.DB = getenvInt("REDIS_DB", 0)

	if brokers := strings.TrimSpace(getenv("KAFKA_BROKERS", "")); brokers != "" {
		cfg.Kafka.Brokers = parseCommaSeparatedList(brokers)
	}
	cfg.Kafka.Topic = strings.TrimSpace(getenv("KAFKA_INGEST_TOPIC", "ingest.progress"))

	cfg.ClickHouse.DSN = strings.TrimSpace(getenv("CLICKHOUSE_DSN", ""))

	cfg.ObjectStore.URI = strings.TrimSpace(getenv("OBJECT_STORE_URI", "./data/objects"))
	cfg.ObjectStore.Region = strings.TrimSpace(getenv("AWS_REGION", "us-east-1"))

	cfg.LogLevel = strings.TrimSpace(getenv("LOG_LEVEL", "info"))
	cfg.ServiceName = strings.TrimSpace(getenv("SERVICE_NAME", "clinicalrag"))
	cfg.OTelEndpoint = strings.TrimSpace(getenv("OTEL_EXPORTER_OTLP_ENDPOINT", ""))

	cfg.Retry.MaxAttempts = getenvInt("RETRY_MAX_ATTEMPTS", 3)
	cfg.Retry.BaseDelay = time.Duration(getenvInt("RETRY_BASE_DELAY_SECONDS", 2)) * time.Second

	cfg.AgentMaxIterations = getenvInt("AGENT_MAX_ITERATIONS", 10)
	cfg.MemoryCapacity = getenvInt("MEMORY_CAPACITY", 256)
	cfg.MemoryRecallTopK = getenvInt("MEMORY_RECALL_TOP_K", 3)
	cfg.MemoryRecallMinSim = getenvFloat("MEMORY_RECALL_MIN_SIMILARITY", 0.3)

	cfg.FusionK = getenvInt("FUSION_RRF_K", 60)
	cfg.FusionWeightFHIR = getenvFloat("FUSION_WEIGHT_FHIR", 1.0)
	cfg.FusionWeightKG = getenvFloat("FUSION_WEIGHT_KG", 0.7)

	return cfg, nil
}

func getenv(key, def string) string {
	if v, ok := lookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v, ok := lookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

func getenvFloat(key string, def float64) float64 {
	v, ok := lookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def
	}
	return f
}

func parseCommaSeparatedList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
