// Package config loads runtime configuration for the clinical RAG service.
package config

import (
	"strconv"
	"time"
)

// IRISConfig describes the relational/vector backend holding FHIR documents,
// the knowledge graph, and narrative embeddings (backed by Postgres+pgvector
// in this implementation; named IRIS per spec.md's external interface).
type IRISConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	Namespace string
}

// DSN renders a Postgres connection string from the IRIS settings.
func (c IRISConfig) DSN() string {
	if c.Host == "" {
		return ""
	}
	return "postgres://" + c.Username + ":" + c.Password + "@" + c.Host + ":" + strconv.Itoa(c.Port) + "/" + c.Namespace
}

type QdrantConfig struct {
	Addr       string
	APIKey     string
	Collection string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type ClickHouseConfig struct {
	DSN string
}

type ObjectStoreConfig struct {
	// URI is either a local directory path or an "s3://bucket/prefix" URI.
	URI    string
	Region string
}

type LLMConfig struct {
	Provider string // "openai", "anthropic", "google"
	URL      string
	APIKey   string
	Model    string
}

type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Config is the fully resolved configuration tree for the service.
type Config struct {
	IRIS          IRISConfig
	FHIRBaseURL   string
	EmbeddingURL  string
	LLM           LLMConfig
	ConfigPath    string
	Qdrant        QdrantConfig
	ImageEmbedURL string

	Redis      RedisConfig
	Kafka      KafkaConfig
	ClickHouse ClickHouseConfig
	ObjectStore ObjectStoreConfig

	LogLevel string

	Retry RetryPolicy

	AgentMaxIterations int
	MemoryCapacity     int
	MemoryRecallTopK   int
	MemoryRecallMinSim float64

	FusionK         int
	FusionWeightFHIR float64
	FusionWeightKG   float64

	OTelEndpoint   string
	ServiceName    string
}
