package ingest

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	kafkago "github.com/segmentio/kafka-go"
)

const progressTopic = "ingest.progress"

// ProgressEvent is one batch-progress update, published on the configured
// topic (progressTopic when none is set) when a Kafka broker is configured
// and always logged structurally
// regardless (spec.md §4.8 step 7 / SPEC_FULL §4.14).
type ProgressEvent struct {
	Processed   int     `json:"processed"`
	Total       int     `json:"total"`
	RateImgSec  float64 `json:"rate_img_sec"`
	ETASeconds  float64 `json:"eta_seconds"`
	FHIRSkipped int     `json:"fhir_skipped"`
}

// EventPublisher emits ingestion progress. The default implementation only
// logs; NewKafkaPublisher wraps it with a best-effort Kafka write.
type EventPublisher interface {
	Publish(ctx context.Context, ev ProgressEvent)
}

// LogPublisher emits progress as a structured log line. It never fails the
// pipeline: publishing is purely additive observability.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, ev ProgressEvent) {
	log.Ctx(ctx).Info().
		Int("processed", ev.Processed).
		Int("total", ev.Total).
		Float64("rate_img_sec", ev.RateImgSec).
		Float64("eta_seconds", ev.ETASeconds).
		Int("fhir_skipped", ev.FHIRSkipped).
		Msg("ingestion progress")
}

// KafkaPublisher additionally writes each event as JSON to its topic.
// Construct via NewKafkaPublisher; a write failure is logged but never
// propagated, matching the ambient nature of this bus.
type KafkaPublisher struct {
	inner  EventPublisher
	writer *kafkago.Writer
}

// NewKafkaPublisher builds a publisher writing to topic (falling back to
// progressTopic when empty) on the given comma-separated broker list.
// Returns (nil, false) when brokers is empty, so callers fall back to
// LogPublisher.
func NewKafkaPublisher(brokers, topic string) (*KafkaPublisher, bool) {
	brokers = strings.TrimSpace(brokers)
	if brokers == "" {
		return nil, false
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = progressTopic
	}
	addrs := strings.Split(brokers, ",")
	for i := range addrs {
		addrs[i] = strings.TrimSpace(addrs[i])
	}
	w := &kafkago.Writer{
		Addr:     kafkago.TCP(addrs...),
		Topic:    topic,
		Balancer: &kafkago.LeastBytes{},
	}
	return &KafkaPublisher{inner: LogPublisher{}, writer: w}, true
}

func (k *KafkaPublisher) Publish(ctx context.Context, ev ProgressEvent) {
	k.inner.Publish(ctx, ev)
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("marshaling ingest progress event")
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := k.writer.WriteMessages(writeCtx, kafkago.Message{Value: payload}); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("publishing ingest progress event to kafka")
	}
}

func (k *KafkaPublisher) Close() error {
	if k == nil || k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
