// Package progress implements the Orchestrator's progress-sink contract:
// an in-process observer callback plus a supplemented Kafka sink, both
// fed from the same IngestionProgress snapshot on every Orchestrator
// phase transition.
package progress

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"manifold/internal/ingestion/types"
)

// Observer receives a read-only snapshot of the run's progress. Observers
// must not mutate the passed value; the orchestrator reuses the pointer's
// underlying struct across calls for in-process observers but always
// serializes a fresh copy before handing it to Notify.
type Observer func(p types.IngestionProgress)

// Sink fans a progress snapshot out to every registered observer and,
// when configured, to a Kafka topic — giving the "progress sink"
// external interface a durable, multi-consumer transport in addition to
// the in-process callback, grounded on cmd/orchestrator/main.go's
// kafka.Writer wiring.
type Sink struct {
	customerID string
	observers  []Observer
	writer     *kafka.Writer
}

// NewSink builds a sink for one run. writer may be nil, in which case
// only in-process observers are notified.
func NewSink(customerID string, writer *kafka.Writer) *Sink {
	return &Sink{customerID: customerID, writer: writer}
}

// NewKafkaWriter builds a topic writer the way cmd/orchestrator/main.go
// builds its command/response writers. Returns nil (not an error) when
// brokers is empty — progress publishing to Kafka is optional.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	return &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
}

// On registers an in-process observer.
func (s *Sink) On(obs Observer) {
	s.observers = append(s.observers, obs)
}

// Notify snapshots p and delivers it to every in-process observer, then
// (best effort) publishes it to Kafka. Observer panics/errors never
// abort the run: a broken observer is a logging concern, not a pipeline
// failure, matching the source's "Progress callback error" tolerance.
func (s *Sink) Notify(ctx context.Context, p types.IngestionProgress) {
	for _, obs := range s.observers {
		s.safeNotify(obs, p)
	}
	if s.writer == nil {
		return
	}
	payload, err := json.Marshal(p)
	if err != nil {
		log.Error().Err(err).Str("customer_id", s.customerID).Msg("marshal ingestion progress")
		return
	}
	if err := s.writer.WriteMessages(ctx, kafka.Message{Key: []byte(s.customerID), Value: payload}); err != nil {
		log.Warn().Err(err).Str("customer_id", s.customerID).Msg("publish ingestion progress to kafka")
	}
}

func (s *Sink) safeNotify(obs Observer, p types.IngestionProgress) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("ingestion progress observer panicked")
		}
	}()
	obs(p)
}

// Close closes the underlying Kafka writer, if any.
func (s *Sink) Close() error {
	if s.writer == nil {
		return nil
	}
	return s.writer.Close()
}
