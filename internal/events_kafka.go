// events_kafka.go
package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaSink streams controller events to a Kafka topic for downstream
// display and persistence. Publishes go through a circuit breaker so a
// dead broker degrades to fast-fails instead of stalling the loop.
type KafkaSink struct {
	lg     *slog.Logger
	writer *kafka.Writer
	cb     *Breaker
	topic  string
}

func NewKafkaSink(cfg *AppConfig, lg *slog.Logger) (*KafkaSink, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return nil, nil
	}
	s := &KafkaSink{
		lg:    lg,
		topic: cfg.EventsTopic,
		cb:    NewBreaker("kafka-events", cfg.BreakerMaxFails, time.Duration(cfg.BreakerResetSec)*time.Second, lg),
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.KafkaBrokers...),
			Topic:        cfg.EventsTopic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
	}
	if err := s.ensureTopic(context.Background(), cfg.KafkaBrokers[0]); err != nil {
		lg.Warn("topic ensure failed", "topic", cfg.EventsTopic, "error", err)
	}
	lg.Info("kafka events wired", "topic", cfg.EventsTopic, "brokers", cfg.KafkaBrokers)
	return s, nil
}

func (s *KafkaSink) ensureTopic(ctx context.Context, broker string) error {
	conn, err := kafka.DialContext(ctx, "tcp", broker)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer conn.Close()
	ctrl, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("controller: %w", err)
	}
	c, err := kafka.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", ctrl.Host, ctrl.Port))
	if err != nil {
		return fmt.Errorf("dial controller: %w", err)
	}
	defer c.Close()
	if err := c.CreateTopics(kafka.TopicConfig{Topic: s.topic, NumPartitions: 1, ReplicationFactor: 1}); err != nil {
		s.lg.Warn("CreateTopics", "error", err)
	}
	return nil
}

func (s *KafkaSink) Publish(ctx context.Context, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := kafka.Message{Key: []byte(ev.Kind), Value: b, Time: time.Now()}
	return s.cb.Execute(ctx, func(ctx context.Context) error {
		return s.writer.WriteMessages(ctx, msg)
	})
}

func (s *KafkaSink) Close() error { return s.writer.Close() }
