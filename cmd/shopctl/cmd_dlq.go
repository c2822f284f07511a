package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/IBM/sarama"
	"github.com/spf13/cobra"

	"github.com/vladislavdragonenkov/simpleshop/internal/messaging/kafka"
)

const (
	defaultReplayLimit = 100
	defaultIdleTimeout = 2 * time.Second
)

type replayConfig struct {
	sourceTopic string
	limit       int
	execute     bool
	idleTimeout time.Duration
}

// dlqRecord: тело сообщения, которое outbox-воркер кладёт в DLQ.
type dlqRecord struct {
	OutboxID      string          `json:"outbox_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishError  string          `json:"publish_error"`
}

// replayEnvelope повторяет конверт OutboxTopicPublisher.
type replayEnvelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

type replayStats struct {
	Processed int `json:"processed"`
	Replayed  int `json:"replayed"`
	Skipped   int `json:"skipped"`
}

// newReplayDependencies открывает consumer DLQ и, в режиме execute, producer.
var newReplayDependencies = func(brokers []string, execute bool) (sarama.Consumer, sarama.SyncProducer, error) {
	consumerConfig := sarama.NewConfig()
	consumerConfig.Consumer.Return.Errors = true
	consumer, err := sarama.NewConsumer(brokers, consumerConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	if !execute {
		return consumer, nil, nil
	}

	producerConfig := sarama.NewConfig()
	producerConfig.Producer.RequiredAcks = sarama.WaitForAll
	producerConfig.Producer.Return.Successes = true
	producerConfig.Producer.Idempotent = true
	producerConfig.Net.MaxOpenRequests = 1
	producer, err := sarama.NewSyncProducer(brokers, producerConfig)
	if err != nil {
		_ = consumer.Close()
		return nil, nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return consumer, producer, nil
}

func newReplayDLQCmd(getenv func(string) string) *cobra.Command {
	var (
		brokers string
		cfg     = replayConfig{sourceTopic: kafka.TopicDeadLetterQueue}
	)
	cmd := &cobra.Command{
		Use:   "replay-dlq",
		Short: "Re-publish outbox events from the dead letter topic (dry-run by default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if brokers == "" {
				brokers = envDefault(getenv, envKafkaBrokers, "")
			}
			brokerList := splitList(brokers)
			switch {
			case len(brokerList) == 0:
				return errors.New(envKafkaBrokers + " (or --brokers) is required")
			case cfg.limit <= 0:
				return errors.New("limit must be > 0")
			case cfg.idleTimeout <= 0:
				return errors.New("idle-timeout must be > 0")
			}

			consumer, producer, err := newReplayDependencies(brokerList, cfg.execute)
			if err != nil {
				return err
			}
			defer func() {
				if producer != nil {
					_ = producer.Close()
				}
				_ = consumer.Close()
			}()

			stats, err := replayDLQ(cmd.Context(), cfg, consumer, producer, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
	cmd.Flags().StringVar(&brokers, "brokers", "", "comma-separated brokers (fallback: "+envKafkaBrokers+")")
	cmd.Flags().StringVar(&cfg.sourceTopic, "source-topic", kafka.TopicDeadLetterQueue, "DLQ topic")
	cmd.Flags().IntVar(&cfg.limit, "limit", defaultReplayLimit, "max messages to scan")
	cmd.Flags().BoolVar(&cfg.execute, "execute", false, "publish events; default only lists candidates")
	cmd.Flags().DurationVar(&cfg.idleTimeout, "idle-timeout", defaultIdleTimeout, "stop reading a partition after this idle time")
	return cmd
}

// replayDLQ читает партиции DLQ с начала и возвращает события в их исходные топики.
func replayDLQ(ctx context.Context, cfg replayConfig, consumer sarama.Consumer, producer sarama.SyncProducer, report io.Writer) (replayStats, error) {
	var stats replayStats
	if cfg.execute && producer == nil {
		return stats, errors.New("producer is required in execute mode")
	}

	partitions, err := consumer.Partitions(cfg.sourceTopic)
	if err != nil {
		return stats, fmt.Errorf("get partitions for topic %s: %w", cfg.sourceTopic, err)
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

	for _, partition := range partitions {
		if stats.Processed >= cfg.limit {
			break
		}
		if err := replayPartition(ctx, cfg, consumer, producer, partition, &stats, report); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func replayPartition(ctx context.Context, cfg replayConfig, consumer sarama.Consumer, producer sarama.SyncProducer, partition int32, stats *replayStats, report io.Writer) error {
	pc, err := consumer.ConsumePartition(cfg.sourceTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = pc.Close() }()

	idle := time.NewTimer(cfg.idleTimeout)
	defer idle.Stop()

	for stats.Processed < cfg.limit {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle.C:
			return nil
		case consumerErr, ok := <-pc.Errors():
			if ok && consumerErr != nil {
				return fmt.Errorf("partition %d consumer error: %w", partition, consumerErr)
			}
		case msg, ok := <-pc.Messages():
			if !ok || msg == nil {
				return nil
			}
			idle.Reset(cfg.idleTimeout)
			stats.Processed++

			topic, key, value, err := decodeDLQMessage(msg.Value)
			if err != nil {
				stats.Skipped++
				_, _ = fmt.Fprintf(report, "skip %d@%d: %v\n", msg.Partition, msg.Offset, err)
				continue
			}
			if !cfg.execute {
				stats.Replayed++
				_, _ = fmt.Fprintf(report, "candidate %d@%d -> %s key=%s\n", msg.Partition, msg.Offset, topic, key)
				continue
			}
			if _, _, err := producer.SendMessage(&sarama.ProducerMessage{
				Topic: topic,
				Key:   sarama.StringEncoder(key),
				Value: sarama.ByteEncoder(value),
			}); err != nil {
				return fmt.Errorf("publish replay message: %w", err)
			}
			stats.Replayed++
		}
	}
	return nil
}

// decodeDLQMessage восстанавливает конверт события и его топик.
func decodeDLQMessage(raw []byte) (topic, key string, value []byte, err error) {
	var record dlqRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return "", "", nil, fmt.Errorf("decode dlq record: %w", err)
	}
	if len(record.Payload) == 0 {
		return "", "", nil, errors.New("dlq record does not contain original payload")
	}

	value, err = json.Marshal(replayEnvelope{
		ID:            record.OutboxID,
		AggregateType: record.AggregateType,
		AggregateID:   record.AggregateID,
		EventType:     record.EventType,
		Payload:       record.Payload,
		PublishedAt:   time.Now().UTC(),
	})
	if err != nil {
		return "", "", nil, fmt.Errorf("encode replay envelope: %w", err)
	}

	key = record.AggregateID
	if key == "" {
		key = record.OutboxID
	}
	return kafka.TopicForAggregate(record.AggregateType), key, value, nil
}
