package app

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/simpleshop/internal/domain"
	"github.com/vladislavdragonenkov/simpleshop/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/simpleshop/internal/service/outbox"
)

const kafkaClientID = "simpleshop-service"

// initKafkaProducer создаёт Kafka producer, если брокеры заданы.
// Возвращает nil, nil при пустом списке брокеров.
func initKafkaProducer(brokers []string, logger *log.Entry) (*kafka.Producer, error) {
	if len(brokers) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokers, kafkaClientID)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil, err
	}

	logger.WithField("brokers", brokers).Info("kafka producer initialized")
	return producer, nil
}

// closeKafkaProducer закрывает Kafka producer, если он не nil.
func closeKafkaProducer(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}

// newOutboxWorker собирает воркер: с Kafka события уходят в топики, без неё в лог.
func newOutboxWorker(cfg Config, repo domain.OutboxRepository, producer *kafka.Producer, logger *log.Entry) *outbox.Worker {
	workerLogger := logger.WithField("component", "outbox-worker")
	options := []outbox.Option{
		outbox.WithLogger(workerLogger),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	}

	var publisher domain.OutboxPublisher = outbox.NewLogPublisher(workerLogger)
	if producer != nil {
		publisher = kafka.NewOutboxPublisher(producer)
		options = append(options, outbox.WithDLQPublisher(kafka.NewDLQPublisher(producer)))
	}
	return outbox.NewWorker(repo, publisher, options...)
}

// newOutboxCleanupWorker собирает воркер, удаляющий отправленные сообщения после OutboxRetention.
func newOutboxCleanupWorker(cfg Config, purger domain.OutboxPurger, logger *log.Entry) *outbox.CleanupWorker {
	return outbox.NewCleanupWorker(purger,
		outbox.WithCleanupLogger(logger.WithField("component", "outbox-cleanup-worker")),
		outbox.WithCleanupInterval(cfg.OutboxCleanupInterval),
		outbox.WithRetention(cfg.OutboxRetention),
	)
}

// backgroundWorker: фоновый цикл, работающий до отмены ctx.
type backgroundWorker interface {
	Run(ctx context.Context)
}

// startWorker запускает воркер в фоне; done закрывается после выхода из Run.
func startWorker(ctx context.Context, worker backgroundWorker) (context.CancelFunc, <-chan struct{}) {
	workerCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(workerCtx)
	}()
	return cancel, done
}

// shutdownWorker останавливает воркер и ждёт завершения текущей итерации.
func shutdownWorker(name string, cancel context.CancelFunc, done <-chan struct{}, logger *log.Entry) {
	if cancel == nil {
		return
	}
	cancel()
	if done != nil {
		<-done
	}
	logger.WithField("worker", name).Info("background worker stopped")
}
