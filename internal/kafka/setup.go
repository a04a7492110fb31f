package kafka

import (
	"errors"
	"time"

	"github.com/IBM/sarama"
	"github.com/ocrpur/ocr-gateway/pkg/logger"
)

// NewSyncProducer creates a sarama synchronous producer for billing events
func NewSyncProducer(brokers []string, log *logger.Logger) (sarama.SyncProducer, error) {
	if len(brokers) == 0 || brokers[0] == "" {
		return nil, errors.New("kafka brokers are not configured")
	}

	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Retry.Backoff = 250 * time.Millisecond
	cfg.Producer.Return.Successes = true
	cfg.Producer.Timeout = 10 * time.Second

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	log.Infow("Kafka producer initialized", "brokers", brokers)
	return producer, nil
}
