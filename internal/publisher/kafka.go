package publisher

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/jengzang/traffic-density-go/internal/models"
)

const flushTimeout = 15 * time.Second

// KafkaConfig holds producer connection settings
type KafkaConfig struct {
	BootstrapServers string
	Topic            string
	SecurityProtocol string
	SASLMechanism    string
	SASLUsername     string
	SASLPassword     string
}

// ConfigMap builds the librdkafka configuration. SASL keys are only set when a mechanism is given.
func (c KafkaConfig) ConfigMap() *kafka.ConfigMap {
	cm := &kafka.ConfigMap{
		"bootstrap.servers":  c.BootstrapServers,
		"security.protocol":  c.SecurityProtocol,
		"acks":               "all",
		"enable.idempotence": true,
		"linger.ms":          10,
		"request.timeout.ms": 30000,
	}
	if c.SASLMechanism != "" {
		_ = cm.SetKey("sasl.mechanism", c.SASLMechanism)
		_ = cm.SetKey("sasl.username", c.SASLUsername)
		_ = cm.SetKey("sasl.password", c.SASLPassword)
	}
	return cm
}

// KafkaPublisher produces one JSON message per observation, keyed by run ID.
type KafkaPublisher struct {
	producer     *kafka.Producer
	topic        string
	deliveryChan chan kafka.Event
	logger       *zap.SugaredLogger

	sent   atomic.Int64
	acked  atomic.Int64
	failed atomic.Int64

	wg        sync.WaitGroup
	done      chan struct{}
	closeOnce sync.Once
}

// NewKafkaPublisher connects a producer and starts the delivery report loop.
func NewKafkaPublisher(cfg KafkaConfig, logger *zap.SugaredLogger) (*KafkaPublisher, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.BootstrapServers == "" {
		return nil, errors.New("kafka bootstrap servers not configured")
	}

	p, err := kafka.NewProducer(cfg.ConfigMap())
	if err != nil {
		return nil, errors.Wrap(err, "failed to create kafka producer")
	}

	kp := &KafkaPublisher{
		producer:     p,
		topic:        cfg.Topic,
		deliveryChan: make(chan kafka.Event, 1024),
		logger:       logger,
		done:         make(chan struct{}),
	}
	kp.wg.Add(1)
	go kp.handleDeliveryReports()

	logger.Infow("kafka publisher initialized", "topic", cfg.Topic, "servers", cfg.BootstrapServers)
	return kp, nil
}

func (kp *KafkaPublisher) handleDeliveryReports() {
	defer kp.wg.Done()
	for {
		select {
		case <-kp.done:
			return
		case e := <-kp.deliveryChan:
			m, ok := e.(*kafka.Message)
			if !ok {
				continue
			}
			if m.TopicPartition.Error != nil {
				kp.failed.Add(1)
				kp.logger.Warnw("observation delivery failed", "error", m.TopicPartition.Error)
				continue
			}
			kp.acked.Add(1)
			kp.logger.Debugw("observation delivered",
				"partition", m.TopicPartition.Partition, "offset", m.TopicPartition.Offset)
		}
	}
}

// Publish queues the observation. Delivery is confirmed asynchronously.
func (kp *KafkaPublisher) Publish(ctx context.Context, runID, kind string, obs models.Observation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	event := NewObservationEvent(runID, kind, obs, time.Now())
	payload, err := event.ToJSON()
	if err != nil {
		return errors.Wrap(err, "failed to serialize observation event")
	}

	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &kp.topic, Partition: kafka.PartitionAny},
		Key:            []byte(runID),
		Value:          payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.EventID)},
			{Key: "kind", Value: []byte(kind)},
			{Key: "density", Value: []byte(obs.Density.String())},
		},
	}
	if err := kp.producer.Produce(msg, kp.deliveryChan); err != nil {
		kp.failed.Add(1)
		return errors.Wrapf(err, "failed to produce observation for run %s", runID)
	}
	kp.sent.Add(1)
	return nil
}

// Close flushes pending messages and shuts the producer down.
func (kp *KafkaPublisher) Close() error {
	kp.closeOnce.Do(func() {
		if remaining := kp.producer.Flush(int(flushTimeout.Milliseconds())); remaining > 0 {
			kp.logger.Warnw("messages still queued after flush", "remaining", remaining)
		}
		close(kp.done)
		kp.wg.Wait()
		kp.producer.Close()
		kp.logger.Infow("kafka publisher closed",
			"sent", kp.sent.Load(), "acked", kp.acked.Load(), "failed", kp.failed.Load())
	})
	return nil
}
