package kafka

import (
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/arklim/auth-gateway/internal/infra/config"
)

const producerErrBuffer = 256

// Producer wraps a Sarama async producer. Delivery failures are drained off
// the Errors channel by a background goroutine so a stalled consumer of
// Errors() cannot block publishing.
type Producer struct {
	inner   sarama.AsyncProducer
	logger  *zap.Logger
	prefix  string
	errChan chan error
	done    chan struct{}
}

// NewProducer connects to the configured brokers and starts the error drain.
func NewProducer(cfg config.KafkaSettings, logger *zap.Logger) (*Producer, error) {
	inner, err := sarama.NewAsyncProducer(cfg.Brokers, producerConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	p := &Producer{
		inner:   inner,
		logger:  logger,
		prefix:  cfg.TopicPrefix,
		errChan: make(chan error, producerErrBuffer),
		done:    make(chan struct{}),
	}
	go p.drainErrors()

	logger.Info("kafka producer initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic_prefix", cfg.TopicPrefix),
	)

	return p, nil
}

func producerConfig() *sarama.Config {
	c := sarama.NewConfig()
	c.Version = sarama.V3_5_0_0
	c.Producer.RequiredAcks = sarama.WaitForLocal
	c.Producer.Compression = sarama.CompressionSnappy
	c.Producer.Flush.Frequency = 100 * time.Millisecond
	c.Producer.Flush.Messages = 100
	c.Producer.Retry.Max = 3
	c.Producer.Return.Successes = false
	c.Producer.Return.Errors = true
	c.Metadata.Retry.Max = 3
	c.Metadata.Retry.Backoff = 250 * time.Millisecond
	return c
}

func (p *Producer) drainErrors() {
	for {
		select {
		case perr := <-p.inner.Errors():
			if perr == nil {
				continue
			}
			p.logger.Error("kafka publish failed",
				zap.Error(perr.Err),
				zap.String("topic", perr.Msg.Topic),
				zap.Int32("partition", perr.Msg.Partition),
			)
			select {
			case p.errChan <- perr.Err:
			default:
			}
		case <-p.done:
			return
		}
	}
}

// Producer exposes the underlying Sarama producer for message submission.
func (p *Producer) Producer() sarama.AsyncProducer {
	return p.inner
}

// Errors reports delivery failures for external monitoring. The channel is
// buffered; overflow is dropped after logging.
func (p *Producer) Errors() <-chan error {
	return p.errChan
}

// Close stops the drain goroutine and flushes pending messages.
func (p *Producer) Close() error {
	close(p.done)
	if err := p.inner.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	close(p.errChan)
	return nil
}

// TopicName qualifies an event type with the configured topic prefix.
// Already-qualified names pass through unchanged.
func (p *Producer) TopicName(eventType string) string {
	if p.prefix == "" {
		return eventType
	}
	if strings.HasPrefix(eventType, p.prefix+".") {
		return eventType
	}
	return p.prefix + "." + eventType
}
