package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// ErrQueueFull is returned when the producer's buffer has no room left.
var ErrQueueFull = errors.New("kafka producer queue full")

// Producer buffers messages and writes them from a single goroutine. The
// topic is taken from each message.
type Producer struct {
	w      *kafka.Writer
	inbox  chan kafka.Message
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
	logger *logrus.Logger
}

func NewProducer(brokers []string, buf int, logger *logrus.Logger) *Producer {
	p := &Producer{
		inbox:  make(chan kafka.Message, buf),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: logger,
	}
	p.w = &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		Async:                  true,
		Completion:             p.completed,
	}
	return p
}

func (p *Producer) completed(msgs []kafka.Message, err error) {
	if err == nil {
		return
	}
	for _, m := range msgs {
		p.logger.WithError(err).WithFields(logrus.Fields{
			"topic": m.Topic,
			"key":   string(m.Key),
		}).Error("Kafka write failed")
	}
}

func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.done)
		for {
			select {
			case <-ctx.Done():
				p.flush()
				return
			case <-p.stop:
				p.flush()
				return
			case m := <-p.inbox:
				p.write(m)
			}
		}
	}()
}

func (p *Producer) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		p.logger.WithError(err).WithField("topic", m.Topic).Error("Kafka enqueue failed")
	}
}

// flush writes what is still buffered and closes the writer.
func (p *Producer) flush() {
	for {
		select {
		case m := <-p.inbox:
			p.write(m)
		default:
			if err := p.w.Close(); err != nil {
				p.logger.WithError(err).Warn("Kafka writer close failed")
			}
			return
		}
	}
}

// Publish queues a message without blocking.
func (p *Producer) Publish(topic string, key, value []byte, headers ...kafka.Header) error {
	m := kafka.Message{
		Topic:   topic,
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: headers,
	}
	select {
	case p.inbox <- m:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops the producer after flushing. Safe to call more than once.
func (p *Producer) Close() { p.once.Do(func() { close(p.stop) }) }

// WaitClosed blocks until the writer goroutine has exited.
func (p *Producer) WaitClosed() { <-p.done }
