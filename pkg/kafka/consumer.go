package kafka

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	kafka "github.com/segmentio/kafka-go"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(ctx context.Context, key, value []byte) error
}

// ConsumerOption configures Consumer.
type ConsumerOption func(*ConsumerConfig)

// ConsumerConfig holds consumer configuration.
type ConsumerConfig struct {
	Brokers    []string
	GroupID    string
	Workers    int
	BufferSize int
	RetryMax   int
	BackoffMin time.Duration
	BackoffMax time.Duration
	MinBytes   int
	MaxBytes   int
}

// WithConsumerBrokers sets Kafka brokers.
func WithConsumerBrokers(brokers []string) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.Brokers = brokers
	}
}

// WithConsumerGroupID sets the consumer group id.
func WithConsumerGroupID(groupID string) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.GroupID = groupID
	}
}

// WithConsumerWorkers sets the handler worker count.
func WithConsumerWorkers(count int) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.Workers = count
	}
}

// WithConsumerRetry sets handler retry policy.
func WithConsumerRetry(max int, backoffMin, backoffMax time.Duration) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.RetryMax = max
		c.BackoffMin = backoffMin
		c.BackoffMax = backoffMax
	}
}

// WithConsumerFetch sets fetch sizes.
func WithConsumerFetch(minBytes, maxBytes int) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.MinBytes = minBytes
		c.MaxBytes = maxBytes
	}
}

// WithConsumerBufferSize sets the in-flight message buffer size.
func WithConsumerBufferSize(n int) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.BufferSize = n
	}
}

// Consumer reads from one kafka.Reader per registered topic and fans
// messages out to a shared worker pool.
type Consumer struct {
	cfg      ConsumerConfig
	handlers map[string]MessageHandler
	readers  map[string]*kafka.Reader
	messages chan consumerMessage

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type consumerMessage struct {
	topic  string
	reader *kafka.Reader
	km     kafka.Message
}

// NewConsumer creates a Kafka consumer with the given options.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := ConsumerConfig{
		Workers:    4,
		BufferSize: 256,
		RetryMax:   3,
		BackoffMin: 100 * time.Millisecond,
		BackoffMax: 5 * time.Second,
		MinBytes:   1,
		MaxBytes:   10 << 20,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka consumer: brokers cannot be empty")
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("kafka consumer: group id cannot be empty")
	}

	return &Consumer{
		cfg:      cfg,
		handlers: make(map[string]MessageHandler),
		readers:  make(map[string]*kafka.Reader),
		messages: make(chan consumerMessage, cfg.BufferSize),
	}, nil
}

// RegisterHandler registers a handler for its topic. Must be called
// before Start.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[handler.Topic()] = handler
}

// Start launches one reader goroutine per topic and the worker pool.
func (c *Consumer) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return fmt.Errorf("kafka consumer: already started")
	}
	if len(c.handlers) == 0 {
		return fmt.Errorf("kafka consumer: no handlers registered")
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	for topic := range c.handlers {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:  c.cfg.Brokers,
			GroupID:  c.cfg.GroupID,
			Topic:    topic,
			MinBytes: c.cfg.MinBytes,
			MaxBytes: c.cfg.MaxBytes,
		})
		c.readers[topic] = reader

		c.wg.Add(1)
		go c.consumeLoop(ctx, topic, reader)
	}

	for i := 0; i < c.cfg.Workers; i++ {
		c.wg.Add(1)
		go c.messageWorker(ctx)
	}

	c.started = true
	return nil
}

// Stop shuts down readers and waits for workers, bounded by ctx.
func (c *Consumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.cancel()
	readers := c.readers
	c.started = false
	c.mu.Unlock()

	var firstErr error
	for topic, reader := range readers {
		if err := reader.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close reader %s: %w", topic, err)
		}
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return firstErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, topic string, reader *kafka.Reader) {
	defer c.wg.Done()
	for {
		km, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		select {
		case c.messages <- consumerMessage{topic: topic, reader: reader, km: km}:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Consumer) messageWorker(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.messages:
			c.mu.Lock()
			handler := c.handlers[msg.topic]
			c.mu.Unlock()
			if handler == nil {
				continue
			}

			var err error
			for attempt := 0; attempt <= c.cfg.RetryMax; attempt++ {
				if err = handler.Handle(ctx, msg.km.Key, msg.km.Value); err == nil {
					break
				}
				if ctx.Err() != nil {
					return
				}
				time.Sleep(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt))
			}
			// Commit even when the handler exhausted retries: a poison
			// message must not wedge the partition.
			_ = msg.reader.CommitMessages(ctx, msg.km)
		}
	}
}

func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	d := min << uint(attempt)
	if d > max || d <= 0 {
		d = max
	}
	jitter := time.Duration(rand.Int63n(int64(min)))
	return d + jitter
}
