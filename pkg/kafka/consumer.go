package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const consumerTracerName = "github.com/hariomGiri/localshop-connect-sub001/pkg/kafka"

// Handler processes one decoded event.
type Handler func(ctx context.Context, event *Event) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerConfig holds Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers      []string
	GroupID      string
	MinBytes     int
	MaxBytes     int
	MaxRetries   int
	RetryBackoff time.Duration
}

// Consumer reads a set of topics in one consumer group and dispatches each
// message to the handler registered for its topic. A message is committed
// after it is handled, skipped as malformed, or dead-lettered.
type Consumer struct {
	reader     messageReader
	group      string
	handlers   map[string]Handler
	dlq        DeadLetterPublisher
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
	closeOnce  sync.Once
}

// NewConsumer subscribes to every topic in handlers. dlq may be nil, in which
// case exhausted messages are logged and skipped.
func NewConsumer(cfg ConsumerConfig, handlers map[string]Handler, dlq DeadLetterPublisher, logger *slog.Logger) *Consumer {
	topics := make([]string, 0, len(handlers))
	for t := range handlers {
		topics = append(topics, t)
	}
	sort.Strings(topics)

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		GroupTopics: topics,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
	})
	return newConsumer(r, cfg, handlers, dlq, logger)
}

func newConsumer(r messageReader, cfg ConsumerConfig, handlers map[string]Handler, dlq DeadLetterPublisher, logger *slog.Logger) *Consumer {
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}
	return &Consumer{
		reader:     r,
		group:      cfg.GroupID,
		handlers:   handlers,
		dlq:        dlq,
		maxRetries: retries,
		backoff:    backoff,
		logger:     logger,
	}
}

// Run consumes until ctx is canceled, then closes the reader.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.InfoContext(ctx, "consumer started", slog.String("group", c.group), slog.Int("topics", len(c.handlers)))

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", slog.String("group", c.group))
				return c.Close()
			}
			c.logger.ErrorContext(ctx, "fetch message failed", slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
			case <-time.After(c.backoff):
			}
			continue
		}

		c.process(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.ErrorContext(ctx, "commit message failed",
				slog.String("topic", msg.Topic),
				slog.Int64("offset", msg.Offset),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	handler, ok := c.handlers[msg.Topic]
	if !ok {
		c.logger.WarnContext(ctx, "no handler for topic, skipping", slog.String("topic", msg.Topic))
		return
	}

	event, err := UnmarshalEvent(msg.Value)
	if err != nil {
		c.logger.ErrorContext(ctx, "malformed event",
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
		c.deadLetter(ctx, msg, err)
		return
	}

	ctx = extractTrace(ctx, &msg)
	ctx, span := otel.Tracer(consumerTracerName).Start(ctx, "kafka.consume "+msg.Topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", msg.Topic),
			attribute.String("messaging.kafka.consumer.group", c.group),
			attribute.String("event.type", event.EventType),
		),
	)
	defer span.End()

	start := time.Now()
	err = c.handleWithRetry(ctx, msg, handler, event)
	ConsumerProcessingDuration.WithLabelValues(msg.Topic, c.group).Observe(time.Since(start).Seconds())

	if err == nil {
		ConsumerMessagesProcessed.WithLabelValues(msg.Topic, c.group).Inc()
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	ConsumerMessagesFailed.WithLabelValues(msg.Topic, c.group).Inc()
	c.logger.ErrorContext(ctx, "handler failed after retries",
		slog.String("topic", msg.Topic),
		slog.String("event_id", event.EventID),
		slog.String("event_type", event.EventType),
		slog.Int("attempts", c.maxRetries),
		slog.String("error", err.Error()),
	)
	c.deadLetter(ctx, msg, err)
}

func (c *Consumer) handleWithRetry(ctx context.Context, msg kafka.Message, h Handler, event *Event) error {
	var err error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err = h(ctx, event); err == nil {
			return nil
		}
		if attempt == c.maxRetries {
			break
		}

		c.logger.WarnContext(ctx, "handler failed, retrying",
			slog.String("topic", msg.Topic),
			slog.String("event_id", event.EventID),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("handler aborted: %w", ctx.Err())
		case <-time.After(time.Duration(attempt) * c.backoff):
		}
	}
	return err
}

func (c *Consumer) deadLetter(ctx context.Context, msg kafka.Message, cause error) {
	if c.dlq == nil {
		return
	}
	if err := c.dlq.Publish(ctx, msg, cause, c.group); err != nil {
		c.logger.ErrorContext(ctx, "dead-letter publish failed",
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
		return
	}
	c.logger.WarnContext(ctx, "message dead-lettered",
		slog.String("topic", msg.Topic),
		slog.String("dlq_topic", DLQTopic(msg.Topic)),
		slog.Int64("offset", msg.Offset),
	)
}

// Close closes the reader. Safe to call more than once.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() { err = c.reader.Close() })
	return err
}
