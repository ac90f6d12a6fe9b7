package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/OFFIS-RIT/storyweb/internal/util"
	"github.com/OFFIS-RIT/storyweb/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

const (
	ExtractedQueue = "extracted_queue"
	AutoMergeQueue = "automerge_queue"

	// retryDelay is how long a failed message waits in <queue>_retry before
	// it is dead-lettered back onto its queue.
	retryDelay = 10 * time.Second
)

// Queues lists every work queue consumed by the worker.
var Queues = []string{ExtractedQueue, AutoMergeQueue}

// Channel is the subset of *amqp091.Channel used for declaring and
// publishing.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

func URLFromEnv() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		util.GetEnv("RABBITMQ_USER"),
		util.GetEnv("RABBITMQ_PASSWORD"),
		util.GetEnvString("RABBITMQ_HOST", "localhost"),
		util.GetEnvString("RABBITMQ_PORT", "5672"),
	)
}

func Dial(ctx context.Context, url string) (*amqp091.Connection, error) {
	conn, err := util.Retry(ctx, util.StartupBackoff, func(context.Context) (*amqp091.Connection, error) {
		conn, err := amqp091.Dial(url)
		if err != nil {
			logger.Warn("[Queue] RabbitMQ not reachable yet", "err", err)
		}
		return conn, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// SetupQueues declares each queue together with its _dlq and _retry
// companions.
func SetupQueues(ch Channel, names []string) error {
	for _, name := range names {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare %s: %w", name, err)
		}

		dlqName := name + "_dlq"
		if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare %s: %w", dlqName, err)
		}

		retryName := name + "_retry"
		_, err := ch.QueueDeclare(
			retryName,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             int32(retryDelay.Milliseconds()),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			return fmt.Errorf("failed to declare %s: %w", retryName, err)
		}
	}
	return nil
}

// Publish sends a persistent JSON message to queueName on the default
// exchange.
func Publish(ctx context.Context, ch Channel, queueName string, data []byte) error {
	q, err := ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare %s: %w", queueName, err)
	}

	err = ch.PublishWithContext(ctx, "", q.Name, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", queueName, err)
	}
	return nil
}

// ChannelPublisher publishes over one channel. amqp091 channels are not
// safe for concurrent publishing, so calls are serialised.
type ChannelPublisher struct {
	mu sync.Mutex
	ch Channel
}

func NewChannelPublisher(ch Channel) *ChannelPublisher {
	return &ChannelPublisher{ch: ch}
}

func (p *ChannelPublisher) Publish(ctx context.Context, queueName string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Publish(ctx, p.ch, queueName, body)
}
