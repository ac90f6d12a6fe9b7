package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/storyweb/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"
)

type HandlerFunc func(ctx context.Context, queueName string, body []byte) error

// Recorder counts message outcomes.
type Recorder interface {
	QueueMessage(queue, status string)
}

type noopRecorder struct{}

func (noopRecorder) QueueMessage(string, string) {}

type queuedMessage struct {
	msg       amqp091.Delivery
	queueName string
}

// Consume reads all queues over one channel with prefetch 1, so only one
// message is processed at a time across queues. It returns when ctx ends
// or a delivery channel closes.
func Consume(ctx context.Context, conn *amqp091.Connection, queues []string, handle HandlerFunc, rec Recorder) error {
	if rec == nil {
		rec = noopRecorder{}
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open consumer channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(1, 0, true); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	messages := make(chan queuedMessage)

	for _, name := range queues {
		msgs, err := ch.Consume(name, name+"_consumer", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("failed to start consuming %s: %w", name, err)
		}
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case msg, ok := <-msgs:
					if !ok {
						return fmt.Errorf("delivery channel of %s closed", name)
					}
					select {
					case messages <- queuedMessage{msg: msg, queueName: name}:
					case <-ctx.Done():
						return nil
					}
				}
			}
		})
	}

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				logger.Info("[Queue] Stopping message processor")
				return nil
			case qm := <-messages:
				status := process(ctx, ch, qm, handle)
				rec.QueueMessage(qm.queueName, status)
			}
		}
	})

	logger.Info("[Queue] Listening for messages", "queues", queues)
	return g.Wait()
}

func process(ctx context.Context, ch Channel, qm queuedMessage, handle HandlerFunc) string {
	start := time.Now()
	logger.Debug("[Queue] Received message", "queue", qm.queueName)

	if err := handle(ctx, qm.queueName, qm.msg.Body); err != nil {
		logger.Error("[Queue] Error processing message", "queue", qm.queueName, "err", err)
		return HandleFailure(context.WithoutCancel(ctx), ch, qm.msg, qm.queueName, err)
	}
	if err := qm.msg.Ack(false); err != nil {
		logger.Error("[Queue] Failed to ack message", "err", err)
	}
	logger.Info("[Queue] Message processed", "queue", qm.queueName, "took", time.Since(start).Round(time.Millisecond))
	return StatusAck
}
