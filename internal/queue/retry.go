package queue

import (
	"context"
	"errors"

	"github.com/OFFIS-RIT/storyweb/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

const (
	retriesHeader = "x-retries"
	maxRetries    = 10
)

// ErrMalformed marks a message that can never succeed. It goes to the
// dead-letter queue without retries.
var ErrMalformed = errors.New("malformed message")

// Outcome of a failed delivery.
const (
	StatusAck   = "ack"
	StatusRetry = "retry"
	StatusDead  = "dead"
)

func retries(headers amqp091.Table) int {
	switch v := headers[retriesHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	case int16:
		return int(v)
	}
	return 0
}

// HandleFailure moves msg to <queue>_retry with an incremented retry
// counter, or to <queue>_dlq once the retries are used up or cause is
// ErrMalformed. The original delivery is acked after the copy is
// published and requeued if publishing fails.
func HandleFailure(ctx context.Context, ch Channel, msg amqp091.Delivery, queueName string, cause error) string {
	n := retries(msg.Headers)

	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}

	target, status := queueName+"_retry", StatusRetry
	if n >= maxRetries || errors.Is(cause, ErrMalformed) {
		target, status = queueName+"_dlq", StatusDead
		headers["x-last-error"] = cause.Error()
		logger.Warn("[Queue] Sending message to DLQ", "dlq", target, "retries", n, "err", cause)
	} else {
		headers[retriesHeader] = int32(n + 1)
	}

	err := ch.PublishWithContext(ctx, "", target, false, false, amqp091.Publishing{
		ContentType:  msg.ContentType,
		Body:         msg.Body,
		Headers:      headers,
		DeliveryMode: amqp091.Persistent,
	})
	if err != nil {
		logger.Error("[Queue] Failed to publish failed message", "queue", target, "err", err)
		if err := msg.Nack(false, true); err != nil {
			logger.Error("[Queue] Failed to nack message", "err", err)
		}
		return StatusRetry
	}
	if err := msg.Ack(false); err != nil {
		logger.Error("[Queue] Failed to ack message", "err", err)
	}
	return status
}
