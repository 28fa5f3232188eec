// Package rabbitmq содержит подключение к RabbitMQ, объявление обменника
// служебных сообщений и публикацию JSON-сообщений.
package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/study-notes/internal/lib/sl"
)

// Connect устанавливает соединение с RabbitMQ: не более retries попыток с паузой delay.
// Каждая неудачная попытка пишется в log; отмена ctx прерывает ожидание.
func Connect(ctx context.Context, log *slog.Logger, connection string, retries int,
	delay time.Duration) (*amqp.Connection, error) {
	const op = "rabbitmq.Connect"
	attempts := max(retries, 1)

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		var conn *amqp.Connection
		conn, err = amqp.Dial(connection)
		if err == nil {
			return conn, nil
		}
		log.Warn("rabbitmq is not reachable",
			slog.String("op", op),
			slog.Int("attempt", attempt),
			slog.Int("of", attempts),
			sl.Err(err),
		)
		if attempt == attempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%s: %w", op, ctx.Err())
		case <-timer.C:
		}
	}

	return nil, fmt.Errorf("%s: after %d attempts: %w", op, attempts, err)
}

// SetupChannel открывает канал, объявляет обменник exchange и привязывает к нему очереди.
func SetupChannel(conn *amqp.Connection, exchange string, queues []QueueConfig) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.Qos(10, 0, false); err != nil {
		return nil, fmt.Errorf("%s: failed to set QoS: %w", op, err)
	}

	err = ch.ExchangeDeclare(
		exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			q.QueueName,
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to declare queue %s: %w", op, q.QueueName, err)
		}

		err = ch.QueueBind(
			q.QueueName,
			q.RoutingKey,
			exchange,
			false,
			nil,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to bind queue %s with routing key %s: %w", op, q.QueueName, q.RoutingKey, err)
		}
	}

	return ch, nil
}
