package rabbitmq

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishMessage(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	rmqContainer, cleanup := SetupRabbitMQContainer(ctx, t)
	defer cleanup()

	amqpURI, err := GetAmqpURI(ctx, rmqContainer)
	require.NoError(t, err)

	conn, err := Connect(ctx, newNoopLogger(), amqpURI, 3, time.Second)
	require.NoError(t, err)
	defer func() {
		if err := conn.Close(); err != nil {
			t.Errorf("failed to close connection: %v", err)
		}
	}()

	ch, err := conn.Channel()
	require.NoError(t, err)
	defer func() {
		if err := ch.Close(); err != nil {
			t.Errorf("failed to close channel: %v", err)
		}
	}()

	queueName := "publish-test"
	_, err = ch.QueueDeclare(queueName, false, false, false, false, nil)
	require.NoError(t, err)

	type TestMsg struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}

	t.Run("success publish and consume", func(t *testing.T) {
		msg := TestMsg{ID: 1, Name: "Hello"}

		// Публикуем сообщение
		err = PublishMessage(ch, "", queueName, msg)
		require.NoError(t, err)

		// Читаем из очереди
		deliveries, err := ch.Consume(queueName, "test-consumer", true, false, false, false, nil)
		require.NoError(t, err)

		select {
		case d := <-deliveries:
			var got TestMsg
			err := json.Unmarshal(d.Body, &got)
			require.NoError(t, err)
			assert.Equal(t, msg, got)
			assert.Equal(t, "application/json", d.ContentType)
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for message")
		}
	})

	t.Run("marshal error", func(t *testing.T) {
		// В json marshal нельзя сериализовать канал
		badMsg := struct {
			Ch chan int `json:"ch"`
		}{
			Ch: make(chan int),
		}

		err := PublishMessage(ch, "", queueName, badMsg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rabbitmq.PublishMessage")
	})
}

func TestPublisher_ToMaintenanceExchange(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	rmqContainer, cleanup := SetupRabbitMQContainer(ctx, t)
	defer cleanup()

	amqpURI, err := GetAmqpURI(ctx, rmqContainer)
	require.NoError(t, err)

	conn, err := Connect(ctx, newNoopLogger(), amqpURI, 3, time.Second)
	require.NoError(t, err)
	defer func() {
		if err := conn.Close(); err != nil {
			t.Errorf("failed to close connection: %v", err)
		}
	}()

	queues := GetMaintenanceQueues()
	ch, err := SetupChannel(conn, MaintenanceExchange, queues)
	require.NoError(t, err)
	defer func() {
		if err := ch.Close(); err != nil {
			t.Errorf("failed to close channel: %v", err)
		}
	}()

	queueName := queues[0].QueueName
	msg := map[string]any{"job": "artifact_cleanup", "processed": float64(37)}

	// публикуем отчёт в обменник
	publisher := NewPublisher(ch, MaintenanceExchange)
	err = publisher.Publish(ctx, JanitorReportKey, msg)
	require.NoError(t, err)

	deliveries, err := ch.Consume(queueName, "test-consumer2", true, false, false, false, nil)
	require.NoError(t, err)

	select {
	case d := <-deliveries:
		var got map[string]any
		err := json.Unmarshal(d.Body, &got)
		require.NoError(t, err)
		assert.Equal(t, msg["job"], got["job"])
		assert.Equal(t, msg["processed"], got["processed"])
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message via exchange")
	}
}
