package mq

import (
	"context"
	"testing"

	"github.com/evently/apiserver/config"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBackend struct {
	published []string
	closed    bool
}

func (r *recordingBackend) Publish(_ context.Context, channel string, data []byte, _ map[string]string) (string, error) {
	r.published = append(r.published, channel+":"+string(data))
	return "id-1", nil
}

func (r *recordingBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return handler(ctx, Message{ID: "m", Data: []byte(channel)})
}

func (r *recordingBackend) Close() error {
	r.closed = true
	return nil
}

func TestMQ_DelegatesToBackend(t *testing.T) {
	backend := &recordingBackend{}
	queue := New(backend)

	id, err := queue.Publish(context.Background(), "topic", []byte("hello"), nil)
	require.NoError(t, err)
	assert.Equal(t, "id-1", id)
	assert.Equal(t, []string{"topic:hello"}, backend.published)

	var got Message
	err = queue.Subscribe(context.Background(), "topic", func(_ context.Context, msg Message) error {
		got = msg
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "topic", string(got.Data))

	require.NoError(t, queue.Close())
	assert.True(t, backend.closed)
}

func TestOpen_Disabled(t *testing.T) {
	queue, err := Open(context.Background(), config.MQConfig{})
	require.NoError(t, err)
	assert.Nil(t, queue)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.MQConfig{Backend: "kafka"})
	assert.Error(t, err)
}

func TestOpen_MissingSettings(t *testing.T) {
	_, err := Open(context.Background(), config.MQConfig{Backend: config.MQRabbitMQ})
	assert.Error(t, err)

	_, err = Open(context.Background(), config.MQConfig{Backend: config.MQPubSub})
	assert.Error(t, err)
}

func TestHeaderConversion(t *testing.T) {
	headers := attributesToHeaders(map[string]string{"kind": "event.created"})
	assert.Equal(t, amqp.Table{"kind": "event.created"}, headers)

	attrs := headersToAttributes(amqp.Table{"kind": []byte("event.deleted"), "n": int32(3)})
	assert.Equal(t, map[string]string{"kind": "event.deleted", "n": "3"}, attrs)

	assert.Nil(t, headersToAttributes(nil))
}

func TestGroupQueueName(t *testing.T) {
	assert.Equal(t, "evently.notifications.audit", groupQueueName("evently.notifications", "audit"))
	assert.Len(t, newMessageID(), 32)
}
