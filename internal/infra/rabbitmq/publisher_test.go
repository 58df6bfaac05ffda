package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
}

func (c *recordingChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.exchange, c.key, c.msg = exchange, key, msg
	return c.err
}

func (c *recordingChannel) Close() error { return nil }

func TestPublisher_Publish(t *testing.T) {
	ch := &recordingChannel{}
	p := &Publisher{channel: ch, exchange: "order.exchange", logger: zap.NewNop()}

	err := p.Publish(context.Background(), "order.created", map[string]any{"orderNumber": "ORD-20260314-0001"})
	require.NoError(t, err)

	assert.Equal(t, "order.exchange", ch.exchange)
	assert.Equal(t, "order.created", ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)

	var env Envelope
	require.NoError(t, json.Unmarshal(ch.msg.Body, &env))
	assert.Equal(t, "order.created", env.Pattern)
	assert.Equal(t, ch.msg.MessageId, env.ID)
	_, err = uuid.Parse(env.ID)
	assert.NoError(t, err)
	assert.Equal(t, "ORD-20260314-0001", env.Data.(map[string]any)["orderNumber"])
}

func TestPublisher_Errors(t *testing.T) {
	ch := &recordingChannel{err: errors.New("channel closed")}
	p := &Publisher{channel: ch, exchange: "order.exchange", logger: zap.NewNop()}

	err := p.Publish(context.Background(), "order.created", nil)
	assert.ErrorContains(t, err, "channel closed")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, "order.created", nil), context.Canceled)
}
