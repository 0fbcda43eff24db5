// Package realtime carries the best-effort push channel used by fan-out to
// tell connected clients about new notifications. Delivery is fire-and-forget:
// no guarantee, no retry, failures never propagate to the caller's primary path.
package realtime

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"MemberPortal/internal/apperrors"
)

// Notifier pushes a per-user event to the realtime channel.
type Notifier interface {
	Notify(ctx context.Context, userID, event string, payload any) error
}

// AMQPNotifier publishes user events to a topic exchange, one routing key per
// user (user.<id>.<event>), so per-user socket bridges can bind selectively.
type AMQPNotifier struct {
	conn     *amqp091.Connection
	exchange string
	logger   *zerolog.Logger
}

// NewNotifier connects to the broker named by AMQP_URL. When AMQP_URL is
// unset the nop notifier is returned and pushes become silent no-ops, which
// keeps single-node deployments working without a broker.
func NewNotifier(lc fx.Lifecycle, logger *zerolog.Logger) (Notifier, error) {
	url := os.Getenv("AMQP_URL")
	if url == "" {
		logger.Warn().Msg("AMQP_URL not set, realtime push disabled")
		return NopNotifier{}, nil
	}

	exchange := os.Getenv("AMQP_EXCHANGE")
	if exchange == "" {
		exchange = "portal.notifications"
	}

	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}

	n := &AMQPNotifier{conn: conn, exchange: exchange, logger: logger}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return conn.Close()
		},
	})
	logger.Info().Str("exchange", exchange).Msg("realtime notifier connected")
	return n, nil
}

func (n *AMQPNotifier) Notify(ctx context.Context, userID, event string, payload any) error {
	ch, err := n.conn.Channel()
	if err != nil {
		return apperrors.Dependency("realtime", err)
	}
	defer ch.Close()

	body, err := json.Marshal(map[string]any{
		"user_id": userID,
		"event":   event,
		"data":    payload,
	})
	if err != nil {
		return apperrors.Dependency("realtime", err)
	}

	key := "user." + userID + "." + event
	err = ch.PublishWithContext(
		ctx, n.exchange, key, false, false,
		amqp091.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp091.Transient,
			MessageId:     uuid.NewString(),
			CorrelationId: uuid.NewString(),
			Timestamp:     time.Now(),
			Body:          body,
		},
	)
	if err != nil {
		return apperrors.Dependency("realtime", err)
	}
	n.logger.Debug().Str("key", key).Msg("published realtime event")
	return nil
}

// NopNotifier discards every event.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, string, any) error { return nil }
