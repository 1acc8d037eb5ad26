package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/zoff-tech/go-opqueue/pkg/config"
	"github.com/zoff-tech/go-opqueue/pkg/store"
)

type AmqpClientCreator func(settings *config.APISettings) (Client, error)

// NewAmqpClient builds the relay transport for fleets behind a gateway: the
// queued operation is published to a RabbitMQ exchange and a relay applies it
// to the controller. A successful publish counts as a success outcome; the
// broker gives no application-level response to reject with.
var NewAmqpClient AmqpClientCreator = func(settings *config.APISettings) (Client, error) {
	if settings.URL == "" {
		return nil, errors.New("url must be set for the rabbitmq client")
	}

	conn, err := amqp.Dial(settings.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	// Log connection drops; the next Dispatch surfaces them as network errors.
	notifyClose := make(chan *amqp.Error)
	conn.NotifyClose(notifyClose)
	go func() {
		for err := range notifyClose {
			logrus.WithError(err).Warn("RabbitMQ connection closed")
		}
	}()

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	err = ch.ExchangeDeclare(
		settings.Exchange, // name
		"topic",           // type
		true,              // durable
		false,             // auto-deleted
		false,             // internal
		false,             // no-wait
		nil,               // arguments
	)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &amqpClient{connection: conn, channel: ch, exchange: settings.Exchange}, nil
}

type amqpClient struct {
	connection *amqp.Connection
	channel    *amqp.Channel
	mu         sync.Mutex
	exchange   string
}

func (a *amqpClient) Dispatch(ctx context.Context, entry *store.QueueEntry) (*Result, error) {
	tracer := otel.Tracer("go-opqueue")
	ctx, span := tracer.Start(ctx, "Dispatch",
		trace.WithAttributes(
			semconv.MessagingSystemKey.String("rabbitmq"),
			semconv.MessagingDestinationKey.String(a.exchange),
			semconv.MessagingRabbitmqRoutingKeyKey.String(string(entry.Operation)),
			attribute.String("entry.id", entry.ID),
		),
	)
	defer span.End()

	// Inject the trace context into the message headers
	propagator := otel.GetTextMapPropagator()
	traceHeaders := make(map[string]string)
	propagator.Inject(ctx, propagation.MapCarrier(traceHeaders))

	amqpHeaders := amqp.Table{
		"endpoint": entry.Endpoint,
		"method":   entry.Method,
	}
	for k, v := range traceHeaders {
		amqpHeaders[k] = v
	}

	a.mu.Lock()
	err := a.channel.Publish(
		a.exchange, string(entry.Operation), false, false,
		amqp.Publishing{
			ContentType: "application/json",
			MessageId:   entry.ID,
			Body:        entry.Payload,
			Headers:     amqpHeaders,
		},
	)
	a.mu.Unlock()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("messaging.message_payload_size_bytes", len(entry.Payload)),
	)

	return &Result{Success: true}, nil
}

func (a *amqpClient) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.channel != nil {
		a.channel.Close()
	}
	if a.connection != nil {
		return a.connection.Close()
	}
	return nil
}
