package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/fantamarket/go/internal/market/events"
	"github.com/mcdev12/fantamarket/go/internal/market/outbox"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

type JetStreamConsumerConfig struct {
	URL           string
	StreamName    string
	ConsumerName  string
	SubjectFilter string
	MaxDeliver    int
	AckWait       time.Duration
	MaxAckPending int
	MaxReconnects int
	ReconnectWait time.Duration
}

func DefaultJetStreamConsumerConfig() JetStreamConsumerConfig {
	return JetStreamConsumerConfig{
		URL:           nats.DefaultURL,
		StreamName:    "MARKET_EVENTS",
		ConsumerName:  "market-gateway",
		SubjectFilter: "market.events.>",
		MaxDeliver:    5,
		AckWait:       30 * time.Second,
		MaxAckPending: 100,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// EventConsumer reads relayed events from JetStream and hands them to an
// Emitter, normally the ConnectionManager.
type EventConsumer struct {
	emitter  events.Emitter
	nc       *nats.Conn
	consumer jetstream.Consumer
	config   JetStreamConsumerConfig
}

func NewEventConsumer(ctx context.Context, emitter events.Emitter, config JetStreamConsumerConfig) (*EventConsumer, error) {
	nc, err := outbox.ConnectNATS(config.URL, config.MaxReconnects, config.ReconnectWait)
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	ec := &EventConsumer{emitter: emitter, nc: nc, config: config}
	if err := ec.ensureConsumer(ctx, js); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure consumer: %w", err)
	}
	return ec, nil
}

func (ec *EventConsumer) ensureConsumer(ctx context.Context, js jetstream.JetStream) error {
	stream, err := js.Stream(ctx, ec.config.StreamName)
	if err != nil {
		return fmt.Errorf("get stream: %w", err)
	}

	// Every gateway replica needs every event, so the consumer is named
	// per process and only new messages are delivered.
	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:              ec.config.ConsumerName,
		Description:       "Market gateway websocket fan-out",
		FilterSubject:     ec.config.SubjectFilter,
		DeliverPolicy:     jetstream.DeliverNewPolicy,
		AckPolicy:         jetstream.AckExplicitPolicy,
		MaxDeliver:        ec.config.MaxDeliver,
		AckWait:           ec.config.AckWait,
		MaxAckPending:     ec.config.MaxAckPending,
		InactiveThreshold: 10 * time.Minute,
	})
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}

	log.Info().
		Str("consumer", ec.config.ConsumerName).
		Str("stream", ec.config.StreamName).
		Msg("JetStream consumer ready")
	ec.consumer = consumer
	return nil
}

func (ec *EventConsumer) Start(ctx context.Context) error {
	log.Info().
		Str("consumer", ec.config.ConsumerName).
		Msg("starting JetStream event consumer")

	messageCh := make(chan jetstream.Msg, 100)
	consumeCtx, err := ec.consumer.Consume(func(msg jetstream.Msg) {
		select {
		case messageCh <- msg:
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer consumeCtx.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("event consumer shutting down")
			return ec.Stop()
		case msg := <-messageCh:
			if err := ec.processMessage(ctx, msg.Data()); err != nil {
				log.Error().Err(err).Str("subject", msg.Subject()).Msg("failed to process message")
				// malformed envelopes would fail on every redelivery
				if termErr := msg.Term(); termErr != nil {
					log.Error().Err(termErr).Msg("failed to terminate message")
				}
				continue
			}
			if ackErr := msg.Ack(); ackErr != nil {
				log.Error().Err(ackErr).Msg("failed to ACK message")
			}
		}
	}
}

func (ec *EventConsumer) processMessage(ctx context.Context, data []byte) error {
	event, err := decodeEnvelope(data)
	if err != nil {
		return err
	}
	// a full local queue only drops the push; clients re-fetch state
	_ = ec.emitter.Emit(ctx, event)
	return nil
}

func decodeEnvelope(data []byte) (events.Event, error) {
	var env outbox.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return events.Event{}, fmt.Errorf("unmarshal event envelope: %w", err)
	}
	id, err := uuid.Parse(env.EventID)
	if err != nil {
		return events.Event{}, fmt.Errorf("parse event ID: %w", err)
	}
	sessionID, err := uuid.Parse(env.SessionID)
	if err != nil {
		return events.Event{}, fmt.Errorf("parse session ID: %w", err)
	}
	if env.EventType == "" {
		return events.Event{}, fmt.Errorf("event %s has no type", env.EventID)
	}
	return events.Event{
		ID:         id,
		SessionID:  sessionID,
		Type:       events.Type(env.EventType),
		Payload:    env.Payload,
		OccurredAt: env.Timestamp,
	}, nil
}

func (ec *EventConsumer) Stop() error {
	if ec.nc != nil {
		ec.nc.Close()
	}
	return nil
}
