// Reelsync - Multi-Device Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelsync

package eventbus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/reelsync/internal/logging"
)

const natsCloseTimeout = 5 * time.Second

// ErrDisconnected is returned by Ping when the broker is unreachable.
var ErrDisconnected = errors.New("event bus disconnected")

// Bus owns the publisher and subscriber of one backend.
type Bus struct {
	cfg        Config
	publisher  *Publisher
	subscriber message.Subscriber
	server     *EmbeddedServer
	conn       *natsgo.Conn
}

// Open builds the backend selected by cfg.Backend. A nil logger routes
// watermill logs through the application logger.
func Open(cfg Config, logger watermill.LoggerAdapter) (*Bus, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewWatermillAdapter()
	}

	switch cfg.Backend {
	case BackendNATS:
		return openNATS(cfg, logger)
	default:
		return openMemory(cfg, logger), nil
	}
}

func openMemory(cfg Config, logger watermill.LoggerAdapter) *Bus {
	ch := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: cfg.OutputBuffer,
	}, logger)

	logging.Info().Str("backend", BackendMemory).Str("topic", cfg.Topic).Msg("Event bus ready")
	return &Bus{
		cfg:        cfg,
		publisher:  NewPublisher(ch, NewCircuitBreaker(cfg.Breaker)),
		subscriber: ch,
	}
}

func openNATS(cfg Config, logger watermill.LoggerAdapter) (*Bus, error) {
	b := &Bus{cfg: cfg}

	url := cfg.NATSURL
	if cfg.Embedded {
		srv, err := NewEmbeddedServer(cfg.Host, cfg.Port, cfg.StoreDir)
		if err != nil {
			return nil, err
		}
		b.server = srv
		url = srv.ClientURL()
	}

	natsOpts := []natsgo.Option{
		natsgo.Name("reelsync"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	// Core NATS: every instance must see every envelope, so there is no
	// queue group and no JetStream consumer.
	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		b.shutdownServer()
		return nil, fmt.Errorf("create NATS publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              url,
		SubscribersCount: 1,
		CloseTimeout:     natsCloseTimeout,
		AckWaitTimeout:   natsCloseTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		_ = pub.Close()
		b.shutdownServer()
		return nil, fmt.Errorf("create NATS subscriber: %w", err)
	}

	conn, err := natsgo.Connect(url, natsOpts...)
	if err != nil {
		_ = pub.Close()
		_ = sub.Close()
		b.shutdownServer()
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	b.publisher = NewPublisher(pub, NewCircuitBreaker(cfg.Breaker))
	b.subscriber = sub
	b.conn = conn

	logging.Info().
		Str("backend", BackendNATS).
		Str("url", url).
		Bool("embedded", cfg.Embedded).
		Str("topic", cfg.Topic).
		Msg("Event bus ready")
	return b, nil
}

// Publisher returns the breaker protected publisher.
func (b *Bus) Publisher() *Publisher { return b.publisher }

// Topic returns the notification topic.
func (b *Bus) Topic() string { return b.cfg.Topic }

// Backend returns the configured backend name.
func (b *Bus) Backend() string { return b.cfg.Backend }

// Subscribe streams messages on the notification topic until ctx ends.
func (b *Bus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return b.subscriber.Subscribe(ctx, b.cfg.Topic)
}

// Ping reports whether the broker connection is up. The memory backend is
// always reachable.
func (b *Bus) Ping() error {
	if b.server != nil && !b.server.IsRunning() {
		return fmt.Errorf("%w: embedded server stopped", ErrDisconnected)
	}
	if b.conn != nil && !b.conn.IsConnected() {
		return fmt.Errorf("%w: %s", ErrDisconnected, b.conn.Status())
	}
	return nil
}

// Close releases the backend. The publisher of the memory backend is also
// its subscriber and is closed once.
func (b *Bus) Close() error {
	var errs []error
	if err := b.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close publisher: %w", err))
	}
	if b.cfg.Backend == BackendNATS {
		if err := b.subscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close subscriber: %w", err))
		}
	}
	if b.conn != nil {
		b.conn.Close()
	}
	b.shutdownServer()
	return errors.Join(errs...)
}

func (b *Bus) shutdownServer() {
	if b.server != nil {
		b.server.Shutdown()
		b.server = nil
	}
}
