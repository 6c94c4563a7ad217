package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"memescan-engine/internal/domain/entity"
	"memescan-engine/internal/infrastructure/config"
	"memescan-engine/internal/infrastructure/logger"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSFeed consumes the transaction event stream from NATS JetStream and
// fans records out to per-wallet subscriber channels. It implements
// service.TransactionFeed.
type NATSFeed struct {
	conn      *nats.Conn
	js        nats.JetStreamContext
	sub       *nats.Subscription
	config    *config.NATSConfig
	logger    *logger.Logger
	isRunning atomic.Bool

	mu   sync.RWMutex
	subs map[string][]chan entity.RawRecord
}

// NewNATSFeed creates a new feed.
func NewNATSFeed(cfg *config.NATSConfig, logger *logger.Logger) *NATSFeed {
	return &NATSFeed{
		config: cfg,
		logger: logger.WithComponent("nats-feed"),
		subs:   make(map[string][]chan entity.RawRecord),
	}
}

// Connect connects to the NATS server and starts consuming.
func (n *NATSFeed) Connect(ctx context.Context) error {
	if !n.config.Enabled {
		n.logger.Info("NATS is disabled, skipping connection")
		return nil
	}

	n.logger.Info("Connecting to NATS server", zap.String("url", n.config.URL))

	opts := []nats.Option{
		nats.Name("memescan-engine"),
		nats.Timeout(n.config.ConnectTimeout),
		nats.ReconnectWait(n.config.ReconnectDelay),
		nats.MaxReconnects(n.config.ReconnectAttempts),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			n.logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			n.logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			n.logger.Info("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(n.config.URL, opts...)
	if err != nil {
		n.logger.Error("Failed to connect to NATS", zap.Error(err))
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	n.conn = conn

	// Try JetStream first, if not available fall back to core NATS
	js, err := conn.JetStream()
	if err != nil {
		n.logger.Warn("JetStream not available, using core NATS", zap.Error(err))
		return n.setupCoreNATSSubscription()
	}

	n.js = js
	return n.setupJetStreamSubscription()
}

// setupJetStreamSubscription sets up JetStream subscription
func (n *NATSFeed) setupJetStreamSubscription() error {
	subject := fmt.Sprintf("%s.events", n.config.SubjectPrefix)

	n.logger.Info("Setting up JetStream subscription", zap.String("subject", subject))

	sub, err := n.js.PullSubscribe(subject, n.config.ConsumerGroup,
		nats.Bind(n.config.StreamName, n.config.ConsumerGroup))
	if err != nil {
		n.logger.Warn("Failed to bind to existing consumer, falling back to core NATS", zap.Error(err))
		return n.setupCoreNATSSubscription()
	}

	n.sub = sub
	n.isRunning.Store(true)

	go n.processJetStreamMessages()

	n.logger.Info("Successfully connected to NATS JetStream",
		zap.String("subject", subject),
		zap.String("consumer", n.config.ConsumerGroup))
	return nil
}

// processJetStreamMessages processes messages from the pull subscription.
func (n *NATSFeed) processJetStreamMessages() {
	n.logger.Info("Starting JetStream message processing")

	for n.isRunning.Load() {
		msgs, err := n.sub.Fetch(10, nats.MaxWait(5*time.Second))
		if err != nil {
			if err == nats.ErrTimeout {
				continue
			}
			n.logger.Error("Failed to fetch messages", zap.Error(err))
			continue
		}
		for _, msg := range msgs {
			n.handleMessage(msg)
		}
	}

	n.logger.Info("Stopped JetStream message processing")
}

// setupCoreNATSSubscription sets up core NATS subscription
func (n *NATSFeed) setupCoreNATSSubscription() error {
	subject := fmt.Sprintf("%s.events", n.config.SubjectPrefix)
	queueGroup := n.config.ConsumerGroup

	sub, err := n.conn.QueueSubscribe(subject, queueGroup, func(msg *nats.Msg) {
		n.handleMessage(msg)
	})
	if err != nil {
		n.logger.Error("Failed to subscribe to subject", zap.Error(err))
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	n.sub = sub
	n.isRunning.Store(true)

	n.logger.Info("Successfully connected to core NATS",
		zap.String("subject", subject),
		zap.String("queue_group", queueGroup))
	return nil
}

// handleMessage decodes a raw record and fans it out to every subscriber
// whose wallet it touches.
func (n *NATSFeed) handleMessage(msg *nats.Msg) {
	var record entity.RawRecord
	if err := json.Unmarshal(msg.Data, &record); err != nil {
		n.logger.Error("Failed to unmarshal record", zap.Error(err))
		if msg.Reply != "" {
			msg.Nak()
		}
		return
	}

	n.mu.RLock()
	channels := n.matchSubscribers(&record)
	n.mu.RUnlock()

	for _, ch := range channels {
		select {
		case ch <- record:
		default:
			// Subscriber channel is full. Dropping keeps the firehose moving;
			// the monitor re-reads history through the provider if needed.
			n.logger.Warn("Subscriber channel full, dropping record",
				zap.String("signature", record.Signature))
		}
	}

	if msg.Reply != "" {
		msg.Ack()
	}
}

// matchSubscribers must be called under the read lock.
func (n *NATSFeed) matchSubscribers(record *entity.RawRecord) []chan entity.RawRecord {
	var out []chan entity.RawRecord
	for _, wallet := range []string{record.From, record.To, record.Contract} {
		if wallet == "" {
			continue
		}
		out = append(out, n.subs[wallet]...)
	}
	return out
}

// Subscribe registers a wallet and returns its record channel.
func (n *NATSFeed) Subscribe(ctx context.Context, wallet entity.Address) (<-chan entity.RawRecord, error) {
	ch := make(chan entity.RawRecord, n.config.MaxPendingMessages)
	key := wallet.String()

	n.mu.Lock()
	n.subs[key] = append(n.subs[key], ch)
	n.mu.Unlock()

	n.logger.Info("Subscribed wallet to feed", zap.String("wallet", key))
	return ch, nil
}

// Unsubscribe closes and removes one subscriber channel. Other channels
// registered for the same wallet keep receiving. Idempotent.
func (n *NATSFeed) Unsubscribe(wallet entity.Address, records <-chan entity.RawRecord) error {
	key := wallet.String()

	n.mu.Lock()
	channels := n.subs[key]
	for i, ch := range channels {
		if (<-chan entity.RawRecord)(ch) != records {
			continue
		}
		n.subs[key] = append(channels[:i], channels[i+1:]...)
		if len(n.subs[key]) == 0 {
			delete(n.subs, key)
		}
		n.mu.Unlock()

		close(ch)
		n.logger.Info("Unsubscribed wallet from feed", zap.String("wallet", key))
		return nil
	}
	n.mu.Unlock()
	return nil
}

// Disconnect disconnects from the NATS server and closes all subscriber
// channels.
func (n *NATSFeed) Disconnect() error {
	n.isRunning.Store(false)

	if n.sub != nil {
		n.sub.Unsubscribe()
		n.sub = nil
	}
	if n.conn != nil {
		n.conn.Close()
		n.conn = nil
	}

	n.mu.Lock()
	for key, channels := range n.subs {
		for _, ch := range channels {
			close(ch)
		}
		delete(n.subs, key)
	}
	n.mu.Unlock()

	n.logger.Info("Disconnected from NATS")
	return nil
}

// IsConnected checks if connected to NATS.
func (n *NATSFeed) IsConnected() bool {
	return n.isRunning.Load() && n.conn != nil && n.conn.IsConnected()
}
