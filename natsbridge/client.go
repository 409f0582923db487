package natsbridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

const (
	// StreamName is the JetStream stream ledger events are stored in
	StreamName = "casino_ledger"
	// SubjectPrefix prefixes every ledger event subject
	SubjectPrefix = "casino.ledger"
)

// Client publishes to NATS JetStream
type Client struct {
	servers              string
	token                string
	nc                   *nats.Conn
	js                   nats.JetStreamContext
	mu                   sync.RWMutex
	reconnectDelay       time.Duration
	maxReconnectAttempts int
}

// NewClient creates a new NATS client. Connect must be called before publishing.
func NewClient(servers, token string) *Client {
	return &Client{
		servers:              servers,
		token:                token,
		reconnectDelay:       2 * time.Second,
		maxReconnectAttempts: 10,
	}
}

// Connect establishes the connection and makes sure the ledger stream exists
func (c *Client) Connect(ctx context.Context) error {
	opts := []nats.Option{
		nats.Name("casinometrics"),
		nats.MaxReconnects(c.maxReconnectAttempts),
		nats.ReconnectWait(c.reconnectDelay),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Error("NATS disconnected with error")
			} else {
				log.Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected")
		}),
	}
	if c.token != "" {
		opts = append(opts, nats.Token(c.token))
	}

	nc, err := nats.Connect(c.servers, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream(nats.Context(ctx))
	if err != nil {
		nc.Close()
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	c.mu.Lock()
	c.nc = nc
	c.js = js
	c.mu.Unlock()

	if err := c.ensureStream(); err != nil {
		c.Close()
		return err
	}

	log.WithField("servers", c.servers).Info("Connected to NATS with JetStream")
	return nil
}

func (c *Client) ensureStream() error {
	if _, err := c.js.StreamInfo(StreamName); err == nil {
		return nil
	}

	_, err := c.js.AddStream(&nats.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   nats.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		Storage:     nats.FileStorage,
		Replicas:    1,
		Description: "Committed ledger events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", StreamName, err)
	}

	log.WithField("stream", StreamName).Info("Created JetStream stream")
	return nil
}

// Publish publishes a message to the subject using JetStream
func (c *Client) Publish(ctx context.Context, subject string, data []byte) error {
	c.mu.RLock()
	js := c.js
	c.mu.RUnlock()

	if js == nil {
		return fmt.Errorf("not connected to NATS JetStream")
	}

	if _, err := js.Publish(subject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish message to subject %s: %w", subject, err)
	}
	return nil
}

// Close drains and closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.nc != nil {
		if err := c.nc.Drain(); err != nil {
			c.nc.Close()
			return fmt.Errorf("failed to drain NATS connection: %w", err)
		}
		log.Info("NATS connection closed")
	}
	c.nc = nil
	c.js = nil
	return nil
}

// IsConnected returns true if the client is connected to NATS
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nc != nil && c.nc.IsConnected()
}
