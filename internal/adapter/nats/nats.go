// Package nats implements the notifier port using NATS JetStream. Handoff
// events are published to per-tenant subjects so operator dashboards can
// subscribe to a single tenant or the whole platform.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/SalesForge/internal/port/notifier"
)

const streamName = "SALESFORGE"

// Notifier publishes handoff events over NATS JetStream.
type Notifier struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// Connect establishes a connection to NATS and ensures the JetStream stream exists.
func Connect(ctx context.Context, url string) (*Notifier, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	// Ensure the stream exists with subjects matching our topic patterns.
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{"handoffs.>"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", "url", url, "stream", streamName)
	return &Notifier{nc: nc, js: js}, nil
}

// PublishHandoff publishes the event to handoffs.<tenant-slug>.
func (n *Notifier) PublishHandoff(ctx context.Context, ev notifier.HandoffEvent) error {
	if ev.TenantSlug == "" {
		return notifier.ErrNotConfigured
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal handoff event: %w", err)
	}

	subject := "handoffs." + ev.TenantSlug
	if _, err := n.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers a handler for handoff events on one tenant's subject,
// or all tenants when slug is "*". The returned func stops consumption.
func (n *Notifier) Subscribe(ctx context.Context, slug string, handler func(notifier.HandoffEvent)) (func(), error) {
	consumer, err := n.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		FilterSubject: "handoffs." + slug,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("nats consumer create: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		var ev notifier.HandoffEvent
		if err := json.Unmarshal(msg.Data(), &ev); err != nil {
			slog.Error("handoff event decode failed", "subject", msg.Subject(), "error", err)
			if termErr := msg.Term(); termErr != nil {
				slog.Error("nats term failed", "error", termErr)
			}
			return
		}
		handler(ev)
		if ackErr := msg.Ack(); ackErr != nil {
			slog.Error("nats ack failed", "error", ackErr)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("nats consume: %w", err)
	}

	return cons.Stop, nil
}

// KeyValue creates or binds a JetStream KV bucket, used as the remote
// level of the tiered prompt cache.
func (n *Notifier) KeyValue(ctx context.Context, bucket string, ttl time.Duration) (jetstream.KeyValue, error) {
	kv, err := n.js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: bucket,
		TTL:    ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("nats kv bucket %s: %w", bucket, err)
	}
	return kv, nil
}

// Close shuts down the NATS connection.
func (n *Notifier) Close() error {
	n.nc.Close()
	return nil
}
