// Package relay republishes reconciled snapshots to an MQTT broker.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/unklstewy/flightwatch/pkg/config"
	"github.com/unklstewy/flightwatch/pkg/flight"
	"github.com/unklstewy/flightwatch/pkg/tracker"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// Publisher is the subset of mqtt.Client the relay uses.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Relay publishes each snapshot to <topic>/<zone>. Snapshots that arrive
// while a publish is in progress replace each other; only the newest is sent.
type Relay struct {
	client   Publisher
	topic    string
	qos      byte
	retained bool
	logger   *slog.Logger
	pending  *tracker.Mailbox
	close    func()
}

// New creates a relay over an existing publisher.
func New(client Publisher, topic string, qos byte, retained bool, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		client:   client,
		topic:    strings.TrimRight(topic, "/"),
		qos:      qos,
		retained: retained,
		logger:   logger,
		pending:  tracker.NewMailbox(),
		close:    func() {},
	}
}

// Connect dials the broker described by cfg and returns a relay over it.
func Connect(cfg config.MQTTConfig, logger *slog.Logger) (*Relay, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("mqtt connection lost", slog.Any("error", err))
		}).
		SetOnConnectHandler(func(mqtt.Client) {
			logger.Info("mqtt connected", slog.String("broker", cfg.Broker))
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect error: %w", err)
	}

	r := New(client, cfg.Topic, byte(cfg.QoS), cfg.Retained, logger)
	r.close = func() { client.Disconnect(250) }
	return r, nil
}

// Topic returns the topic snapshots for zone are published to.
func (r *Relay) Topic(zone string) string {
	return r.topic + "/" + zone
}

// Publish queues snap for the publishing goroutine. It is a tracker.Sink and
// never blocks.
func (r *Relay) Publish(snap flight.Snapshot) {
	r.pending.Put(snap)
}

// Run sends queued snapshots until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	for {
		snap, err := r.pending.Take(ctx)
		if err != nil {
			return
		}
		if err := r.send(snap); err != nil {
			r.logger.Warn("mqtt publish failed", slog.String("zone", snap.Zone), slog.Any("error", err))
		}
	}
}

// Close disconnects from the broker.
func (r *Relay) Close() {
	r.close()
}

func (r *Relay) send(snap flight.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	token := r.client.Publish(r.Topic(snap.Zone), r.qos, r.retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errors.New("publish timed out")
	}
	return token.Error()
}
