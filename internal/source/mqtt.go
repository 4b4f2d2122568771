package source

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/ugagro/greenwatch/internal/model"
)

// DefaultTopic is where the ESP32 controller publishes its full sensor
// snapshot.
const DefaultTopic = "greenhouse/esp32/all_sensors"

// SubscriberConfig configures the MQTT push path.
type SubscriberConfig struct {
	Broker         string // tcp://host:1883
	Topic          string
	ClientID       string
	QoS            byte
	ConnectTimeout time.Duration
	Buffer         int
}

// Subscriber receives controller snapshots over MQTT and forwards them as
// decoded readings. Malformed messages are logged and dropped.
type Subscriber struct {
	cfg     SubscriberConfig
	client  mqtt.Client
	out     chan *model.Reading
	done    chan struct{}
	dropped atomic.Int64
}

// NewSubscriber validates cfg and prepares a subscriber. No network
// activity happens until Start.
func NewSubscriber(cfg SubscriberConfig) (*Subscriber, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt broker address is required")
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "greenwatch-" + uuid.NewString()[:8]
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 16
	}
	return &Subscriber{
		cfg:  cfg,
		out:  make(chan *model.Reading, cfg.Buffer),
		done: make(chan struct{}),
	}, nil
}

// Readings is the stream of decoded readings. It is never closed; stop
// consuming when the context passed to Start is done.
func (s *Subscriber) Readings() <-chan *model.Reading { return s.out }

// Dropped returns how many messages failed to decode.
func (s *Subscriber) Dropped() int64 { return s.dropped.Load() }

// Topic returns the subscribed topic.
func (s *Subscriber) Topic() string { return s.cfg.Topic }

// Start connects to the broker and subscribes. The subscription is
// re-established on every reconnect. The connection is closed when ctx is
// done.
func (s *Subscriber) Start(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(s.cfg.Broker).
		SetClientID(s.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(s.cfg.ConnectTimeout).
		SetOnConnectHandler(func(c mqtt.Client) {
			tok := c.Subscribe(s.cfg.Topic, s.cfg.QoS, s.handle)
			if tok.WaitTimeout(s.cfg.ConnectTimeout) && tok.Error() != nil {
				slog.Error("mqtt_subscribe_failed", "topic", s.cfg.Topic, "error", tok.Error())
				return
			}
			slog.Info("mqtt_subscribed", "broker", s.cfg.Broker, "topic", s.cfg.Topic)
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			slog.Warn("mqtt_connection_lost", "broker", s.cfg.Broker, "error", err)
		})

	s.client = mqtt.NewClient(opts)
	tok := s.client.Connect()
	if !tok.WaitTimeout(s.cfg.ConnectTimeout) {
		return fmt.Errorf("%w: mqtt connect to %s timed out", ErrNetwork, s.cfg.Broker)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("%w: mqtt connect to %s: %v", ErrNetwork, s.cfg.Broker, err)
	}

	go func() {
		<-ctx.Done()
		close(s.done)
		s.client.Disconnect(250)
		slog.Info("mqtt_disconnected", "broker", s.cfg.Broker)
	}()
	return nil
}

func (s *Subscriber) handle(_ mqtt.Client, msg mqtt.Message) {
	s.deliver(msg.Topic(), msg.Payload())
}

// deliver decodes one payload and forwards it, blocking until the consumer
// takes it or the subscriber stops.
func (s *Subscriber) deliver(topic string, payload []byte) {
	r, err := Decode(payload)
	if err != nil {
		s.dropped.Add(1)
		slog.Warn("mqtt_message_dropped", "topic", topic, "bytes", len(payload), "error", err)
		return
	}
	select {
	case s.out <- r:
	case <-s.done:
	}
}
