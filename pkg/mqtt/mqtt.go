// Package mqtt publishes binding state to an MQTT broker using Home
// Assistant discovery.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/cezhdo/pkg/common"
	"github.com/raterudder/cezhdo/pkg/log"
	"github.com/raterudder/cezhdo/pkg/types"
)

// Client is the subset of paho.Client used by Publisher.
type Client interface {
	Connect() paho.Token
	IsConnected() bool
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// State is a snapshot of one binding. HasState is false when the binding
// has no schedule at all; a stale schedule has HasState set and Available
// cleared.
type State struct {
	BindingID string
	Available bool
	HasState  bool
	LowTariff bool
	Price     float64
	Forecast  types.Forecast
}

// Publisher announces bindings to Home Assistant and publishes their
// state. A Publisher without a client is disabled and every method is a
// no-op.
type Publisher struct {
	client          Client
	discoveryPrefix string
	topicPrefix     string
	timeout         time.Duration

	mu        sync.Mutex
	announced map[string]bool
}

// Configured sets up the publisher based on flags. An empty mqtt-broker
// disables it.
func Configured() *Publisher {
	broker := lflag.String("mqtt-broker", "", "MQTT broker URL, e.g. tcp://localhost:1883. Empty disables MQTT")
	clientID := lflag.String("mqtt-client-id", "cezhdo", "MQTT client ID")
	username := lflag.String("mqtt-username", "", "MQTT username")
	password := lflag.String("mqtt-password", "", "MQTT password")
	discoveryPrefix := lflag.String("mqtt-discovery-prefix", "homeassistant", "Home Assistant discovery topic prefix")
	topicPrefix := lflag.String("mqtt-topic-prefix", "cezhdo", "Prefix of state topics")

	p := NewPublisher(nil, "", "")

	lflag.Do(func() {
		p.discoveryPrefix = *discoveryPrefix
		p.topicPrefix = *topicPrefix
		if *broker == "" {
			return
		}
		opts := paho.NewClientOptions().
			AddBroker(*broker).
			SetClientID(*clientID).
			SetConnectTimeout(5 * time.Second).
			SetAutoReconnect(true)
		if *username != "" {
			opts.SetUsername(*username)
		}
		if *password != "" {
			opts.SetPassword(*password)
		}
		opts.OnConnectionLost = func(_ paho.Client, err error) {
			log.Ctx(context.Background()).Warn("mqtt connection lost", slog.Any("error", err))
		}
		p.client = paho.NewClient(opts)
	})

	return p
}

// NewPublisher returns a Publisher using client. A nil client disables it.
func NewPublisher(client Client, discoveryPrefix, topicPrefix string) *Publisher {
	return &Publisher{
		client:          client,
		discoveryPrefix: discoveryPrefix,
		topicPrefix:     topicPrefix,
		timeout:         5 * time.Second,
		announced:       make(map[string]bool),
	}
}

// Enabled reports whether a broker is configured.
func (p *Publisher) Enabled() bool {
	return p.client != nil
}

// Connect connects to the broker.
func (p *Publisher) Connect(ctx context.Context) error {
	if p.client == nil {
		return nil
	}
	if err := p.wait(p.client.Connect()); err != nil {
		return fmt.Errorf("failed to connect to mqtt broker: %w", err)
	}
	log.Ctx(ctx).InfoContext(ctx, "connected to mqtt broker")
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}

func (p *Publisher) wait(token paho.Token) error {
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("timed out after %s", p.timeout)
	}
	return token.Error()
}

func (p *Publisher) publish(topic string, retained bool, payload []byte) error {
	if err := p.wait(p.client.Publish(topic, 0, retained, payload)); err != nil {
		return fmt.Errorf("failed to publish %s: %w", topic, err)
	}
	return nil
}

func (p *Publisher) topic(id, name string) string {
	return p.topicPrefix + "/" + id + "/" + name
}

func (p *Publisher) binarySensorConfigTopic(id string) string {
	return p.discoveryPrefix + "/binary_sensor/cezhdo_" + id + "/config"
}

func (p *Publisher) priceSensorConfigTopic(id string) string {
	return p.discoveryPrefix + "/sensor/cezhdo_" + id + "_price/config"
}

type discoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	SWVersion    string   `json:"sw_version"`
}

type discoveryConfig struct {
	Name                string          `json:"name"`
	UniqueID            string          `json:"unique_id"`
	StateTopic          string          `json:"state_topic"`
	AvailabilityTopic   string          `json:"availability_topic"`
	JSONAttributesTopic string          `json:"json_attributes_topic"`
	PayloadOn           string          `json:"payload_on,omitempty"`
	PayloadOff          string          `json:"payload_off,omitempty"`
	Icon                string          `json:"icon,omitempty"`
	Device              discoveryDevice `json:"device"`
}

func (p *Publisher) announce(id string) error {
	device := discoveryDevice{
		Identifiers:  []string{"cezhdo_" + id},
		Name:         "CEZ HDO " + id,
		Manufacturer: "CEZ Distribuce",
		SWVersion:    common.Version(),
	}
	configs := []struct {
		topic string
		cfg   discoveryConfig
	}{
		{
			topic: p.binarySensorConfigTopic(id),
			cfg: discoveryConfig{
				Name:                "Low tariff",
				UniqueID:            "cezhdo_" + id,
				StateTopic:          p.topic(id, "state"),
				AvailabilityTopic:   p.topic(id, "availability"),
				JSONAttributesTopic: p.topic(id, "state_forecast"),
				PayloadOn:           "ON",
				PayloadOff:          "OFF",
				Icon:                "mdi:transmission-tower",
				Device:              device,
			},
		},
		{
			topic: p.priceSensorConfigTopic(id),
			cfg: discoveryConfig{
				Name:                "Tariff price",
				UniqueID:            "cezhdo_" + id + "_price",
				StateTopic:          p.topic(id, "price"),
				AvailabilityTopic:   p.topic(id, "availability"),
				JSONAttributesTopic: p.topic(id, "price_forecast"),
				Icon:                "mdi:cash",
				Device:              device,
			},
		},
	}
	for _, c := range configs {
		b, err := json.Marshal(c.cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal discovery config: %w", err)
		}
		if err := p.publish(c.topic, true, b); err != nil {
			return err
		}
	}
	return nil
}

// Publish announces the binding on first use and publishes its state,
// price and forecasts as retained messages.
func (p *Publisher) Publish(ctx context.Context, s State) error {
	if p.client == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.announced[s.BindingID] {
		if err := p.announce(s.BindingID); err != nil {
			return err
		}
		p.announced[s.BindingID] = true
	}

	availability := []byte("offline")
	if s.Available {
		availability = []byte("online")
	}
	if !s.HasState {
		return p.publish(p.topic(s.BindingID, "availability"), true, availability)
	}

	stateForecast, err := json.Marshal(struct {
		Forecast types.HourlyValues `json:"forecast"`
	}{s.Forecast.States()})
	if err != nil {
		return fmt.Errorf("failed to marshal forecast: %w", err)
	}
	priceForecast, err := json.Marshal(struct {
		Forecast types.HourlyValues `json:"forecast"`
	}{s.Forecast.Prices()})
	if err != nil {
		return fmt.Errorf("failed to marshal forecast: %w", err)
	}

	state := "OFF"
	if s.LowTariff {
		state = "ON"
	}
	messages := []struct {
		name    string
		payload []byte
	}{
		{"availability", availability},
		{"state", []byte(state)},
		{"price", []byte(strconv.FormatFloat(s.Price, 'f', -1, 64))},
		{"state_forecast", stateForecast},
		{"price_forecast", priceForecast},
	}
	for _, m := range messages {
		if err := p.publish(p.topic(s.BindingID, m.name), true, m.payload); err != nil {
			return err
		}
	}
	log.Ctx(ctx).DebugContext(ctx, "published binding state", slog.String("binding", s.BindingID))
	return nil
}

// Remove clears the retained discovery configs so Home Assistant drops the
// entities of the binding.
func (p *Publisher) Remove(ctx context.Context, id string) error {
	if p.client == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.announced, id)
	for _, topic := range []string{p.binarySensorConfigTopic(id), p.priceSensorConfigTopic(id)} {
		if err := p.publish(topic, true, []byte{}); err != nil {
			return err
		}
	}
	return p.publish(p.topic(id, "availability"), true, []byte("offline"))
}
