package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sweeney/garage-controller/internal/logic"
)

// OutboxCapacity bounds the messages kept while disconnected.
const OutboxCapacity = 64

// RealPublisher publishes to an actual MQTT broker and forwards inbound
// commands.
type RealPublisher struct {
	client    paho.Client
	topics    Topics
	onCommand func(cmd string)

	mu     sync.Mutex
	outbox *outbox
}

// NewRealPublisher connects to the broker in cfg. onCommand receives parsed
// door commands from the paho callback goroutine and must not block.
func NewRealPublisher(cfg Config, onCommand func(cmd string)) (*RealPublisher, error) {
	topics := Topics{Base: cfg.Topic}
	p := &RealPublisher{
		topics:    topics,
		onCommand: onCommand,
		outbox:    newOutbox(OutboxCapacity, topics.State(), topics.Base, topics.JSON()),
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker()).
		SetClientID("garage-" + uuid.NewString()[:8]).
		SetWill(topics.Status(), StatusOffline, 1, true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warn().Err(err).Msg("mqtt: connection lost")
		})
	if cfg.User != "" {
		opts.SetUsername(cfg.User)
		opts.SetPassword(cfg.Password)
	}

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		// paho keeps retrying in the background; publishes queue in the outbox
		log.Warn().Str("broker", cfg.Broker()).Msg("mqtt: broker not reachable yet, retrying")
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

// onConnect runs on every (re)connect: announce, subscribe, replay.
func (p *RealPublisher) onConnect(c paho.Client) {
	log.Info().Str("topic", p.topics.Base).Msg("mqtt: connected")
	c.Publish(p.topics.Status(), 1, true, StatusOnline)

	for _, filter := range p.topics.Subscriptions() {
		if tok := c.Subscribe(filter, 0, p.handleMessage); tok.WaitTimeout(5*time.Second) && tok.Error() != nil {
			log.Error().Err(tok.Error()).Str("filter", filter).Msg("mqtt: subscribe failed")
		}
	}

	p.mu.Lock()
	pending := p.outbox.drainAll()
	p.mu.Unlock()
	for _, m := range pending {
		c.Publish(m.topic, 0, m.retained, m.payload)
	}
	if len(pending) > 0 {
		log.Info().Int("count", len(pending)).Msg("mqtt: replayed buffered messages")
	}
}

func (p *RealPublisher) handleMessage(_ paho.Client, msg paho.Message) {
	cmd, ok := ParseCommand(p.topics, msg.Topic(), msg.Payload())
	if !ok {
		return
	}
	log.Info().Str("topic", msg.Topic()).Str("command", cmd).Msg("mqtt: command received")
	if p.onCommand != nil {
		p.onCommand(cmd)
	}
}

func (p *RealPublisher) publish(topic string, payload []byte, retained bool) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.outbox.push(bufferedMsg{topic: topic, payload: payload, retained: retained})
		p.mu.Unlock()
		return nil
	}

	// QoS 0 (at-most-once)
	token := p.client.Publish(topic, 0, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// PublishState sends the status text and its legacy form on the base topic.
func (p *RealPublisher) PublishState(status logic.DoorStatus) error {
	state, legacy := StatePayload(status)
	if err := p.publish(p.topics.State(), []byte(state), false); err != nil {
		return err
	}
	if legacy == "" {
		return nil
	}
	return p.publish(p.topics.Base, []byte(legacy), false)
}

// PublishJSON sends the controller document.
func (p *RealPublisher) PublishJSON(payload []byte) error {
	return p.publish(p.topics.JSON(), payload, false)
}

// PublishNotify sends notification text.
func (p *RealPublisher) PublishNotify(text string) error {
	return p.publish(p.topics.Notify(), []byte(text), false)
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close marks the controller offline and disconnects from the broker.
func (p *RealPublisher) Close() error {
	if p.client.IsConnectionOpen() {
		p.client.Publish(p.topics.Status(), 1, true, StatusOffline).WaitTimeout(time.Second)
	}
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
