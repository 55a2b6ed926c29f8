package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/sweeney/blinker/internal/control"
)

const publishTimeout = 5 * time.Second

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	BufferSize int // messages kept while offline; 0 means DefaultBufferSize

	// OnCommand receives raw payloads from TopicCommand. It runs on the
	// MQTT client's goroutine and must not block.
	OnCommand func(payload []byte)

	Logger zerolog.Logger
	Now    func() time.Time
}

// RealPublisher publishes to an actual MQTT broker. Messages published
// while the connection is down are buffered and sent on reconnect.
type RealPublisher struct {
	client    paho.Client
	log       zerolog.Logger
	now       func() time.Time
	onCommand func([]byte)

	mu        sync.Mutex
	buf       *ringBuffer
	connected int // number of successful connects
}

// NewRealPublisher starts connecting to the broker in the background and
// returns immediately; the client keeps retrying until Close.
func NewRealPublisher(o Options) *RealPublisher {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.BufferSize == 0 {
		o.BufferSize = DefaultBufferSize
	}

	p := &RealPublisher{
		log:       o.Logger.With().Str("broker", o.Broker).Logger(),
		now:       o.Now,
		onCommand: o.OnCommand,
		buf:       newRingBuffer(o.BufferSize, o.Logger),
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(false).
		SetWill(TopicSystem, string(WillPayload(o.Now())), 1, true).
		SetOnConnectHandler(p.handleConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.log.Warn().Err(err).Msg("mqtt connection lost")
		})

	p.client = paho.NewClient(opts)
	p.client.Connect()
	return p
}

func (p *RealPublisher) handleConnect(c paho.Client) {
	p.mu.Lock()
	p.connected++
	reconnect := p.connected > 1
	pending := p.buf.drainAll()
	dropped := p.buf.dropped
	p.buf.dropped = 0
	p.mu.Unlock()

	p.log.Info().Bool("reconnect", reconnect).Int("buffered", len(pending)).Msg("mqtt connected")

	if p.onCommand != nil {
		token := c.Subscribe(TopicCommand, 1, func(_ paho.Client, msg paho.Message) {
			p.onCommand(msg.Payload())
		})
		go func() {
			if token.WaitTimeout(publishTimeout) && token.Error() != nil {
				p.log.Error().Err(token.Error()).Str("topic", TopicCommand).Msg("subscribe failed")
			}
		}()
	}

	// Publishing blocks on the network, so keep it off the client's goroutine.
	go func() {
		if dropped > 0 {
			p.log.Warn().Int("dropped", dropped).Msg("messages dropped while offline")
		}
		for _, m := range pending {
			if err := p.publishNow(m); err != nil {
				p.log.Error().Err(err).Str("topic", m.topic).Msg("replay failed")
			}
		}
		if reconnect {
			payload, _ := FormatSystemPayload(SystemEvent{Timestamp: p.now(), Event: "RECONNECTED"})
			if err := p.publishNow(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1}); err != nil {
				p.log.Error().Err(err).Msg("failed to publish reconnect event")
			}
		}
	}()
}

// Publish sends a sequence event to the MQTT broker.
func (p *RealPublisher) Publish(event control.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	return p.send(bufferedMsg{topic: Topic, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events
	return p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) send(m bufferedMsg) error {
	p.mu.Lock()
	if !p.client.IsConnectionOpen() {
		p.buf.push(m)
		n := p.buf.len()
		p.mu.Unlock()
		p.log.Debug().Str("topic", m.topic).Int("buffered", n).Msg("offline, message buffered")
		return nil
	}
	p.mu.Unlock()
	return p.publishNow(m)
}

func (p *RealPublisher) publishNow(m bufferedMsg) error {
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", m.topic, err)
	}
	return nil
}

// IsConnected reports whether the client currently has a broker connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns how many messages are waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
