package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sweeney/spot-outlet/internal/logic"
)

const (
	// DefaultBufferSize is the number of messages held while disconnected.
	DefaultBufferSize = 256

	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// Options configure a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string // a random suffix is appended
	BufferSize int
	Logger     zerolog.Logger

	// OnConnectionChange, if set, is called with the new connection state.
	OnConnectionChange func(connected bool)
}

// RealPublisher publishes to an actual MQTT broker. Messages that cannot be
// sent are buffered and replayed, oldest first, after the next connect.
type RealPublisher struct {
	client   paho.Client
	logger   zerolog.Logger
	onChange func(bool)

	// sendMu serialises publishing with the replay in onConnect, which paho
	// runs on its own goroutine.
	sendMu sync.Mutex

	mu        sync.Mutex
	buffer    *ringBuffer
	connects  int
	closed    bool
	timestamp func() time.Time
}

// NewRealPublisher creates a publisher for the given broker. The first
// connection attempt is awaited briefly; if it does not complete, the client
// keeps retrying in the background and messages are buffered meanwhile.
func NewRealPublisher(o Options) (*RealPublisher, error) {
	if o.ClientID == "" {
		o.ClientID = "spot-outlet"
	}
	clientID := fmt.Sprintf("%s-%s", o.ClientID, uuid.NewString()[:8])

	will, err := willPayload()
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	p := newPublisher(nil, o)

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(func(paho.Client) { p.onConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) { p.onConnectionLost(err) })

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		p.logger.Warn().Str("broker", o.Broker).Msg("mqtt connect still pending, buffering until connected")
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

// willPayload is the OFFLINE notice the broker sends for us. It carries no
// timestamp since it is registered long before it is delivered.
func willPayload() ([]byte, error) {
	return FormatSystemPayload(SystemEvent{Event: "OFFLINE", Reason: "MQTT_DISCONNECT"})
}

func newPublisher(client paho.Client, o Options) *RealPublisher {
	size := o.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &RealPublisher{
		client:    client,
		logger:    o.Logger.With().Str("component", "mqtt").Logger(),
		onChange:  o.OnConnectionChange,
		buffer:    newRingBuffer(size),
		timestamp: time.Now,
	}
}

// Publish sends an actuation event (QoS 0, not retained).
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.send(bufferedMsg{topic: Topic, payload: payload})
}

// PublishSystem sends a system lifecycle event (QoS 1).
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of messages awaiting replay.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffer.len()
}

// Close disconnects from the broker. Buffered messages are discarded.
func (p *RealPublisher) Close() error {
	p.mu.Lock()
	p.closed = true
	dropped := p.buffer.len()
	p.mu.Unlock()
	if dropped > 0 {
		p.logger.Warn().Int("messages", dropped).Msg("closing with undelivered messages")
	}
	p.client.Disconnect(1000)
	return nil
}

// send publishes msg, or buffers it when the connection is down or the
// publish fails. A buffered message is not an error. Anything still buffered
// is flushed first so messages leave in order.
func (p *RealPublisher) send(msg bufferedMsg) error {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()

	if !p.client.IsConnectionOpen() || !p.flush() {
		p.hold(msg)
		return nil
	}
	if err := p.publish(msg); err != nil {
		p.logger.Warn().Err(err).Str("topic", msg.topic).Msg("publish failed, buffering")
		p.hold(msg)
	}
	return nil
}

// flush replays buffered messages oldest first and reports whether the
// buffer was emptied. Callers hold sendMu.
func (p *RealPublisher) flush() bool {
	p.mu.Lock()
	pending := p.buffer.drainAll()
	p.mu.Unlock()

	for i, msg := range pending {
		if err := p.publish(msg); err != nil {
			p.logger.Warn().Err(err).Int("remaining", len(pending)-i).Msg("replay interrupted")
			p.mu.Lock()
			for _, m := range pending[i:] {
				p.buffer.push(m)
			}
			p.mu.Unlock()
			return false
		}
	}
	return true
}

func (p *RealPublisher) publish(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (p *RealPublisher) hold(msg bufferedMsg) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if p.buffer.push(msg) {
		p.logger.Warn().Int("capacity", p.buffer.capacity).Msg("mqtt buffer full, dropping oldest")
	}
}

func (p *RealPublisher) onConnect() {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()

	p.mu.Lock()
	p.connects++
	reconnect := p.connects > 1
	pending := p.buffer.len()
	p.mu.Unlock()

	p.logger.Info().Bool("reconnect", reconnect).Int("replay", pending).Msg("mqtt connected")
	if p.onChange != nil {
		p.onChange(true)
	}

	if reconnect {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: p.timestamp(), Event: "RECONNECTED"})
		if err := p.publish(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1}); err != nil {
			p.logger.Warn().Err(err).Msg("publish reconnect notice failed")
		}
	}
	p.flush()
}

func (p *RealPublisher) onConnectionLost(err error) {
	p.logger.Warn().Err(err).Msg("mqtt connection lost")
	if p.onChange != nil {
		p.onChange(false)
	}
}
