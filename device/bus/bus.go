// Package bus implements the MQTT device bus: a single persistent MQTT
// session multiplexing many logical request/response exchanges against
// the devices in an account's home.
//
// This is grounded directly on the teacher's transport/mqtt.Transport
// (paho client lifecycle, Config struct, onConnected/onConnectionLost
// handlers), fused with its core/ack.Tracker (pending-request table with
// timeout sweep, see pending.go) and device/connection.Manager
// (staleness detection via last-seen timestamp, see state.go).
package bus

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/go-roborock/roborock/account"
	"github.com/go-roborock/roborock/protocol/codec"
	"github.com/go-roborock/roborock/protocol/crypto"
)

// requestTimeout is the time a SendCommand call waits for a matching
// response before giving up.
const requestTimeout = 4 * time.Second

// idCounterMax is the modulus the request-id counter wraps at.
const idCounterMax = 32767

var (
	// ErrDisconnected is returned for pending requests still outstanding
	// when the bus is closed, and for sends attempted after Close.
	ErrDisconnected = errors.New("bus: disconnected")
	// ErrUnknownDevice is returned when SendCommand targets a duid the
	// bus was not configured with.
	ErrUnknownDevice = errors.New("bus: unknown device")
	// ErrTimedOut is returned when a request's response does not arrive
	// within requestTimeout.
	ErrTimedOut = errors.New("bus: request timed out")
)

// deviceError is the {code, message} error object a device embeds in a
// protocol-102 response, before the calling method name is known.
type deviceError struct {
	Code    int
	Message string
}

func (e *deviceError) Error() string {
	return fmt.Sprintf("device error %d: %s", e.Code, e.Message)
}

// VacuumError reports a device-side command failure, naming the method
// that failed. Mirrors the original client's CommandVacuumError.
type VacuumError struct {
	Method  string
	Code    int
	Message string
}

func (e *VacuumError) Error() string {
	return fmt.Sprintf("bus: %s: device error %d: %s", e.Method, e.Code, e.Message)
}

// Config configures a Bus.
type Config struct {
	// RRiot carries the MQTT credentials (u, s, k) and broker reference
	// returned by account login.
	RRiot account.RRiot
	// Devices is the set of devices whose local_key the bus needs to
	// encrypt/decrypt frames for.
	Devices []account.DeviceRecord

	// ConnectTimeout bounds the initial MQTT connect handshake.
	// Default: 10s.
	ConnectTimeout time.Duration
	// SessionExpiry is the inactivity window after which a connected
	// session is considered stale and a fresh connect is forced before
	// the next send. Default: 60s, matching the broker's own session
	// expiry interval.
	SessionExpiry time.Duration
	// Keepalive is the MQTT keepalive interval. Default: 60s.
	Keepalive time.Duration

	// Logger falls back to slog.Default() if nil.
	Logger *slog.Logger
}

// Bus is a single MQTT session multiplexing request/response exchanges
// with every device bound to one account home.
type Bus struct {
	cfg Config
	log *slog.Logger

	client       paho.Client
	mqttUser     string
	mqttPassword string
	topicSub     string
	topicPubBase string

	localKeys map[string]string // duid -> local_key

	state *sessionTracker

	pending *pendingTable
	clock   *requestClock

	idMu    sync.Mutex
	idCount uint16

	closed chan struct{}
	once   sync.Once
}

// New constructs a Bus. Call Start to connect.
func New(cfg Config) *Bus {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.SessionExpiry <= 0 {
		cfg.SessionExpiry = 60 * time.Second
	}
	if cfg.Keepalive <= 0 {
		cfg.Keepalive = 60 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.WithGroup("bus")

	hashedUser := hashedCredential(cfg.RRiot.U, cfg.RRiot.K, 2, 8)
	hashedPassword := hashedCredential(cfg.RRiot.S, cfg.RRiot.K, 16, 0)

	localKeys := make(map[string]string, len(cfg.Devices))
	for _, d := range cfg.Devices {
		localKeys[d.DUID] = d.LocalKey
	}

	b := &Bus{
		cfg:          cfg,
		log:          logger,
		mqttUser:     hashedUser,
		mqttPassword: hashedPassword,
		topicSub:     fmt.Sprintf("rr/m/o/%s/%s/#", cfg.RRiot.U, hashedUser),
		topicPubBase: fmt.Sprintf("rr/m/i/%s/%s", cfg.RRiot.U, hashedUser),
		localKeys:    localKeys,
		state:        newSessionTracker(cfg.SessionExpiry),
		pending:      newPendingTable(requestTimeout),
		clock:        newRequestClock(),
		idCount:      1,
		closed:       make(chan struct{}),
	}
	return b
}

// hashedCredential reproduces the device bus's MQTT-credential
// derivation: md5_hex(value+":"+domain), sliced to a window of length
// characters starting at offset. A zero length means "to the end".
func hashedCredential(value, domain string, offset, length int) string {
	full := crypto.MD5Hex(value + ":" + domain)
	if length == 0 {
		return full[offset:]
	}
	return full[offset : offset+length]
}

// endpoint is the per-bus base64 endpoint identifier embedded in secure
// command requests and matched against protocol-301 response preludes.
func (b *Bus) endpoint() string {
	sum := crypto.MD5Bytes(b.cfg.RRiot.K)
	return base64.StdEncoding.EncodeToString(sum[8:14])
}

// Start connects to the MQTT broker and begins dispatching inbound
// messages. Blocks until the initial connect completes or ConnectTimeout
// elapses; the subscription is made afterwards by the connect handler,
// and Start does not wait for it.
func (b *Bus) Start(ctx context.Context) error {
	brokerURL, useTLS, err := parseBrokerURL(b.cfg.RRiot.R.M)
	if err != nil {
		return fmt.Errorf("bus: parse broker url: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID("roborock-" + b.mqttUser).
		SetUsername(b.mqttUser).
		SetPassword(b.mqttPassword).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(b.cfg.Keepalive).
		SetPingTimeout(10 * time.Second).
		SetCleanSession(false).
		SetOrderMatters(false).
		SetOnConnectHandler(b.onConnected).
		SetConnectionLostHandler(b.onConnectionLost)

	if useTLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	b.client = paho.NewClient(opts)
	b.state.setConnecting()

	token := b.client.Connect()
	if !token.WaitTimeout(b.cfg.ConnectTimeout) {
		b.state.setDisconnected()
		return errors.New("bus: connect timeout")
	}
	if token.Error() != nil {
		b.state.setDisconnected()
		return fmt.Errorf("bus: connect: %w", token.Error())
	}

	go b.pending.run(b.closed)
	return nil
}

// Close disconnects from the broker and completes every outstanding
// pending request with ErrDisconnected.
func (b *Bus) Close() error {
	b.once.Do(func() {
		close(b.closed)
		if b.client != nil {
			b.client.Disconnect(500)
		}
		b.state.setDisconnected()
		b.pending.failAll(ErrDisconnected)
	})
	return nil
}

func (b *Bus) onConnected(client paho.Client) {
	b.state.setConnected()
	token := client.Subscribe(b.topicSub, 0, b.handleMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		b.log.Error("subscribe failed", "topic", b.topicSub, "error", err)
		return
	}
	b.log.Info("connected and subscribed", "topic", b.topicSub)
}

func (b *Bus) onConnectionLost(_ paho.Client, err error) {
	b.state.setDisconnected()
	b.log.Warn("mqtt connection lost", "error", err)
}

// ensureConnected reconnects if the session is disconnected or has gone
// stale (no inbound traffic within SessionExpiry). Each state transition
// is mutex-guarded inside sessionTracker; concurrent callers are not
// coalesced, and each one that finds the session unusable issues its
// own Connect.
func (b *Bus) ensureConnected(ctx context.Context) error {
	if b.state.isUsable() {
		return nil
	}
	if b.client == nil {
		return ErrDisconnected
	}
	b.state.setConnecting()
	token := b.client.Connect()
	if !token.WaitTimeout(b.cfg.ConnectTimeout) {
		b.state.setDisconnected()
		return errors.New("bus: reconnect timeout")
	}
	return token.Error()
}

func (b *Bus) nextRequestID() uint16 {
	b.idMu.Lock()
	defer b.idMu.Unlock()
	id := b.idCount
	b.idCount++
	if b.idCount >= idCounterMax {
		b.idCount = 0
	}
	return id
}

// CommandOption customizes a SendCommand call.
type CommandOption func(*commandOpts)

type commandOpts struct {
	secure     bool
	noResponse bool
}

// WithSecure requests a binary response: the device replies with a
// gzipped, AES-CBC-encrypted protocol-301 frame instead of a JSON
// protocol-102 envelope.
func WithSecure() CommandOption {
	return func(o *commandOpts) { o.secure = true }
}

// WithNoResponse publishes the command and returns immediately without
// registering a pending request.
func WithNoResponse() CommandOption {
	return func(o *commandOpts) { o.noResponse = true }
}

// SendCommand issues method/params to the device identified by duid and
// waits for its response, or returns immediately if WithNoResponse was
// given. The returned bytes are either the decoded JSON "result" value
// (re-encoded) or, for a secure call, the decrypted binary payload
// encoded as a JSON string (base64, as encoding/json encodes []byte).
func (b *Bus) SendCommand(ctx context.Context, duid, method string, params []any, opts ...CommandOption) (json.RawMessage, error) {
	var o commandOpts
	for _, opt := range opts {
		opt(&o)
	}

	localKey, ok := b.localKeys[duid]
	if !ok {
		return nil, ErrUnknownDevice
	}

	if err := b.ensureConnected(ctx); err != nil {
		return nil, err
	}

	requestID := b.nextRequestID()
	timestamp := b.clock.next()

	inner := map[string]any{
		"id":     requestID,
		"method": method,
		"params": params,
	}
	var nonce []byte
	if o.secure {
		nonce = make([]byte, 16)
		if _, err := rand.Read(nonce); err != nil {
			return nil, fmt.Errorf("bus: generate nonce: %w", err)
		}
		inner["security"] = map[string]string{
			"endpoint": b.endpoint(),
			"nonce":    strings.ToUpper(hex.EncodeToString(nonce)),
		}
	}

	innerJSON, err := json.Marshal(inner)
	if err != nil {
		return nil, fmt.Errorf("bus: encode command: %w", err)
	}
	envelope := map[string]any{
		"t":   timestamp,
		"dps": map[string]string{"101": string(innerJSON)},
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("bus: encode envelope: %w", err)
	}

	frame := &codec.Frame{
		Seq:       1,
		Random:    4711,
		Timestamp: timestamp,
		Protocol:  codec.ProtocolRequest,
		Payload:   payload,
	}
	wire, err := frame.Encode([]byte(localKey))
	if err != nil {
		return nil, fmt.Errorf("bus: encode frame: %w", err)
	}

	var waiter chan pendingResult
	if !o.noResponse {
		waiter = b.pending.track(requestID)
		if nonce != nil {
			b.pending.setNonce(requestID, nonce)
		}
	}

	topic := b.topicPubBase + "/" + duid
	token := b.client.Publish(topic, 0, false, wire)
	if !token.WaitTimeout(b.cfg.ConnectTimeout) {
		b.pending.cancel(requestID)
		return nil, errors.New("bus: publish timeout")
	}
	if err := token.Error(); err != nil {
		b.pending.cancel(requestID)
		return nil, fmt.Errorf("bus: publish: %w", err)
	}

	if o.noResponse {
		return nil, nil
	}

	select {
	case res := <-waiter:
		if res.err != nil {
			if de, ok := res.err.(*deviceError); ok {
				return nil, &VacuumError{Method: method, Code: de.Code, Message: de.Message}
			}
			return nil, res.err
		}
		return res.value, nil
	case <-ctx.Done():
		b.pending.cancel(requestID)
		return nil, ctx.Err()
	}
}

func parseBrokerURL(raw string) (string, bool, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false, err
	}
	useTLS := u.Scheme == "ssl"
	scheme := "tcp"
	if useTLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s", scheme, u.Host), useTLS, nil
}
