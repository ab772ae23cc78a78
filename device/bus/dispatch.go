package bus

import (
	"encoding/json"
	"strings"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/go-roborock/roborock/protocol/codec"
)

// dps102Envelope is the inner `dps["102"]` JSON string's decoded shape.
type dps102Envelope struct {
	ID     uint16          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// dps102Outer is the protocol-102 payload's top-level shape: a unix
// timestamp and a dps map whose "102" entry is itself a JSON string.
type dps102Outer struct {
	T   int64             `json:"t"`
	Dps map[string]string `json:"dps"`
}

// handleMessage is the bus's single inbound MQTT callback: it decodes
// the outer frame, updates staleness bookkeeping, extracts the
// publishing device id from the topic, and dispatches by protocol id.
// Grounded on the original Python client's on_message handler and the
// teacher's Transport.handleMessage structure (decode, then route by
// message type).
func (b *Bus) handleMessage(_ paho.Client, msg paho.Message) {
	b.state.touch()

	duid := lastTopicSegment(msg.Topic())
	localKey, ok := b.localKeys[duid]
	if !ok {
		b.log.Debug("message for unknown device", "duid", duid)
		return
	}

	frame, err := codec.DecodeFrame(msg.Payload(), []byte(localKey))
	if err != nil {
		b.log.Debug("failed to decode frame", "duid", duid, "error", err)
		return
	}

	switch frame.Protocol {
	case codec.ProtocolResponse:
		b.handleResponse(frame)
	case codec.ProtocolSecureResponse:
		b.handleSecureResponse(frame)
	case codec.ProtocolRemoteControl:
		b.log.Debug("remote control message", "duid", duid)
	default:
		b.log.Debug("unhandled protocol", "protocol", frame.Protocol, "duid", duid)
	}
}

func (b *Bus) handleResponse(frame *codec.Frame) {
	var outer dps102Outer
	if err := json.Unmarshal(frame.Payload, &outer); err != nil {
		b.log.Debug("failed to decode protocol-102 envelope", "error", err)
		return
	}
	raw, ok := outer.Dps["102"]
	if !ok {
		return
	}

	var inner dps102Envelope
	if err := json.Unmarshal([]byte(raw), &inner); err != nil {
		b.log.Debug("failed to decode dps[102] payload", "error", err)
		return
	}

	if inner.Error != nil {
		b.pending.complete(inner.ID, nil, &deviceError{Code: inner.Error.Code, Message: inner.Error.Message})
		return
	}

	result := unwrapSingleElementArray(inner.Result)

	// A bare "ok" acknowledges a side-effecting command that will report
	// real progress (if any) via a later message; it does not complete
	// the pending request.
	if isOkLiteral(result) {
		return
	}

	b.pending.complete(inner.ID, result, nil)
}

func (b *Bus) handleSecureResponse(frame *codec.Frame) {
	prelude, remainder, err := codec.ParseSecurePrelude(frame.Payload)
	if err != nil {
		b.log.Debug("failed to parse secure prelude", "error", err)
		return
	}
	if !prelude.MatchesEndpoint(b.endpoint()) {
		return
	}

	nonce, ok := b.pending.nonceFor(prelude.RequestID)
	if !ok {
		return
	}

	decoded, err := codec.DecodeSecurePayload(nonce, remainder)
	if err != nil {
		b.log.Debug("failed to decode secure payload", "error", err)
		return
	}

	encoded, err := json.Marshal(decoded)
	if err != nil {
		b.log.Debug("failed to encode secure payload as json", "error", err)
		return
	}
	b.pending.complete(prelude.RequestID, encoded, nil)
}

func lastTopicSegment(topic string) string {
	idx := strings.LastIndex(topic, "/")
	if idx < 0 {
		return topic
	}
	return topic[idx+1:]
}

// unwrapSingleElementArray mirrors the Python client's `if isinstance(result, list): result = result[0]`.
func unwrapSingleElementArray(raw json.RawMessage) json.RawMessage {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil && len(arr) == 1 {
		return arr[0]
	}
	return raw
}

func isOkLiteral(raw json.RawMessage) bool {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false
	}
	return s == "ok"
}
