package codec

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/go-roborock/roborock/protocol/crypto"
)

func TestFrame_EncodeDecodeRoundTrip(t *testing.T) {
	localKey := []byte("0123456789abcdef")
	tests := []struct {
		name    string
		payload []byte
		proto   Protocol
	}{
		{"empty payload", []byte{}, ProtocolRequest},
		{"json command", []byte(`{"t":1700000000,"dps":{"101":"{}"}}`), ProtocolRequest},
		{"binary-ish payload", bytes.Repeat([]byte{0xAB, 0xCD}, 64), ProtocolSecureResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &Frame{
				Seq:       1,
				Random:    4711,
				Timestamp: 1700000000,
				Protocol:  tt.proto,
				Payload:   tt.payload,
			}
			wire, err := f.Encode(localKey)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}

			got, err := DecodeFrame(wire, localKey)
			if err != nil {
				t.Fatalf("DecodeFrame: %v", err)
			}
			if got.Seq != f.Seq || got.Random != f.Random || got.Timestamp != f.Timestamp || got.Protocol != f.Protocol {
				t.Errorf("decoded header mismatch: got %+v, want %+v", got, f)
			}
			if !bytes.Equal(got.Payload, tt.payload) {
				t.Errorf("decoded payload = %q, want %q", got.Payload, tt.payload)
			}
		})
	}
}

func TestFrame_VersionPrefix(t *testing.T) {
	localKey := []byte("0123456789abcdef")
	f := &Frame{Timestamp: 1700000000, Protocol: ProtocolRequest, Payload: []byte("x")}
	wire, err := f.Encode(localKey)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if string(wire[0:3]) != Version {
		t.Errorf("frame version = %q, want %q", wire[0:3], Version)
	}
}

func TestFrame_TotalLengthInvariant(t *testing.T) {
	localKey := []byte("0123456789abcdef")
	f := &Frame{Timestamp: 1700000000, Protocol: ProtocolRequest, Payload: []byte("hello world")}
	wire, err := f.Encode(localKey)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	payloadLen := int(binary.BigEndian.Uint16(wire[17:19]))
	if HeaderLen+payloadLen+TrailerLen != len(wire) {
		t.Errorf("header(%d)+payload_len(%d)+trailer(%d) != total(%d)", HeaderLen, payloadLen, TrailerLen, len(wire))
	}
}

func TestDecodeFrame_ChecksumFailed(t *testing.T) {
	localKey := []byte("0123456789abcdef")
	f := &Frame{Timestamp: 1700000000, Protocol: ProtocolRequest, Payload: []byte("hello")}
	wire, _ := f.Encode(localKey)
	wire[len(wire)-1] ^= 0xFF

	if _, err := DecodeFrame(wire, localKey); err != ErrChecksumFailed {
		t.Errorf("got %v, want ErrChecksumFailed", err)
	}
}

func TestDecodeFrame_ChecksumFailsBeforeDecrypt(t *testing.T) {
	// A bad CRC must be detected even when the key is wrong too —
	// the CRC check happens first and neither touches decrypt state.
	localKey := []byte("0123456789abcdef")
	wrongKey := []byte("fedcba9876543210")
	f := &Frame{Timestamp: 1700000000, Protocol: ProtocolRequest, Payload: []byte("hello")}
	wire, _ := f.Encode(localKey)
	wire[len(wire)-1] ^= 0xFF

	if _, err := DecodeFrame(wire, wrongKey); err != ErrChecksumFailed {
		t.Errorf("got %v, want ErrChecksumFailed", err)
	}
}

func TestDecodeFrame_BadVersion(t *testing.T) {
	localKey := []byte("0123456789abcdef")
	f := &Frame{Timestamp: 1700000000, Protocol: ProtocolRequest, Payload: []byte("hello")}
	wire, _ := f.Encode(localKey)
	wire[0] = '2'

	if _, err := DecodeFrame(wire, localKey); err != ErrBadVersion {
		t.Errorf("got %v, want ErrBadVersion", err)
	}
}

func TestDecodeFrame_TooShort(t *testing.T) {
	if _, err := DecodeFrame([]byte("short"), []byte("0123456789abcdef")); err != ErrFrameTooShort {
		t.Errorf("got %v, want ErrFrameTooShort", err)
	}
}

func TestDecodeFrame_WrongKeyIsCorrupt(t *testing.T) {
	localKey := []byte("0123456789abcdef")
	wrongKey := []byte("fedcba9876543210")
	f := &Frame{Timestamp: 1700000000, Protocol: ProtocolRequest, Payload: []byte("hello world, padded")}
	wire, _ := f.Encode(localKey)

	if _, err := DecodeFrame(wire, wrongKey); err == nil {
		t.Error("expected decode with wrong key to fail")
	}
}

func TestSecurePrelude_RoundTrip(t *testing.T) {
	payload := make([]byte, SecurePreludeLen+8)
	copy(payload[0:15], "endpointabc\x00\x00\x00\x00")
	payload[15] = 0x02
	binary.LittleEndian.PutUint16(payload[16:18], 42)
	copy(payload[18:24], []byte{1, 2, 3, 4, 5, 6})
	copy(payload[24:], []byte("trailing"))

	prelude, rest, err := ParseSecurePrelude(payload)
	if err != nil {
		t.Fatalf("ParseSecurePrelude: %v", err)
	}
	if prelude.Endpoint != "endpointabc" {
		t.Errorf("Endpoint = %q, want %q", prelude.Endpoint, "endpointabc")
	}
	if prelude.RequestID != 42 {
		t.Errorf("RequestID = %d, want 42", prelude.RequestID)
	}
	if !bytes.Equal(rest, []byte("trailing")) {
		t.Errorf("rest = %q, want %q", rest, "trailing")
	}
	if !prelude.MatchesEndpoint("endpointabc") {
		t.Error("MatchesEndpoint should match exact endpoint")
	}
	if prelude.MatchesEndpoint("somethingelse") {
		t.Error("MatchesEndpoint should not match a different endpoint")
	}
}

func TestSecurePrelude_TooShort(t *testing.T) {
	if _, _, err := ParseSecurePrelude([]byte("short")); err != ErrSecurePreludeTooShort {
		t.Errorf("got %v, want ErrSecurePreludeTooShort", err)
	}
}

func TestDecodeSecurePayload_WrapsFrameCorrupt(t *testing.T) {
	nonce := bytes.Repeat([]byte{0x01}, 16)
	if _, err := DecodeSecurePayload(nonce, []byte("not a valid cbc block length")); err == nil {
		t.Fatal("expected an error")
	} else if !bytes.Contains([]byte(err.Error()), []byte("frame payload corrupt")) {
		t.Errorf("error %q does not wrap ErrFrameCorrupt", err)
	}
}

func TestDeriveFrameKeyUsedByEncode(t *testing.T) {
	// Sanity check that Frame.Encode actually uses DeriveFrameKey with the
	// frame's own timestamp, not some fixed constant.
	localKey := []byte("0123456789abcdef")
	f1 := &Frame{Timestamp: 1, Protocol: ProtocolRequest, Payload: []byte("same")}
	f2 := &Frame{Timestamp: 2, Protocol: ProtocolRequest, Payload: []byte("same")}
	w1, _ := f1.Encode(localKey)
	w2, _ := f2.Encode(localKey)

	ct1 := w1[HeaderLen : len(w1)-TrailerLen]
	ct2 := w2[HeaderLen : len(w2)-TrailerLen]
	if bytes.Equal(ct1, ct2) {
		t.Error("ciphertext should differ when timestamp differs, since the AES key is timestamp-derived")
	}

	key1 := crypto.DeriveFrameKey(1, localKey)
	key2 := crypto.DeriveFrameKey(2, localKey)
	if bytes.Equal(key1, key2) {
		t.Error("DeriveFrameKey should differ for different timestamps")
	}
}
