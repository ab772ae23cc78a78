package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/go-roborock/roborock/protocol/crypto"
)

// SecurePreludeLen is the length of the fixed prelude at the start of a
// protocol-301 frame's decrypted payload.
const SecurePreludeLen = 15 + 1 + 2 + 6

// ErrSecurePreludeTooShort is returned when a protocol-301 payload is
// shorter than SecurePreludeLen.
var ErrSecurePreludeTooShort = errors.New("codec: secure payload shorter than prelude")

// SecurePrelude is the 24-byte header at the start of a protocol-301
// frame's payload. Unlike the outer frame header, every field here is
// little-endian — this is intentional and preserved as observed, not
// normalized to match the outer frame's byte order.
type SecurePrelude struct {
	Endpoint  string // 15-byte ASCII, NUL-padded
	Unknown1  uint8
	RequestID uint16
	Unknown2  [6]byte
}

// ParseSecurePrelude reads the 24-byte prelude from the front of a
// protocol-301 payload.
func ParseSecurePrelude(payload []byte) (*SecurePrelude, []byte, error) {
	if len(payload) < SecurePreludeLen {
		return nil, nil, ErrSecurePreludeTooShort
	}
	p := &SecurePrelude{
		Endpoint:  strings.TrimRight(string(payload[0:15]), "\x00"),
		Unknown1:  payload[15],
		RequestID: binary.LittleEndian.Uint16(payload[16:18]),
	}
	copy(p.Unknown2[:], payload[18:24])
	return p, payload[SecurePreludeLen:], nil
}

// MatchesEndpoint reports whether the prelude's endpoint field matches
// the client's own endpoint identifier. A protocol-301 frame whose
// endpoint does not match must be silently ignored, not treated as an
// error.
func (p *SecurePrelude) MatchesEndpoint(endpoint string) bool {
	return strings.HasPrefix(p.Endpoint, endpoint)
}

// DecodeSecurePayload decrypts the remainder of a protocol-301 payload
// (after the prelude) using the client's nonce: AES-128-CBC with a
// zero IV, PKCS#7 unpadded, gunzipped.
func DecodeSecurePayload(nonce, remainder []byte) ([]byte, error) {
	out, err := crypto.DecryptSecure(nonce, remainder)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFrameCorrupt, err)
	}
	return out, nil
}
