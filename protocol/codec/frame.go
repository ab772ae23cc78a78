// Package codec implements the outer wire frame used to carry Roborock
// protocol messages as MQTT payloads, and the inner "secure" framing used
// by large binary (protocol-301) responses.
//
// The frame layout (all multi-byte integers big-endian):
//
//	version(3) | seq(u32) | random(u32) | timestamp(u32) | protocol(u16) |
//	payload_len(u16) | ciphertext(payload_len) | crc32(u32)
//
// This mirrors the shape of the mesh protocol's core/codec.Packet: an
// explicit encode/decode pair (Frame.Encode / DecodeFrame), sentinel
// errors for truncated input, no concurrency.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/go-roborock/roborock/protocol/crypto"
)

const (
	// Version is the mandatory 3-byte ASCII version prefix on every frame.
	Version = "1.0"

	// HeaderLen is the length of the fixed frame header (version through
	// payload_len), before the ciphertext.
	HeaderLen = 3 + 4 + 4 + 4 + 2 + 2

	// TrailerLen is the length of the CRC-32 trailer.
	TrailerLen = 4

	// MinFrameLen is the smallest possible valid frame: header + trailer,
	// zero-length payload.
	MinFrameLen = HeaderLen + TrailerLen
)

// Protocol identifies the kind of message carried by a frame.
type Protocol uint16

const (
	// ProtocolRequest marks an outbound command frame.
	ProtocolRequest Protocol = 101
	// ProtocolResponse marks a JSON command response frame.
	ProtocolResponse Protocol = 102
	// ProtocolRemoteControl marks an informational remote-control notification.
	ProtocolRemoteControl Protocol = 121
	// ProtocolSecureResponse marks a binary "secure" response frame.
	ProtocolSecureResponse Protocol = 301
)

var (
	// ErrFrameTooShort is returned when a frame is shorter than MinFrameLen.
	ErrFrameTooShort = errors.New("codec: frame shorter than minimum length")
	// ErrBadVersion is returned when the 3-byte version prefix does not match Version.
	ErrBadVersion = errors.New("codec: unexpected frame version")
	// ErrChecksumFailed is returned when the trailing CRC-32 does not match.
	ErrChecksumFailed = errors.New("codec: crc32 checksum mismatch")
	// ErrFrameCorrupt wraps decryption/unpadding failures while decoding a frame.
	ErrFrameCorrupt = errors.New("codec: frame payload corrupt")
)

// Frame is a single Roborock protocol wire frame.
type Frame struct {
	Seq       uint32
	Random    uint32
	Timestamp uint32
	Protocol  Protocol
	Payload   []byte // decrypted payload
}

// Encode serializes the frame, encrypting Payload under the key derived
// from Timestamp and localKey, and appends the CRC-32 trailer.
func (f *Frame) Encode(localKey []byte) ([]byte, error) {
	key := crypto.DeriveFrameKey(f.Timestamp, localKey)
	ciphertext, err := crypto.EncryptFrame(key, f.Payload)
	if err != nil {
		return nil, fmt.Errorf("codec: encrypt payload: %w", err)
	}
	if len(ciphertext) > 0xFFFF {
		return nil, fmt.Errorf("codec: payload too large: %d bytes", len(ciphertext))
	}

	buf := make([]byte, HeaderLen+len(ciphertext)+TrailerLen)
	copy(buf[0:3], Version)
	binary.BigEndian.PutUint32(buf[3:7], f.Seq)
	binary.BigEndian.PutUint32(buf[7:11], f.Random)
	binary.BigEndian.PutUint32(buf[11:15], f.Timestamp)
	binary.BigEndian.PutUint16(buf[15:17], uint16(f.Protocol))
	binary.BigEndian.PutUint16(buf[17:19], uint16(len(ciphertext)))
	copy(buf[HeaderLen:HeaderLen+len(ciphertext)], ciphertext)

	crcStart := HeaderLen + len(ciphertext)
	sum := crypto.CRC32(buf[:crcStart])
	binary.BigEndian.PutUint32(buf[crcStart:crcStart+TrailerLen], sum)

	return buf, nil
}

// DecodeFrame parses and decrypts a wire frame. The CRC-32 trailer is
// verified before any decryption is attempted, per the protocol's
// invariant that checksum failures never reach the cipher layer.
func DecodeFrame(data, localKey []byte) (*Frame, error) {
	if len(data) < MinFrameLen {
		return nil, ErrFrameTooShort
	}
	if string(data[0:3]) != Version {
		return nil, ErrBadVersion
	}

	crcStart := len(data) - TrailerLen
	wantCRC := binary.BigEndian.Uint32(data[crcStart:])
	gotCRC := crypto.CRC32(data[:crcStart])
	if gotCRC != wantCRC {
		return nil, ErrChecksumFailed
	}

	seq := binary.BigEndian.Uint32(data[3:7])
	random := binary.BigEndian.Uint32(data[7:11])
	timestamp := binary.BigEndian.Uint32(data[11:15])
	protocol := Protocol(binary.BigEndian.Uint16(data[15:17]))
	payloadLen := int(binary.BigEndian.Uint16(data[17:19]))

	if HeaderLen+payloadLen+TrailerLen != len(data) {
		return nil, ErrFrameTooShort
	}

	ciphertext := data[HeaderLen : HeaderLen+payloadLen]
	key := crypto.DeriveFrameKey(timestamp, localKey)
	plain, err := crypto.DecryptFrame(key, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFrameCorrupt, err)
	}

	return &Frame{
		Seq:       seq,
		Random:    random,
		Timestamp: timestamp,
		Protocol:  protocol,
		Payload:   plain,
	}, nil
}
