// Package crypto implements the symmetric primitives used by the Roborock
// cloud protocol: MD5-based frame key derivation, AES-128-ECB frame
// encryption, and the AES-128-CBC + gzip inner layer used by "secure"
// (binary) responses.
//
// This mirrors the shape of the mesh protocol's core/crypto package: free
// functions over byte slices, sentinel errors for malformed input, no
// package-level state.
package crypto

import (
	"bytes"
	"compress/gzip"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

const (
	// FrameKeySize is the AES-128 key size used to encrypt frame payloads.
	FrameKeySize = 16
	// BlockSize is the AES block size used for ECB and CBC operation.
	BlockSize = aes.BlockSize

	// Salt is appended to the scrambled timestamp and local key before
	// hashing to derive the per-frame AES key. Fixed by the protocol.
	Salt = "TXdfu$jyZ#TZHsg4"
)

// scrambleOrder is the fixed permutation applied to the 8 hex digits of a
// frame timestamp before key derivation.
var scrambleOrder = [8]int{5, 6, 3, 7, 1, 2, 0, 4}

var (
	// ErrInvalidBlockSize is returned when ciphertext is not a multiple of
	// the AES block size.
	ErrInvalidBlockSize = errors.New("crypto: ciphertext is not a multiple of the block size")
	// ErrInvalidPadding is returned when PKCS7 padding fails to validate.
	ErrInvalidPadding = errors.New("crypto: invalid PKCS7 padding")
)

// MD5Hex returns the lowercase hex-encoded MD5 digest of s.
func MD5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// MD5Bytes returns the raw 16-byte MD5 digest of s.
func MD5Bytes(s string) []byte {
	sum := md5.Sum([]byte(s))
	return sum[:]
}

// ScrambleTimestamp formats t as lowercase zero-padded 8-character hex,
// then permutes the digits using the protocol's fixed index order. The
// result is always 8 bytes, a permutation of the input's hex digits.
func ScrambleTimestamp(t uint32) []byte {
	hexDigits := fmt.Sprintf("%08x", t)
	out := make([]byte, 8)
	for i, idx := range scrambleOrder {
		out[i] = hexDigits[idx]
	}
	return out
}

// DeriveFrameKey computes the AES key used to encrypt/decrypt a frame's
// payload: MD5(scramble(timestamp) || localKey || Salt).
func DeriveFrameKey(timestamp uint32, localKey []byte) []byte {
	buf := make([]byte, 0, 8+len(localKey)+len(Salt))
	buf = append(buf, ScrambleTimestamp(timestamp)...)
	buf = append(buf, localKey...)
	buf = append(buf, Salt...)
	return MD5Bytes(string(buf))
}

// pkcs7Pad pads data to a multiple of blockSize per PKCS#7.
func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

// pkcs7Unpad validates and strips PKCS#7 padding.
func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrInvalidBlockSize
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, ErrInvalidPadding
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, ErrInvalidPadding
		}
	}
	return data[:len(data)-padLen], nil
}

// EncryptFrame encrypts plaintext with AES-128-ECB under key, PKCS#7 padded.
func EncryptFrame(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: new cipher: %w", err)
	}
	padded := pkcs7Pad(plaintext, BlockSize)
	out := make([]byte, len(padded))
	for i := 0; i < len(padded); i += BlockSize {
		block.Encrypt(out[i:i+BlockSize], padded[i:i+BlockSize])
	}
	return out, nil
}

// DecryptFrame decrypts ciphertext with AES-128-ECB under key and removes
// PKCS#7 padding.
func DecryptFrame(key, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%BlockSize != 0 {
		return nil, ErrInvalidBlockSize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: new cipher: %w", err)
	}
	padded := make([]byte, len(ciphertext))
	for i := 0; i < len(ciphertext); i += BlockSize {
		block.Decrypt(padded[i:i+BlockSize], ciphertext[i:i+BlockSize])
	}
	return pkcs7Unpad(padded, BlockSize)
}

// DecryptSecure decrypts the inner "secure" payload of a protocol-301
// frame: AES-128-CBC with a 16-byte zero IV and key = nonce, PKCS#7
// unpadded, then gunzipped.
func DecryptSecure(nonce, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%BlockSize != 0 {
		return nil, ErrInvalidBlockSize
	}
	block, err := aes.NewCipher(nonce)
	if err != nil {
		return nil, fmt.Errorf("crypto: new cipher: %w", err)
	}
	iv := make([]byte, BlockSize)
	mode := cipher.NewCBCDecrypter(block, iv)
	padded := make([]byte, len(ciphertext))
	mode.CryptBlocks(padded, ciphertext)

	plain, err := pkcs7Unpad(padded, BlockSize)
	if err != nil {
		return nil, err
	}

	gz, err := gzip.NewReader(bytes.NewReader(plain))
	if err != nil {
		return nil, fmt.Errorf("crypto: gzip reader: %w", err)
	}
	defer gz.Close()

	out, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("crypto: gzip read: %w", err)
	}
	return out, nil
}
