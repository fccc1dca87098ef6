// Package appudp implements the authenticated application UDP protocol:
// an HMAC-SHA256-signed datagram carrying either Serilog CLEF or a plain
// JSON log record.
package appudp

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
)

const signatureLen = 32

var (
	// ErrPacketTooShort is returned when a packet is smaller than the
	// 32-byte signature prefix.
	ErrPacketTooShort = errors.New("appudp: packet too short, minimum 32 bytes required for signature")
	// ErrInvalidSignature is returned when the computed HMAC does not
	// match the packet's signature prefix.
	ErrInvalidSignature = errors.New("appudp: invalid signature")
)

// Validator checks the HMAC-SHA256 signature prefixed to every packet:
// [32-byte signature][payload].
type Validator struct {
	secret []byte
}

// NewValidator builds a Validator keyed by secret.
func NewValidator(secret string) *Validator {
	return &Validator{secret: []byte(secret)}
}

// Validate strips and checks the signature prefix, returning the payload
// on success.
func (v *Validator) Validate(packet []byte) ([]byte, error) {
	if len(packet) < signatureLen {
		return nil, ErrPacketTooShort
	}
	signature, payload := packet[:signatureLen], packet[signatureLen:]

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	expected := mac.Sum(nil)

	if !hmac.Equal(signature, expected) {
		return nil, ErrInvalidSignature
	}
	return payload, nil
}

// Sign computes the HMAC-SHA256 signature for payload, for use by test
// clients.
func (v *Validator) Sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	return mac.Sum(nil)
}
