package appudp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSignAndValidateRoundTrip(t *testing.T) {
	v := NewValidator("test-secret")
	payload := []byte("test log message")

	signature := v.Sign(payload)
	packet := append(append([]byte(nil), signature...), payload...)

	got, err := v.Validate(packet)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestValidateRejectsInvalidSignature(t *testing.T) {
	v := NewValidator("test-secret")
	payload := []byte("test log message")

	packet := append(make([]byte, signatureLen), payload...)
	_, err := v.Validate(packet)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestValidateRejectsShortPacket(t *testing.T) {
	v := NewValidator("test-secret")
	_, err := v.Validate([]byte("too short"))
	assert.ErrorIs(t, err, ErrPacketTooShort)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	signer := NewValidator("secret-a")
	verifier := NewValidator("secret-b")
	payload := []byte("hello")

	packet := append(signer.Sign(payload), payload...)
	_, err := verifier.Validate(packet)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
