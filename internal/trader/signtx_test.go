package trader

import (
	"crypto/ed25519"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignTransactionProducesVerifiableSignature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	assert.NoError(t, err)

	message := []byte("fake message bytes standing in for a compiled transaction message")
	unsigned := append([]byte{1}, make([]byte, signatureSize)...)
	unsigned = append(unsigned, message...)
	rawBase64 := base64.StdEncoding.EncodeToString(unsigned)

	signedBase64, err := signTransaction(rawBase64, priv)
	assert.NoError(t, err)

	signed, err := base64.StdEncoding.DecodeString(signedBase64)
	assert.NoError(t, err)

	sig := signed[1 : 1+signatureSize]
	gotMessage := signed[1+signatureSize:]
	assert.Equal(t, message, gotMessage)
	assert.True(t, ed25519.Verify(pub, gotMessage, sig))
}

func TestSignTransactionRejectsZeroSignatureSlots(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	assert.NoError(t, err)

	unsigned := append([]byte{0}, []byte("message")...)
	rawBase64 := base64.StdEncoding.EncodeToString(unsigned)

	_, err = signTransaction(rawBase64, priv)
	assert.Error(t, err)
}

func TestDecodeShortVecSingleByte(t *testing.T) {
	value, consumed, err := decodeShortVec([]byte{42, 0xAA})
	assert.NoError(t, err)
	assert.Equal(t, 42, value)
	assert.Equal(t, 1, consumed)
}

func TestDecodeShortVecMultiByte(t *testing.T) {
	encoded := encodeShortVec(300)
	value, consumed, err := decodeShortVec(encoded)
	assert.NoError(t, err)
	assert.Equal(t, 300, value)
	assert.Equal(t, len(encoded), consumed)
}
