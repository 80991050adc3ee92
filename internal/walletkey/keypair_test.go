package walletkey

import (
	"crypto/ed25519"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
)

func generateSecret(t *testing.T) string {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	assert.NoError(t, err)
	assert.Len(t, pub, ed25519.PublicKeySize)
	return base58.Encode(priv)
}

func TestFromBase58SecretDerivesPublic(t *testing.T) {
	secret := generateSecret(t)

	kp, err := FromBase58Secret(secret)
	assert.NoError(t, err)
	assert.NotEmpty(t, kp.Public)

	decodedPub, err := base58.Decode(kp.Public)
	assert.NoError(t, err)
	assert.Len(t, decodedPub, ed25519.PublicKeySize)
}

func TestDeriveMatchesKeypairPublic(t *testing.T) {
	secret := generateSecret(t)

	kp, err := FromBase58Secret(secret)
	assert.NoError(t, err)

	pub, err := Derive(secret)
	assert.NoError(t, err)
	assert.Equal(t, kp.Public, pub)
}

func TestFromBase58SecretRejectsBadLength(t *testing.T) {
	_, err := FromBase58Secret(base58.Encode([]byte("too short")))
	assert.Error(t, err)
}

func TestFromBase58SecretRejectsInvalidEncoding(t *testing.T) {
	_, err := FromBase58Secret("not-valid-base58-!!!")
	assert.Error(t, err)
}

func TestSignProducesVerifiableSignature(t *testing.T) {
	secret := generateSecret(t)
	kp, err := FromBase58Secret(secret)
	assert.NoError(t, err)

	msg := []byte("swap instruction payload")
	sig := kp.Sign(msg)

	pub := kp.Private.Public().(ed25519.PublicKey)
	assert.True(t, ed25519.Verify(pub, msg, sig))
}
