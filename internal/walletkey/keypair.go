// Package walletkey derives and encodes ed25519 Solana keypairs from their
// base58 secret representation, the wire format used throughout the
// monitor records' private-key storage.
package walletkey

import (
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
)

// Keypair is a derived Solana wallet: a private signing key and its
// base58-encoded public address.
type Keypair struct {
	Private ed25519.PrivateKey
	Public  string
}

// FromBase58Secret decodes a base58 ed25519 secret (the 64-byte seed+public
// form produced by the Solana CLI and solders) and derives the public
// address. It fails closed on malformed input rather than silently
// truncating or padding.
func FromBase58Secret(secret string) (*Keypair, error) {
	raw, err := base58.Decode(secret)
	if err != nil {
		return nil, fmt.Errorf("decode base58 secret: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("decode base58 secret: expected %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}

	priv := ed25519.PrivateKey(raw)
	pub := priv.Public().(ed25519.PublicKey)

	return &Keypair{
		Private: priv,
		Public:  base58.Encode(pub),
	}, nil
}

// Derive returns the base58 public address for a base58 secret, matching
// the invariant PrivateKey.public = derive(PrivateKey.secret).
func Derive(secret string) (string, error) {
	kp, err := FromBase58Secret(secret)
	if err != nil {
		return "", err
	}
	return kp.Public, nil
}

// Sign signs message with the keypair's private key.
func (k *Keypair) Sign(message []byte) []byte {
	return ed25519.Sign(k.Private, message)
}
