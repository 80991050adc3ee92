package trader

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
)

const signatureSize = 64

// decodeShortVec reads a Solana compact-u16 ("shortvec") length prefix,
// returning the decoded value and the number of bytes it occupied.
func decodeShortVec(data []byte) (value int, consumed int, err error) {
	for i := 0; i < 3 && i < len(data); i++ {
		b := data[i]
		value |= int(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return value, i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("malformed shortvec length prefix")
}

// signTransaction signs the message portion of a base64-encoded, unsigned
// Solana transaction (legacy or versioned — both share the same
// signature-section layout) and returns the signed transaction,
// base64-encoded and ready to submit.
//
// This assumes the wallet is the transaction's sole required signer
// (signature slot 0), which holds for Jupiter swaps and the transfers this
// package builds; a transaction requiring additional co-signers is out of
// scope.
func signTransaction(rawBase64 string, priv ed25519.PrivateKey) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(rawBase64)
	if err != nil {
		return "", fmt.Errorf("decode unsigned transaction: %w", err)
	}

	sigCount, sigsOffset, err := decodeShortVec(raw)
	if err != nil {
		return "", fmt.Errorf("parse signature count: %w", err)
	}
	if sigCount < 1 {
		return "", fmt.Errorf("transaction declares zero signature slots")
	}

	messageOffset := sigsOffset + sigCount*signatureSize
	if messageOffset > len(raw) {
		return "", fmt.Errorf("transaction shorter than declared signature slots")
	}
	message := raw[messageOffset:]

	signature := ed25519.Sign(priv, message)

	signed := make([]byte, len(raw))
	copy(signed, raw)
	copy(signed[sigsOffset:sigsOffset+signatureSize], signature)

	return base64.StdEncoding.EncodeToString(signed), nil
}
