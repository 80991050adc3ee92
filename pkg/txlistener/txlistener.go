// Package txlistener polls a Solana RPC endpoint for transaction
// confirmation status, the same functional-options polling shape the
// teacher used for Ethereum receipt waits, retargeted at
// getSignatureStatuses.
package txlistener

import (
	"context"
	"fmt"
	"time"
)

// StatusChecker is satisfied by any client able to report whether a
// signature has confirmed, so tests can substitute a fake without
// depending on a concrete RPC client.
type StatusChecker interface {
	// SignatureStatus returns the commitment level reached by signature
	// ("processed", "confirmed", "finalized") and whether the transaction
	// errored on-chain. ok is false while the signature is still unseen.
	SignatureStatus(ctx context.Context, signature string) (status string, txErr error, ok bool, err error)
}

// TxListener waits for a submitted signature to reach a target commitment
// level, polling at a configurable interval up to a configurable timeout.
type TxListener struct {
	checker      StatusChecker
	pollInterval time.Duration
	timeout      time.Duration
}

// Option configures a TxListener at construction time.
type Option func(*TxListener)

// WithPollInterval overrides the default poll interval (2s).
func WithPollInterval(d time.Duration) Option {
	return func(l *TxListener) { l.pollInterval = d }
}

// WithTimeout overrides the default wait timeout (60s).
func WithTimeout(d time.Duration) Option {
	return func(l *TxListener) { l.timeout = d }
}

// NewTxListener builds a TxListener around checker, applying any options.
func NewTxListener(checker StatusChecker, opts ...Option) *TxListener {
	l := &TxListener{
		checker:      checker,
		pollInterval: 2 * time.Second,
		timeout:      60 * time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Confirmation describes the outcome of waiting for a signature.
type Confirmation struct {
	Signature string
	Status    string
	TxErr     error
}

// WaitForTransaction blocks until signature reaches at least "confirmed"
// commitment, the chain reports an on-chain error, the context is
// cancelled, or the timeout elapses.
func (l *TxListener) WaitForTransaction(ctx context.Context, signature string) (*Confirmation, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		status, txErr, ok, err := l.checker.SignatureStatus(ctx, signature)
		if err != nil {
			return nil, fmt.Errorf("check signature status for %s: %w", signature, err)
		}
		if ok {
			if txErr != nil {
				return &Confirmation{Signature: signature, Status: status, TxErr: txErr}, nil
			}
			if status == "confirmed" || status == "finalized" {
				return &Confirmation{Signature: signature, Status: status}, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait for transaction %s: %w", signature, ctx.Err())
		case <-ticker.C:
		}
	}
}
