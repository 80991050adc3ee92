package txlistener

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeChecker struct {
	sequence []fakeStatus
	calls    int
}

type fakeStatus struct {
	status string
	txErr  error
	ok     bool
	err    error
}

func (f *fakeChecker) SignatureStatus(ctx context.Context, signature string) (string, error, bool, error) {
	idx := f.calls
	if idx >= len(f.sequence) {
		idx = len(f.sequence) - 1
	}
	f.calls++
	s := f.sequence[idx]
	return s.status, s.txErr, s.ok, s.err
}

func TestWaitForTransactionSucceedsOnConfirmed(t *testing.T) {
	checker := &fakeChecker{sequence: []fakeStatus{
		{ok: false},
		{ok: true, status: "confirmed"},
	}}
	l := NewTxListener(checker, WithPollInterval(time.Millisecond))

	conf, err := l.WaitForTransaction(context.Background(), "sig1")
	assert.NoError(t, err)
	assert.Equal(t, "confirmed", conf.Status)
	assert.Nil(t, conf.TxErr)
}

func TestWaitForTransactionSurfacesOnChainError(t *testing.T) {
	checker := &fakeChecker{sequence: []fakeStatus{
		{ok: true, status: "processed", txErr: errors.New("custom program error: 0x1")},
	}}
	l := NewTxListener(checker, WithPollInterval(time.Millisecond))

	conf, err := l.WaitForTransaction(context.Background(), "sig2")
	assert.NoError(t, err)
	assert.Error(t, conf.TxErr)
}

func TestWaitForTransactionTimesOut(t *testing.T) {
	checker := &fakeChecker{sequence: []fakeStatus{
		{ok: false},
	}}
	l := NewTxListener(checker, WithPollInterval(time.Millisecond), WithTimeout(5*time.Millisecond))

	_, err := l.WaitForTransaction(context.Background(), "sig3")
	assert.Error(t, err)
}

func TestWaitForTransactionPropagatesCheckerError(t *testing.T) {
	checker := &fakeChecker{sequence: []fakeStatus{
		{err: errors.New("rpc unreachable")},
	}}
	l := NewTxListener(checker, WithPollInterval(time.Millisecond))

	_, err := l.WaitForTransaction(context.Background(), "sig4")
	assert.Error(t, err)
}
