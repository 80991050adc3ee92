package monitorerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTradeErrorUnwrap(t *testing.T) {
	cause := errors.New("insufficient lamports")
	err := &TradeError{Op: "swap", Err: cause, ProgramLogs: []string{"custom program error: 0x1"}}

	wrapped := fmt.Errorf("worker iteration: %w", err)

	var tradeErr *TradeError
	assert.True(t, errors.As(wrapped, &tradeErr))
	assert.Equal(t, cause, errors.Unwrap(tradeErr))
	assert.Contains(t, tradeErr.Error(), "custom program error")
}

func TestFatalWorkerErrorMessage(t *testing.T) {
	err := &FatalWorkerError{MonitorID: 7, Err: errors.New("boom")}
	assert.Equal(t, "monitor 7 worker fault: boom", err.Error())
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Field: "percentage", Reason: "must be in (0, 1]"}
	assert.Equal(t, "validation failed for percentage: must be in (0, 1]", err.Error())
}
