package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("request swap: %w", Errorf(ErrCodeConflict, "slot %d is locked", 4))

	assert.Equal(t, ErrCodeConflict, CodeOf(err))
	assert.True(t, Is(err, ErrCodeConflict))
	assert.False(t, Is(err, ErrCodeNotFound))
	assert.True(t, IsRetryable(err))
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, ErrorCode(""), CodeOf(fmt.Errorf("boom")))
	assert.False(t, Is(nil, ErrCodeNotFound))
	assert.False(t, IsRetryable(fmt.Errorf("boom")))
}

func TestRetryable_OnlyConflict(t *testing.T) {
	codes := []ErrorCode{
		ErrCodeValidation, ErrCodeNotFound, ErrCodeNotOwner, ErrCodeInvalidState,
		ErrCodeSelfSwap, ErrCodeAlreadyResolved, ErrCodeForbiddenTransition,
	}
	for _, code := range codes {
		t.Run(string(code), func(t *testing.T) {
			assert.False(t, (&Error{Code: code}).Retryable())
		})
	}
	assert.True(t, (&Error{Code: ErrCodeConflict}).Retryable())
}

func TestError_WithDoesNotMutateReceiver(t *testing.T) {
	base := Errorf(ErrCodeNotFound, "event 1 not found")
	withID := base.With("id", "1")

	assert.Nil(t, base.Details)
	assert.Equal(t, "1", withID.Details["id"])
	assert.Equal(t, "NOT_FOUND: event 1 not found", withID.Error())
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("event", 42)
	assert.Equal(t, ErrCodeNotFound, err.Code)
	assert.Equal(t, "event 42 not found", err.Message)
	assert.Equal(t, "42", err.Details["id"])
}

func TestSwapStatus_Terminal(t *testing.T) {
	assert.False(t, SwapPending.Terminal())
	assert.True(t, SwapAccepted.Terminal())
	assert.True(t, SwapRejected.Terminal())
	assert.True(t, SwapCancelled.Terminal())
}

func TestEventStatus_Valid(t *testing.T) {
	assert.True(t, StatusBusy.Valid())
	assert.True(t, StatusLocked.Valid())
	assert.False(t, EventStatus("SWAP_PENDING").Valid())
	assert.False(t, EventStatus("").Valid())
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "alice@example.com", NormalizeEmail("  Alice@Example.COM "))
	// "e" + combining acute composes to a single rune under NFC.
	assert.Equal(t, "caf\u00e9", NormalizeText("cafe\u0301"))
}
