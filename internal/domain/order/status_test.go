package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextStatus_PickupSequence(t *testing.T) {
	seq := []Status{StatusPending, StatusAccepted, StatusPreparing, StatusReady, StatusCompleted}
	for i := 0; i < len(seq)-1; i++ {
		next, ok := NextStatus(seq[i], TypePickup)
		assert.True(t, ok)
		assert.Equal(t, seq[i+1], next)
	}
}

func TestNextStatus_DeliverySequence(t *testing.T) {
	seq := []Status{StatusPending, StatusAccepted, StatusPreparing, StatusReady, StatusOutForDelivery, StatusCompleted}
	for i := 0; i < len(seq)-1; i++ {
		next, ok := NextStatus(seq[i], TypeDelivery)
		assert.True(t, ok)
		assert.Equal(t, seq[i+1], next)
	}
}

func TestNextStatus_ReadyDivergesByType(t *testing.T) {
	next, ok := NextStatus(StatusReady, TypePickup)
	assert.True(t, ok)
	assert.Equal(t, StatusCompleted, next)

	next, ok = NextStatus(StatusReady, TypeDelivery)
	assert.True(t, ok)
	assert.Equal(t, StatusOutForDelivery, next)
}

func TestNextStatus_TerminalAndForeignStates(t *testing.T) {
	for _, typ := range []Type{TypePickup, TypeDelivery} {
		_, ok := NextStatus(StatusCompleted, typ)
		assert.False(t, ok)
		_, ok = NextStatus(StatusCancelled, typ)
		assert.False(t, ok)
	}

	// out_for_delivery is not part of the pickup sequence.
	_, ok := NextStatus(StatusOutForDelivery, TypePickup)
	assert.False(t, ok)

	_, ok = NextStatus(Status("bogus"), TypeDelivery)
	assert.False(t, ok)
}

func TestCanCancel(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusAccepted, StatusPreparing, StatusReady, StatusOutForDelivery} {
		assert.True(t, CanCancel(s), string(s))
	}
	assert.False(t, CanCancel(StatusCompleted))
	assert.False(t, CanCancel(StatusCancelled))
	assert.False(t, CanCancel(Status("bogus")))
}

func TestTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusReady.Terminal())
}
