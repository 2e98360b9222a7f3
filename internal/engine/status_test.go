package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusGraph(t *testing.T) {
	chain := []JobStatus{
		StatusSearching, StatusPendingAcceptance, StatusAccepted, StatusEnRoute,
		StatusArrived, StatusInProgress, StatusPaymentPending, StatusCompleted,
	}

	for i, from := range chain[:len(chain)-1] {
		next := chain[i+1]
		assert.True(t, from.CanAdvanceTo(next), "%s -> %s", from, next)

		// Every other target, including backwards moves and skips, is illegal.
		for _, target := range chain {
			if target == next {
				continue
			}
			assert.False(t, from.CanAdvanceTo(target), "%s -> %s must be illegal", from, target)
		}
	}
}

func TestStatusTerminalAndBidding(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusPaymentPending.Terminal())

	assert.True(t, StatusSearching.BiddingOpen())
	assert.True(t, StatusPendingAcceptance.BiddingOpen())
	assert.False(t, StatusAccepted.BiddingOpen())
	assert.False(t, StatusCancelled.BiddingOpen())

	assert.False(t, StatusCompleted.CanAdvanceTo(StatusSearching))
	assert.False(t, StatusCancelled.CanAdvanceTo(StatusAccepted))

	assert.True(t, StatusArrived.Valid())
	assert.True(t, StatusCancelled.Valid())
	assert.False(t, JobStatus("teleporting").Valid())
}
