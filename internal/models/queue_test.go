package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(QueueStatusPending, QueueStatusApproved))
	assert.True(t, CanTransition(QueueStatusPending, QueueStatusRejected))
	assert.True(t, CanTransition(QueueStatusApproved, QueueStatusImported))
	assert.True(t, CanTransition(QueueStatusRejected, QueueStatusPending))
}

func TestImportedIsTerminal(t *testing.T) {
	for _, to := range []QueueStatus{QueueStatusPending, QueueStatusApproved, QueueStatusRejected, QueueStatusImported} {
		assert.False(t, CanTransition(QueueStatusImported, to), "IMPORTED -> %s must be blocked", to)
	}
}

func TestSkippingApprovalIsBlocked(t *testing.T) {
	assert.False(t, CanTransition(QueueStatusPending, QueueStatusImported))
	assert.False(t, CanTransition(QueueStatusRejected, QueueStatusImported))
	assert.False(t, CanTransition(QueueStatusApproved, QueueStatusPending))
}
