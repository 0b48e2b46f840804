package ingeststate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCancelRegistry_CancelAndIsCancelled(t *testing.T) {
	r := NewCancelRegistry()

	assert.False(t, r.IsCancelled("batch-1"))

	r.Cancel("batch-1")
	assert.True(t, r.IsCancelled("batch-1"))
	assert.False(t, r.IsCancelled("batch-2"), "cancellation is per-batch")
}

func TestCancelRegistry_CancelIsIdempotent(t *testing.T) {
	r := NewCancelRegistry()

	r.Cancel("batch-1")
	r.Cancel("batch-1")

	assert.True(t, r.IsCancelled("batch-1"))
}

func TestCancelRegistry_ClearRemovesEntry(t *testing.T) {
	r := NewCancelRegistry()

	r.Cancel("batch-1")
	r.Clear("batch-1")

	assert.False(t, r.IsCancelled("batch-1"))
}

func TestCancelRegistry_Active(t *testing.T) {
	r := NewCancelRegistry()

	assert.Empty(t, r.Active())

	r.Cancel("batch-1")
	r.Cancel("batch-2")
	assert.ElementsMatch(t, []string{"batch-1", "batch-2"}, r.Active())

	r.Clear("batch-1")
	assert.ElementsMatch(t, []string{"batch-2"}, r.Active())
}
