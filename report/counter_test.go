package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlowCounter_SaturatingDecrement(t *testing.T) {
	c := NewFlowCounter(1)

	require.NoError(t, c.TryDecrement())
	// Exhausted: decrement saturates instead of blocking or failing.
	require.NoError(t, c.TryDecrement())
	require.NoError(t, c.TryDecrement())

	assert.Equal(t, int64(0), c.Outstanding())
}

func TestFlowCounter_ReleaseAndOutstanding(t *testing.T) {
	c := NewFlowCounter(0)

	c.Release(3)
	require.NoError(t, c.TryDecrement())

	// Two units were left unconsumed; asking released one more.
	assert.Equal(t, int64(2), c.Outstanding())
	assert.Equal(t, int64(3), c.Outstanding())
}
