package notify

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCenter_PublishAndDrain(t *testing.T) {
	c := NewCenter(8, nil)

	c.Publish(LevelWarning, "ORG_FALLBACK", "using a default workspace")
	c.Publish(LevelError, "ROLE_SYNC_FAILED", "could not sync role")

	pending := c.Peek()
	require.Len(t, pending, 2)
	assert.Equal(t, "ORG_FALLBACK", pending[0].Code)
	assert.NotEmpty(t, pending[0].ID)
	assert.False(t, pending[0].CreatedAt.IsZero())

	drained := c.Drain()
	assert.Len(t, drained, 2)
	assert.Empty(t, c.Drain())
	assert.Empty(t, c.Peek())
}

func TestCenter_CapEvictsOldest(t *testing.T) {
	c := NewCenter(3, nil)

	for i := 0; i < 5; i++ {
		c.Publish(LevelInfo, fmt.Sprintf("CODE_%d", i), "msg")
	}

	pending := c.Peek()
	require.Len(t, pending, 3)
	assert.Equal(t, "CODE_2", pending[0].Code)
	assert.Equal(t, "CODE_4", pending[2].Code)
}
