package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboundQueueReportsOverflow(t *testing.T) {
	q := newOutboundQueue(2)

	ok, full := q.push([]byte("a"))
	require.True(t, ok)
	require.False(t, full)
	ok, full = q.push([]byte("b"))
	require.True(t, ok)
	require.False(t, full)

	ok, full = q.push([]byte("c"))
	assert.False(t, ok)
	assert.True(t, full)
}

func TestOutboundQueueDrainsInOrder(t *testing.T) {
	q := newOutboundQueue(4)
	q.push([]byte("first"))
	q.push([]byte("second"))

	assert.Equal(t, "first", string(<-q.ch))
	assert.Equal(t, "second", string(<-q.ch))
}

func TestOutboundQueueClosedRejectsPush(t *testing.T) {
	q := newOutboundQueue(2)
	q.close()
	q.close() // idempotent

	ok, full := q.push([]byte("late"))
	assert.False(t, ok)
	assert.False(t, full)
}
