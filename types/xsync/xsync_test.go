package xsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatch(t *testing.T) {
	l := NewLatch()
	require.False(t, l.Test())

	go l.Trigger()
	select {
	case <-l.WaitChan():
		// Triggered.
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for latch to trigger.")
	}
	require.True(t, l.Test())

	// Triggering more than once is a no-op.
	require.NotPanics(t, func() { l.Trigger() })
	l.Wait() // Returns immediately once triggered.
}

func TestSendNoBlock(t *testing.T) {
	c := make(chan int, 1)
	assert.Equal(t, 0, SendNoBlock(c, 7))
	assert.Equal(t, 1, SendNoBlock(c, 11)) // Buffer full.
	assert.Equal(t, 7, <-c)

	close(c)
	assert.Equal(t, 2, SendNoBlock(c, 13)) // Closed channel.
}
