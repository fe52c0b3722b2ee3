package keepalive

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeepalive_Probes(t *testing.T) {
	var probes atomic.Int32
	k := New(time.Second, func(context.Context) error {
		probes.Add(1)
		return nil
	})

	require.NoError(t, k.Start())
	defer k.Stop()

	assert.Eventually(t, func() bool {
		return probes.Load() >= 1
	}, 3*time.Second, 50*time.Millisecond)
}

func TestKeepalive_DisabledWithZeroInterval(t *testing.T) {
	called := false
	k := New(0, func(context.Context) error {
		called = true
		return nil
	})

	require.NoError(t, k.Start())
	k.Stop()
	assert.False(t, called)
}

func TestKeepalive_StopWaitsForProbe(t *testing.T) {
	release := make(chan struct{})
	var done atomic.Bool

	k := New(time.Second, func(context.Context) error {
		<-release
		done.Store(true)
		return nil
	})
	require.NoError(t, k.Start())

	// Wait for the probe to start, then stop while it is running
	time.Sleep(1100 * time.Millisecond)
	go func() {
		time.Sleep(100 * time.Millisecond)
		close(release)
	}()

	k.Stop()
	assert.True(t, done.Load())
}
