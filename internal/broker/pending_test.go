package broker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibs-source/serial-broker/internal/message"
)

func TestSweep_DisabledByDefault(t *testing.T) {
	b, _, remote := newPipeBroker(t, testConfig())
	_, err := b.Publish("a", []byte{1}, message.AtLeastOnce)
	require.NoError(t, err)
	readFrames(t, remote)

	assert.False(t, b.SweepEnabled())
	resent, expired := b.Sweep(time.Now().Add(24 * time.Hour))
	assert.Zero(t, resent)
	assert.Zero(t, expired)
	assert.Equal(t, 1, b.PendingCount())
	assert.Empty(t, readFrames(t, remote))
}

func TestSweep_RetryWithLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RetryInterval = time.Second
	cfg.MaxRetries = 2
	b, _, remote := newPipeBroker(t, cfg)

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return t0 }

	id, err := b.Publish("a", []byte{1, 2}, message.AtLeastOnce)
	require.NoError(t, err)
	original := readFrames(t, remote)
	require.Len(t, original, 1)

	resent, _ := b.Sweep(t0.Add(500 * time.Millisecond))
	assert.Zero(t, resent)

	resent, _ = b.Sweep(t0.Add(time.Second))
	assert.Equal(t, 1, resent)
	again := readFrames(t, remote)
	require.Len(t, again, 1)
	assert.Equal(t, original[0], again[0])
	assert.Equal(t, id, again[0].ID)

	resent, _ = b.Sweep(t0.Add(2 * time.Second))
	assert.Equal(t, 1, resent)
	resent, _ = b.Sweep(t0.Add(10 * time.Second))
	assert.Zero(t, resent, "retry budget exhausted")

	assert.True(t, b.IsPending(id))
	assert.Equal(t, uint64(2), b.Stats().Resent)
}

func TestSweep_Expiry(t *testing.T) {
	cfg := testConfig()
	cfg.AckExpiry = 5 * time.Second
	b, _, _ := newPipeBroker(t, cfg)

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return t0 }
	_, err := b.Publish("a", nil, message.AtLeastOnce)
	require.NoError(t, err)

	_, expired := b.Sweep(t0.Add(4 * time.Second))
	assert.Zero(t, expired)
	_, expired = b.Sweep(t0.Add(5 * time.Second))
	assert.Equal(t, 1, expired)
	assert.Equal(t, 0, b.PendingCount())
	assert.Equal(t, uint64(1), b.Stats().Expired)
}

func TestSweep_ResendFailureKeepsEntry(t *testing.T) {
	cfg := testConfig()
	cfg.RetryInterval = time.Second
	b, local, _ := newPipeBroker(t, cfg)

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return t0 }
	id, err := b.Publish("a", nil, message.AtLeastOnce)
	require.NoError(t, err)

	local.FailSends(errors.New("uart down"))
	resent, _ := b.Sweep(t0.Add(time.Second))
	assert.Zero(t, resent)
	assert.True(t, b.IsPending(id))
}
