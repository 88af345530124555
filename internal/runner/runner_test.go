package runner

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibs-source/serial-broker/internal/broker"
	"github.com/ibs-source/serial-broker/internal/config"
	"github.com/ibs-source/serial-broker/internal/log"
	"github.com/ibs-source/serial-broker/internal/message"
	"github.com/ibs-source/serial-broker/internal/transport"
)

func testConfig() *config.Config {
	return &config.Config{
		Broker: config.BrokerConfig{OverflowThreshold: 512, DefaultQoS: 1},
		Runtime: config.RuntimeConfig{
			PollInterval:  5 * time.Millisecond,
			ErrorBackoff:  10 * time.Millisecond,
			SweepInterval: 5 * time.Millisecond,
			DemoInterval:  time.Hour,
		},
	}
}

func discard() *log.Logger {
	return log.NewWithOutput(io.Discard)
}

func newLoopbackBroker(t *testing.T, cfg *config.Config) *broker.Broker {
	t.Helper()
	b := broker.New(transport.NewLoopback(), &cfg.Broker, discard())
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

// runAsync starts r and returns a cancel func plus the channel carrying Run's result
func runAsync(r *Runner) (context.CancelFunc, <-chan error) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	return cancel, done
}

func waitRun(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
		return nil
	}
}

type fakeTrimmer struct {
	calls atomic.Int32
	err   error
}

func (f *fakeTrimmer) Trim(context.Context) (int64, error) {
	f.calls.Add(1)
	return 3, f.err
}

type failingTransport struct {
	receives atomic.Int32
}

func (f *failingTransport) Open() error       { return nil }
func (f *failingTransport) Send([]byte) error { return nil }
func (f *failingTransport) Close() error      { return nil }
func (f *failingTransport) Receive(int) ([]byte, error) {
	f.receives.Add(1)
	return nil, errors.New("framing error on line")
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := testConfig()
	r := New(newLoopbackBroker(t, cfg), cfg, nil, discard())

	cancel, done := runAsync(r)
	time.Sleep(20 * time.Millisecond)
	cancel()

	assert.ErrorIs(t, waitRun(t, done), context.Canceled)
}

func TestRun_DeliversLoopedBackPublishes(t *testing.T) {
	cfg := testConfig()
	b := newLoopbackBroker(t, cfg)

	var mu sync.Mutex
	var got []message.Message
	for _, topic := range []string{TopicTemperature, TopicHumidity, TopicLED} {
		b.SubscribeFunc(topic, func(msg message.Message) error {
			mu.Lock()
			got = append(got, msg)
			mu.Unlock()
			return nil
		})
	}

	cfg.Runtime.Demo = true
	r := New(b, cfg, nil, discard())
	r.demoGap = time.Millisecond

	cancel, done := runAsync(r)
	defer cancel()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == len(demoRound) && b.PendingCount() == 0
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, waitRun(t, done), context.Canceled)

	mu.Lock()
	defer mu.Unlock()
	for i, m := range demoRound {
		assert.Equal(t, m.topic, got[i].Topic)
		assert.Equal(t, m.payload, got[i].Payload)
		assert.Equal(t, uint16(i+1), got[i].ID)
	}
	stats := b.Stats()
	assert.Equal(t, uint64(3), stats.Published)
	assert.Equal(t, uint64(3), stats.AcksReceived)
}

func TestRun_ClosedTransportEndsRun(t *testing.T) {
	cfg := testConfig()
	b := newLoopbackBroker(t, cfg)
	require.NoError(t, b.Close())

	r := New(b, cfg, nil, discard())
	_, done := runAsync(r)

	err := waitRun(t, done)
	require.Error(t, err)
	assert.ErrorIs(t, err, transport.ErrClosed)
	assert.Contains(t, err.Error(), "poll loop error")
}

func TestRun_ReceiveErrorsAreRetried(t *testing.T) {
	cfg := testConfig()
	ft := &failingTransport{}
	b := broker.New(ft, &cfg.Broker, discard())
	require.NoError(t, b.Init())

	r := New(b, cfg, nil, discard())
	cancel, done := runAsync(r)

	require.Eventually(t, func() bool { return ft.receives.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, waitRun(t, done), context.Canceled)
}

func TestRun_TrimLoop(t *testing.T) {
	cfg := testConfig()
	cfg.Redis.TrimInterval = 5 * time.Millisecond
	trimmer := &fakeTrimmer{}

	r := New(newLoopbackBroker(t, cfg), cfg, trimmer, discard())
	cancel, done := runAsync(r)

	require.Eventually(t, func() bool { return trimmer.calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, waitRun(t, done), context.Canceled)
}

func TestRun_TrimErrorKeepsRunning(t *testing.T) {
	cfg := testConfig()
	cfg.Redis.TrimInterval = 5 * time.Millisecond
	trimmer := &fakeTrimmer{err: errors.New("connection refused")}

	r := New(newLoopbackBroker(t, cfg), cfg, trimmer, discard())
	cancel, done := runAsync(r)

	require.Eventually(t, func() bool { return trimmer.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, waitRun(t, done), context.Canceled)
}

func TestRun_TrimDisabledWithoutInterval(t *testing.T) {
	cfg := testConfig()
	trimmer := &fakeTrimmer{}

	r := New(newLoopbackBroker(t, cfg), cfg, trimmer, discard())
	cancel, done := runAsync(r)
	time.Sleep(30 * time.Millisecond)
	cancel()

	assert.ErrorIs(t, waitRun(t, done), context.Canceled)
	assert.Zero(t, trimmer.calls.Load())
}

func TestRun_SweepResendsUnacked(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.RetryInterval = 10 * time.Millisecond
	cfg.Broker.MaxRetries = 2

	local, remote := transport.NewPipe()
	require.NoError(t, remote.Open())
	b := broker.New(local, &cfg.Broker, discard())
	require.NoError(t, b.Init())
	defer b.Close()

	_, err := b.Publish(TopicTemperature, []byte{25, 30, 28}, message.AtLeastOnce)
	require.NoError(t, err)

	r := New(b, cfg, nil, discard())
	cancel, done := runAsync(r)

	require.Eventually(t, func() bool { return b.Stats().Resent == 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, waitRun(t, done), context.Canceled)
	assert.Equal(t, 3, local.Sent())
	assert.True(t, b.IsPending(1))
}

func TestSleep(t *testing.T) {
	assert.True(t, sleep(context.Background(), 0))
	assert.True(t, sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleep(ctx, 0))
	assert.False(t, sleep(ctx, time.Hour))
}
