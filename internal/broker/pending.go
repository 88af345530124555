package broker

import (
	"slices"
	"time"

	"github.com/ibs-source/serial-broker/internal/message"
)

type pendingEntry struct {
	msg       message.Message
	frame     []byte
	firstSent time.Time
	lastSent  time.Time
	resends   int
}

// Pending returns copies of the unacknowledged publishes ordered by id
func (b *Broker) Pending() []message.Message {
	b.mu.Lock()
	out := make([]message.Message, 0, len(b.pending))
	for _, e := range b.pending {
		out = append(out, e.msg.Clone())
	}
	b.mu.Unlock()

	slices.SortFunc(out, func(x, y message.Message) int {
		return int(x.ID) - int(y.ID)
	})
	return out
}

// PendingCount returns the number of unacknowledged publishes
func (b *Broker) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// IsPending reports whether id is awaiting an ack
func (b *Broker) IsPending(id uint16) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.pending[id]
	return ok
}

// SweepEnabled reports whether retry or expiry is configured
func (b *Broker) SweepEnabled() bool {
	return b.cfg.RetryInterval > 0 || b.cfg.AckExpiry > 0
}

// Sweep resends pending publishes whose last send is older than the retry
// interval and drops those first sent longer ago than the ack expiry. With
// both disabled it does nothing and entries stay pending until acked.
// Resends reuse the original id and frame bytes.
func (b *Broker) Sweep(now time.Time) (resent, expired int) {
	if !b.SweepEnabled() {
		return 0, 0
	}

	var frames [][]byte
	var ids []uint16

	b.mu.Lock()
	for id, e := range b.pending {
		if b.cfg.AckExpiry > 0 && now.Sub(e.firstSent) >= b.cfg.AckExpiry {
			delete(b.pending, id)
			expired++
			continue
		}
		if b.cfg.RetryInterval <= 0 || now.Sub(e.lastSent) < b.cfg.RetryInterval {
			continue
		}
		if b.cfg.MaxRetries > 0 && e.resends >= b.cfg.MaxRetries {
			continue
		}
		e.lastSent = now
		e.resends++
		frames = append(frames, e.frame)
		ids = append(ids, id)
	}
	b.stats.Expired += uint64(expired)
	b.mu.Unlock()

	if expired > 0 {
		b.log.Warn("Expired %d unacknowledged publishes", expired)
	}

	for i, frame := range frames {
		if err := b.send(frame); err != nil {
			b.log.Error("Failed to resend message %d: %v", ids[i], err)
			continue
		}
		resent++
		b.log.Debug("Resent message %d", ids[i])
	}

	b.mu.Lock()
	b.stats.Resent += uint64(resent)
	b.mu.Unlock()
	return resent, expired
}
