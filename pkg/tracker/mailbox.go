package tracker

import (
	"context"

	"github.com/unklstewy/flightwatch/pkg/flight"
)

// Mailbox is a single-slot handoff where the newest snapshot replaces any
// unread one. Put never blocks.
//
// A Mailbox has one producer (the tracker loop). Any number of goroutines
// may read, but each snapshot is delivered to only one of them.
type Mailbox struct {
	ch chan flight.Snapshot
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{ch: make(chan flight.Snapshot, 1)}
}

// Put stores snap, discarding an unread previous value.
func (m *Mailbox) Put(snap flight.Snapshot) {
	for {
		select {
		case m.ch <- snap:
			return
		default:
		}
		// Slot full: drop the stale value and try again.
		select {
		case <-m.ch:
		default:
		}
	}
}

// C returns the receive side, for use in select statements.
func (m *Mailbox) C() <-chan flight.Snapshot {
	return m.ch
}

// TryTake returns the pending snapshot without waiting.
func (m *Mailbox) TryTake() (flight.Snapshot, bool) {
	select {
	case snap := <-m.ch:
		return snap, true
	default:
		return flight.Snapshot{}, false
	}
}

// Take waits for the next snapshot or until ctx is done.
func (m *Mailbox) Take(ctx context.Context) (flight.Snapshot, error) {
	select {
	case snap := <-m.ch:
		return snap, nil
	case <-ctx.Done():
		return flight.Snapshot{}, ctx.Err()
	}
}
