package client

import (
	"context"
	"sync"
	"time"
)

// DefaultPollInterval is the fixed cadence of the snapshot poll.
const DefaultPollInterval = 3 * time.Second

// Poller keeps a local view of one ticket's {detail, messages, typing}
// eventually consistent with the server.
//
// Rules, in order of importance:
//   - The fetched snapshot is authoritative and replaces local state
//     wholesale; there is no merging.
//   - A response for a superseded ticket id (or an older cycle of the
//     same id) is discarded, never applied.
//   - A failed cycle leaves the last good snapshot untouched, flags the
//     error, and the loop keeps polling at the same fixed interval.
//     There is no backoff: sessions are short-lived and the transport
//     is assumed reliable.
//
// Cycles run on a fixed interval, not fetch-then-wait, so a slow fetch
// may overlap the next one; the generation+sequence guard makes the
// out-of-order completions harmless.
type Poller struct {
	client *Client

	// Interval between snapshot fetches. Defaults to
	// DefaultPollInterval; tests shrink it.
	Interval time.Duration

	// OnTicket receives the ticket detail fetched once per Start.
	OnTicket func(Ticket)
	// OnSnapshot receives every applied snapshot, in application order.
	// It runs with the poller's lock held: keep it cheap and do not call
	// back into the Poller from it.
	OnSnapshot func(Snapshot)
	// OnError receives fetch failures. The loop continues regardless.
	OnError func(error)

	mu           sync.Mutex
	ticketID     int64
	generation   uint64
	nextSeq      uint64
	lastApplied  uint64
	cancel       context.CancelFunc
	snapshot     Snapshot
	haveSnapshot bool
	lastErr      error
}

func NewPoller(c *Client, ticketID int64) *Poller {
	return &Poller{
		client:   c,
		Interval: DefaultPollInterval,
		ticketID: ticketID,
	}
}

// Start begins polling. Calling Start again supersedes the previous
// loop: its pending and in-flight work can no longer touch state.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.generation++
	p.nextSeq = 0
	p.lastApplied = 0
	p.haveSnapshot = false
	p.lastErr = nil
	generation := p.generation
	ticketID := p.ticketID
	p.mu.Unlock()

	// Ticket detail loads once, independently of the snapshot loop.
	go p.fetchTicket(loopCtx, generation, ticketID)
	go p.loop(loopCtx, generation, ticketID)
}

// Switch repoints the poller at a different ticket and restarts it.
// In-flight responses for the old id are discarded by the generation
// guard, so they can never overwrite the new ticket's state.
func (p *Poller) Switch(ctx context.Context, ticketID int64) {
	p.mu.Lock()
	p.ticketID = ticketID
	p.mu.Unlock()
	p.Start(ctx)
}

// Stop cancels the loop. In-flight responses are discarded.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.generation++ // orphan anything still in flight
	p.mu.Unlock()
}

// Snapshot returns the last applied snapshot, if any cycle has
// succeeded since the last Start.
func (p *Poller) Snapshot() (Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot, p.haveSnapshot
}

// Err returns the most recent cycle failure, cleared by the next
// successful cycle.
func (p *Poller) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// RefreshNow fetches a snapshot immediately, outside the interval
// timer. Used by the composer after a successful send so the sender
// sees their own message without waiting for the next tick. It may race
// an ambient cycle; both are full replacements, so the newer sequence
// simply wins.
func (p *Poller) RefreshNow(ctx context.Context) {
	p.mu.Lock()
	generation := p.generation
	ticketID := p.ticketID
	p.nextSeq++
	seq := p.nextSeq
	p.mu.Unlock()

	p.fetchSnapshot(ctx, generation, ticketID, seq)
}

func (p *Poller) loop(ctx context.Context, generation uint64, ticketID int64) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	cycle := func() {
		p.mu.Lock()
		if p.generation != generation {
			p.mu.Unlock()
			return
		}
		p.nextSeq++
		seq := p.nextSeq
		p.mu.Unlock()

		// Fetch in its own goroutine: a slow response must not delay
		// the fixed interval.
		go p.fetchSnapshot(ctx, generation, ticketID, seq)
	}

	cycle()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cycle()
		}
	}
}

func (p *Poller) fetchTicket(ctx context.Context, generation uint64, ticketID int64) {
	ticket, err := p.client.Ticket(ctx, ticketID)

	p.mu.Lock()
	stale := p.generation != generation
	p.mu.Unlock()
	if stale {
		return
	}

	if err != nil {
		if p.OnError != nil {
			p.OnError(err)
		}
		return
	}
	if p.OnTicket != nil {
		p.OnTicket(*ticket)
	}
}

func (p *Poller) fetchSnapshot(ctx context.Context, generation uint64, ticketID int64, seq uint64) {
	snapshot, err := p.client.Messages(ctx, ticketID)

	p.mu.Lock()
	if p.generation != generation {
		// Superseded: the poller moved on to another ticket or was
		// stopped while this response was in flight.
		p.mu.Unlock()
		return
	}
	if err != nil {
		p.lastErr = err
		p.mu.Unlock()
		if p.OnError != nil {
			p.OnError(err)
		}
		return
	}
	if seq <= p.lastApplied {
		// An out-of-order completion from an older cycle; a newer
		// snapshot has already been applied.
		p.mu.Unlock()
		return
	}
	p.lastApplied = seq
	p.snapshot = *snapshot
	p.haveSnapshot = true
	p.lastErr = nil
	// Deliver before releasing the lock: two overlapping cycles must
	// hand their snapshots to the consumer in the order they were
	// applied, never reversed.
	if p.OnSnapshot != nil {
		p.OnSnapshot(*snapshot)
	}
	p.mu.Unlock()
}
