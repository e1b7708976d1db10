package client

import (
	"context"
	"testing"
	"time"
)

func waitForSnapshot(t *testing.T, snapshots <-chan Snapshot, match func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case snapshot := <-snapshots:
			if match(snapshot) {
				return snapshot
			}
		case <-deadline:
			t.Fatal("timed out waiting for snapshot")
		}
	}
}

func TestPollerAppliesSnapshots(t *testing.T) {
	t.Parallel()
	server := newFakeServer(t)
	ticket := server.addTicket("No signal", "Connection Issue", StatusOpen)
	server.addMessage(ticket.ID, RoleUser, "my dish shows no signal")

	snapshots := make(chan Snapshot, 16)
	poller := NewPoller(server.client(), ticket.ID)
	poller.Interval = 20 * time.Millisecond
	poller.OnSnapshot = func(s Snapshot) { snapshots <- s }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poller.Start(ctx)
	defer poller.Stop()

	got := waitForSnapshot(t, snapshots, func(s Snapshot) bool { return len(s.Messages) == 1 })
	if got.Messages[0].Message != "my dish shows no signal" {
		t.Errorf("message: got %q", got.Messages[0].Message)
	}

	// New server-side message shows up on a later cycle: each snapshot
	// is a full replacement of the previous one.
	server.addMessage(ticket.ID, RoleAdmin, "have you checked the cable?")
	got = waitForSnapshot(t, snapshots, func(s Snapshot) bool { return len(s.Messages) == 2 })
	if got.Messages[1].SenderRole != RoleAdmin {
		t.Errorf("sender role: got %q, want %q", got.Messages[1].SenderRole, RoleAdmin)
	}
}

func TestPollerFetchesTicketDetailOnStart(t *testing.T) {
	t.Parallel()
	server := newFakeServer(t)
	ticket := server.addTicket("Blurry channels", "Technical Problem", StatusOngoing)

	details := make(chan Ticket, 1)
	poller := NewPoller(server.client(), ticket.ID)
	poller.Interval = 20 * time.Millisecond
	poller.OnTicket = func(tk Ticket) { details <- tk }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poller.Start(ctx)
	defer poller.Stop()

	select {
	case detail := <-details:
		if detail.Status != StatusOngoing {
			t.Errorf("status: got %q, want %q", detail.Status, StatusOngoing)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for ticket detail")
	}
}

func TestPollerDiscardsSupersededTicketResponse(t *testing.T) {
	t.Parallel()
	server := newFakeServer(t)
	oldTicket := server.addTicket("Old", "Billing Concern", StatusOpen)
	newTicket := server.addTicket("New", "Connection Issue", StatusOpen)
	server.addMessage(oldTicket.ID, RoleUser, "from the old ticket")
	server.addMessage(newTicket.ID, RoleUser, "from the new ticket")

	// Hold the old ticket's snapshot response until after the switch.
	gate := make(chan struct{})
	server.mu.Lock()
	server.snapshotGate[oldTicket.ID] = gate
	server.mu.Unlock()

	snapshots := make(chan Snapshot, 16)
	poller := NewPoller(server.client(), oldTicket.ID)
	poller.Interval = 20 * time.Millisecond
	poller.OnSnapshot = func(s Snapshot) { snapshots <- s }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poller.Start(ctx)
	defer poller.Stop()

	poller.Switch(ctx, newTicket.ID)

	waitForSnapshot(t, snapshots, func(s Snapshot) bool {
		return len(s.Messages) == 1 && s.Messages[0].TicketID == newTicket.ID
	})

	// Release the in-flight response for the superseded ticket and give
	// it time to (wrongly) apply.
	close(gate)
	time.Sleep(100 * time.Millisecond)

	got, ok := poller.Snapshot()
	if !ok {
		t.Fatal("expected a snapshot")
	}
	if got.Messages[0].TicketID != newTicket.ID {
		t.Errorf("snapshot regressed to superseded ticket %d", got.Messages[0].TicketID)
	}
}

func TestPollerKeepsLastGoodStateOnFailure(t *testing.T) {
	t.Parallel()
	server := newFakeServer(t)
	ticket := server.addTicket("Flaky", "Technical Problem", StatusOpen)
	server.addMessage(ticket.ID, RoleUser, "before the outage")

	snapshots := make(chan Snapshot, 16)
	errs := make(chan error, 16)
	poller := NewPoller(server.client(), ticket.ID)
	poller.Interval = 20 * time.Millisecond
	poller.OnSnapshot = func(s Snapshot) { snapshots <- s }
	poller.OnError = func(err error) { errs <- err }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poller.Start(ctx)
	defer poller.Stop()

	waitForSnapshot(t, snapshots, func(s Snapshot) bool { return len(s.Messages) == 1 })

	server.mu.Lock()
	server.failSnapshots = true
	server.mu.Unlock()

	select {
	case <-errs:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for poll error")
	}

	// Prior state untouched, error flagged, loop still alive.
	got, ok := poller.Snapshot()
	if !ok || len(got.Messages) != 1 {
		t.Fatalf("last good snapshot lost: %+v ok=%v", got, ok)
	}
	if poller.Err() == nil {
		t.Error("expected Err to be set during the outage")
	}

	// Recovery without any restart: the loop retries unconditionally.
	server.mu.Lock()
	server.failSnapshots = false
	server.mu.Unlock()
	server.addMessage(ticket.ID, RoleAdmin, "after the outage")

	waitForSnapshot(t, snapshots, func(s Snapshot) bool { return len(s.Messages) == 2 })
	if poller.Err() != nil {
		t.Errorf("Err not cleared after recovery: %v", poller.Err())
	}
}

func TestPollerDeliversSnapshotsInApplicationOrder(t *testing.T) {
	t.Parallel()
	server := newFakeServer(t)
	ticket := server.addTicket("Overlap", "Technical Problem", StatusOpen)
	server.addMessage(ticket.ID, RoleUser, "first")

	delivered := make(chan Snapshot, 16)
	poller := NewPoller(server.client(), ticket.ID)
	poller.OnSnapshot = func(s Snapshot) { delivered <- s }

	// Hold the first refresh's response in flight.
	gate := make(chan struct{})
	started := make(chan struct{})
	server.mu.Lock()
	server.snapshotGate[ticket.ID] = gate
	server.snapshotStarted = started
	server.mu.Unlock()

	go poller.RefreshNow(context.Background())
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("first refresh never reached the server")
	}

	// A second refresh overtakes it and gets delivered first.
	server.mu.Lock()
	delete(server.snapshotGate, ticket.ID)
	server.mu.Unlock()
	server.addMessage(ticket.ID, RoleAdmin, "second")
	poller.RefreshNow(context.Background())

	got := <-delivered
	if len(got.Messages) != 2 {
		t.Fatalf("first delivery: got %d messages, want 2", len(got.Messages))
	}

	// Releasing the overtaken response must not hand the consumer an
	// older snapshot after the newer one.
	close(gate)
	select {
	case stale := <-delivered:
		t.Fatalf("older snapshot delivered after a newer one: %+v", stale)
	case <-time.After(100 * time.Millisecond):
	}

	final, ok := poller.Snapshot()
	if !ok || len(final.Messages) != 2 {
		t.Fatalf("state regressed: %+v ok=%v", final, ok)
	}
}

func TestRefreshNowAppliesOutOfBand(t *testing.T) {
	t.Parallel()
	server := newFakeServer(t)
	ticket := server.addTicket("Quiet", "Billing Concern", StatusOpen)
	server.addMessage(ticket.ID, RoleUser, "hello")

	applied := make(chan Snapshot, 1)
	poller := NewPoller(server.client(), ticket.ID)
	poller.OnSnapshot = func(s Snapshot) { applied <- s }

	// No Start: RefreshNow alone must fetch and apply.
	poller.RefreshNow(context.Background())

	select {
	case got := <-applied:
		if len(got.Messages) != 1 {
			t.Errorf("messages: got %d, want 1", len(got.Messages))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for refresh")
	}
}
