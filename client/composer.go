package client

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrSendInFlight is returned when Send is called while a previous send
// has not resolved. The caller keeps its draft and retries later.
var ErrSendInFlight = errors.New("a send is already in flight")

// Composer stages exactly one unit of work (text, attachment, or both)
// and submits it exactly once.
//
// Invariants:
//   - An empty composer (no trimmed text, no attachment) never issues a
//     request; Send is a silent no-op.
//   - Text plus attachment go out as ONE multipart request, one message.
//   - One busy gate covers both the sending and uploading sub-states:
//     no concurrent double-submit.
//   - The "stopped typing" signal is sent only after the message has
//     been persisted, never before.
//   - On failure the staged text and attachment survive for a retry.
type Composer struct {
	client   *Client
	ticketID int64
	role     Role

	// Debouncer for this composer instance; Input feeds it.
	debouncer *Debouncer

	// refresh is called after a successful send, typically
	// Poller.RefreshNow, so the sender sees their message immediately.
	refresh func(context.Context)

	mu         sync.Mutex
	busy       bool
	uploading  bool
	text       string
	attachment *Attachment
}

func NewComposer(c *Client, ticketID int64, role Role) *Composer {
	composer := &Composer{
		client:   c,
		ticketID: ticketID,
		role:     role,
	}
	composer.debouncer = NewDebouncer(func(typing bool) {
		// Fire-and-forget; a lost typing signal self-corrects via the
		// server-side TTL.
		go c.SetTyping(context.Background(), ticketID, role, typing)
	})
	return composer
}

// SetRefresh wires the post-send out-of-band snapshot refresh.
func (co *Composer) SetRefresh(refresh func(context.Context)) {
	co.refresh = refresh
}

// Debouncer exposes the composer's typing debouncer (tests shrink its
// idle period).
func (co *Composer) Debouncer() *Debouncer {
	return co.debouncer
}

// Input updates the draft text and signals typing activity.
func (co *Composer) Input(text string) {
	co.mu.Lock()
	co.text = text
	co.mu.Unlock()
	co.debouncer.Touch()
}

// Attach stages a single attachment, replacing any previous one.
func (co *Composer) Attach(attachment Attachment) {
	co.mu.Lock()
	co.attachment = &attachment
	co.mu.Unlock()
}

func (co *Composer) ClearAttachment() {
	co.mu.Lock()
	co.attachment = nil
	co.mu.Unlock()
}

func (co *Composer) Text() string {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.text
}

func (co *Composer) HasAttachment() bool {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.attachment != nil
}

// Busy reports whether a send is outstanding.
func (co *Composer) Busy() bool {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.busy
}

// Uploading reports the attachment-in-flight sub-state, for
// differentiated feedback. It is always false when Busy is false.
func (co *Composer) Uploading() bool {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.uploading
}

// Close cancels the pending typing timer. Call when leaving the ticket
// so a stale timer cannot fire against it later.
func (co *Composer) Close() {
	co.debouncer.Cancel()
}

// Send submits the staged unit of work.
//
// Returns (nil, nil) for an empty composer without touching the
// network. Returns ErrSendInFlight if a send is already outstanding.
// On success the draft is cleared and the message returned; on failure
// the draft is preserved and the error returned.
func (co *Composer) Send(ctx context.Context) (*Message, error) {
	co.mu.Lock()
	text := strings.TrimSpace(co.text)
	attachment := co.attachment
	if text == "" && attachment == nil {
		co.mu.Unlock()
		return nil, nil
	}
	if co.busy {
		co.mu.Unlock()
		return nil, ErrSendInFlight
	}
	co.busy = true
	co.uploading = attachment != nil
	co.mu.Unlock()

	defer func() {
		co.mu.Lock()
		co.busy = false
		co.uploading = false
		co.mu.Unlock()
	}()

	var message *Message
	var err error
	if attachment != nil {
		message, err = co.client.SendWithAttachment(ctx, co.ticketID, text, *attachment)
	} else {
		message, err = co.client.SendText(ctx, co.ticketID, text)
	}
	if err != nil {
		// Draft stays staged for the retry.
		return nil, err
	}

	co.mu.Lock()
	co.text = ""
	co.attachment = nil
	co.mu.Unlock()

	// The message is persisted; now the typing flag may drop. Sending
	// the stop first would let a failed send clear the flag early, and
	// the idle timer could otherwise re-raise it after the thought has
	// ended.
	co.debouncer.Cancel()
	if err := co.client.SetTyping(ctx, co.ticketID, co.role, false); err != nil {
		// Non-fatal: the server-side TTL clears the flag anyway.
		_ = err
	}

	if co.refresh != nil {
		co.refresh(ctx)
	}

	return message, nil
}
