//go:build windows

package overlappedio

import (
	"context"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

// afdPollHandleInfo mirrors the kernel's AFD_POLL_HANDLE_INFO structure.
type afdPollHandleInfo struct {
	handle windows.Handle
	events uint32
	status int32 // NTSTATUS
}

// afdPollInfo mirrors the kernel's AFD_POLL_INFO structure for a single
// handle (NumberOfHandles fixed at 1: one socket per AfdSocketReady).
type afdPollInfo struct {
	timeout         int64
	numberOfHandles uint32
	exclusive       uint32
	handles         [1]afdPollHandleInfo
}

const afdPollIoctl = 0x00012024 // IOCTL_AFD_POLL

// AfdSocketReady tracks readiness for a single socket via a single
// in-flight AFD poll IOCTL, reissued whenever new interest widens the
// requested event mask. This is the Go translation of the original's
// AfdSocketReadyOp/AfdSocketReadyInner pair: PollInterestSet's per-slot
// waker bookkeeping becomes a map of subscriber channels, and
// InnerState's Waiting/Dropped split collapses into ordinary goroutine
// blocking, per the same reasoning documented in OverlappedFile.
type AfdSocketReady struct {
	afdFile *OverlappedFile

	mu          sync.Mutex
	requested   PollEvents
	inFlight    PollEvents
	cancelled   bool
	subscribers map[chan PollEvents]PollEvents // chan -> requested events
	info        afdPollInfo
}

// NewAfdSocketReady prepares AFD polling for socket over afdDevice (an
// OverlappedFile opened against \Device\Afd\<endpoint> and already
// registered with a Reactor).
func NewAfdSocketReady(afdFile *OverlappedFile) *AfdSocketReady {
	return &AfdSocketReady{
		afdFile:     afdFile,
		subscribers: make(map[chan PollEvents]PollEvents),
	}
}

// Subscribe registers interest in events for this socket, returning a
// channel that receives the matching revents once readiness is observed.
// The channel is unregistered automatically after it fires; call
// Subscribe again to wait for the next readiness event.
func (a *AfdSocketReady) Subscribe(ctx context.Context, socket windows.Handle, events PollEvents) (chan PollEvents, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ch := make(chan PollEvents, 1)
	a.subscribers[ch] = events
	a.requested |= events

	if err := a.ensureIOLocked(ctx, socket); err != nil {
		delete(a.subscribers, ch)
		return nil, err
	}
	return ch, nil
}

// ensureIOLocked issues or reissues the poll IOCTL to cover a.requested,
// cancelling any in-flight IO with a narrower mask first. Must be called
// with a.mu held, matching the invariant that the per-socket lock is held
// across issuing or cancelling an IO.
func (a *AfdSocketReady) ensureIOLocked(ctx context.Context, socket windows.Handle) error {
	if a.requested == 0 || a.cancelled {
		return nil
	}
	if a.inFlight != 0 {
		if a.requested&a.inFlight == a.requested {
			return nil // already covered
		}
		if err := a.afdFile.Cancel(); err != nil {
			return err
		}
		a.cancelled = true
		return nil
	}

	a.info = afdPollInfo{
		numberOfHandles: 1,
		handles: [1]afdPollHandleInfo{{
			handle: socket,
			events: makePollHandleInfoEvents(a.requested),
		}},
	}
	a.inFlight = a.requested

	go a.issueAndComplete(ctx, socket)
	return nil
}

func (a *AfdSocketReady) issueAndComplete(ctx context.Context, socket windows.Handle) {
	in := unsafe.Slice((*byte)(unsafe.Pointer(&a.info)), int(unsafe.Sizeof(a.info)))
	out := in

	_, err := a.afdFile.Ioctl(ctx, afdPollIoctl, in, out)

	a.mu.Lock()
	defer a.mu.Unlock()

	wasCancelled := a.cancelled
	a.cancelled = false
	a.inFlight = 0

	if err != nil && !wasCancelled {
		reactorLog.Writef("afd poll ioctl failed: %v", err)
	}

	revents := parsePollHandleInfoEvents(a.info.handles[0].events)

	for ch, want := range a.subscribers {
		if revents&want != 0 {
			ch <- revents & want
			delete(a.subscribers, ch)
		}
	}

	if wasCancelled {
		// Reissue immediately for whatever interest remains after this
		// round's subscribers were satisfied.
		a.requested = unionRemaining(a.subscribers)
		_ = a.ensureIOLocked(ctx, socket)
	}
}

func unionRemaining(subs map[chan PollEvents]PollEvents) PollEvents {
	var u PollEvents
	for _, want := range subs {
		u |= want
	}
	return u
}
