//go:build windows

package overlappedio

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/openhcl/paravisor-core/internal/debug"
)

var reactorLog = debug.WithSource("overlappedio", debug.ComponentOverlappedIO)

// Reactor owns an IO completion port and the single goroutine that drains
// it, dispatching each completion to the channel registered for its
// *windows.Overlapped pointer. This is the Go-idiomatic substitute for a
// waker: instead of storing a Waker in InnerState and calling Wake on it,
// the reactor sends once on a buffered channel that the issuing goroutine
// is blocked receiving from.
type Reactor struct {
	port windows.Handle

	mu      sync.Mutex
	pending map[uintptr]chan completion
	closed  bool
}

type completion struct {
	bytesTransferred uint32
	err              error
}

// NewReactor creates a completion port not yet associated with any handle.
func NewReactor() (*Reactor, error) {
	port, err := windows.CreateIoCompletionPort(windows.InvalidHandle, 0, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("overlappedio: CreateIoCompletionPort: %w", err)
	}
	r := &Reactor{port: port, pending: make(map[uintptr]chan completion)}
	go r.run()
	return r, nil
}

// Register associates handle with this reactor's completion port. It must
// be called exactly once per handle before issuing overlapped IO on it.
func (r *Reactor) Register(handle windows.Handle) error {
	_, err := windows.CreateIoCompletionPort(handle, r.port, 0, 0)
	if err != nil {
		return fmt.Errorf("overlappedio: associating handle with completion port: %w", err)
	}
	return nil
}

// awaitCompletion registers a channel keyed by ov's address and blocks
// until the reactor goroutine reports the completion (or the caller's own
// synchronous result is delivered directly by issue, in which case this is
// never called).
func (r *Reactor) awaitCompletion(ov *windows.Overlapped) completion {
	key := uintptr(unsafe.Pointer(ov))
	ch := make(chan completion, 1)

	r.mu.Lock()
	r.pending[key] = ch
	r.mu.Unlock()

	return <-ch
}

func (r *Reactor) run() {
	for {
		var bytesTransferred uint32
		var key uintptr
		var ov *windows.Overlapped
		err := windows.GetQueuedCompletionStatus(r.port, &bytesTransferred, &key, &ov, windows.INFINITE)

		if ov == nil {
			r.mu.Lock()
			closed := r.closed
			r.mu.Unlock()
			if closed {
				return
			}
			reactorLog.Writef("completion port wait returned no overlapped pointer: %v", err)
			continue
		}

		opKey := uintptr(unsafe.Pointer(ov))
		r.mu.Lock()
		ch, ok := r.pending[opKey]
		if ok {
			delete(r.pending, opKey)
		}
		r.mu.Unlock()

		if !ok {
			reactorLog.Writef("completion for unregistered overlapped pointer %#x", opKey)
			continue
		}
		ch <- completion{bytesTransferred: bytesTransferred, err: err}
	}
}

// Close stops the reactor goroutine. Outstanding IO must be cancelled by
// the caller first; Close does not wait for in-flight completions.
func (r *Reactor) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return windows.CloseHandle(r.port)
}
