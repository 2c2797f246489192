//go:build windows

package overlappedio

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

// OverlappedFile wraps a handle opened with FILE_FLAG_OVERLAPPED and
// registered with a Reactor, issuing Read/Write/Ioctl operations that block
// the calling goroutine until the kernel posts completion (or the
// caller's context is cancelled).
//
// The original's IssueState/InnerState state machine (None / Issued /
// Waiting(waker) / Dropped(drop_fn)) exists to let a Future be polled and
// dropped without blocking a thread, and to defer-free a pinned allocation
// the kernel may still be writing into. Go has no poll-based Future and a
// garbage collector, so both concerns collapse: a goroutine just blocks on
// a channel until the reactor delivers the result, and if the caller's
// context is cancelled first, CancelIoEx is issued and the goroutine still
// waits out the (now-aborted) completion before returning, so the buffer
// is never touched by the kernel after this call returns.
type OverlappedFile struct {
	file    *os.File
	handle  windows.Handle
	reactor *Reactor
}

// NewOverlappedFile prepares file (already opened with
// FILE_FLAG_OVERLAPPED) for use with r.
func NewOverlappedFile(r *Reactor, file *os.File) (*OverlappedFile, error) {
	h := windows.Handle(file.Fd())
	if err := r.Register(h); err != nil {
		return nil, err
	}
	return &OverlappedFile{file: file, handle: h, reactor: r}, nil
}

// Close closes the underlying file. Callers must ensure no IO is
// outstanding first (e.g. by cancelling and awaiting it).
func (f *OverlappedFile) Close() error {
	return f.file.Close()
}

// Cancel issues CancelIoEx for every outstanding IO on this handle.
func (f *OverlappedFile) Cancel() error {
	if err := windows.CancelIoEx(f.handle, nil); err != nil && err != windows.ERROR_NOT_FOUND {
		return fmt.Errorf("overlappedio: CancelIoEx: %w", err)
	}
	return nil
}

// issue runs syscall against ov, then either returns its synchronous result
// or blocks (honoring ctx cancellation) until the reactor reports
// completion.
func (f *OverlappedFile) issue(ctx context.Context, offset int64, syscall func(ov *windows.Overlapped) error) (uint32, error) {
	var ov windows.Overlapped
	ov.Offset = uint32(offset)
	ov.OffsetHigh = uint32(offset >> 32)

	err := syscall(&ov)
	if err == nil || err != windows.ERROR_IO_PENDING {
		// Completed synchronously (success or hard failure): the status
		// block was not necessarily updated by the kernel in the error
		// case, so bytesTransferred is only meaningful on success.
		if err != nil {
			return 0, err
		}
		var transferred uint32
		if e := windows.GetOverlappedResult(f.handle, &ov, &transferred, false); e != nil {
			return 0, e
		}
		return transferred, nil
	}

	type result struct {
		n   uint32
		err error
	}
	done := make(chan result, 1)
	go func() {
		c := f.reactor.awaitCompletion(&ov)
		done <- result{n: c.bytesTransferred, err: c.err}
	}()

	select {
	case <-ctx.Done():
		_ = f.Cancel()
		r := <-done
		return r.n, ctx.Err()
	case r := <-done:
		return r.n, r.err
	}
}

// Read issues an overlapped ReadFile at offset into buf.
func (f *OverlappedFile) Read(ctx context.Context, offset int64, buf []byte) (uint32, error) {
	return f.issue(ctx, offset, func(ov *windows.Overlapped) error {
		var n uint32
		err := windows.ReadFile(f.handle, buf, &n, ov)
		if err == nil {
			return nil
		}
		return err
	})
}

// Write issues an overlapped WriteFile at offset from buf.
func (f *OverlappedFile) Write(ctx context.Context, offset int64, buf []byte) (uint32, error) {
	return f.issue(ctx, offset, func(ov *windows.Overlapped) error {
		var n uint32
		err := windows.WriteFile(f.handle, buf, &n, ov)
		if err == nil {
			return nil
		}
		return err
	})
}

// Ioctl issues an overlapped DeviceIoControl.
func (f *OverlappedFile) Ioctl(ctx context.Context, code uint32, in, out []byte) (uint32, error) {
	return f.issue(ctx, 0, func(ov *windows.Overlapped) error {
		var n uint32
		var inPtr, outPtr *byte
		if len(in) > 0 {
			inPtr = &in[0]
		}
		if len(out) > 0 {
			outPtr = &out[0]
		}
		return windows.DeviceIoControl(f.handle, code, inPtr, uint32(len(in)), outPtr, uint32(len(out)), &n, ov)
	})
}
