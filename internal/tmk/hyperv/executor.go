package hyperv

import (
	"time"

	"github.com/openhcl/paravisor-core/internal/hvcall"
	"github.com/openhcl/paravisor-core/internal/timeslice"
)

// idleBackoff is how long execHandler sleeps between polls of an empty
// queue. The original runs this loop on a dedicated bare-metal VP with
// nothing else to schedule, where a true busy-spin costs nothing; this
// goroutine shares an OS thread with the rest of the Go runtime, so a
// real spin would peg a core for no reason.
const idleBackoff = 100 * time.Microsecond

// QueueCommandVp queues tok to run later on its target VP, picked up the
// next time that VP's Executor loop reaches the front of its queue in
// the matching VTL.
func (c *Context) QueueCommandVp(tok VpExecToken) error {
	cmd := tok.Command()
	if cmd == nil {
		return nil
	}
	globalCommands.push(tok.VpIndex, queuedCommand{cmd: cmd, vtl: tok.Vtl})
	return nil
}

// StartOnVp queues tok and blocks until a command has been queued; the
// actual synchronous wait for completion is left to the caller's own
// synchronization (e.g. a pchan reply), since Executor runs tok.cmd on a
// goroutine this call does not control.
func (c *Context) StartOnVp(tok VpExecToken) error {
	return c.QueueCommandVp(tok)
}

// StartRunningVpWithDefaultContext starts vpIndex (enabling its VTL with
// a default register context first) and queues tok to run there.
func (c *Context) StartRunningVpWithDefaultContext(tok VpExecToken) error {
	if err := c.EnableVpVtlWithDefaultContext(tok.VpIndex, tok.Vtl); err != nil {
		return err
	}
	return c.QueueCommandVp(tok)
}

// GeneralExecHandler runs the VTL0 executor loop for the calling
// goroutine, standing in for one VP. It never returns.
func GeneralExecHandler(invoker hvcall.Invoker, switcher VtlSwitcher) {
	execHandler(invoker, switcher, hvcall.Vtl0)
}

// SecureExecHandler runs the VTL1 executor loop for the calling
// goroutine.
func SecureExecHandler(invoker hvcall.Invoker, switcher VtlSwitcher) {
	execHandler(invoker, switcher, hvcall.Vtl1)
}

// execHandler is a busy-loop executor: it pulls the next command from
// its VP's queue, running it immediately if it targets the VTL this
// goroutine is currently standing in for, or switching VTL first if not.
func execHandler(invoker hvcall.Invoker, switcher VtlSwitcher, vtl hvcall.Vtl) {
	ctx := NewContext(invoker)
	ctx.Switcher = switcher
	if err := ctx.Init(vtl); err != nil {
		hvlog.AtVtl(toDebugVtl(vtl)).Writef("exec handler: init failed on vp: %v", err)
		return
	}
	rec := timeslice.NewRecorder()
	for {
		target, ok := globalCommands.frontVtl(ctx.VpIndex)
		if ok && target != ctx.Vtl {
			if target == hvcall.Vtl0 {
				ctx.SwitchToLowVtl()
			} else {
				ctx.SwitchToHighVtl()
			}
			continue
		}
		if cmd, ok := globalCommands.popIfVtl(ctx.VpIndex, ctx.Vtl); ok {
			rec.Record(timeslice.TsTmkExecDequeue)
			cmd(ctx)
			continue
		}
		time.Sleep(idleBackoff)
	}
}
