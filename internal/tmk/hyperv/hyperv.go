// Package hyperv implements the tmk platform interfaces on top of
// internal/hvcall, the concrete backend the test microkernel actually
// runs against on a Hyper-V partition.
package hyperv

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/openhcl/paravisor-core/internal/debug"
	"github.com/openhcl/paravisor-core/internal/hvcall"
	"github.com/openhcl/paravisor-core/internal/tmk"
)

var hvlog = debug.WithSource("tmk_hyperv", debug.ComponentTMK)

// toDebugVtl converts a hypercall-transport VTL into the debug package's
// own Vtl, so executor/context log records are tagged with the VTL the
// caller was acting on behalf of.
func toDebugVtl(vtl hvcall.Vtl) debug.Vtl {
	switch vtl {
	case hvcall.Vtl0:
		return debug.Vtl0
	case hvcall.Vtl1:
		return debug.Vtl1
	case hvcall.Vtl2:
		return debug.Vtl2
	default:
		return debug.VtlUnspecified
	}
}

type queuedCommand struct {
	cmd func(*Context)
	vtl hvcall.Vtl
}

type commandTable struct {
	mu    sync.Mutex
	queue map[uint32]*list.List
}

func newCommandTable() *commandTable {
	return &commandTable{queue: make(map[uint32]*list.List)}
}

func (t *commandTable) register(vpIndex uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.queue[vpIndex]; !ok {
		t.queue[vpIndex] = list.New()
		hvlog.Writef("registered command queue for vp %d", vpIndex)
	}
}

func (t *commandTable) push(vpIndex uint32, c queuedCommand) {
	t.mu.Lock()
	defer t.mu.Unlock()
	q, ok := t.queue[vpIndex]
	if !ok {
		q = list.New()
		t.queue[vpIndex] = q
	}
	q.PushBack(c)
}

// frontVtl returns the VTL the front-of-queue command for vpIndex needs,
// without removing it, or ok=false if the queue is empty.
func (t *commandTable) frontVtl(vpIndex uint32) (vtl hvcall.Vtl, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	q, exists := t.queue[vpIndex]
	if !exists || q.Len() == 0 {
		return 0, false
	}
	return q.Front().Value.(queuedCommand).vtl, true
}

// popIfVtl removes and returns the front command for vpIndex if, and
// only if, it targets vtl.
func (t *commandTable) popIfVtl(vpIndex uint32, vtl hvcall.Vtl) (func(*Context), bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	q, exists := t.queue[vpIndex]
	if !exists || q.Len() == 0 {
		return nil, false
	}
	front := q.Front()
	c := front.Value.(queuedCommand)
	if c.vtl != vtl {
		return nil, false
	}
	q.Remove(front)
	return c.cmd, true
}

var globalCommands = newCommandTable()

// VpExecToken is tmk.VpExecToken instantiated for this package's concrete
// Context type, the type every command queued through Context actually
// runs against.
type VpExecToken = tmk.VpExecToken[Context]

// NewVpExecToken creates a token targeting vpIndex running in vtl.
func NewVpExecToken(vpIndex uint32, vtl hvcall.Vtl) VpExecToken {
	return tmk.NewVpExecToken[Context](vpIndex, vtl)
}

// Context is the execution context passed to commands scheduled through
// Executor: the hypercall transport plus the VP/VTL this goroutine is
// standing in for.
type Context struct {
	Call     *hvcall.Call
	Switcher VtlSwitcher
	VpIndex  uint32
	Vtl      hvcall.Vtl
	vpCount  uint32
}

func (c *Context) String() string {
	return fmt.Sprintf("Context{vp=%d, vtl=%d}", c.VpIndex, c.Vtl)
}

// NewContext constructs an uninitialized context bound to invoker. Call
// Init before using it.
func NewContext(invoker hvcall.Invoker) *Context {
	return &Context{Call: hvcall.New(invoker)}
}

// Init performs the one-time setup sequence: initializes the hypercall
// page, discovers the VP count, registers a command queue per VP, and
// records the running VTL.
func (c *Context) Init(vtl hvcall.Vtl) error {
	c.Call.Initialize()
	count, err := c.VpCount()
	if err != nil {
		return err
	}
	c.vpCount = count
	for i := uint32(0); i < count; i++ {
		globalCommands.register(i)
	}
	c.Vtl = vtl
	idx, err := c.CurrentVp()
	if err != nil {
		return err
	}
	c.VpIndex = idx
	hvlog.AtVtl(toDebugVtl(vtl)).Writef("context initialized on vp %d", idx)
	return nil
}

// VpCount returns the total number of online VPs.
func (c *Context) VpCount() (uint32, error) {
	v, err := c.Call.GetRegister(hvcall.RegisterName(0x00040000), hvcall.CurrentVtl)
	if err != nil {
		return 0, tmk.FromHvError(err, hvlog.Writef)
	}
	return uint32(v), nil
}

// CurrentVp returns the index of the VP executing this goroutine.
func (c *Context) CurrentVp() (uint32, error) {
	v, err := c.Call.GetRegister(hvcall.RegisterName(0x00040001), hvcall.CurrentVtl)
	if err != nil {
		return 0, tmk.FromHvError(err, hvlog.Writef)
	}
	return uint32(v), nil
}
