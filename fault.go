// fault.go
//
// Two-tier failure model:
//
//   - fail(msg) raises a recoverable runtime fault (stack overflow, write to
//     a protected series, ...). It panics with an rtErr value and is caught
//     at a Trap boundary, which performs the manual rewind described below
//     and surfaces a *FaultError to the host.
//
//   - bug(msg) reports an internal-consistency violation (LIFO discipline
//     broken, thrown channel double-written, ...). Once stack bookkeeping is
//     untrustworthy no further operation is safe, so bugs are never caught:
//     Trap re-panics them.
//
// The rewind is explicit because a fault jumps over every return path between
// the fault site and the trap; nothing between them runs its normal cleanup.
// The handler itself walks the frame stack, chunk stack, data stack and guard
// stack back to the state captured by Mark.

package r3

// rtErr is the payload of a recoverable runtime fault. Raised with fail,
// consumed by Trap. Never exported; hosts see *FaultError.
type rtErr struct {
	msg string
}

// bugErr marks an unrecoverable internal-consistency violation.
type bugErr struct {
	msg string
}

func fail(msg string) { panic(rtErr{msg: msg}) }

func bug(msg string) { panic(bugErr{msg: "internal error: " + msg}) }

// assert is the debug-build invariant check. Release builds compile the
// whole call away together with its condition.
func assert(cond bool, msg string) {
	if debugChecks && !cond {
		bug(msg)
	}
}

// FaultError is the host-visible form of a recoverable fault.
type FaultError struct {
	Msg string
}

func (e *FaultError) Error() string { return "runtime fault: " + e.Msg }

// -----------------------------
// Marks and rewinding
// -----------------------------

// Mark captures the heights of every stack the subsystem owns. RewindTo
// restores them after a fault has jumped past the intervening cleanup.
type Mark struct {
	dsp      int
	chunkTop int
	guards   int
	frame    *Frame
}

func (ctx *Context) Mark() Mark {
	return Mark{
		dsp:      ctx.ds.dsp,
		chunkTop: ctx.chunks.topIdx,
		guards:   len(ctx.guards),
		frame:    ctx.topFrame,
	}
}

// RewindTo forcibly retires every frame pushed since the mark, drops the
// chunks carved since then, and truncates the data and guard stacks. Frames
// between the fault site and the mark were jumped past, so their storage is
// cleaned up here and nowhere else. Chunk-backed storage is not dropped
// frame-by-frame: the chunk stack is unwound wholesale to the marked top,
// which also covers chunks pushed by code that never built a frame.
func (ctx *Context) RewindTo(m Mark) {
	for f := ctx.topFrame; f != nil && f != m.frame; f = f.prior {
		f.abandon()
	}
	ctx.topFrame = m.frame

	ctx.chunks.dropTo(m.chunkTop)
	ctx.ds.truncateTo(m.dsp)

	if debugChecks {
		for i := m.guards; i < len(ctx.guards); i++ {
			ctx.guards[i] = trash()
		}
	}
	ctx.guards = ctx.guards[:m.guards]
}

// Trap runs body and converts a recoverable fault into an error, rewinding
// all subsystem stacks to their pre-body state first. Internal-consistency
// panics pass through untouched.
func (ctx *Context) Trap(body func()) (err error) {
	m := ctx.Mark()
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if e, ok := r.(rtErr); ok {
			ctx.RewindTo(m)
			err = &FaultError{Msg: e.msg}
			return
		}
		panic(r)
	}()
	body()
	return nil
}
