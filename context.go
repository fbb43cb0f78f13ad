// context.go
//
// One Context is one evaluator instance: it owns every piece of state the
// stack subsystem historically kept process-global — the chunk stack, the
// data stack, the frame stack, the thrown channel, the guard stack, and the
// cooperative signal flags. No package-level mutability; embedders that want
// several independent evaluators make several Contexts. A Context is owned
// by the one logical thread running it and does no internal locking.

package r3

const Version = "0.3.0"

const defaultFrameDepthLimit = 2048

// Signal flags, raised by the host (possibly from other goroutines would be
// a host bug — the model is cooperative and single-threaded) and polled by
// the evaluator between steps. There is no preemption.
type Signal uint32

const (
	SigRecycle Signal = 1 << iota // collector run requested
	SigHalt                       // user interrupt requested
)

// Options are the constructor knobs. Zero values select the defaults.
type Options struct {
	StackLimit      int // data stack hard extent, in slots
	FrameDepthLimit int // maximum nesting of call frames
	ChunkerSlots    int // chunker payload size; tests shrink it to force rollover
}

type Context struct {
	chunks chunkStack
	ds     dataStack

	topFrame *Frame

	thrownArg Value
	thrownSet bool

	guards []Value

	signals Signal

	frameDepthLimit int
}

func NewContext(opts Options) *Context {
	ctx := &Context{}
	ctx.chunks.init(opts.ChunkerSlots)
	ctx.ds.init(opts.StackLimit)
	ctx.frameDepthLimit = opts.FrameDepthLimit
	if ctx.frameDepthLimit <= 0 {
		ctx.frameDepthLimit = defaultFrameDepthLimit
	}
	ctx.thrownArg = trash()
	return ctx
}

// Shutdown asserts every stack has unwound: live frames, chunks, data stack
// values, guards, or an uncaught throw at shutdown all indicate a leak in
// the host's pairing of push and retire operations.
func (ctx *Context) Shutdown() {
	assert(ctx.topFrame == nil, "call frames still live at shutdown")
	assert(!ctx.thrownSet, "uncaught thrown value at shutdown")
	assert(len(ctx.guards) == 0, "guards still pushed at shutdown")
	ctx.chunks.shutdown()
	ctx.ds.shutdown()
}

// -----------------------------
// Data stack surface
// -----------------------------

func (ctx *Context) Depth() int { return ctx.ds.depth() }

func (ctx *Context) Push(v Value) int { return ctx.ds.push(v) }

func (ctx *Context) At(n int) *Value { return ctx.ds.at(n) }

// PopRangeInto removes every data stack value above from; see dataStack.
func (ctx *Context) PopRangeInto(from int, dst *Value) Value {
	return ctx.ds.popRangeInto(from, dst)
}

// -----------------------------
// Chunk stack surface
// -----------------------------

// PushChunk carves n slots from the chunk stack; see chunkStack.push.
func (ctx *Context) PushChunk(n int) []Value { return ctx.chunks.push(n) }

// DropChunk releases the top chunk; the handle must be the current top.
func (ctx *Context) DropChunk(handle []Value) { ctx.chunks.drop(handle) }

// ChunkStats reports chunkers obtained from and returned to the backing
// allocator, for measuring allocation behavior.
func (ctx *Context) ChunkStats() (allocated, freed int) {
	return ctx.chunks.chunkersAllocated, ctx.chunks.chunkersFreed
}

// -----------------------------
// Signals
// -----------------------------

func (ctx *Context) RaiseSignal(s Signal) { ctx.signals |= s }

// CheckSignals returns and clears the pending flags; the evaluator calls
// this between evaluation steps and acts on whatever was raised.
func (ctx *Context) CheckSignals() Signal {
	s := ctx.signals
	ctx.signals = 0
	return s
}

// -----------------------------
// Convenience call path
// -----------------------------

// Apply is the straight-line call path used by hosts and tests: build the
// frame, fulfill positionally from args, dispatch, retire. The stack pointer
// is restored on every exit; a fault unwinds via the caller's trap instead.
func (ctx *Context) Apply(callable Value, args ...Value) Value {
	f := ctx.PushFrame(callable, FulfillPositional)
	f.FulfillFrom(args)
	if !f.fulfilled() {
		ctx.RetireFrame(f)
		fail("missing arguments in call to " + f.fn.Name)
	}
	out := ctx.Dispatch(f)
	ctx.RetireFrame(f)
	return out
}
