// frame.go
//
// Call frames: the argument storage and lifecycle record of one function
// activation. Lifecycle runs Constructing -> Fulfilling -> Running ->
// Retiring; the Fulfilling -> Running transition belongs to dispatch, after
// every argument slot has been supplied.
//
// Storage layout is always paramCount+1 slots: slot 0 holds the resolved
// underlying function's own descriptor (so the storage handle alone can
// recover the complete callable), and arguments are 1-based after it.
// Ordinary frames carve the slots from the chunk stack; durable functions
// (and the rare frame too large for a chunker) get a size-locked heap block
// instead, because their variables may be captured by references that
// outlive the call.

package r3

type frameState uint8

const (
	frameConstructing frameState = iota
	frameFulfilling
	frameRunning
	frameRetiring
)

// FulfillMode selects the placeholder written into slots the specialization
// exemplar does not cover. Positional fulfillment uses the pending marker,
// which is invisible to reflection and must never leak past fulfillment.
// By-name (apply-style) fulfillment supplies every argument as a named
// variable up front, so unsupplied slots instead rest at absence, which is a
// legitimate observable value.
type FulfillMode uint8

const (
	FulfillPositional FulfillMode = iota
	FulfillByName
)

type Frame struct {
	ctx *Context

	gotten      Value // the callable as invoked, wrapping and all
	fn          *Func // resolved underlying function
	specializer *Func // resolved specialization, if any

	stackvars []Value // chunk-backed slots; nil when heap-backed
	varlist   *Block  // heap-backed slots; nil when chunk-backed
	args      []Value // the live slot run, whichever backing is in use
	stub      *Block  // reified view over chunk-backed storage, if taken

	param   int // fulfillment cursor: next unconsidered parameter, 1-based
	mode    FulfillMode
	state   frameState
	reified bool

	protect *Value // scratch pin, visited by collector scans while set

	prior   *Frame
	dspOrig int
	depth   int
}

func (f *Frame) NumArgs() int { return f.fn.NumParams() }

func (f *Frame) Fn() *Func { return f.fn }

func (f *Frame) Specializer() *Func { return f.specializer }

func (f *Frame) Prior() *Frame { return f.prior }

func (f *Frame) DspOrig() int { return f.dspOrig }

// Arg returns the n'th argument slot, 1-based. Debug builds fault on an
// out-of-range index; release builds do not check.
func (f *Frame) Arg(n int) *Value {
	if debugChecks {
		if n < 1 || n > f.NumArgs() {
			bug("frame argument index out of range")
		}
	}
	return &f.args[n]
}

// Protect pins a value for collector scans for as long as the frame runs.
// No push or pop involved; the pin ends when the frame is retired or the
// caller pins something else.
func (f *Frame) Protect(v *Value) { f.protect = v }

// -----------------------------
// Construction
// -----------------------------

// PushFrame builds the activation for callable: resolves its true shape,
// allocates argument storage, and pre-fills every slot so the frame is
// scan-safe the moment construction returns. Dispatch is a separate step;
// the frame is returned in the Fulfilling state with its cursor at the
// first parameter.
func (ctx *Context) PushFrame(callable Value, mode FulfillMode) *Frame {
	fn := callable.AsFunc()

	depth := 1
	if ctx.topFrame != nil {
		depth = ctx.topFrame.depth + 1
	}
	if depth > ctx.frameDepthLimit {
		fail("stack overflow")
	}

	f := &Frame{
		ctx:     ctx,
		gotten:  callable,
		mode:    mode,
		state:   frameConstructing,
		dspOrig: ctx.ds.dsp,
		depth:   depth,
	}

	underlying, specializer := ResolveUnderlying(fn)
	f.fn = underlying
	f.specializer = specializer

	numSlots := underlying.NumParams() + 1

	// Durable functions need storage that survives the call. And a frame
	// that could not fit even a fresh chunker must not reach the chunk
	// stack at all: it gets the heap treatment too, which is what keeps the
	// allocator's capacity fault statically prevented.
	if underlying.Durable || numSlots+1 > ctx.chunks.slots {
		f.varlist = &Block{
			Vals:      make([]Value, numSlots),
			FixedSize: true,
		}
		f.args = f.varlist.Vals
	} else {
		f.stackvars = ctx.chunks.push(numSlots)
		f.args = f.stackvars
	}

	// Slot 0 recovers the complete callable from the storage handle alone.
	f.args[0] = FuncVal(underlying)

	// Every remaining slot gets the exemplar value for its parameter when
	// one is pre-bound, else the placeholder the fulfillment mode calls
	// for. After this loop the frame is well-formed for any scan.
	placeholder := Pending()
	if mode == FulfillByName {
		placeholder = Absence()
	}
	for i := 1; i < numSlots; i++ {
		if specializer != nil && !specializer.Exemplar[i-1].IsAbsence() {
			f.args[i] = specializer.Exemplar[i-1]
		} else {
			f.args[i] = placeholder
		}
	}

	f.param = 1
	f.state = frameFulfilling

	f.prior = ctx.topFrame
	ctx.topFrame = f
	return f
}

// -----------------------------
// Fulfillment
// -----------------------------

// FillArg supplies the n'th argument. Valid only while fulfilling.
func (f *Frame) FillArg(n int, v Value) {
	assert(f.state == frameFulfilling, "argument filled outside fulfillment")
	assert(!v.IsPending() && !v.IsEnd(), "placeholder written as an argument")
	*f.Arg(n) = v
}

// FulfillFrom walks the parameter list positionally, consuming one supplied
// value per still-pending slot. Slots the specialization already covered are
// skipped: the caller never sees or supplies them. Returns the number of
// supplied values consumed.
func (f *Frame) FulfillFrom(supplied []Value) int {
	assert(f.state == frameFulfilling, "fulfillment after dispatch")
	used := 0
	for ; f.param <= f.NumArgs(); f.param++ {
		slot := f.Arg(f.param)
		if !slot.IsPending() {
			continue
		}
		if used == len(supplied) {
			break
		}
		*slot = supplied[used]
		used++
	}
	return used
}

// fulfilled reports whether every slot has a real resting value.
func (f *Frame) fulfilled() bool {
	for i := 1; i <= f.NumArgs(); i++ {
		if f.args[i].IsPending() {
			return false
		}
	}
	return true
}

// -----------------------------
// Dispatch
// -----------------------------

// Dispatch moves the frame from Fulfilling to Running and executes it:
// adaptation prologues outside-in, then the underlying body, then chain
// pipes inside-out. The thrown channel is observed between every stage; a
// thrown result stops ordinary processing and propagates unexamined.
func (ctx *Context) Dispatch(f *Frame) Value {
	assert(f.state == frameFulfilling, "dispatch of a frame not being fulfilled")
	if debugChecks {
		for i := 1; i <= f.NumArgs(); i++ {
			if f.args[i].IsPending() {
				bug("pending placeholder leaked into dispatch")
			}
		}
	}
	f.state = frameRunning

	// Unwrap the invoked callable, gathering the stages around the body.
	var preludes []Prelude
	var pipes []Pipe
	for w := f.gotten.AsFunc(); w != f.fn; w = w.Wrapped {
		switch w.Kind {
		case FuncAdapted:
			preludes = append(preludes, w.Prelude)
		case FuncChained:
			pipes = append(pipes, w.Pipe)
		case FuncSpecialized:
			// Already consumed during construction.
		default:
			bug("plain function above the underlying in a wrapper stack")
		}
	}

	for _, p := range preludes {
		if r := p(ctx, f); r.IsThrown() {
			return r
		}
	}

	out := f.fn.Impl(ctx, f)
	if out.IsThrown() {
		return out
	}

	// Chains apply innermost first.
	for i := len(pipes) - 1; i >= 0; i-- {
		out = pipes[i](ctx, out)
		if out.IsThrown() {
			return out
		}
	}
	return out
}

// -----------------------------
// Reification
// -----------------------------

// Reify exposes the frame's storage as a first-class value. For heap-backed
// frames the varlist itself is handed out and becomes collector-managed.
// Chunk-backed storage cannot outlive its chunk, so a stub block aliases the
// slots and is cut off (marked inaccessible) when the frame retires; an
// outstanding reference then fails cleanly instead of reading recycled
// slots.
func (f *Frame) Reify() Value {
	assert(f.state != frameRetiring, "reify of a retired frame")
	f.reified = true
	if f.varlist != nil {
		f.varlist.Managed = true
		return Value{Tag: VTFrame, Data: f.varlist}
	}
	if f.stub == nil {
		f.stub = &Block{Vals: f.stackvars, FixedSize: true}
	}
	return Value{Tag: VTFrame, Data: f.stub}
}

// FrameField reads slot n of a reified frame reference, faulting (catchably)
// if the storage has been retired out from under it.
func FrameField(ref Value, n int) Value {
	if ref.Tag != VTFrame {
		fail("expected frame reference")
	}
	b := ref.Data.(*Block)
	if b.Inaccessible {
		fail("frame storage is no longer accessible")
	}
	if n < 0 || n >= len(b.Vals) {
		fail("frame field index out of range")
	}
	return b.Vals[n]
}

// -----------------------------
// Retirement
// -----------------------------

// RetireFrame releases the top frame's storage on the normal return path.
// Chunk-backed storage must be the current top chunk; heap-backed storage is
// freed outright unless a reference was taken into it, in which case the
// collector owns it from here on.
func (ctx *Context) RetireFrame(f *Frame) {
	assert(f == ctx.topFrame, "retired frame is not the top frame")
	f.retireStorage(true)
	ctx.topFrame = f.prior
}

// abandon retires a frame the fault handler walked to: the native call stack
// holding its chunk handle was already jumped past, so the chunk stack is
// unwound separately and wholesale by the handler.
func (f *Frame) abandon() {
	f.retireStorage(false)
}

func (f *Frame) retireStorage(dropChunk bool) {
	assert(f.state != frameRetiring, "frame retired twice")
	f.state = frameRetiring

	if f.stackvars != nil {
		if f.stub != nil {
			// Outstanding references into the chunk go bad now, cleanly.
			f.stub.Inaccessible = true
			f.stub.Vals = nil
		}
		if dropChunk {
			f.ctx.chunks.drop(f.stackvars)
		}
		f.stackvars = nil
		f.args = nil
		return
	}

	if f.varlist != nil {
		if !f.reified {
			// Never exposed: free outright.
			f.varlist.Vals = nil
		}
		// Reified: the varlist stays valid for whoever still holds it;
		// reclamation is the collector's concern once it is unreachable.
		f.varlist = nil
		f.args = nil
	}
}
