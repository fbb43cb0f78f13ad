// thrown.go
//
// The single-slot side channel for non-local control transfer. A throw has
// two parts: the label value that propagates up through ordinary returns
// (flagged as thrown so every evaluation step can cheaply test it) and the
// payload, which is stored off to the side here. Only one transfer can be
// in flight at a time — evaluation is single-threaded and cooperative, and
// a second throw without an intervening catch means the first was mishandled
// somewhere, which is a bug, not a queueing situation.

package r3

// ConvertToThrown flags label as thrown and stashes arg as the payload.
// The occupancy check comes before any other state change.
func (ctx *Context) ConvertToThrown(label *Value, arg Value) {
	if ctx.thrownSet {
		bug("thrown channel written while occupied")
	}
	assert(!label.IsThrown(), "label is already thrown")
	assert(!arg.IsThrown(), "thrown payload is itself thrown")

	label.flags |= flagThrown
	ctx.thrownArg = arg
	ctx.thrownSet = true
}

// CatchThrown clears the thrown flag on label, copies the payload into out,
// and resets the channel. Catching with nothing pending is a bug. out and
// label may be the same cell.
func (ctx *Context) CatchThrown(out *Value, label *Value) {
	if !ctx.thrownSet {
		bug("catch with no thrown value pending")
	}
	assert(label.IsThrown(), "catch of a label that was not thrown")

	label.flags &^= flagThrown
	*out = ctx.thrownArg
	ctx.thrownArg = trash()
	ctx.thrownSet = false
}

// ThrowPending reports whether a transfer is in flight. The evaluator polls
// the label flag for propagation; this is for the trap/handler side.
func (ctx *Context) ThrowPending() bool { return ctx.thrownSet }

// DropThrown discards an in-flight transfer during a fault rewind, where the
// label carrying the flag may have been jumped past and lost.
func (ctx *Context) DropThrown() {
	ctx.thrownArg = trash()
	ctx.thrownSet = false
}
