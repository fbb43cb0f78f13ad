// scan.go
//
// The collector scanning contract. The tracing collector is an external
// collaborator; what it needs from this subsystem is a traversal over every
// root only the evaluator knows about: frame slots (which may live on the
// chunk stack, referenced by nothing), pending intermediates on the data
// stack, guarded values, and the thrown payload sitting in its side channel.
//
// Every visited slot is either a well-formed tagged value or an explicit
// placeholder (pending/absence/end), never raw garbage. The one exception
// is the narrow window between a chunk push and the caller finishing slot
// population; debug builds fill that window with poison so a premature scan
// is detectable by AssertScanSafe rather than silently tolerated.

package r3

// ScanFunc visits one live root slot.
type ScanFunc func(v *Value)

// ScanRoots walks every live slot this subsystem keeps alive: the frame
// stack (descriptor slot, argument slots, per-frame pin, invoked callable),
// the chunk stack, the data stack, the guard stack, and the thrown payload.
// Frame slots backed by chunks are visited twice (once through the frame,
// once through the chunk walk); marking is idempotent so that is harmless.
func (ctx *Context) ScanRoots(visit ScanFunc) {
	for f := ctx.topFrame; f != nil; f = f.prior {
		visit(&f.gotten)
		if f.args != nil {
			for i := range f.args {
				visit(&f.args[i])
			}
		}
		if f.protect != nil {
			visit(f.protect)
		}
	}

	ctx.chunks.scan(visit)
	ctx.ds.scan(visit)

	for i := range ctx.guards {
		visit(&ctx.guards[i])
	}

	if ctx.thrownSet {
		visit(&ctx.thrownArg)
	}
}

// AssertScanSafe is the debug check that no poison is reachable, i.e. no
// push-to-fill window is open. Collection at a suspension point must pass.
func (ctx *Context) AssertScanSafe() {
	if !debugChecks {
		return
	}
	ctx.ScanRoots(func(v *Value) {
		if !wellFormed(v) {
			bug("collector scan observed an unfilled slot")
		}
	})
}
