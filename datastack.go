// datastack.go
//
// The evaluation stack: one growable sequence of values used to accumulate
// an unbounded number of intermediate results across nested evaluation.
// Expansion may relocate the backing storage, so values are always addressed
// by integer offset, never by pointer held across a push.
//
// Invariant (a caller obligation, not enforced here): every operation that
// pushes values for its own bookkeeping must restore the stack pointer to
// its pre-operation value on every exit path, including faults.

package r3

const (
	defaultStackInitial = 128
	defaultStackLimit   = 16384
	stackExpandBasis    = 128
)

type dataStack struct {
	vals  []Value // vals[0] is reserved; live values occupy 1..dsp
	dsp   int     // count of used slots, never negative
	limit int     // hard extent in slots; crossing it is a catchable fault
}

func (ds *dataStack) init(limit int) {
	if limit <= 0 {
		limit = defaultStackLimit
	}
	initial := defaultStackInitial
	if initial > limit {
		initial = limit
	}
	ds.vals = make([]Value, initial)
	ds.vals[0] = trash() // reserved, never read
	ds.dsp = 0
	ds.limit = limit
}

func (ds *dataStack) shutdown() {
	assert(ds.dsp == 0, "data stack not empty at shutdown")
	ds.vals = nil
}

// Depth is the current stack pointer: the number of live values.
func (ds *dataStack) depth() int { return ds.dsp }

func (ds *dataStack) push(v Value) int {
	if ds.dsp+1 >= len(ds.vals) {
		ds.expand(stackExpandBasis)
	}
	ds.dsp++
	ds.vals[ds.dsp] = v
	return ds.dsp
}

func (ds *dataStack) at(n int) *Value {
	assert(n >= 1 && n <= ds.dsp, "data stack index out of range")
	return &ds.vals[n]
}

// expand grows the backing storage by amount slots. Once the configured
// maximum extent would be crossed the stack can never grow again; this is
// what bounds runaway recursion, surfaced as a catchable overflow fault.
// Growth that lands exactly on the limit still succeeds.
func (ds *dataStack) expand(amount int) {
	if len(ds.vals)+amount > ds.limit {
		fail("stack overflow")
	}
	grown := make([]Value, len(ds.vals)+amount)
	copy(grown, ds.vals)
	ds.vals = grown
}

// popRangeInto removes every value above from. With a destination block the
// values are spliced in at the destination's current position (faulting if
// the block is write-protected) and dst's position advances past the insert;
// the updated view is returned. With dst nil a new locked block is
// materialized from the values. Either way the source range is removed.
func (ds *dataStack) popRangeInto(from int, dst *Value) Value {
	assert(from >= 0 && from <= ds.dsp, "bad data stack mark")
	n := ds.dsp - from
	vals := ds.vals[from+1 : ds.dsp+1]

	var out Value
	if dst != nil {
		b := dst.AsBlock()
		if b.Locked {
			fail("series is write-protected")
		}
		at := dst.Pos
		assert(at >= 0 && at <= len(b.Vals), "block position out of range")
		inserted := make([]Value, 0, len(b.Vals)+n)
		inserted = append(inserted, b.Vals[:at]...)
		inserted = append(inserted, vals...)
		inserted = append(inserted, b.Vals[at:]...)
		b.Vals = inserted
		dst.Pos = at + n
		out = *dst
	} else {
		copied := make([]Value, n)
		copy(copied, vals)
		out = BlockVal(&Block{Vals: copied, Locked: true})
	}

	ds.truncateTo(from)
	return out
}

func (ds *dataStack) truncateTo(dsp int) {
	assert(dsp >= 0 && dsp <= ds.dsp, "bad data stack rewind target")
	if debugChecks {
		for i := dsp + 1; i <= ds.dsp; i++ {
			ds.vals[i] = trash()
		}
	}
	ds.dsp = dsp
}

func (ds *dataStack) scan(visit func(*Value)) {
	for i := 1; i <= ds.dsp; i++ {
		visit(&ds.vals[i])
	}
}
