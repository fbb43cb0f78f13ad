// chunk.go
//
// Segmented stack-disciplined bump allocator for fixed-role value arrays
// (function arglists, mostly). Slots are carved sequentially out of fixed
// "chunker" blocks, so a push only touches the backing allocator when it has
// to step into a new chunker — and even then usually reuses the single spare
// chunker kept warm from a prior expansion. Push/drop is strictly LIFO.
//
// Chunk headers live in their own small stack addressed by index; the
// chunker payload holds only value slots. The slot immediately after a
// chunk's run always holds an end marker, so a scan of the run halts
// without a stored length.

package r3

const (
	// defaultChunkerSlots is the payload of one chunker, in value slots.
	// Overridable per Context for tests that want to force chunker rollover.
	defaultChunkerSlots = 126
)

type chunker struct {
	next    *chunker
	payload []Value // fixed length, set once at allocation
}

// chunk records one carved run. size/payloadLeft are in slots, mirroring the
// byte accounting of a raw carve: size includes the run's end-marker slot,
// and payloadLeft is what remained of the owning chunker at carve time.
type chunk struct {
	ck          *chunker
	off         int // first value slot in ck.payload
	n           int // value slots in the run (excludes the end marker)
	size        int // n + 1, the end marker included
	payloadLeft int // chunker slots remaining past this chunk
	prev        int // header index of the previously-topmost chunk
}

type chunkStack struct {
	root    *chunker
	headers []chunk
	topIdx  int
	slots   int // payload slots per chunker

	// stats for the bump-allocator equivalence property
	chunkersAllocated int
	chunkersFreed     int
}

func (cs *chunkStack) newChunker() *chunker {
	ck := &chunker{payload: make([]Value, cs.slots)}
	if debugChecks {
		for i := range ck.payload {
			ck.payload[i] = trash()
		}
	}
	cs.chunkersAllocated++
	return ck
}

// init allocates the first chunker and installs a zero-length base chunk as
// the initial top, so push and drop never special-case an empty stack.
func (cs *chunkStack) init(slots int) {
	if slots <= 0 {
		slots = defaultChunkerSlots
	}
	cs.slots = slots
	cs.root = cs.newChunker()
	cs.headers = make([]chunk, 1, 16)
	cs.headers[0] = chunk{
		ck:          cs.root,
		off:         0,
		n:           0,
		size:        1,
		payloadLeft: slots - 1,
		prev:        -1,
	}
	cs.root.payload[0] = endVal()
	cs.topIdx = 0
}

// shutdown asserts the stack has unwound to the base chunk; anything else is
// a leak. At most one spare chunker may still be warm.
func (cs *chunkStack) shutdown() {
	assert(cs.topIdx == 0, "chunk stack not unwound at shutdown")
	if cs.root.next != nil {
		assert(cs.root.next.next == nil, "more than one spare chunker retained")
		cs.root.next = nil
		cs.chunkersFreed++
	}
	cs.root = nil
	cs.headers = nil
}

func (cs *chunkStack) top() *chunk { return &cs.headers[cs.topIdx] }

// push carves storage for n value slots and returns the run. The slots start
// in the unfilled poison state; the caller must fill every one before any
// collector scan can observe them. No allocation happens unless the current
// chunker lacks headroom, and then only if the spare chunker is absent.
func (cs *chunkStack) push(n int) []Value {
	assert(n >= 0, "negative chunk size")
	size := n + 1 // the run plus its end-marker slot

	t := cs.top()
	var c chunk
	if t.payloadLeft >= size {
		// Carve in place, directly after the top chunk's end marker.
		c = chunk{
			ck:          t.ck,
			off:         t.off + t.size,
			n:           n,
			size:        size,
			payloadLeft: t.payloadLeft - size,
			prev:        cs.topIdx,
		}
	} else {
		// The topmost chunker is out of headroom. If the request cannot fit
		// a fresh chunker's full payload either, no chunker ever could: the
		// caller was obliged to size-check and use heap storage instead.
		if size > cs.slots {
			bug("chunk request exceeds chunker payload")
		}

		ck := t.ck
		if ck.next == nil {
			ck.next = cs.newChunker()
		} else {
			assert(ck.next.next == nil, "more than one spare chunker retained")
		}
		c = chunk{
			ck:          ck.next,
			off:         0,
			n:           n,
			size:        size,
			payloadLeft: cs.slots - size,
			prev:        cs.topIdx,
		}
	}

	c.ck.payload[c.off+c.n] = endVal()
	if debugChecks {
		for i := 0; i < c.n; i++ {
			c.ck.payload[c.off+i] = trash()
		}
	}

	cs.topIdx++
	if cs.topIdx == len(cs.headers) {
		cs.headers = append(cs.headers, c)
	} else {
		cs.headers[cs.topIdx] = c
	}
	return c.ck.payload[c.off : c.off+c.n : c.off+c.n]
}

// drop releases the top chunk. The handle is the run returned by push; it is
// only consulted in debug builds, as a check that the caller is dropping the
// chunk it thinks it is (after a fault-driven rewind the handle may be gone,
// so dropTo below skips the check).
func (cs *chunkStack) drop(handle []Value) {
	if debugChecks && handle != nil {
		t := cs.top()
		assert(len(handle) == t.n, "dropped chunk is not the top chunk")
		if t.n > 0 {
			assert(&handle[0] == &t.ck.payload[t.off], "dropped chunk is not the top chunk")
		}
	}
	cs.dropTop()
}

func (cs *chunkStack) dropTop() {
	assert(cs.topIdx > 0, "chunk stack underflow")
	c := cs.top()

	if debugChecks {
		for i := 0; i < c.n; i++ {
			c.ck.payload[c.off+i] = trash()
		}
	}

	if c.off == 0 {
		// This chunk sat at the head of its chunker, which is now empty.
		// Keep the just-emptied chunker warm for the next overflow push,
		// but free anything beyond it: at most one spare stays retained.
		if c.ck.next != nil {
			assert(c.ck.next.next == nil, "more than one spare chunker retained")
			c.ck.next = nil
			cs.chunkersFreed++
		}
	}

	cs.topIdx = c.prev
}

// dropTo unwinds to a previously captured top index. Used by the fault
// handler, where the per-chunk handles were jumped past and lost.
func (cs *chunkStack) dropTo(topIdx int) {
	assert(topIdx >= 0 && topIdx <= cs.topIdx, "bad chunk stack rewind target")
	for cs.topIdx > topIdx {
		cs.dropTop()
	}
}

// scan visits every live slot on the chunk stack, walking each run until its
// end marker rather than trusting a stored length.
func (cs *chunkStack) scan(visit func(*Value)) {
	for idx := cs.topIdx; idx > 0; idx = cs.headers[idx].prev {
		c := &cs.headers[idx]
		for i := c.off; ; i++ {
			if c.ck.payload[i].IsEnd() {
				break
			}
			visit(&c.ck.payload[i])
		}
	}
}
