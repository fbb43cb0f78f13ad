package r3

import "testing"

// newCtx builds a context with a small chunker so tests can force rollover
// without pushing hundreds of slots.
func newCtx(t *testing.T, opts Options) *Context {
	t.Helper()
	return NewContext(opts)
}

// expectBug asserts that fn trips an internal-consistency check.
func expectBug(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected an internal-consistency panic")
		}
		if _, ok := r.(bugErr); !ok {
			t.Fatalf("expected bugErr, got %#v", r)
		}
	}()
	fn()
}

func Test_Chunks_PushDrop_ReusesMemory(t *testing.T) {
	ctx := newCtx(t, Options{})

	h := ctx.PushChunk(3)
	h[0], h[1], h[2] = Int(1), Int(2), Int(3)
	first := &h[0]

	allocatedBefore, _ := ctx.ChunkStats()
	ctx.DropChunk(h)

	h2 := ctx.PushChunk(2)
	if &h2[0] != first {
		t.Fatalf("push after drop did not reuse the same memory")
	}
	allocatedAfter, _ := ctx.ChunkStats()
	if allocatedAfter != allocatedBefore {
		t.Fatalf("push after drop hit the backing allocator: %d -> %d", allocatedBefore, allocatedAfter)
	}

	h2[0], h2[1] = Int(4), Int(5)
	ctx.DropChunk(h2)
	ctx.Shutdown()
}

func Test_Chunks_Rollover_KeepsOneSpareChunker(t *testing.T) {
	ctx := newCtx(t, Options{ChunkerSlots: 8})

	// Base chunk takes 1 slot; each push(3) takes 4. Two fit, the third
	// rolls into a fresh chunker.
	a := ctx.PushChunk(3)
	b := ctx.PushChunk(2)
	c := ctx.PushChunk(3)
	for _, h := range [][]Value{a, b, c} {
		for i := range h {
			h[i] = Int(int64(i))
		}
	}

	allocated, freed := ctx.ChunkStats()
	if allocated != 2 || freed != 0 {
		t.Fatalf("expected exactly one extra chunker, got allocated=%d freed=%d", allocated, freed)
	}

	// Unwind; the emptied follow-on chunker must stay warm as the spare.
	ctx.DropChunk(c)
	ctx.DropChunk(b)
	ctx.DropChunk(a)
	if _, freed := ctx.ChunkStats(); freed != 0 {
		t.Fatalf("spare chunker was freed on drop")
	}

	// The next rollover reuses the spare without allocating.
	d := ctx.PushChunk(3)
	e := ctx.PushChunk(2)
	f := ctx.PushChunk(3)
	for _, h := range [][]Value{d, e, f} {
		for i := range h {
			h[i] = Int(int64(i))
		}
	}
	if allocated, _ := ctx.ChunkStats(); allocated != 2 {
		t.Fatalf("rollover did not reuse the spare chunker: allocated=%d", allocated)
	}

	ctx.DropChunk(f)
	ctx.DropChunk(e)
	ctx.DropChunk(d)
	ctx.Shutdown()

	// Shutdown releases the one retained spare.
	if _, freed := ctx.ChunkStats(); freed != 1 {
		t.Fatalf("shutdown did not release the spare chunker: freed=%d", freed)
	}
}

func Test_Chunks_BumpAllocatorEquivalence(t *testing.T) {
	// For a LIFO-respecting sequence, chunkers obtained from the backing
	// system must match what a plain bump allocator at the same high-water
	// mark would need, plus at most one spare.
	ctx := newCtx(t, Options{ChunkerSlots: 16})

	var handles [][]Value
	pushN := func(n int) {
		h := ctx.PushChunk(n)
		for i := range h {
			h[i] = Int(int64(i))
		}
		handles = append(handles, h)
	}
	dropTop := func() {
		h := handles[len(handles)-1]
		handles = handles[:len(handles)-1]
		ctx.DropChunk(h)
	}

	// High-water: base(1) + 6 + 6 = 13 of 16, then 6 more rolls over once.
	for round := 0; round < 50; round++ {
		pushN(5)
		pushN(5)
		pushN(5)
		dropTop()
		dropTop()
		dropTop()
	}

	allocated, _ := ctx.ChunkStats()
	if allocated > 2 {
		t.Fatalf("LIFO churn over-allocated: %d chunkers for a 2-chunker high-water mark", allocated)
	}
	ctx.Shutdown()
}

func Test_Chunks_EndMarker_HaltsScan(t *testing.T) {
	ctx := newCtx(t, Options{})
	h := ctx.PushChunk(3)
	h[0], h[1], h[2] = Int(7), Int(8), Int(9)

	var seen []Value
	ctx.chunks.scan(func(v *Value) { seen = append(seen, *v) })
	if len(seen) != 3 {
		t.Fatalf("scan visited %d slots, want 3", len(seen))
	}
	for i, want := range []int64{7, 8, 9} {
		if seen[i].Tag != VTInt || seen[i].Data.(int64) != want {
			t.Fatalf("slot %d: got %s", i, seen[i])
		}
	}

	ctx.DropChunk(h)
	ctx.Shutdown()
}

func Test_Chunks_DropNonTop_IsABug(t *testing.T) {
	ctx := newCtx(t, Options{})
	a := ctx.PushChunk(2)
	b := ctx.PushChunk(2)
	for i := range a {
		a[i] = Int(0)
	}
	for i := range b {
		b[i] = Int(0)
	}
	expectBug(t, func() { ctx.DropChunk(a) })
}

func Test_Chunks_OversizedRequest_IsABug(t *testing.T) {
	// A request that cannot fit even a fresh chunker's payload must never
	// reach the allocator; the frame manager size-checks and goes to the
	// heap instead.
	ctx := newCtx(t, Options{ChunkerSlots: 8})
	expectBug(t, func() { ctx.PushChunk(8) })
}

func Test_Chunks_ShutdownWithLiveChunk_IsALeak(t *testing.T) {
	ctx := newCtx(t, Options{})
	h := ctx.PushChunk(1)
	h[0] = Int(1)
	expectBug(t, func() { ctx.Shutdown() })
}
