package r3

import "testing"

func Test_Scan_VisitsEveryLiveRoot(t *testing.T) {
	ctx := newCtx(t, Options{})
	base := sumFunc("base", "x", "y")

	ctx.Push(Int(1))
	ctx.Push(Int(2))

	guard := Str("pinned")
	ctx.GuardPush(guard)

	f := ctx.PushFrame(FuncVal(base), FulfillPositional)
	f.FulfillFrom([]Value{Int(10), Int(20)})
	scratch := Str("scratch")
	f.Protect(&scratch)

	label := Word("L")
	ctx.ConvertToThrown(&label, Int(42))

	var payloadSeen, guardSeen, argSeen, pinSeen bool
	ctx.ScanRoots(func(v *Value) {
		switch {
		case Equal(*v, Int(42)):
			payloadSeen = true
		case Equal(*v, guard):
			guardSeen = true
		case Equal(*v, Int(10)):
			argSeen = true
		case v == &scratch:
			pinSeen = true
		}
	})
	if !payloadSeen {
		t.Fatalf("thrown payload not visited")
	}
	if !guardSeen {
		t.Fatalf("guarded value not visited")
	}
	if !argSeen {
		t.Fatalf("frame argument slot not visited")
	}
	if !pinSeen {
		t.Fatalf("per-frame pin not visited")
	}

	// Everything visited is well-formed: a collection could run here.
	ctx.AssertScanSafe()

	var dest Value
	ctx.CatchThrown(&dest, &label)
	ctx.RetireFrame(f)
	ctx.GuardPop(guard)
	ctx.ds.truncateTo(0)
	ctx.Shutdown()
}

func Test_Scan_UnfilledChunkWindow_IsDetectable(t *testing.T) {
	// Between a chunk push and the caller finishing slot population the
	// slots hold poison; a scan in that window must be detectable.
	ctx := newCtx(t, Options{})
	h := ctx.PushChunk(2)

	expectBug(t, func() { ctx.AssertScanSafe() })

	h[0], h[1] = Int(1), Int(2)
	ctx.AssertScanSafe()

	ctx.DropChunk(h)
	ctx.Shutdown()
}

func Test_Scan_FramePlaceholders_AreWellFormed(t *testing.T) {
	// Construction leaves no raw slots behind: pending/absence placeholders
	// are legitimate for a scan even before fulfillment begins.
	ctx := newCtx(t, Options{})
	base := sumFunc("base", "x", "y")
	spec := Specialize("spec", base, map[string]Value{"x": Int(5)})

	f := ctx.PushFrame(FuncVal(spec), FulfillPositional)
	ctx.AssertScanSafe()

	g := ctx.PushFrame(FuncVal(spec), FulfillByName)
	ctx.AssertScanSafe()

	ctx.RetireFrame(g)
	ctx.RetireFrame(f)
	ctx.Shutdown()
}

func Test_Scan_RetiredState_HasNoRoots(t *testing.T) {
	ctx := newCtx(t, Options{})
	base := sumFunc("base", "x")

	f := ctx.PushFrame(FuncVal(base), FulfillPositional)
	f.FillArg(1, Int(1))
	ctx.RetireFrame(f)

	count := 0
	ctx.ScanRoots(func(v *Value) { count++ })
	if count != 0 {
		t.Fatalf("retired state still exposes %d roots", count)
	}
	ctx.Shutdown()
}
