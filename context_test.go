package r3

import "testing"

func Test_Context_InstancesAreIndependent(t *testing.T) {
	a := newCtx(t, Options{})
	b := newCtx(t, Options{})

	h := a.PushChunk(1)
	h[0] = Int(1)
	a.Push(Str("only in a"))

	if b.Depth() != 0 || b.chunks.topIdx != 0 {
		t.Fatalf("state leaked between evaluator instances")
	}

	b.Shutdown()
	a.PopRangeInto(0, nil)
	a.DropChunk(h)
	a.Shutdown()
}

func Test_Context_Signals_PolledAndCleared(t *testing.T) {
	ctx := newCtx(t, Options{})

	if ctx.CheckSignals() != 0 {
		t.Fatalf("fresh context has pending signals")
	}

	ctx.RaiseSignal(SigRecycle)
	ctx.RaiseSignal(SigHalt)
	s := ctx.CheckSignals()
	if s&SigRecycle == 0 || s&SigHalt == 0 {
		t.Fatalf("raised signals not reported: %b", s)
	}
	if ctx.CheckSignals() != 0 {
		t.Fatalf("poll did not clear the flags")
	}
	ctx.Shutdown()
}

func Test_Context_CleanShutdown(t *testing.T) {
	ctx := newCtx(t, Options{})
	h := ctx.PushChunk(1)
	h[0] = Int(1)
	ctx.Push(Int(2))
	ctx.PopRangeInto(0, nil)
	ctx.DropChunk(h)
	ctx.Shutdown()
}

func Test_Context_Apply_RestoresAllState(t *testing.T) {
	ctx := newCtx(t, Options{})
	base := sumFunc("base", "x", "y")

	dspBefore := ctx.Depth()
	topBefore := ctx.chunks.topIdx

	out := ctx.Apply(FuncVal(base), Int(2), Int(3))
	if !Equal(out, Int(5)) {
		t.Fatalf("apply result %s, want 5", out)
	}
	if ctx.Depth() != dspBefore || ctx.chunks.topIdx != topBefore || ctx.topFrame != nil {
		t.Fatalf("apply leaked stack state")
	}
	ctx.Shutdown()
}

func Test_Context_Apply_SpecializedCallable(t *testing.T) {
	// End to end: a specialization pre-binds one parameter, the call site
	// supplies the rest positionally.
	ctx := newCtx(t, Options{})
	base := sumFunc("base", "x", "y")
	spec := Specialize("add5", base, map[string]Value{"x": Int(5)})

	out := ctx.Apply(FuncVal(spec), Int(37))
	if !Equal(out, Int(42)) {
		t.Fatalf("specialized apply result %s, want 42", out)
	}
	ctx.Shutdown()
}
