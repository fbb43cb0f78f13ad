package r3

import "testing"

func Test_Guards_PushPop_LIFO(t *testing.T) {
	ctx := newCtx(t, Options{})
	a := Str("a")
	b := BlockVal(&Block{Vals: []Value{Int(1)}})

	ctx.GuardPush(a)
	ctx.GuardPush(b)
	ctx.GuardPop(b)
	ctx.GuardPop(a)
	ctx.Shutdown()
}

func Test_Guards_PopOutOfOrder_IsABug(t *testing.T) {
	ctx := newCtx(t, Options{})
	a := Str("a")
	b := Str("b")
	ctx.GuardPush(a)
	ctx.GuardPush(b)
	expectBug(t, func() { ctx.GuardPop(a) })
}

func Test_Guards_PopEmpty_IsABug(t *testing.T) {
	ctx := newCtx(t, Options{})
	expectBug(t, func() { ctx.GuardPop(Str("x")) })
}

func Test_Guards_LeftAtShutdown_IsALeak(t *testing.T) {
	ctx := newCtx(t, Options{})
	ctx.GuardPush(Str("pinned"))
	expectBug(t, func() { ctx.Shutdown() })
}
