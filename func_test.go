package r3

import (
	"strings"
	"testing"
)

// sumImpl adds its integer arguments, treating absence as zero.
func sumImpl(ctx *Context, f *Frame) Value {
	var total int64
	for i := 1; i <= f.NumArgs(); i++ {
		a := f.Arg(i)
		if a.Tag == VTInt {
			total += a.Data.(int64)
		}
	}
	return Int(total)
}

func sumFunc(name string, params ...string) *Func {
	ps := make([]Param, len(params))
	for i, p := range params {
		ps[i] = Param{Name: p}
	}
	return NewFunc(name, ps, sumImpl)
}

func Test_Resolve_PlainFunction_IsItsOwnFixedPoint(t *testing.T) {
	base := sumFunc("base", "x", "y")
	u, sp := ResolveUnderlying(base)
	if u != base || sp != nil {
		t.Fatalf("plain function should resolve to itself with no specializer")
	}
}

func Test_Resolve_TwoHops_ForLayeredWrappers(t *testing.T) {
	base := sumFunc("base", "x", "y")
	spec := Specialize("spec", base, map[string]Value{"x": Int(5)})
	adapted := Adapt("adapted", spec, func(ctx *Context, f *Frame) Value { return None() })
	chained := Chain("chained", adapted, func(ctx *Context, v Value) Value { return v })

	// Direct specialization: one hop.
	u, sp := ResolveUnderlying(spec)
	if u != base || sp != spec {
		t.Fatalf("specialization resolution wrong: u=%v sp=%v", u, sp)
	}

	// Adaptation and chain layered atop the specialization: the first hop
	// lands on the specialization, the second on the true underlying.
	for _, fn := range []*Func{adapted, chained} {
		u, sp := ResolveUnderlying(fn)
		if u != base {
			t.Fatalf("%s: underlying is %v, want base", fn.Name, u)
		}
		if sp != spec {
			t.Fatalf("%s: specializer is %v, want spec", fn.Name, sp)
		}
	}
}

func Test_Resolve_Idempotent(t *testing.T) {
	base := sumFunc("base", "x", "y")
	spec := Specialize("spec", base, map[string]Value{"y": Int(1)})
	u, _ := ResolveUnderlying(spec)

	again, sp := ResolveUnderlying(u)
	if again != u || sp != nil {
		t.Fatalf("re-resolving the underlying function changed the result")
	}
}

func Test_Specialize_LayeredExemplarsMerge(t *testing.T) {
	base := sumFunc("base", "x", "y", "z")
	inner := Specialize("inner", base, map[string]Value{"x": Int(5)})
	outer := Specialize("outer", inner, map[string]Value{"z": Int(9)})

	if !Equal(outer.Exemplar[0], Int(5)) {
		t.Fatalf("outer specialization lost the inner binding: %s", outer.Exemplar[0])
	}
	if !outer.Exemplar[1].IsAbsence() {
		t.Fatalf("unspecialized slot should rest at absence: %s", outer.Exemplar[1])
	}
	if !Equal(outer.Exemplar[2], Int(9)) {
		t.Fatalf("outer binding missing: %s", outer.Exemplar[2])
	}
}

func Test_Specialize_UnknownParameter_Faults(t *testing.T) {
	ctx := newCtx(t, Options{})
	base := sumFunc("base", "x")
	err := ctx.Trap(func() {
		Specialize("spec", base, map[string]Value{"nope": Int(1)})
	})
	if err == nil || !strings.Contains(err.Error(), "unknown parameter") {
		t.Fatalf("expected unknown-parameter fault, got %v", err)
	}
	ctx.Shutdown()
}
