// func.go
//
// Function descriptors and the specialization resolver.
//
// A callable is either a plain function (body implemented by the host) or a
// wrapper over another callable: a specialization pre-binding some of the
// parameters, an adaptation running a prologue before the wrapped callable,
// or a chain piping the result through a post step. Wrapping changes what a
// call looks like, but never what storage a frame needs: the frame is always
// shaped by the parameter list of the function at the bottom of the stack of
// wrappers, because that is the code that will ultimately read the slots.
//
// Every descriptor caches a pointer to that bottom function so resolution is
// O(1) amortized; the cache of a plain function is itself (the fixed point).

package r3

type FuncKind uint8

const (
	FuncPlain FuncKind = iota
	FuncSpecialized
	FuncAdapted
	FuncChained
)

type Param struct {
	Name string
}

// NativeImpl is a plain function's body: the host reads arguments out of the
// fulfilled frame and produces a result. A thrown result is signalled by
// returning a label with the thrown flag set.
type NativeImpl func(ctx *Context, f *Frame) Value

// Prelude is an adaptation's prologue, run against the frame before the
// underlying body. It may rewrite argument slots. A non-thrown result is
// discarded; a thrown label stops dispatch and propagates.
type Prelude func(ctx *Context, f *Frame) Value

// Pipe is a chain's post step, applied to the result of the wrapped call.
type Pipe func(ctx *Context, v Value) Value

type Func struct {
	Kind FuncKind
	Name string

	// Plain functions only.
	Params  []Param
	Impl    NativeImpl
	Durable bool // variables may be captured past the call: heap-backed frames

	// Wrappers only.
	Wrapped  *Func
	Exemplar []Value // specializations: one value per underlying parameter
	Prelude  Prelude // adaptations
	Pipe     Pipe    // chains

	underlying *Func // cached resolution target; self for plain functions
}

func (fn *Func) NumParams() int { return len(fn.Params) }

// Parameter names resolve against the underlying function, whatever the
// wrapping: wrappers have no parameter list of their own.
func (fn *Func) ParamIndex(name string) int {
	u := fn.underlying
	for i := range u.Params {
		if u.Params[i].Name == name {
			return i + 1
		}
	}
	return 0
}

// -----------------------------
// Constructors
// -----------------------------

func NewFunc(name string, params []Param, impl NativeImpl) *Func {
	fn := &Func{Kind: FuncPlain, Name: name, Params: params, Impl: impl}
	fn.underlying = fn
	return fn
}

// NewDurableFunc builds a plain function whose frame variables may outlive
// the call (a closure-style function); its frames are heap-backed.
func NewDurableFunc(name string, params []Param, impl NativeImpl) *Func {
	fn := NewFunc(name, params, impl)
	fn.Durable = true
	return fn
}

// Specialize pre-binds some parameters of target by name. The exemplar is
// full-length over the underlying parameter list; an absence value in it
// means "unspecialized", so layered specializations merge naturally.
func Specialize(name string, target *Func, bound map[string]Value) *Func {
	underlying, prior := ResolveUnderlying(target)

	exemplar := make([]Value, underlying.NumParams())
	if prior != nil {
		copy(exemplar, prior.Exemplar)
	} else {
		for i := range exemplar {
			exemplar[i] = Absence()
		}
	}
	for k, v := range bound {
		idx := underlying.ParamIndex(k)
		if idx == 0 {
			fail("unknown parameter in specialization: " + k)
		}
		assert(!v.IsAbsence(), "cannot specialize a parameter to absence")
		exemplar[idx-1] = v
	}

	return &Func{
		Kind:       FuncSpecialized,
		Name:       name,
		Wrapped:    target,
		Exemplar:   exemplar,
		underlying: underlying,
	}
}

// Adapt wraps target with a prologue that runs against the fulfilled frame
// before the underlying body does.
func Adapt(name string, target *Func, prelude Prelude) *Func {
	return &Func{
		Kind:       FuncAdapted,
		Name:       name,
		Wrapped:    target,
		Prelude:    prelude,
		underlying: wrapperCache(target),
	}
}

// Chain wraps target so its result is piped through a post step.
func Chain(name string, target *Func, pipe Pipe) *Func {
	return &Func{
		Kind:       FuncChained,
		Name:       name,
		Wrapped:    target,
		Pipe:       pipe,
		underlying: wrapperCache(target),
	}
}

// wrapperCache is the cached-underlying rule for adaptations and chains:
// when the wrapped callable is a specialization, the cache must point at the
// specialization itself (the resolver needs it to find the exemplar); in
// every other case it points straight at the wrapped callable's own cache.
func wrapperCache(target *Func) *Func {
	if target.Kind == FuncSpecialized {
		return target
	}
	return target.underlying
}

// -----------------------------
// Resolution
// -----------------------------

// ResolveUnderlying computes the function whose parameter list shapes the
// frame, plus the specialization (if any) whose exemplar pre-supplies
// argument values. Total and pure; at most two hops for any well-formed
// descriptor:
//
//   - the callable itself is a specialization: capture it, follow its cache;
//   - otherwise follow the callable's cache, and if that first hop landed on
//     a specialization (adaptations or chains layered atop one), capture it
//     and follow one more hop to the true underlying function.
func ResolveUnderlying(fn *Func) (underlying *Func, specializer *Func) {
	if fn.Kind == FuncSpecialized {
		specializer = fn
		underlying = fn.underlying
	} else {
		underlying = fn.underlying
		if underlying.Kind == FuncSpecialized {
			specializer = underlying
			underlying = underlying.underlying
		}
	}

	if debugChecks {
		// The terminal point of the cache chain: it resolves to itself and
		// is not any kind of wrapper.
		assert(underlying.underlying == underlying, "underlying cache has no fixed point")
		assert(underlying.Kind == FuncPlain, "underlying function is a wrapper")
		if specializer != nil {
			assert(len(specializer.Exemplar) == underlying.NumParams(),
				"exemplar shape does not match underlying parameter list")
		}
	}
	return underlying, specializer
}
