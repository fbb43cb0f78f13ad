// guard.go
package r3

// Scoped pinning. Code that holds a raw reference to a value across a
// re-entrant evaluation (which might trigger a collection) pushes a guard so
// the collector scan keeps visiting it; the guard stack is strictly LIFO.

// GuardPush pins v for collector scans until the matching GuardPop.
func (ctx *Context) GuardPush(v Value) {
	ctx.guards = append(ctx.guards, v)
}

// GuardPop releases the most recent guard. In debug builds the argument must
// identify the value that was pushed; popping out of order is a bug.
func (ctx *Context) GuardPop(v Value) {
	if len(ctx.guards) == 0 {
		bug("guard stack underflow")
	}
	top := len(ctx.guards) - 1
	assert(Equal(ctx.guards[top], v), "guard popped out of order")
	if debugChecks {
		ctx.guards[top] = trash()
	}
	ctx.guards = ctx.guards[:top]
}
