//go:build !r3release

package r3

// Debug builds keep invariant assertions and write recognizable poison into
// unfilled or dropped slots, so use of an unfulfilled argument or a dropped
// chunk is detectable instead of silently reading stale data.
const debugChecks = true
