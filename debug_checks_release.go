//go:build r3release

package r3

// Release builds drop the assertions and the poison writes; the bounds and
// discipline checks they gate are deemed too costly for the hot path.
const debugChecks = false
