//go:build race

package opt

// Race_ reports whether the race detector is compiled in. Stress tests
// shrink their iteration counts under it.
const Race_ = true
