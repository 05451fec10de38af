//go:build rwlatch_debug

package opt

// Debug_ forces an ownership ledger onto every latch, so that fatal
// diagnostics can print the holders.
// Use: go build -tags=rwlatch_debug
const Debug_ = true
