//go:build !rwlatch_debug

package opt

const Debug_ = false
