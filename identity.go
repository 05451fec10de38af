package rwlatch

import (
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/petermattis/goid"
)

// ThreadID identifies the logical owner of a hold. It is an opaque,
// comparable value; the zero ThreadID never names a live owner.
type ThreadID uint64

func (t ThreadID) String() string {
	if t == 0 {
		return "none"
	}
	return "goroutine " + strconv.FormatUint(uint64(t), 10)
}

// Identity tells a latch who is calling it.
type Identity interface {
	// Current returns the identity of the calling goroutine.
	Current() ThreadID
	// Equal reports whether two identities name the same owner.
	Equal(a, b ThreadID) bool
}

// GoroutineIdentity identifies callers by their runtime goroutine id.
type GoroutineIdentity struct{}

func (GoroutineIdentity) Current() ThreadID { return ThreadID(goid.Get()) }

func (GoroutineIdentity) Equal(a, b ThreadID) bool { return a == b }

// Site is a source location an acquisition was made from.
type Site struct {
	File string
	Line int
}

func (s Site) IsZero() bool { return s.File == "" }

func (s Site) String() string {
	if s.IsZero() {
		return "unknown"
	}
	return s.File + ":" + strconv.Itoa(s.Line)
}

// callerSite returns the location of the caller skip frames above the
// function calling callerSite.
func callerSite(skip int) Site {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return Site{}
	}
	return Site{File: filepath.Base(file), Line: line}
}
