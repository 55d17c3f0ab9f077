// Package stacktrace trims panic stacks down to the frames worth reading.
package stacktrace

import (
	"runtime"
	"strconv"
	"strings"
)

const maxDepth = 64

// Frames returns the caller's stack as "file:line" entries, innermost first.
// Only frames under an internal/ directory are kept; when none match, e.g. a
// panic raised entirely inside a dependency, every frame is returned.
func Frames() []string {
	pcs := make([]uintptr, maxDepth)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var own, all []string
	for {
		f, more := frames.Next()
		if f.File != "" {
			loc := f.File + ":" + strconv.Itoa(f.Line)
			all = append(all, loc)
			if i := strings.Index(loc, "/internal/"); i >= 0 {
				own = append(own, loc[i+1:])
			}
		}
		if !more {
			break
		}
	}

	if len(own) > 0 {
		return own
	}
	return all
}
