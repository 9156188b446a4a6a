package debug

import (
	"fmt"
	"runtime"
	"strings"
)

const maxDepth = 32

// GetStackTrace returns the caller frames as "function file:line", skipping the first skip frames.
// Frames of the runtime and testing packages are left out
func GetStackTrace(skip int) []string {
	var pcs [maxDepth]uintptr
	n := runtime.Callers(skip+1, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	result := make([]string, 0, n)
	for {
		frame, more := frames.Next()
		if !internalFrame(frame.Function) {
			result = append(result, fmt.Sprintf("%s %s:%d", frame.Function, frame.File, frame.Line))
		}
		if !more {
			break
		}
	}
	return result
}

func internalFrame(function string) bool {
	return strings.HasPrefix(function, "runtime.") || strings.HasPrefix(function, "testing.")
}
