package console

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	FgRed    = 31
	FgGreen  = 32
	FgYellow = 33
	FgCyan   = 36
	FgWhite  = 37

	Bold = 1
	Dim  = 2
)

// Color returns the ANSI escape sequence for the given attributes
func Color(attrs ...int) string {
	if len(attrs) == 0 {
		return ""
	}
	tmp := make([]string, len(attrs))
	for i, attr := range attrs {
		tmp[i] = strconv.Itoa(attr)
	}
	return "\033[" + strings.Join(tmp, ";") + "m"
}

// Reset returns the ANSI escape sequence that clears all attributes
func Reset() string {
	return "\033[0m"
}

// Colorize returns a Sprintf-like function wrapping its output in the given attributes
func Colorize(attrs ...int) func(format string, args ...any) string {
	return func(format string, args ...any) string {
		return Color(attrs...) + fmt.Sprintf(format, args...) + Reset()
	}
}
