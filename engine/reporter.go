package engine

import (
	"fmt"
	"io"

	"github.com/gookit/color"
)

// Reporter handles progress reporting during exploration.
type Reporter interface {
	Printf(format string, args ...interface{})
}

// SilentReporter discards every message; the default for library use.
type SilentReporter struct{}

func (SilentReporter) Printf(format string, args ...interface{}) {}

// ColorReporter writes colorized progress lines to Writer.
type ColorReporter struct {
	Writer io.Writer
}

func (r *ColorReporter) Printf(format string, args ...interface{}) {
	fmt.Fprint(r.Writer, color.Cyan.Sprintf(format, args...))
}
