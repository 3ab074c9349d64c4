package hal

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// coreColors tints log lines by core; core 0 stays uncolored.
var coreColors = []string{
	"",
	"\x1b[32m", // green
	"\x1b[33m", // yellow
	"\x1b[34m", // blue
	"\x1b[35m", // magenta
	"\x1b[36m", // cyan
	"\x1b[31m", // red
	"\x1b[90m", // grey
}

const colorReset = "\x1b[0m"

// logOutput is shared by the machine logger and every core's logger.
type logOutput struct {
	mu    sync.Mutex
	w     io.Writer
	color bool

	// tee receives every line tinted, whatever w is.
	tee io.Writer
}

// hostLogger serializes lines from every core onto one writer.
type hostLogger struct {
	out    *logOutput
	prefix string
	tint   string
}

func newHostLogger(w io.Writer) *hostLogger {
	out := &logOutput{w: w}
	if w == nil {
		out.w = colorable.NewColorableStdout()
		fd := os.Stdout.Fd()
		out.color = isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}
	return &hostLogger{out: out}
}

func (l *hostLogger) forCore(id int) *hostLogger {
	return &hostLogger{
		out:    l.out,
		prefix: fmt.Sprintf("cpu%d: ", id),
		tint:   coreColors[id%len(coreColors)],
	}
}

func (l *hostLogger) setTee(w io.Writer) {
	l.out.mu.Lock()
	l.out.tee = w
	l.out.mu.Unlock()
}

func (l *hostLogger) WriteLineString(s string) {
	o := l.out
	o.mu.Lock()
	defer o.mu.Unlock()
	l.writeTo(o.w, o.color, s)
	if o.tee != nil {
		l.writeTo(o.tee, true, s)
	}
}

func (l *hostLogger) writeTo(w io.Writer, color bool, s string) {
	if color && l.tint != "" {
		fmt.Fprint(w, l.tint, l.prefix, s, colorReset, "\n")
		return
	}
	fmt.Fprint(w, l.prefix, s, "\n")
}

func (l *hostLogger) WriteLineBytes(b []byte) {
	l.WriteLineString(string(b))
}
