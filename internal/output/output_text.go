package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/tkjaer/tcpping/internal/stats"
	"golang.org/x/term"
)

const (
	timestampLayout = "20060102-15:04:05"
	separatorWidth  = 50

	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
	ansiReset  = "\033[0m"
)

// TextOutput writes human-readable lines:
//
//	console: [20060102-15:04:05] message
//	file:    LEVEL: [20060102-15:04:05] - message
//
// The file writer is optional. Colour is only used when the console is a
// terminal.
type TextOutput struct {
	mu      sync.Mutex
	console io.Writer
	file    io.Writer
	color   bool
	now     func() time.Time
}

func NewTextOutput(console, file io.Writer) *TextOutput {
	return &TextOutput{
		console: console,
		file:    file,
		color:   isTerminal(console),
		now:     time.Now,
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (o *TextOutput) write(level, msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ts := o.now().Format(timestampLayout)
	if o.console != nil {
		line := msg
		if o.color {
			switch level {
			case "ERROR":
				line = ansiRed + msg + ansiReset
			case "WARNING":
				line = ansiYellow + msg + ansiReset
			}
		}
		fmt.Fprintf(o.console, "[%s] %s\n", ts, line)
	}
	if o.file != nil {
		fmt.Fprintf(o.file, "%s: [%s] - %s\n", level, ts, msg)
	}
}

func (o *TextOutput) Start(info RunInfo) {
	o.write("INFO", strings.Repeat("=", separatorWidth))
}

func (o *TextOutput) Attempt(a Attempt) {
	line := a.Result.Line(a.Request.DstHost, a.Request.DstPort)
	if a.Result.Success() {
		o.write("INFO", line)
	} else {
		o.write("ERROR", line)
	}
}

func (o *TextOutput) Warn(msg string) {
	o.write("WARNING", msg)
}

// Summary writes the statistics block as one multi-line message.
func (o *TextOutput) Summary(agg *stats.Aggregator) {
	o.write("INFO", agg.Snapshot())
}

func (o *TextOutput) Close() error {
	return nil
}
