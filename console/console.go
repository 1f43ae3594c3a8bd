package console

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

const (
	clrReset = "\033[0m"
	clrHead  = "\033[35m" // magenta
	clrSig   = "\033[36m" // cyan
	clrOrd   = "\033[32m" // green
	clrWarn  = "\033[33m" // yellow
	clrErr   = "\033[31m" // red
)

// Announcer is the operator-facing channel. It is never filtered by log level.
type Announcer struct {
	mu    sync.Mutex
	out   io.Writer
	color bool
	now   func() time.Time
}

// New writes to stdout.
func New(color bool) *Announcer {
	return NewWriter(os.Stdout, color)
}

// NewWriter writes to w.
func NewWriter(w io.Writer, color bool) *Announcer {
	return &Announcer{out: w, color: color, now: time.Now}
}

func (a *Announcer) print(clr, format string, v ...interface{}) {
	if a == nil || a.out == nil {
		return
	}
	msg := fmt.Sprintf(format, v...)
	a.mu.Lock()
	defer a.mu.Unlock()
	ts := a.now().Format("15:04:05")
	if a.color {
		fmt.Fprintf(a.out, "%s %s%s%s\n", ts, clr, msg, clrReset)
		return
	}
	fmt.Fprintf(a.out, "%s %s\n", ts, msg)
}

// Header prints the per-iteration banner.
func (a *Announcer) Header(iteration uint64, market string, phase string) {
	a.print(clrHead, "──── iteration %d · %s · %s ────", iteration, market, phase)
}

// Signal prints a signal decision.
func (a *Announcer) Signal(format string, v ...interface{}) {
	a.print(clrSig, format, v...)
}

// Order prints an order confirmation.
func (a *Announcer) Order(format string, v ...interface{}) {
	a.print(clrOrd, format, v...)
}

// Warn prints a warning.
func (a *Announcer) Warn(format string, v ...interface{}) {
	a.print(clrWarn, format, v...)
}

// Error prints a failure.
func (a *Announcer) Error(format string, v ...interface{}) {
	a.print(clrErr, format, v...)
}
