// Package debug holds the logging hooks shared by the server and the cli, plus internal assertions.
package debug

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

const defaultTimeFormat = "2006-01-02T15:04:05.0000Z"

// TimeHook stamps events with a sub-millisecond wall clock time.
type TimeHook struct {
	Format string
}

func (h TimeHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	format := h.Format
	if format == "" {
		format = defaultTimeFormat
	}
	e.Str("time", time.Now().Format(format))
}

// CallerHook adds the package, file and line that logged the event. It honours
// zerolog.Event.CallerSkipFrame.
type CallerHook struct {
	Color bool
}

func (h CallerHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	pc, file, line, ok := runtime.Caller(skipFrames(e) + 3)
	if !ok {
		return
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return
	}
	e.Str("caller", formatCaller(packageOf(fn.Name()), filepath.Base(file), line, h.Color))
}

// skipFrames reads the frames requested with CallerSkipFrame, which zerolog keeps unexported.
func skipFrames(e *zerolog.Event) int {
	f := reflect.ValueOf(e).Elem().FieldByName("skipFrame")
	if !f.IsValid() {
		return 0
	}
	return int(f.Int())
}

// packageOf trims the function and any receiver from a qualified function name such as
// github.com/walteh/gorazor/pkg/lsp.(*Server).Initialize.
func packageOf(name string) string {
	slash := strings.LastIndexByte(name, '/')
	dot := strings.IndexByte(name[slash+1:], '.')
	if dot < 0 {
		return name
	}
	return name[:slash+1+dot]
}

func formatCaller(pkg, file string, line int, colorize bool) string {
	if !colorize {
		return fmt.Sprintf("%s:%s:%d", pkg, file, line)
	}
	sep := color.New(color.Faint).Sprint(":")
	return pkg + sep + color.New(color.Bold).Sprint(file) + sep + color.New(color.FgHiRed, color.Bold).Sprint(line)
}

// NewConsoleLogger builds the human readable logger used by the cli commands.
func NewConsoleLogger(w io.Writer, level zerolog.Level, colorize bool) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: !colorize, TimeFormat: "15:04:05.000"}).
		Level(level).
		With().
		Logger().
		Hook(TimeHook{}).
		Hook(CallerHook{Color: colorize})
}

var assertPanics atomic.Bool

// SetAssertPanics makes failed assertions panic instead of only logging. Tests turn this on.
func SetAssertPanics(enabled bool) (restore func()) {
	prev := assertPanics.Swap(enabled)
	return func() { assertPanics.Store(prev) }
}

// Assert reports a broken internal invariant. Production builds log and carry on.
func Assert(ctx context.Context, cond bool, format string, args ...any) {
	if cond {
		return
	}
	msg := fmt.Sprintf(format, args...)
	zerolog.Ctx(ctx).Error().CallerSkipFrame(1).Str("assertion", msg).Msg("internal assertion failed")
	if assertPanics.Load() {
		panic("assertion failed: " + msg)
	}
}
