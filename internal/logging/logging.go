// Package logging builds the logr logger used across nodechaos.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap/zapcore"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// Format selects the log encoder.
type Format string

// Log formats. Auto picks console output on a terminal and JSON otherwise.
const (
	FormatAuto    Format = "auto"
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// ParseFormat validates a --log-format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatAuto, FormatConsole, FormatJSON:
		return f, nil
	case "":
		return FormatAuto, nil
	default:
		return "", fmt.Errorf("invalid log format %q (valid: auto, console, json)", s)
	}
}

// New returns a zap-backed logger writing to w. Verbose enables V(1)
// messages such as the per-iteration state transitions.
func New(w io.Writer, verbose bool, format Format) logr.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	return zap.New(
		zap.WriteTo(w),
		zap.UseDevMode(useConsole(w, format)),
		zap.Level(level),
	)
}

func useConsole(w io.Writer, format Format) bool {
	switch format {
	case FormatConsole:
		return true
	case FormatJSON:
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
