// Package logging builds the process logger.
package logging

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls the logger built by New.
type Options struct {
	// Verbose enables debug output. The default level is warn so that command
	// output on stdout stays readable.
	Verbose bool
	// JSON switches to the JSON encoder.
	JSON bool
	// Output defaults to os.Stderr.
	Output io.Writer
}

// New returns a logger writing to opts.Output. Levels are coloured only when
// writing to a terminal.
func New(opts Options) *zap.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	level := zap.WarnLevel
	if opts.Verbose {
		level = zap.DebugLevel
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	var enc zapcore.Encoder
	if opts.JSON {
		encCfg = zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		if isTerminal(out) {
			encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(out), zap.NewAtomicLevelAt(level))
	return zap.New(core)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
