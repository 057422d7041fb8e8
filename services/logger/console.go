package logsvc

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/fatih/color"

	"github.com/quransn/academy/core"
	"github.com/quransn/academy/core/user"
)

type colorHandler struct {
	l     *log.Logger
	level slog.Level
	attrs []slog.Attr
}

func newColorHandler(out io.Writer, level slog.Level) *colorHandler {
	return &colorHandler{
		l:     log.New(out, "", 0),
		level: level,
	}
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	level := r.Level.String() + ":"

	switch r.Level {
	case slog.LevelDebug:
		level = color.MagentaString(level)
	case slog.LevelInfo:
		level = color.HiBlueString(level)
	case slog.LevelWarn:
		level = color.YellowString(level)
	case slog.LevelError:
		level = color.RedString(level)
	}

	attrsStr := ""
	appendAttr := func(a slog.Attr) bool {
		attrsStr += color.GreenString(a.Key) + "=" + fmt.Sprint(a.Value.Any()) + " "
		return true
	}
	for _, a := range h.attrs {
		appendAttr(a)
	}
	r.Attrs(appendAttr)

	h.l.Println(
		r.Time.Format("15:04:05.000"),
		level,
		r.Message,
		attrsStr,
	)
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &colorHandler{l: h.l, level: h.level, attrs: append(append([]slog.Attr(nil), h.attrs...), attrs...)}
}

func (h *colorHandler) WithGroup(_ string) slog.Handler {
	return h
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// ConsoleLogger writes colorized logs. It is used in development and tests.
type ConsoleLogger struct {
	log *slog.Logger
}

var _ core.Logger = (*ConsoleLogger)(nil)

func NewConsoleLogger(out io.Writer, debug bool) *ConsoleLogger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return &ConsoleLogger{log: slog.New(newColorHandler(out, level))}
}

// NewDiscardLogger drops every log.
func NewDiscardLogger() *ConsoleLogger {
	return NewConsoleLogger(io.Discard, false)
}

// attrs turns logger args into slog attributes: errors become "err", users "user".
func attrs(args []interface{}) []interface{} {
	out := make([]interface{}, 0, len(args)*2)
	for i, arg := range args {
		switch v := arg.(type) {
		case error:
			out = append(out, slog.String("err", v.Error()))
		case user.User:
			out = append(out, slog.String("user", v.ID))
		case map[string]interface{}:
			for k, val := range v {
				out = append(out, slog.Any(k, val))
			}
		default:
			out = append(out, slog.Any(fmt.Sprintf("arg%d", i), v))
		}
	}
	return out
}

func (l ConsoleLogger) Debug(msg string, args ...interface{}) { l.log.Debug(msg, attrs(args)...) }
func (l ConsoleLogger) Info(msg string, args ...interface{})  { l.log.Info(msg, attrs(args)...) }
func (l ConsoleLogger) Warn(msg string, args ...interface{})  { l.log.Warn(msg, attrs(args)...) }
func (l ConsoleLogger) Error(msg string, args ...interface{}) { l.log.Error(msg, attrs(args)...) }

func (l ConsoleLogger) Fatal(msg string, args ...interface{}) {
	l.log.Error(msg, attrs(args)...)
	os.Exit(1)
}
