package auth

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// ZerologLogger adapts a zerolog.Logger to Logger.
// Arguments are read as key/value pairs unless the message carries one
// printf verb per argument, in which case they are formatted into the message.
type ZerologLogger struct {
	logger zerolog.Logger
}

var _ Logger = (*ZerologLogger)(nil)

func NewZerologLogger(logger zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{logger: logger}
}

// Named returns a child logger tagged with the given component name.
func (z *ZerologLogger) Named(component string) *ZerologLogger {
	return &ZerologLogger{
		logger: z.logger.With().Str("component", component).Logger(),
	}
}

func (z *ZerologLogger) Debug(format string, args ...any) {
	z.emit(z.logger.Debug(), format, args)
}

func (z *ZerologLogger) Info(format string, args ...any) {
	z.emit(z.logger.Info(), format, args)
}

func (z *ZerologLogger) Warn(format string, args ...any) {
	z.emit(z.logger.Warn(), format, args)
}

func (z *ZerologLogger) Error(format string, args ...any) {
	z.emit(z.logger.Error(), format, args)
}

func (z *ZerologLogger) emit(ev *zerolog.Event, format string, args []any) {
	if ev == nil {
		return
	}

	if len(args) == 0 {
		ev.Msg(format)
		return
	}

	if isPrintf(format, len(args)) {
		ev.Msg(fmt.Sprintf(format, args...))
		return
	}

	if len(args)%2 != 0 {
		args = append(args, nil)
	}

	ev.Fields(args).Msg(format)
}

// defLogger prints to stdout until a real logger is configured
type defLogger struct{}

func (d defLogger) Error(format string, args ...any) { d.print("ERR", format, args) }
func (d defLogger) Warn(format string, args ...any)  { d.print("WRN", format, args) }
func (d defLogger) Info(format string, args ...any)  { d.print("INF", format, args) }
func (d defLogger) Debug(format string, args ...any) { d.print("DBG", format, args) }

func (d defLogger) print(level, msg string, args []any) {
	if isPrintf(msg, len(args)) {
		msg = fmt.Sprintf(msg, args...)
		args = nil
	}

	var b strings.Builder
	b.WriteString("[" + level + "] AUTH " + msg)
	for i := 0; i < len(args); i += 2 {
		var value any
		if i+1 < len(args) {
			value = args[i+1]
		}
		fmt.Fprintf(&b, " %v=%v", args[i], value)
	}

	fmt.Println(b.String())
}

// isPrintf reports whether format holds exactly argc printf verbs.
// A literal percent sign, as in "50% done", does not count.
func isPrintf(format string, argc int) bool {
	if argc == 0 {
		return false
	}
	return countVerbs(format) == argc
}

func countVerbs(format string) int {
	verbs := 0
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			continue
		}

		j := i + 1
		for j < len(format) && strings.IndexByte("+-# 0", format[j]) >= 0 {
			j++
		}
		for j < len(format) && (format[j] >= '0' && format[j] <= '9' || format[j] == '.' || format[j] == '*') {
			j++
		}

		if j >= len(format) {
			break
		}

		switch {
		case format[j] == '%':
		case strings.IndexByte("vTtbcdoOqxXUeEfFgGsp", format[j]) >= 0:
			verbs++
		}
		i = j
	}
	return verbs
}
