package shapeflow

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/itchyny/timefmt-go"
)

// LogLevel orders log output from least to most verbose.
type LogLevel int

const (
	LevelError LogLevel = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

var levelNames = [...]string{
	LevelError: "error",
	LevelWarn:  "warn",
	LevelInfo:  "info",
	LevelDebug: "debug",
}

// String returns the name used in options files, such as "warn".
func (l LogLevel) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLogLevel maps an options name to a level. "warning" is accepted
// for "warn"; case is ignored.
func ParseLogLevel(s string) (LogLevel, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "warning" {
		name = "warn"
	}
	for l, n := range levelNames {
		if n == name {
			return LogLevel(l), nil
		}
	}
	return LevelWarn, fmt.Errorf("unknown log level %q (want error, warn, info or debug)", s)
}

// Logger receives progress from the optimizer. Fields attached with With
// follow every message of the returned logger.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)

	With(fields map[string]any) Logger
}

const timestampFormat = "%Y-%m-%dT%H:%M:%SZ"

// textFormatter renders one line per message:
//
//	[level] 2024-03-01T12:00:00Z message fn=f pass=2
//
// Fields are sorted by key.
type textFormatter struct {
	includeTimestamp bool
}

func (f *textFormatter) format(ts time.Time, level LogLevel, msg string, fields map[string]any) []byte {
	var b strings.Builder
	b.WriteString("[" + level.String() + "] ")
	if f.includeTimestamp {
		b.WriteString(timefmt.Format(ts.UTC(), timestampFormat))
		b.WriteByte(' ')
	}
	b.WriteString(msg)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, fieldValue(fields[k]))
	}
	b.WriteByte('\n')
	return []byte(b.String())
}

// fieldValue quotes values that would break key=value parsing.
func fieldValue(v any) string {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case fmt.Stringer:
		s = t.String()
	default:
		return fmt.Sprint(v)
	}
	if s == "" || strings.ContainsAny(s, " \t\n=\"") {
		return fmt.Sprintf("%q", s)
	}
	return s
}

// sink is the writer shared by a logger and every logger derived from it.
type sink struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *sink) write(line []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.w.Write(line)
}

type defaultLogger struct {
	level     LogLevel
	formatter *textFormatter
	fields    map[string]any
	out       *sink
}

// NewLogger returns a logger writing messages at level and below to w, or
// to stderr when w is nil.
func NewLogger(level LogLevel, w io.Writer) Logger {
	if w == nil {
		w = os.Stderr
	}
	return &defaultLogger{
		level:     level,
		formatter: &textFormatter{includeTimestamp: true},
		out:       &sink{w: w},
	}
}

func (l *defaultLogger) With(fields map[string]any) Logger {
	if len(fields) == 0 {
		return l
	}
	merged := make(map[string]any, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	child := *l
	child.fields = merged
	return &child
}

func (l *defaultLogger) Debugf(format string, args ...any) { l.logf(LevelDebug, format, args) }
func (l *defaultLogger) Infof(format string, args ...any)  { l.logf(LevelInfo, format, args) }
func (l *defaultLogger) Warnf(format string, args ...any)  { l.logf(LevelWarn, format, args) }
func (l *defaultLogger) Errorf(format string, args ...any) { l.logf(LevelError, format, args) }

func (l *defaultLogger) logf(level LogLevel, format string, args []any) {
	if level > l.level {
		return
	}
	l.out.write(l.formatter.format(time.Now(), level, fmt.Sprintf(format, args...), l.fields))
}

type noopLogger struct{}

func (noopLogger) Debugf(string, ...any)        {}
func (noopLogger) Infof(string, ...any)         {}
func (noopLogger) Warnf(string, ...any)         {}
func (noopLogger) Errorf(string, ...any)        {}
func (l noopLogger) With(map[string]any) Logger { return l }

// NewNoopLogger returns a logger that discards everything.
func NewNoopLogger() Logger { return noopLogger{} }

// TruncateList joins at most max shape names with commas and counts the
// rest, as in "int,str,+2". A max of zero or less keeps every item.
func TruncateList(items []string, max int) string {
	if max <= 0 || len(items) <= max {
		return strings.Join(items, ",")
	}
	return fmt.Sprintf("%s,+%d", strings.Join(items[:max], ","), len(items)-max)
}
