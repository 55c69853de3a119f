// Package logging is a small leveled logger. Messages go to stderr, or to
// a size rotated file when one is configured; stdout is left to command
// output.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/natefinch/lumberjack"
)

// ModeFlag is the minimum level written.
type ModeFlag uint

const (
	DebugMode ModeFlag = iota
	InfoMode
	WarningMode
	ErrorMode
	CriticalMode
	SilentMode
)

// ParseMode maps a level name to a ModeFlag.
func ParseMode(s string) (ModeFlag, error) {
	switch strings.ToLower(s) {
	case "debug":
		return DebugMode, nil
	case "", "info":
		return InfoMode, nil
	case "warning", "warn":
		return WarningMode, nil
	case "error":
		return ErrorMode, nil
	case "critical":
		return CriticalMode, nil
	case "silent", "off":
		return SilentMode, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

// Logger is a leveled sink.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warningf(format string, args ...any)
	Errorf(format string, args ...any)
	Criticalf(format string, args ...any)
	Shutdown()
}

// Config selects the log destination. MaxSize is in megabytes, MaxAge in
// days.
type Config struct {
	Logfile string `toml:"log_file"`
	Level   string `toml:"level"`
	MaxSize int    `toml:"max_log_size"`
	MaxAge  int    `toml:"max_log_age"`
}

var (
	mu     sync.RWMutex
	mode   = InfoMode
	logger Logger = newStdLogger(os.Stderr, nil)
)

// SetLogMode changes the minimum level.
func SetLogMode(m ModeFlag) {
	mu.Lock()
	mode = m
	mu.Unlock()
}

// SetLogger replaces the sink and returns the previous one.
func SetLogger(l Logger) Logger {
	mu.Lock()
	defer mu.Unlock()
	prev := logger
	logger = l
	return prev
}

// Setup applies c: the level, and a rotating file if Logfile is set.
func Setup(c Config) error {
	m, err := ParseMode(c.Level)
	if err != nil {
		return err
	}
	SetLogMode(m)
	if c.Logfile == "" {
		return nil
	}
	l := &lumberjack.Logger{
		Filename: c.Logfile,
		MaxSize:  c.MaxSize,
		MaxAge:   c.MaxAge,
	}
	SetLogger(newStdLogger(l, l)).Shutdown()
	return nil
}

// Shutdown closes the current sink and goes back to stderr.
func Shutdown() {
	SetLogger(newStdLogger(os.Stderr, nil)).Shutdown()
}

func current() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func enabled(m ModeFlag) bool {
	mu.RLock()
	defer mu.RUnlock()
	return mode <= m
}

func Debugf(format string, args ...any) {
	if enabled(DebugMode) {
		current().Debugf(format, args...)
	}
}

func Infof(format string, args ...any) {
	if enabled(InfoMode) {
		current().Infof(format, args...)
	}
}

func Warningf(format string, args ...any) {
	if enabled(WarningMode) {
		current().Warningf(format, args...)
	}
}

func Errorf(format string, args ...any) {
	if enabled(ErrorMode) {
		current().Errorf(format, args...)
	}
}

func Criticalf(format string, args ...any) {
	if enabled(CriticalMode) {
		current().Criticalf(format, args...)
	}
}

// stdLogger prefixes each message with its level.
type stdLogger struct {
	*log.Logger
	closer io.Closer
}

func newStdLogger(w io.Writer, closer io.Closer) stdLogger {
	return stdLogger{Logger: log.New(w, "", log.LstdFlags), closer: closer}
}

func (s stdLogger) Debugf(format string, args ...any)    { s.Printf(" DEBUG "+format, args...) }
func (s stdLogger) Infof(format string, args ...any)     { s.Printf(" INFO "+format, args...) }
func (s stdLogger) Warningf(format string, args ...any)  { s.Printf(" WARNING "+format, args...) }
func (s stdLogger) Errorf(format string, args ...any)    { s.Printf(" ERROR "+format, args...) }
func (s stdLogger) Criticalf(format string, args ...any) { s.Printf(" CRITICAL "+format, args...) }

func (s stdLogger) Shutdown() {
	if s.closer != nil {
		s.closer.Close()
	}
}

// TimeLog appends the time since it was created to each message.
type TimeLog struct {
	start time.Time
}

func NewTimeLog() TimeLog {
	return TimeLog{time.Now()}
}

// Elapsed is the time since NewTimeLog.
func (t TimeLog) Elapsed() time.Duration { return time.Since(t.start) }

func (t TimeLog) Debugf(format string, args ...any) {
	Debugf(format+": %s", append(args, time.Since(t.start))...)
}

func (t TimeLog) Infof(format string, args ...any) {
	Infof(format+": %s", append(args, time.Since(t.start))...)
}
