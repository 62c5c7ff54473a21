package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/ohmynofan/questline-bot/internal/domain/model"
	"github.com/ohmynofan/questline-bot/internal/platform/ui"
	"github.com/sirupsen/logrus"
)

var (
	fileLogger = newDiscardLogger()
	mu         sync.Mutex
	logFile    *os.File
)

func newDiscardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Init truncates the log file at path and routes every logger to it.
func Init(path, level string) error {
	mu.Lock()
	defer mu.Unlock()

	_ = os.Remove(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}

	l := logrus.New()
	l.SetOutput(f)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05.000000", DisableColors: true})
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	logFile = f
	fileLogger = l
	return nil
}

func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		err := logFile.Close()
		logFile = nil
		fileLogger = newDiscardLogger()
		return err
	}
	return nil
}

// SetOutput redirects file logging, mainly for tests.
func SetOutput(w io.Writer, level logrus.Level) {
	mu.Lock()
	defer mu.Unlock()
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)
	fileLogger = l
}

func base() *logrus.Logger {
	mu.Lock()
	defer mu.Unlock()
	return fileLogger
}

// ClassLogger writes to the log file and mirrors non-debug messages onto
// the account's console status line.
type ClassLogger struct {
	class string
	state *model.AccountState
}

func NewLogger(v interface{}, state *model.AccountState) *ClassLogger {
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return &ClassLogger{class: t.Name(), state: state}
}

func NewNamed(name string, state *model.AccountState) *ClassLogger {
	return &ClassLogger{class: name, state: state}
}

func (l *ClassLogger) entry(skip int) *logrus.Entry {
	fields := logrus.Fields{"class": l.class, "func": callerFunc(skip)}
	if l.state != nil {
		fields["account"] = l.state.Index + 1
		if l.state.Address != "" && l.state.Address != "-" {
			fields["address"] = l.state.Address
		}
	}
	return base().WithFields(fields)
}

func (l *ClassLogger) Debug(msg string) { l.entry(3).Debug(msg) }
func (l *ClassLogger) Info(msg string)  { l.write(logrus.InfoLevel, msg, false) }
func (l *ClassLogger) Warn(msg string)  { l.write(logrus.WarnLevel, msg, false) }
func (l *ClassLogger) Error(msg string) { l.write(logrus.ErrorLevel, msg, false) }

// Success logs at info level tagged as a successful outcome.
func (l *ClassLogger) Success(msg string) { l.write(logrus.InfoLevel, msg, true) }

func (l *ClassLogger) Debugf(format string, args ...interface{}) {
	l.entry(3).Debug(fmt.Sprintf(format, args...))
}
func (l *ClassLogger) Infof(format string, args ...interface{}) {
	l.write(logrus.InfoLevel, fmt.Sprintf(format, args...), false)
}
func (l *ClassLogger) Warnf(format string, args ...interface{}) {
	l.write(logrus.WarnLevel, fmt.Sprintf(format, args...), false)
}
func (l *ClassLogger) Errorf(format string, args ...interface{}) {
	l.write(logrus.ErrorLevel, fmt.Sprintf(format, args...), false)
}
func (l *ClassLogger) Successf(format string, args ...interface{}) {
	l.write(logrus.InfoLevel, fmt.Sprintf(format, args...), true)
}

func (l *ClassLogger) write(level logrus.Level, msg string, success bool) {
	e := l.entry(4)
	if success {
		e = e.WithField("result", "success")
	}
	e.Log(level, msg)

	if l.state != nil {
		ui.UpdateStatus(*l.state, shortenForDisplay(msg), 0)
	}
}

// Wait blocks for d while showing a countdown. It returns ctx.Err() if the
// context ends first.
func (l *ClassLogger) Wait(ctx context.Context, d time.Duration, msg string) error {
	if d <= 0 {
		return ctx.Err()
	}
	l.entry(3).Debugf("%s (%s)", msg, d)

	deadline := time.Now().Add(d)
	display := shortenForDisplay(msg)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		if l.state != nil {
			ui.UpdateStatus(*l.state, display, time.Until(deadline))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			if l.state != nil {
				ui.UpdateStatus(*l.state, display, 0)
			}
			return nil
		case <-ticker.C:
		}
	}
}

func callerFunc(skip int) string {
	pc, _, _, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "unknown"
	}
	parts := strings.Split(fn.Name(), ".")
	return parts[len(parts)-1]
}

func shortenForDisplay(msg string) string {
	const maxLen = 140
	runes := []rune(msg)
	if len(runes) <= maxLen {
		return msg
	}
	return string(runes[:maxLen-1]) + "…"
}
