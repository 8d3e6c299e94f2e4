// Package logger provides the per-subsystem logging backend used across
// corechain. It is adapted from daglabs-btcd's logger/logger.go: a single
// rotating backend shared by small subsystem-tagged loggers.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/jrick/logrotate/rotator"
)

// Level is a log severity, ordered least to most severe.
type Level uint8

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelCritical
	LevelOff
)

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRC"
	case LevelDebug:
		return "DBG"
	case LevelInfo:
		return "INF"
	case LevelWarn:
		return "WRN"
	case LevelError:
		return "ERR"
	case LevelCritical:
		return "CRT"
	default:
		return "OFF"
	}
}

// Backend fans a formatted line out to stdout and, once initialized, to a
// rotating log file. Before InitLogRotator is called it writes to stdout
// (and any subscribers) only.
type Backend struct {
	mu          sync.Mutex
	rotator     *rotator.Rotator
	minLevel    Level
	subscribers map[chan []byte]struct{}
}

// NewBackend returns a Backend writing at LevelInfo and above until
// reconfigured.
func NewBackend() *Backend {
	return &Backend{minLevel: LevelInfo}
}

// InitLogRotator opens (or creates) a rotating log file at logFile, capped at
// maxRolls rotations of the default size.
func (b *Backend) InitLogRotator(logFile string, maxRolls int) error {
	r, err := rotator.New(logFile, 10*1024, false, maxRolls)
	if err != nil {
		return fmt.Errorf("failed to create log rotator: %w", err)
	}
	b.mu.Lock()
	b.rotator = r
	b.mu.Unlock()
	return nil
}

// SetLevel changes the minimum level written by every Logger derived from
// this backend.
func (b *Backend) SetLevel(l Level) {
	b.mu.Lock()
	b.minLevel = l
	b.mu.Unlock()
}

func (b *Backend) write(p []byte) {
	os.Stdout.Write(p)
	b.mu.Lock()
	r := b.rotator
	subs := make([]chan []byte, 0, len(b.subscribers))
	for ch := range b.subscribers {
		subs = append(subs, ch)
	}
	b.mu.Unlock()
	if r != nil {
		r.Write(p)
	}
	line := append([]byte{}, p...)
	for _, ch := range subs {
		select {
		case ch <- line:
		default: // slow subscriber drops a line rather than blocking logging
		}
	}
}

// Subscribe returns a channel receiving every subsequently logged line
// (newline-terminated, as written), for streaming endpoints like a
// /logs/tail websocket. Call Unsubscribe with the same channel when done.
func (b *Backend) Subscribe() chan []byte {
	ch := make(chan []byte, 256)
	b.mu.Lock()
	if b.subscribers == nil {
		b.subscribers = make(map[chan []byte]struct{})
	}
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe stops ch from receiving further lines and closes it.
func (b *Backend) Unsubscribe(ch chan []byte) {
	b.mu.Lock()
	delete(b.subscribers, ch)
	b.mu.Unlock()
	close(ch)
}

// Logger is a subsystem-tagged front end onto a shared Backend.
type Logger struct {
	tag     string
	backend *Backend
}

// Logger returns a subsystem logger tagged with the given short code (e.g.
// "MEMP", "RPCS", "CNSS"), matching the teacher's per-subsystem tag style.
func (b *Backend) Logger(tag string) *Logger {
	return &Logger{tag: tag, backend: b}
}

// Default is the single backend shared by every subsystem in the process,
// matching the teacher's one-backendLog-many-subsystem-loggers wiring.
var Default = NewBackend()

// NewSubsystem returns a Logger for tag backed by Default. Subsystem
// packages call this once at package-init time; the process entry point
// later reconfigures Default via InitLogRotator/SetLevel.
func NewSubsystem(tag string) *Logger {
	return Default.Logger(tag)
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	l.backend.mu.Lock()
	min := l.backend.minLevel
	l.backend.mu.Unlock()
	if level < min {
		return
	}
	msg := fmt.Sprintf(format, args...)
	line := fmt.Sprintf("%s [%s] %s: %s\n",
		time.Now().UTC().Format("2006-01-02 15:04:05.000"), level, l.tag, msg)
	l.backend.write([]byte(line))
}

func (l *Logger) Tracef(format string, args ...interface{})    { l.log(LevelTrace, format, args...) }
func (l *Logger) Debugf(format string, args ...interface{})    { l.log(LevelDebug, format, args...) }
func (l *Logger) Infof(format string, args ...interface{})     { l.log(LevelInfo, format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})     { l.log(LevelWarn, format, args...) }
func (l *Logger) Errorf(format string, args ...interface{})    { l.log(LevelError, format, args...) }
func (l *Logger) Criticalf(format string, args ...interface{}) { l.log(LevelCritical, format, args...) }

// Writer exposes the logger as an io.Writer at LevelInfo, for handing to
// packages (e.g. http.Server.ErrorLog) that want a plain writer.
func (l *Logger) Writer() io.Writer { return infoWriter{l} }

type infoWriter struct{ l *Logger }

func (w infoWriter) Write(p []byte) (int, error) {
	w.l.Infof("%s", p)
	return len(p), nil
}
