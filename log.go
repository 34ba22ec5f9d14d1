package rmi

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/weldarc/rmi/internal/broadcast"
)

// LogEntry is a single line published on the driver's log channel.
// The log channel always carries every level; LogLevel only gates the
// optional terminal sink.
type LogEntry struct {
	Time    time.Time
	Level   LogLevel
	Message string
}

// logger owns the log broadcast and an optional terminal sink,
// generalizing the teacher's bare log.Printf call sites into a
// subscribable channel the outer application can drain (spec's "log
// channel" requirement).
type logger struct {
	bus      *broadcast.Broadcaster[LogEntry]
	minLevel LogLevel
	sink     *log.Logger
}

func newLogger(minLevel LogLevel) *logger {
	return &logger{
		bus:      broadcast.New[LogEntry](64),
		minLevel: minLevel,
		sink:     log.New(os.Stderr, "rmi: ", log.LstdFlags),
	}
}

func (l *logger) log(level LogLevel, format string, args ...any) {
	entry := LogEntry{Time: time.Now(), Level: level, Message: fmt.Sprintf(format, args...)}
	l.bus.Publish(entry)
	if level <= l.minLevel {
		l.sink.Printf("[%s] %s", level, entry.Message)
	}
}

func (l *logger) errorf(format string, args ...any) { l.log(LogError, format, args...) }
func (l *logger) warnf(format string, args ...any)  { l.log(LogWarn, format, args...) }
func (l *logger) infof(format string, args ...any)  { l.log(LogInfo, format, args...) }
func (l *logger) debugf(format string, args ...any) { l.log(LogDebug, format, args...) }

// subscribe returns a subscription to the log channel.
func (l *logger) subscribe() *broadcast.Subscription[LogEntry] { return l.bus.Subscribe() }

func (l *logger) close() { l.bus.Close() }
