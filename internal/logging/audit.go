package logging

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// AuditLevel is the severity of an audit entry. internal/server maps each
// protocol.StatusLevel it publishes onto one of these levels when it
// records the status message here.
type AuditLevel int

const (
	AuditInfo AuditLevel = iota
	AuditWarning
	AuditError
	AuditCritical
)

func (l AuditLevel) String() string {
	switch l {
	case AuditInfo:
		return "INFO"
	case AuditWarning:
		return "WARNING"
	case AuditError:
		return "ERROR"
	case AuditCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Alerter receives audit entries at or above a configured minimum level.
// Implementations must not block the audit call for long; fan this out
// in a goroutine if a remote call is involved.
type Alerter interface {
	Alert(level AuditLevel, event, message string, details map[string]any)
}

// ConsoleAlerter writes alerts through the given logger. Useful as
// the default when no external sink (Slack, PagerDuty, ...) is wired.
type ConsoleAlerter struct {
	logger zerolog.Logger
}

func NewConsoleAlerter(logger zerolog.Logger) *ConsoleAlerter {
	return &ConsoleAlerter{logger: logger}
}

func (c *ConsoleAlerter) Alert(level AuditLevel, event, message string, details map[string]any) {
	e := c.logger.Warn()
	if level >= AuditError {
		e = c.logger.Error()
	}
	ev := e.Str("audit_event", event)
	for k, v := range details {
		ev = ev.Interface(k, v)
	}
	ev.Msg(message)
}

// Entry is one recorded audit occurrence.
type Entry struct {
	ID      string
	Level   AuditLevel
	Event   string
	Message string
	Details map[string]any
	At      time.Time
}

// AuditLogger records operationally significant events (slow-client
// disconnects, admission rejections, capability violations) and can
// forward at-or-above-threshold entries to an Alerter. Every recorded
// entry is also kept in memory, keyed by its audit id, until Remove is
// called with that id; nothing reads these entries back, and they are
// not replayed to newly connected sessions.
type AuditLogger struct {
	logger    zerolog.Logger
	minLevel  AuditLevel
	alerter   Alerter
	seq       int64
	mu        sync.RWMutex
	live      map[string]Entry // audit id -> entry, dropped by Remove
}

func NewAuditLogger(logger zerolog.Logger, minLevel AuditLevel) *AuditLogger {
	return &AuditLogger{
		logger:   logger,
		minLevel: minLevel,
		live:     make(map[string]Entry),
	}
}

func (a *AuditLogger) SetAlerter(alerter Alerter) { a.alerter = alerter }

func (a *AuditLogger) record(level AuditLevel, event, message string, details map[string]any) Entry {
	id := fmt.Sprintf("%s-%d", event, atomic.AddInt64(&a.seq, 1))
	entry := Entry{ID: id, Level: level, Event: event, Message: message, Details: details, At: time.Now()}

	le := a.logger.Info()
	switch level {
	case AuditWarning:
		le = a.logger.Warn()
	case AuditError:
		le = a.logger.Error()
	case AuditCritical:
		le = a.logger.Error()
	}
	le = le.Str("audit_event", event).Str("audit_id", id)
	for k, v := range details {
		le = le.Interface(k, v)
	}
	le.Msg(message)

	a.mu.Lock()
	a.live[id] = entry
	a.mu.Unlock()

	if level >= a.minLevel && a.alerter != nil {
		go a.alerter.Alert(level, event, message, details)
	}
	return entry
}

func (a *AuditLogger) Info(event, message string, details map[string]any) Entry {
	return a.record(AuditInfo, event, message, details)
}
func (a *AuditLogger) Warning(event, message string, details map[string]any) Entry {
	return a.record(AuditWarning, event, message, details)
}
func (a *AuditLogger) Error(event, message string, details map[string]any) Entry {
	return a.record(AuditError, event, message, details)
}
func (a *AuditLogger) Critical(event, message string, details map[string]any) Entry {
	return a.record(AuditCritical, event, message, details)
}

// Remove drops a recorded entry by id, mirroring the protocol's
// removeStatus semantics.
func (a *AuditLogger) Remove(id string) {
	a.mu.Lock()
	delete(a.live, id)
	a.mu.Unlock()
}
