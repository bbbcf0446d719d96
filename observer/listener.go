// Package observer defines the optional live-notification surface of an
// aggregation session. A Listener subscribes to report categories via a
// capability bitset; the session invokes a callback only when its bit
// is set, and the default is no listener at all.
package observer

import (
	"github.com/rs/zerolog"

	"github.com/yairfalse/aita/types"
)

// Category is a bitset of report categories a listener subscribes to.
type Category uint8

const (
	CategoryDebugMessage Category = 1 << iota
	CategoryFileAccess
	CategoryProcessData
	CategoryDetouringStatus

	CategoryAll = CategoryDebugMessage | CategoryFileAccess | CategoryProcessData | CategoryDetouringStatus
)

// Has reports whether c includes cat.
func (c Category) Has(cat Category) bool { return c&cat != 0 }

// Listener receives live notifications while a session ingests reports.
// Callbacks run synchronously on the session's reader loop and must not
// block; anything expensive belongs on the listener's own side.
type Listener interface {
	// Categories returns the categories this listener wants. Checked
	// once per event, so it may vary over a session's lifetime.
	Categories() Category

	DebugMessage(message string)
	FileAccess(access types.FileAccess)
	ProcessData(pid uint32, name string, io types.IOCounters)
	DetouringStatus(status types.DetouringStatus)
}

// Nop is the default listener: subscribed to nothing.
type Nop struct{}

// Categories returns the empty set.
func (Nop) Categories() Category { return 0 }

func (Nop) DebugMessage(string)                          {}
func (Nop) FileAccess(types.FileAccess)                  {}
func (Nop) ProcessData(uint32, string, types.IOCounters) {}
func (Nop) DetouringStatus(types.DetouringStatus)        {}

// LogListener forwards every subscribed event to a zerolog logger.
// Useful when debugging a monitoring agent.
type LogListener struct {
	Log zerolog.Logger
	// Subscribed defaults to CategoryAll when zero.
	Subscribed Category
}

// Categories returns the configured subscription.
func (l *LogListener) Categories() Category {
	if l.Subscribed == 0 {
		return CategoryAll
	}
	return l.Subscribed
}

// DebugMessage logs an agent debug message.
func (l *LogListener) DebugMessage(message string) {
	l.Log.Debug().Str("message", message).Msg("agent debug message")
}

// FileAccess logs one classified file access.
func (l *LogListener) FileAccess(access types.FileAccess) {
	l.Log.Debug().
		Uint32("pid", access.Process.PID).
		Str("operation", access.Operation.String()).
		Str("status", access.Status.String()).
		Str("path", access.Path).
		Msg("file access")
}

// ProcessData logs process exit statistics.
func (l *LogListener) ProcessData(pid uint32, name string, io types.IOCounters) {
	l.Log.Debug().
		Uint32("pid", pid).
		Str("process", name).
		Uint64("read_bytes", io.Read.TransferCount).
		Uint64("write_bytes", io.Write.TransferCount).
		Msg("process data")
}

// DetouringStatus logs an injection status record.
func (l *LogListener) DetouringStatus(status types.DetouringStatus) {
	l.Log.Debug().
		Uint64("pid", status.ProcessID).
		Str("process", status.ProcessName).
		Bool("detoured", status.Detoured).
		Msg("detouring status")
}
