// Package session aggregates decoded monitoring reports into the
// result of one sandboxed run: the process tree, the classified file
// access sets, and the injection statuses. A session has two phases:
// an open Builder that the reader loop feeds, and an immutable Report
// produced by Freeze.
package session

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/yairfalse/aita/observer"
	"github.com/yairfalse/aita/paths"
	"github.com/yairfalse/aita/report"
	"github.com/yairfalse/aita/telemetry"
	"github.com/yairfalse/aita/types"
)

// Builder is the open phase of an aggregation session. It implements
// report.Handler and is driven by exactly one reader loop; it is not
// safe for concurrent mutation. Freeze consumes it.
type Builder struct {
	log       zerolog.Logger
	table     paths.Table
	translate paths.Translator
	interner  *paths.Interner
	listener  observer.Listener

	collectAudit bool

	// active maps a pid to the most recent still-open process using
	// it. recent keeps the last record per pid even after exit, so
	// late statistics still find their process.
	active map[uint32]*types.Process
	recent map[uint32]*types.Process
	// processes is insertion-ordered and never shrinks; records are
	// shared with the pid-keyed views.
	processes []*types.Process
	// placeholders holds the synthetic record synthesized per pid when
	// an access arrives for a process whose start was never seen; one
	// per pid, so equal accesses stay equal.
	placeholders map[uint32]*types.Process
	// exited records every pid that ever reported an exit,
	// independent of the active table, because exits may arrive on a
	// different channel than accesses and thus out of order.
	exited map[uint32]struct{}

	explicit   map[types.FileAccess]struct{}
	unexpected map[types.FileAccess]struct{}
	audit      map[types.FileAccess]struct{}

	detouring []types.DetouringStatus

	maxDetoursHeap uint64
	rwDowngraded   bool
	frozen         bool
}

// Option configures a Builder.
type Option func(*Builder)

// WithPathTable attaches the manifest path table used to drop resolved
// paths identical to their scope path.
func WithPathTable(t paths.Table) Option {
	return func(b *Builder) { b.table = t }
}

// WithTranslator sets the directory translation applied to every
// resolved path before further processing.
func WithTranslator(t paths.Translator) Option {
	return func(b *Builder) { b.translate = t }
}

// WithListener attaches a live notification listener.
func WithListener(l observer.Listener) Option {
	return func(b *Builder) { b.listener = l }
}

// WithAuditCollection enables the full audit set, which captures every
// access regardless of outcome.
func WithAuditCollection(enabled bool) Option {
	return func(b *Builder) { b.collectAudit = enabled }
}

// WithLogger sets the session logger.
func WithLogger(log zerolog.Logger) Option {
	return func(b *Builder) { b.log = log }
}

// NewBuilder creates an open session.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		log:          zerolog.Nop(),
		translate:    paths.Identity,
		interner:     paths.NewInterner(),
		listener:     observer.Nop{},
		active:       make(map[uint32]*types.Process),
		recent:       make(map[uint32]*types.Process),
		placeholders: make(map[uint32]*types.Process),
		exited:       make(map[uint32]struct{}),
		explicit:     make(map[types.FileAccess]struct{}),
		unexpected:   make(map[types.FileAccess]struct{}),
		audit:        make(map[types.FileAccess]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// mustOpen guards every mutation: touching a session after Freeze is a
// programming error, not a recoverable condition.
func (b *Builder) mustOpen() {
	if b.frozen {
		panic("session: mutation after freeze")
	}
}

// FileAccessReported correlates one decoded access with its process and
// classifies it.
func (b *Builder) FileAccessReported(r report.FileAccessReport) error {
	b.mustOpen()

	// A read/write downgrade is never stored as an access record; it
	// only flips the sticky flag.
	if r.Operation == types.OpChangedReadWriteToReadAccess {
		if !b.rwDowngraded {
			b.log.Warn().Uint32("pid", r.PID).Msg("agent downgraded a read/write access to read")
		}
		b.rwDowngraded = true
		return nil
	}

	var proc *types.Process
	var path string

	switch r.Operation {
	case types.OpProcess:
		path = b.translate.Translate(r.Path)
		proc = b.registerProcess(r.PID, path, r.CommandLine)
	case types.OpProcessExit:
		b.exited[r.PID] = struct{}{}
		active, ok := b.active[r.PID]
		if !ok {
			// Exit for a process we never saw start, or saw exit
			// already: absorbed without an access record.
			return nil
		}
		delete(b.active, r.PID)
		proc = active
		// The exit notification carries no path of its own.
		path = active.Path
	default:
		active, ok := b.active[r.PID]
		if !ok {
			// Reordering can deliver accesses for a pid whose start
			// we have not seen (or that already exited). Completeness
			// wins over identity here: synthesize a placeholder, one
			// per pid so equal accesses stay equal.
			active, ok = b.placeholders[r.PID]
			if !ok {
				active = &types.Process{PID: r.PID}
				b.placeholders[r.PID] = active
			}
		}
		proc = active
		path = b.translate.Translate(r.Path)
	}

	// Zero-length paths are benign noise from some tools.
	if path == "" {
		return nil
	}

	// Avoid storing the path twice when it is exactly the scope path
	// the manifest already names.
	distinct := path
	if b.table != nil {
		if scope, ok := b.table.Expand(r.ManifestPath); ok && strings.EqualFold(scope, path) {
			distinct = ""
		}
	}
	if distinct != "" {
		distinct = b.interner.Intern(distinct)
	}

	access := types.FileAccess{
		Operation:           r.Operation,
		Process:             proc,
		RequestedAccess:     r.RequestedAccess,
		Status:              r.Status,
		ExplicitlyReported:  r.ExplicitlyReported,
		Error:               r.Error,
		USN:                 r.USN,
		DesiredAccess:       r.DesiredAccess,
		ShareMode:           r.ShareMode,
		CreationDisposition: r.CreationDisposition,
		FlagsAndAttributes:  r.FlagsAndAttributes,
		ManifestPath:        r.ManifestPath,
		Path:                distinct,
		EnumeratePattern:    r.EnumeratePattern,
	}

	b.classify(access)

	if b.listener.Categories().Has(observer.CategoryFileAccess) {
		b.listener.FileAccess(access)
	}
	return nil
}

// registerProcess creates and registers a process record for a start
// event. A reused pid simply re-enters the active table; the old record
// stays on the ordered list.
func (b *Builder) registerProcess(pid uint32, path, args string) *types.Process {
	proc := &types.Process{PID: pid, Path: path, Args: args}
	b.active[pid] = proc
	b.recent[pid] = proc
	b.processes = append(b.processes, proc)
	telemetry.ProcessesSeen.Add(context.Background(), 1)
	return proc
}

// classify adds the access to each set whose membership test it
// passes. The tests are independent, not a priority chain: the
// explicit and unexpected sets are disjoint by construction, and the
// audit set captures everything when enabled.
func (b *Builder) classify(access types.FileAccess) {
	if access.Status == types.AccessAllowed && access.ExplicitlyReported {
		b.explicit[access] = struct{}{}
		telemetry.AccessesClassified.Add(context.Background(), 1, setAttr("explicit"))
	}
	if access.Status != types.AccessAllowed {
		b.unexpected[access] = struct{}{}
		telemetry.AccessesClassified.Add(context.Background(), 1, setAttr("unexpected"))
	}
	if b.collectAudit {
		b.audit[access] = struct{}{}
		telemetry.AccessesClassified.Add(context.Background(), 1, setAttr("audit"))
	}
}

func setAttr(set string) metric.AddOption {
	return metric.WithAttributes(attribute.String("access.set", set))
}

// ProcessDataReported attaches exit statistics to the process they
// describe. Statistics for an unknown pid are tolerated; the agent's
// heap watermark is tracked either way.
func (b *Builder) ProcessDataReported(pd report.ProcessDataReport) error {
	b.mustOpen()

	if pd.DetoursMaxHeapSize > b.maxDetoursHeap {
		b.maxDetoursHeap = pd.DetoursMaxHeapSize
	}

	proc, ok := b.recent[pd.PID]
	if !ok {
		b.log.Debug().Uint32("pid", pd.PID).Str("process", pd.ProcessName).
			Msg("process data for a process that never reported a start")
	} else {
		proc.CreationTime = pd.CreationTime
		proc.ExitTime = pd.ExitTime
		proc.KernelTime = pd.KernelTime
		proc.UserTime = pd.UserTime
		proc.ExitCode = pd.ExitCode
		proc.ParentPID = pd.ParentPID
		proc.IO = pd.IO
	}

	if b.listener.Categories().Has(observer.CategoryProcessData) {
		b.listener.ProcessData(pd.PID, pd.ProcessName, pd.IO)
	}
	return nil
}

// DetouringStatusReported collects an injection status record.
func (b *Builder) DetouringStatusReported(s types.DetouringStatus) error {
	b.mustOpen()
	b.detouring = append(b.detouring, s)

	if b.listener.Categories().Has(observer.CategoryDetouringStatus) {
		b.listener.DetouringStatus(s)
	}
	return nil
}

// DebugMessageReported forwards an agent debug message to the listener
// when one is subscribed, otherwise it is only logged.
func (b *Builder) DebugMessageReported(message string) error {
	b.mustOpen()
	if b.listener.Categories().Has(observer.CategoryDebugMessage) {
		b.listener.DebugMessage(message)
		return nil
	}
	b.log.Debug().Str("message", message).Msg("agent debug message")
	return nil
}
