package session

import (
	"context"
	"sort"

	"github.com/yairfalse/aita/telemetry"
	"github.com/yairfalse/aita/types"
)

// Report is the frozen result of an aggregation session. Every field
// is read-only after Freeze returns; the builder that produced it can
// no longer mutate anything, so the report may be read from any
// goroutine.
type Report struct {
	// Processes is every observed process in start order, including
	// reused-pid successors. Never trimmed.
	Processes []*types.Process
	// Surviving is the subset of Processes whose pid never reported an
	// exit: the set difference of ever-active minus ever-exited ids,
	// not a snapshot of the active table, so out-of-order exits do not
	// resurrect a closed process.
	Surviving []*types.Process

	// ExplicitAccesses holds allowed accesses the policy marked for
	// capture. UnexpectedAccesses holds denied accesses and those the
	// agent could not match against policy. The two are disjoint by
	// construction. AuditAccesses holds everything when audit
	// collection was enabled, independent of outcome.
	ExplicitAccesses   map[types.FileAccess]struct{}
	UnexpectedAccesses map[types.FileAccess]struct{}
	AuditAccesses      map[types.FileAccess]struct{}

	DetouringStatuses []types.DetouringStatus

	// MaxDetoursHeapSize is the largest agent heap watermark any
	// process reported.
	MaxDetoursHeapSize uint64
	// ReadWriteDowngraded is set when the agent downgraded at least
	// one requested read/write access to read-only.
	ReadWriteDowngraded bool
}

// Freeze consumes the builder and returns the immutable report. Any
// later call on the builder panics; downstream consumers may start
// reading the report while nothing can write anymore.
func (b *Builder) Freeze() *Report {
	b.mustOpen()
	b.frozen = true

	surviving := make([]*types.Process, 0)
	for _, p := range b.processes {
		if _, exited := b.exited[p.PID]; !exited {
			surviving = append(surviving, p)
		}
	}

	telemetry.SessionsFrozen.Add(context.Background(), 1)

	return &Report{
		Processes:           b.processes,
		Surviving:           surviving,
		ExplicitAccesses:    b.explicit,
		UnexpectedAccesses:  b.unexpected,
		AuditAccesses:       b.audit,
		DetouringStatuses:   b.detouring,
		MaxDetoursHeapSize:  b.maxDetoursHeap,
		ReadWriteDowngraded: b.rwDowngraded,
	}
}

// UnexpectedPaths returns the distinct paths of the unexpected set,
// sorted, for summaries and logs.
func (r *Report) UnexpectedPaths() []string {
	seen := make(map[string]struct{}, len(r.UnexpectedAccesses))
	for a := range r.UnexpectedAccesses {
		if a.Path != "" {
			seen[a.Path] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// FailedInjections returns the detouring statuses of children that
// needed monitoring but did not get it.
func (r *Report) FailedInjections() []types.DetouringStatus {
	var out []types.DetouringStatus
	for _, s := range r.DetouringStatuses {
		if s.NeedsInjection && !s.Detoured {
			out = append(out, s)
		}
	}
	return out
}
