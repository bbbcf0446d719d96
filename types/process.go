package types

import "time"

// IOTypeCounters counts operations and bytes transferred for one class
// of I/O performed by a process.
type IOTypeCounters struct {
	Operations    uint64 `json:"operations"`
	TransferCount uint64 `json:"transfer_count"`
}

// IOCounters aggregates a process's I/O by class.
type IOCounters struct {
	Read  IOTypeCounters `json:"read"`
	Write IOTypeCounters `json:"write"`
	Other IOTypeCounters `json:"other"`
}

// Process is one process observed in the sandboxed tree.
//
// PID is unique only for the process's lifetime; the OS reuses ids
// after exit. A Process is created when its start is reported and
// mutated in place when its exit statistics arrive. Records are
// retained for the whole aggregation session: the session keeps both an
// id-keyed view (while the process is active) and an insertion-ordered
// list, and both reference the same record.
type Process struct {
	PID  uint32 `json:"pid"`
	Path string `json:"path"`
	// Args is the command line the process was started with, when the
	// agent reported one.
	Args         string        `json:"args,omitempty"`
	CreationTime time.Time     `json:"creation_time,omitzero"`
	ExitTime     time.Time     `json:"exit_time,omitzero"`
	KernelTime   time.Duration `json:"kernel_time"`
	UserTime     time.Duration `json:"user_time"`
	ExitCode     uint32        `json:"exit_code"`
	ParentPID    uint32        `json:"parent_pid"`
	IO           IOCounters    `json:"io"`
}

// HasStatistics reports whether exit statistics were attached to the
// record, i.e. whether a ProcessData report arrived for it.
func (p *Process) HasStatistics() bool {
	return !p.ExitTime.IsZero()
}
