package report

import (
	"strconv"
	"strings"
	"time"

	"github.com/yairfalse/aita/types"
)

// processDataFields is the exact field count of a process data report:
// pid, three I/O counter pairs, four timestamp words, four CPU time
// words, process name, exit code, parent pid, and six agent bookkeeping
// values. Anything else is a corrupt line.
const processDataFields = 24

// Windows file times count 100ns ticks since 1601-01-01; Unix time
// starts 11644473600s later.
const filetimeEpochDelta = 116444736000000000

// ProcessDataReport carries a terminated process's resource usage plus
// the monitoring agent's own bookkeeping for that process.
type ProcessDataReport struct {
	PID          uint32
	ProcessName  string
	IO           types.IOCounters
	CreationTime time.Time
	ExitTime     time.Time
	KernelTime   time.Duration
	UserTime     time.Duration
	ExitCode     uint32
	ParentPID    uint32
	// DetoursMaxHeapSize is the peak heap the injected agent used
	// inside this process.
	DetoursMaxHeapSize    uint64
	ManifestSize          uint64
	FinalHeapSize         uint64
	AllocatedPoolEntries  uint64
	MaxHandleMapEntries   uint64
	FinalHandleMapEntries uint64
}

// decodeProcessData parses the exactly-24-field decimal payload. The
// whole line is validated before anything is returned: there is no
// partially-decoded result.
func decodeProcessData(line, payload string) (ProcessDataReport, *LineError) {
	var r ProcessDataReport

	parts := strings.Split(payload, "|")
	if len(parts) != processDataFields {
		return r, fieldCountErr(line, "process data report has %d fields, need exactly %d", len(parts), processDataFields)
	}

	// All numeric fields first, so a bad field rejects the line before
	// any of it is used.
	v := make([]uint64, processDataFields)
	for i, part := range parts {
		if i == 15 {
			continue // process name
		}
		n, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return r, fieldParseErr(line, "process data field %d %q is not valid decimal", i, part)
		}
		v[i] = n
	}

	r.PID = uint32(v[0])
	r.IO = types.IOCounters{
		Read:  types.IOTypeCounters{Operations: v[1], TransferCount: v[2]},
		Write: types.IOTypeCounters{Operations: v[3], TransferCount: v[4]},
		Other: types.IOTypeCounters{Operations: v[5], TransferCount: v[6]},
	}
	r.CreationTime = filetimeToTime(v[7]<<32 | v[8])
	r.ExitTime = filetimeToTime(v[9]<<32 | v[10])
	r.KernelTime = ticksToDuration(v[11]<<32 | v[12])
	r.UserTime = ticksToDuration(v[13]<<32 | v[14])
	r.ProcessName = parts[15]
	r.ExitCode = uint32(v[16])
	r.ParentPID = uint32(v[17])
	r.DetoursMaxHeapSize = v[18]
	r.ManifestSize = v[19]
	r.FinalHeapSize = v[20]
	r.AllocatedPoolEntries = v[21]
	r.MaxHandleMapEntries = v[22]
	r.FinalHandleMapEntries = v[23]

	return r, nil
}

// filetimeToTime converts a 64-bit file time (100ns ticks since 1601)
// to wall-clock time. Zero stays the zero time.
func filetimeToTime(ft uint64) time.Time {
	if ft == 0 {
		return time.Time{}
	}
	return time.Unix(0, (int64(ft)-filetimeEpochDelta)*100).UTC()
}

// ticksToDuration converts a 100ns tick count to a duration.
func ticksToDuration(ticks uint64) time.Duration {
	return time.Duration(ticks) * 100 * time.Nanosecond
}
