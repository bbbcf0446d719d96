package report

import (
	"strconv"
	"strings"

	"github.com/yairfalse/aita/types"
)

// fileAccessMinFields is the fixed field count every file access report
// carries after the operation name, regardless of operation:
// pid, requested access, status, explicit-report flag, error, USN,
// desired access, share mode, creation disposition, flags/attributes,
// manifest path id, path.
const fileAccessMinFields = 12

// FileAccessReport is one decoded file access line, still keyed by the
// transient pid; the aggregation session resolves it to a process
// record.
type FileAccessReport struct {
	Operation types.FileOperation
	// OperationName is the raw wire name, retained so unknown
	// operations stay diagnosable.
	OperationName       string
	PID                 uint32
	RequestedAccess     types.RequestedAccess
	Status              types.FileAccessStatus
	ExplicitlyReported  bool
	Error               uint32
	USN                 uint64
	DesiredAccess       uint32
	ShareMode           uint32
	CreationDisposition uint32
	FlagsAndAttributes  uint32
	ManifestPath        types.PathID
	Path                string
	EnumeratePattern    string
	// CommandLine is reconstructed only for process-creation reports,
	// where the tail fields are the child's arguments and may contain
	// the field separator themselves.
	CommandLine string
}

// decodeFileAccess parses `<operation>:<hex>|<hex>|...|<path>[|...]`.
//
// An unrecognized operation name maps to OpUnknown and is tolerated
// (the agent may be newer than this build), but the fixed numeric
// fields must still parse and status/access must be within their known
// enumerations. line is the full raw line, used only for error values.
func decodeFileAccess(line, payload string) (FileAccessReport, *LineError) {
	var r FileAccessReport

	colon := strings.IndexByte(payload, ':')
	if colon <= 0 {
		return r, framingErr(line, "file access report has no operation separator")
	}
	r.OperationName = payload[:colon]
	r.Operation, _ = types.OperationByName(r.OperationName)

	parts := strings.Split(payload[colon+1:], "|")
	if len(parts) < fileAccessMinFields {
		if r.Operation == types.OpProcess {
			return r, fieldCountErr(line, "process creation report has %d fields, need at least %d", len(parts), fileAccessMinFields)
		}
		return r, fieldCountErr(line, "file access report has %d fields, need at least %d", len(parts), fileAccessMinFields)
	}

	pid, lerr := hexField(line, parts, 0, 32, "process id")
	if lerr != nil {
		return r, lerr
	}
	requested, lerr := hexField(line, parts, 1, 32, "requested access")
	if lerr != nil {
		return r, lerr
	}
	if !types.ValidRequestedAccess(uint32(requested)) {
		return r, fieldParseErr(line, "requested access %#x out of range", requested)
	}
	status, lerr := hexField(line, parts, 2, 32, "file access status")
	if lerr != nil {
		return r, lerr
	}
	if !types.ValidFileAccessStatus(uint32(status)) {
		return r, fieldParseErr(line, "file access status %#x out of range", status)
	}
	explicit, lerr := hexField(line, parts, 3, 32, "explicit report flag")
	if lerr != nil {
		return r, lerr
	}
	osError, lerr := hexField(line, parts, 4, 32, "error code")
	if lerr != nil {
		return r, lerr
	}
	usn, lerr := hexField(line, parts, 5, 64, "change journal sequence number")
	if lerr != nil {
		return r, lerr
	}
	desired, lerr := hexField(line, parts, 6, 32, "desired access")
	if lerr != nil {
		return r, lerr
	}
	share, lerr := hexField(line, parts, 7, 32, "share mode")
	if lerr != nil {
		return r, lerr
	}
	disposition, lerr := hexField(line, parts, 8, 32, "creation disposition")
	if lerr != nil {
		return r, lerr
	}
	flags, lerr := hexField(line, parts, 9, 32, "flags and attributes")
	if lerr != nil {
		return r, lerr
	}
	manifestPath, lerr := hexField(line, parts, 10, 32, "manifest path id")
	if lerr != nil {
		return r, lerr
	}

	r.PID = uint32(pid)
	r.RequestedAccess = types.RequestedAccess(requested)
	r.Status = types.FileAccessStatus(status)
	r.ExplicitlyReported = explicit != 0
	r.Error = uint32(osError)
	r.USN = usn
	r.DesiredAccess = uint32(desired)
	r.ShareMode = uint32(share)
	r.CreationDisposition = uint32(disposition)
	r.FlagsAndAttributes = uint32(flags)
	r.ManifestPath = types.PathID(manifestPath)
	r.Path = parts[11]

	if r.Operation == types.OpProcess {
		// The tail is the child's command line, which may itself
		// contain the field separator; put it back together.
		if len(parts) > fileAccessMinFields {
			r.CommandLine = strings.Join(parts[fileAccessMinFields:], "|")
		}
	} else if len(parts) > fileAccessMinFields {
		r.EnumeratePattern = parts[fileAccessMinFields]
	}

	// The pattern only means something for directory enumeration.
	if r.RequestedAccess != types.RequestEnumerate {
		r.EnumeratePattern = ""
	}

	return r, nil
}

func hexField(line string, parts []string, i, bits int, what string) (uint64, *LineError) {
	v, err := strconv.ParseUint(parts[i], 16, bits)
	if err != nil {
		return 0, fieldParseErr(line, "%s %q is not valid hex", what, parts[i])
	}
	return v, nil
}
