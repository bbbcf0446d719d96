package report

import (
	"strconv"
	"strings"

	"github.com/yairfalse/aita/types"
)

// detouringStatusMinFields is the fixed prefix of a detouring status
// report; everything from the 12th field on is the original command
// line, rejoined because it may contain the separator itself.
const detouringStatusMinFields = 12

// decodeDetouringStatus parses the injection-status payload. Boolean
// fields are integer-coded, nonzero is true.
func decodeDetouringStatus(line, payload string) (types.DetouringStatus, *LineError) {
	var s types.DetouringStatus

	parts := strings.Split(payload, "|")
	if len(parts) < detouringStatusMinFields {
		return s, fieldCountErr(line, "detouring status report has %d fields, need at least %d", len(parts), detouringStatusMinFields)
	}

	pid, lerr := decField(line, parts, 0, 64, "process id")
	if lerr != nil {
		return s, lerr
	}
	status, lerr := decField(line, parts, 1, 32, "report status")
	if lerr != nil {
		return s, lerr
	}
	needsInjection, lerr := decField(line, parts, 4, 64, "needs-injection flag")
	if lerr != nil {
		return s, lerr
	}
	job, lerr := decField(line, parts, 5, 64, "job handle")
	if lerr != nil {
		return s, lerr
	}
	disableDetours, lerr := decField(line, parts, 6, 64, "disable-detours flag")
	if lerr != nil {
		return s, lerr
	}
	creationFlags, lerr := decField(line, parts, 7, 32, "creation flags")
	if lerr != nil {
		return s, lerr
	}
	detoured, lerr := decField(line, parts, 8, 64, "detoured flag")
	if lerr != nil {
		return s, lerr
	}
	osError, lerr := decField(line, parts, 9, 32, "error code")
	if lerr != nil {
		return s, lerr
	}
	createReturn, lerr := decField(line, parts, 10, 32, "process creation return code")
	if lerr != nil {
		return s, lerr
	}

	s.ProcessID = pid
	s.ReportStatus = uint32(status)
	s.ProcessName = parts[2]
	s.StartApplicationName = parts[3]
	s.NeedsInjection = needsInjection != 0
	s.Job = job
	s.DisableDetours = disableDetours != 0
	s.CreationFlags = uint32(creationFlags)
	s.Detoured = detoured != 0
	s.Error = uint32(osError)
	s.CreateProcessStatusReturn = uint32(createReturn)
	s.CommandLine = strings.Join(parts[detouringStatusMinFields-1:], "|")

	return s, nil
}

func decField(line string, parts []string, i, bits int, what string) (uint64, *LineError) {
	v, err := strconv.ParseUint(parts[i], 10, bits)
	if err != nil {
		return 0, fieldParseErr(line, "%s %q is not valid decimal", what, parts[i])
	}
	return v, nil
}
