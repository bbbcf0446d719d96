package report

import "fmt"

// ErrorKind partitions ingestion failures by the wire taxonomy.
type ErrorKind uint8

const (
	// KindFraming covers a missing separator, an unknown or reserved
	// type tag, or an empty payload.
	KindFraming ErrorKind = iota + 1
	// KindFieldCount covers a payload with the wrong number of fields.
	KindFieldCount
	// KindFieldParse covers a field that is not valid hex/decimal for
	// its position or decodes outside a known enumeration.
	KindFieldParse
	// KindTransport covers failures of the flow-control counter.
	KindTransport
)

// String returns the kind name used in failure messages.
func (k ErrorKind) String() string {
	switch k {
	case KindFraming:
		return "framing"
	case KindFieldCount:
		return "field count"
	case KindFieldParse:
		return "field parse"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// LineError is the single sticky failure value of an ingestion session.
// It carries the raw offending line so a failed run can be diagnosed
// from the error alone. Any LineError is terminal: the caller must stop
// pumping lines once one is observed.
type LineError struct {
	Kind  ErrorKind
	Line  string
	Cause string
}

// Error implements the error interface.
func (e *LineError) Error() string {
	return fmt.Sprintf("report line rejected (%s): %s: line %q", e.Kind, e.Cause, e.Line)
}

func framingErr(line, format string, args ...any) *LineError {
	return &LineError{Kind: KindFraming, Line: line, Cause: fmt.Sprintf(format, args...)}
}

func fieldCountErr(line, format string, args ...any) *LineError {
	return &LineError{Kind: KindFieldCount, Line: line, Cause: fmt.Sprintf(format, args...)}
}

func fieldParseErr(line, format string, args ...any) *LineError {
	return &LineError{Kind: KindFieldParse, Line: line, Cause: fmt.Sprintf(format, args...)}
}

func transportErr(line, format string, args ...any) *LineError {
	return &LineError{Kind: KindTransport, Line: line, Cause: fmt.Sprintf(format, args...)}
}
