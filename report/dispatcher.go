// Package report implements the wire side of sandbox monitoring
// ingestion: line framing, the per-kind decoders, and the flow-control
// counter. It turns raw agent output into typed reports and hands them
// to a Handler; everything stateful (correlation, classification) lives
// behind that interface.
package report

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/yairfalse/aita/telemetry"
	"github.com/yairfalse/aita/types"
)

// Type is the leading numeric tag of a report line.
type Type uint8

const (
	// TypeNone is reserved and never valid on the wire.
	TypeNone Type = iota
	TypeFileAccess
	// TypeWindowsCall is a recognized tag this profile does not
	// support; receiving one is fatal.
	TypeWindowsCall
	TypeDebugMessage
	TypeProcessData
	TypeDetouringStatus

	maxType = TypeDetouringStatus
)

// String returns the tag name used in logs and metrics.
func (t Type) String() string {
	switch t {
	case TypeFileAccess:
		return "file_access"
	case TypeWindowsCall:
		return "windows_call"
	case TypeDebugMessage:
		return "debug_message"
	case TypeProcessData:
		return "process_data"
	case TypeDetouringStatus:
		return "detouring_status"
	default:
		return "invalid"
	}
}

// Handler consumes decoded reports. Implementations are driven by a
// single reader loop and need not be safe for concurrent calls. An
// error from a handler is terminal for the session, same as a decode
// failure.
type Handler interface {
	FileAccessReported(FileAccessReport) error
	ProcessDataReported(ProcessDataReport) error
	DetouringStatusReported(types.DetouringStatus) error
	DebugMessageReported(message string) error
}

// Dispatcher demultiplexes report lines by type tag and routes them to
// a Handler. The first failure is sticky: ProcessLine keeps returning
// it and the caller must stop pumping.
type Dispatcher struct {
	handler Handler
	counter Counter
	log     zerolog.Logger
	err     *LineError
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithCounter attaches a flow-control counter; the dispatcher consumes
// one unit per line.
func WithCounter(c Counter) Option {
	return func(d *Dispatcher) { d.counter = c }
}

// WithLogger sets the dispatcher's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(d *Dispatcher) { d.log = log }
}

// NewDispatcher creates a dispatcher feeding h.
func NewDispatcher(h Handler, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		handler: h,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Err returns the sticky terminal failure, if any.
func (d *Dispatcher) Err() error {
	if d.err == nil {
		return nil
	}
	return d.err
}

// ProcessLine ingests one report line. A nil return means the stream
// may continue; a non-nil return is the session's terminal failure and
// every later call returns it again without touching the line.
func (d *Dispatcher) ProcessLine(line string) error {
	if d.err != nil {
		return d.err
	}

	if d.counter != nil {
		if err := d.counter.TryDecrement(); err != nil {
			return d.fail(transportErr(line, "flow counter decrement failed: %v", err))
		}
	}

	sep := strings.IndexByte(line, ',')
	if sep < 0 {
		return d.fail(framingErr(line, "report line has no type tag separator"))
	}
	tag, payload := line[:sep], line[sep+1:]

	n, err := strconv.ParseUint(tag, 10, 32)
	if err != nil {
		return d.fail(framingErr(line, "report type tag %q is not numeric", tag))
	}
	if n == uint64(TypeNone) || n > uint64(maxType) {
		return d.fail(framingErr(line, "report type tag %d is out of range", n))
	}
	t := Type(n)
	if payload == "" {
		return d.fail(framingErr(line, "report payload is empty"))
	}

	telemetry.ReportLines.Add(context.Background(), 1, typeAttr(t))

	switch t {
	case TypeFileAccess:
		r, lerr := decodeFileAccess(line, payload)
		if lerr != nil {
			return d.fail(lerr)
		}
		if r.Operation == types.OpUnknown {
			d.log.Debug().Str("operation", r.OperationName).Msg("unrecognized file operation name, keeping as Unknown")
		}
		return d.handle(line, d.handler.FileAccessReported(r))
	case TypeDebugMessage:
		return d.handle(line, d.handler.DebugMessageReported(payload))
	case TypeProcessData:
		r, lerr := decodeProcessData(line, payload)
		if lerr != nil {
			return d.fail(lerr)
		}
		return d.handle(line, d.handler.ProcessDataReported(r))
	case TypeDetouringStatus:
		s, lerr := decodeDetouringStatus(line, payload)
		if lerr != nil {
			return d.fail(lerr)
		}
		return d.handle(line, d.handler.DetouringStatusReported(s))
	case TypeWindowsCall:
		return d.fail(framingErr(line, "Windows API call reports are not supported"))
	default:
		// Unreachable: every in-range tag is handled above.
		return d.fail(framingErr(line, "report type %d has no handler", n))
	}
}

// fail records the sticky failure and returns it.
func (d *Dispatcher) fail(lerr *LineError) error {
	d.err = lerr
	telemetry.ParseFailures.Add(context.Background(), 1)
	d.log.Error().Str("kind", lerr.Kind.String()).Str("line", lerr.Line).Msg(lerr.Cause)
	return lerr
}

// handle converts a handler error into the sticky failure.
func (d *Dispatcher) handle(line string, err error) error {
	if err == nil {
		return nil
	}
	if lerr, ok := err.(*LineError); ok {
		return d.fail(lerr)
	}
	return d.fail(&LineError{Kind: KindTransport, Line: line, Cause: err.Error()})
}

func typeAttr(t Type) metric.AddOption {
	return metric.WithAttributes(attribute.String("report.type", t.String()))
}

// Pump feeds newline-delimited lines from r into d until end of stream
// or the first failure. End of stream is success; blank lines are
// skipped as benign transport noise.
func Pump(ctx context.Context, r io.Reader, d *Dispatcher) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := d.ProcessLine(line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return transportErr("", "report stream read failed: %v", err)
	}
	return nil
}
