package report

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/aita/types"
)

// captureHandler records everything the dispatcher routes to it.
type captureHandler struct {
	accesses []FileAccessReport
	data     []ProcessDataReport
	statuses []types.DetouringStatus
	debug    []string
	err      error
}

func (h *captureHandler) FileAccessReported(r FileAccessReport) error {
	h.accesses = append(h.accesses, r)
	return h.err
}

func (h *captureHandler) ProcessDataReported(r ProcessDataReport) error {
	h.data = append(h.data, r)
	return h.err
}

func (h *captureHandler) DetouringStatusReported(s types.DetouringStatus) error {
	h.statuses = append(h.statuses, s)
	return h.err
}

func (h *captureHandler) DebugMessageReported(message string) error {
	h.debug = append(h.debug, message)
	return h.err
}

func TestDispatcher_RoutesByTag(t *testing.T) {
	h := &captureHandler{}
	d := NewDispatcher(h)

	require.NoError(t, d.ProcessLine(`1,CreateFile:1A|0|0|0|0|0|0|0|0|0|5|C:\f.txt`))
	require.NoError(t, d.ProcessLine("3,probe attached to pid 26"))
	require.NoError(t, d.ProcessLine("4,"+processDataPayload()))
	require.NoError(t, d.ProcessLine("5,"+detouringPayload("cmd")))

	assert.Len(t, h.accesses, 1)
	assert.Len(t, h.data, 1)
	assert.Len(t, h.statuses, 1)
	assert.Equal(t, []string{"probe attached to pid 26"}, h.debug)
	assert.NoError(t, d.Err())
}

func TestDispatcher_SpecimenLine(t *testing.T) {
	h := &captureHandler{}
	d := NewDispatcher(h)

	require.NoError(t, d.ProcessLine(`1,CreateFile:1A|0|0|0|0|0|0|0|0|0|5|C:\f.txt`))

	require.Len(t, h.accesses, 1)
	r := h.accesses[0]
	assert.Equal(t, types.OpCreateFile, r.Operation)
	assert.Equal(t, uint32(0x1A), r.PID)
	assert.Equal(t, types.AccessAllowed, r.Status)
	assert.False(t, r.ExplicitlyReported)
	assert.Equal(t, types.PathID(5), r.ManifestPath)
	assert.Equal(t, `C:\f.txt`, r.Path)
}

func TestDispatcher_FramingErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"no separator", `CreateFile:1A|0`},
		{"non numeric tag", `x,payload`},
		{"reserved tag zero", `0,payload`},
		{"unrecognized tag", `9,payload`},
		{"tag beyond byte range", `4096,payload`},
		{"empty payload", `1,`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDispatcher(&captureHandler{})
			err := d.ProcessLine(tt.line)
			require.Error(t, err)

			var lerr *LineError
			require.True(t, errors.As(err, &lerr))
			assert.Equal(t, KindFraming, lerr.Kind)
			assert.Equal(t, tt.line, lerr.Line)
		})
	}
}

func TestDispatcher_WindowsCallUnsupported(t *testing.T) {
	d := NewDispatcher(&captureHandler{})

	err := d.ProcessLine("2,some windows call")
	require.Error(t, err)

	var lerr *LineError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, KindFraming, lerr.Kind)
	assert.Contains(t, lerr.Cause, "not supported")
}

func TestDispatcher_FailureIsSticky(t *testing.T) {
	h := &captureHandler{}
	d := NewDispatcher(h)

	first := d.ProcessLine("9,bad")
	require.Error(t, first)

	// A valid line after failure is not processed.
	second := d.ProcessLine(`1,CreateFile:1A|0|0|0|0|0|0|0|0|0|5|C:\f.txt`)
	assert.Equal(t, first, second)
	assert.Empty(t, h.accesses)
	assert.Equal(t, first, d.Err())
}

func TestDispatcher_HandlerErrorIsTerminal(t *testing.T) {
	h := &captureHandler{err: errors.New("session rejected it")}
	d := NewDispatcher(h)

	err := d.ProcessLine(`1,CreateFile:1A|0|0|0|0|0|0|0|0|0|5|C:\f.txt`)
	require.Error(t, err)
	assert.Error(t, d.Err())
}

func TestDispatcher_ConsumesCounter(t *testing.T) {
	c := NewFlowCounter(2)
	d := NewDispatcher(&captureHandler{}, WithCounter(c))

	require.NoError(t, d.ProcessLine("3,one"))
	require.NoError(t, d.ProcessLine("3,two"))

	// Both units consumed; Outstanding releases one on behalf of the
	// asking side and reports what was left.
	assert.Equal(t, int64(0), c.Outstanding())
}

func TestPump(t *testing.T) {
	input := strings.Join([]string{
		`1,Process:1A|0|0|0|0|0|0|0|0|0|0|C:\build.exe|build.exe all`,
		`1,CreateFile:1A|1|0|0|0|0|0|0|0|0|2|C:\src\main.c`,
		``,
		`1,ProcessExit:1A|0|0|0|0|0|0|0|0|0|0|x`,
	}, "\n")

	h := &captureHandler{}
	d := NewDispatcher(h)

	err := Pump(context.Background(), strings.NewReader(input), d)
	require.NoError(t, err)
	assert.Len(t, h.accesses, 3)
}

func TestPump_StopsOnFailure(t *testing.T) {
	input := "9,bad\n" + `1,CreateFile:1A|0|0|0|0|0|0|0|0|0|5|C:\f.txt` + "\n"

	h := &captureHandler{}
	d := NewDispatcher(h)

	err := Pump(context.Background(), strings.NewReader(input), d)
	require.Error(t, err)
	assert.Empty(t, h.accesses)
}
