package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func detouringPayload(tail ...string) string {
	fields := []string{
		"4242",        // pid
		"1",           // report status
		"child.exe",   // process name
		`C:\child.exe`, // start application
		"1",           // needs injection
		"77",          // job handle
		"0",           // disable detours
		"8000000",     // creation flags
		"1",           // detoured
		"0",           // error
		"0",           // create-process return
	}
	return strings.Join(append(fields, tail...), "|")
}

func TestDecodeDetouringStatus(t *testing.T) {
	payload := detouringPayload(`child.exe --mode=fast`)

	s, lerr := decodeDetouringStatus("5,"+payload, payload)
	require.Nil(t, lerr)

	assert.Equal(t, uint64(4242), s.ProcessID)
	assert.Equal(t, uint32(1), s.ReportStatus)
	assert.Equal(t, "child.exe", s.ProcessName)
	assert.Equal(t, `C:\child.exe`, s.StartApplicationName)
	assert.True(t, s.NeedsInjection)
	assert.Equal(t, uint64(77), s.Job)
	assert.False(t, s.DisableDetours)
	assert.Equal(t, uint32(8000000), s.CreationFlags)
	assert.True(t, s.Detoured)
	assert.Equal(t, uint32(0), s.Error)
	assert.Equal(t, uint32(0), s.CreateProcessStatusReturn)
	assert.Equal(t, "child.exe --mode=fast", s.CommandLine)
}

func TestDecodeDetouringStatus_CommandLineRejoin(t *testing.T) {
	payload := detouringPayload("child.exe", "--flag=a|b", "more")

	s, lerr := decodeDetouringStatus("5,"+payload, payload)
	require.Nil(t, lerr)
	assert.Equal(t, "child.exe|--flag=a|b|more", s.CommandLine)
}

func TestDecodeDetouringStatus_TooFewFields(t *testing.T) {
	payload := detouringPayload() // 11 fields, no command line

	_, lerr := decodeDetouringStatus("5,"+payload, payload)
	require.NotNil(t, lerr)
	assert.Equal(t, KindFieldCount, lerr.Kind)
}

func TestDecodeDetouringStatus_BadNumericField(t *testing.T) {
	payload := detouringPayload("cmd")
	parts := strings.Split(payload, "|")
	parts[7] = "not-a-number"
	payload = strings.Join(parts, "|")

	_, lerr := decodeDetouringStatus("5,"+payload, payload)
	require.NotNil(t, lerr)
	assert.Equal(t, KindFieldParse, lerr.Kind)
	assert.Contains(t, lerr.Cause, "creation flags")
}

func TestDecodeDetouringStatus_BooleanCoding(t *testing.T) {
	// Any nonzero integer is true.
	payload := detouringPayload("cmd")
	parts := strings.Split(payload, "|")
	parts[4] = "7" // needs injection
	parts[6] = "2" // disable detours
	parts[8] = "0" // detoured
	payload = strings.Join(parts, "|")

	s, lerr := decodeDetouringStatus("5,"+payload, payload)
	require.Nil(t, lerr)
	assert.True(t, s.NeedsInjection)
	assert.True(t, s.DisableDetours)
	assert.False(t, s.Detoured)
}
