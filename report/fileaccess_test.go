package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/aita/types"
)

func TestDecodeFileAccess_FixedFields(t *testing.T) {
	payload := `CreateFile:1A|3|1|1|5|1F4|C0000000|7|1|80|2B|C:\out\obj\a.txt`

	r, lerr := decodeFileAccess("1,"+payload, payload)
	require.Nil(t, lerr)

	assert.Equal(t, types.OpCreateFile, r.Operation)
	assert.Equal(t, uint32(0x1A), r.PID)
	assert.Equal(t, types.RequestReadWrite, r.RequestedAccess)
	assert.Equal(t, types.AccessDenied, r.Status)
	assert.True(t, r.ExplicitlyReported)
	assert.Equal(t, uint32(0x5), r.Error)
	assert.Equal(t, uint64(0x1F4), r.USN)
	assert.Equal(t, uint32(0xC0000000), r.DesiredAccess)
	assert.Equal(t, uint32(0x7), r.ShareMode)
	assert.Equal(t, uint32(0x1), r.CreationDisposition)
	assert.Equal(t, uint32(0x80), r.FlagsAndAttributes)
	assert.Equal(t, types.PathID(0x2B), r.ManifestPath)
	assert.Equal(t, `C:\out\obj\a.txt`, r.Path)
	assert.Empty(t, r.EnumeratePattern)
	assert.Empty(t, r.CommandLine)
}

func TestDecodeFileAccess_UnknownOperationTolerated(t *testing.T) {
	payload := `FrobnicateFile:1|1|0|0|0|0|0|0|0|0|0|C:\x`

	r, lerr := decodeFileAccess("1,"+payload, payload)
	require.Nil(t, lerr)

	assert.Equal(t, types.OpUnknown, r.Operation)
	assert.Equal(t, "FrobnicateFile", r.OperationName)
	assert.Equal(t, uint32(1), r.PID)
}

func TestDecodeFileAccess_TooFewFields(t *testing.T) {
	payload := `CreateFile:1A|0|0|0|0`

	_, lerr := decodeFileAccess("1,"+payload, payload)
	require.NotNil(t, lerr)
	assert.Equal(t, KindFieldCount, lerr.Kind)
	assert.Contains(t, lerr.Cause, "file access report")
}

func TestDecodeFileAccess_TooFewFieldsProcessCreation(t *testing.T) {
	payload := `Process:1A|0|0`

	_, lerr := decodeFileAccess("1,"+payload, payload)
	require.NotNil(t, lerr)
	assert.Equal(t, KindFieldCount, lerr.Kind)
	assert.Contains(t, lerr.Cause, "process creation report")
}

func TestDecodeFileAccess_StatusOutOfRange(t *testing.T) {
	payload := `CreateFile:1A|0|9|0|0|0|0|0|0|0|0|C:\x`

	_, lerr := decodeFileAccess("1,"+payload, payload)
	require.NotNil(t, lerr)
	assert.Equal(t, KindFieldParse, lerr.Kind)
	assert.Contains(t, lerr.Cause, "file access status")
}

func TestDecodeFileAccess_RequestedAccessOutOfRange(t *testing.T) {
	payload := `CreateFile:1A|FF|0|0|0|0|0|0|0|0|0|C:\x`

	_, lerr := decodeFileAccess("1,"+payload, payload)
	require.NotNil(t, lerr)
	assert.Equal(t, KindFieldParse, lerr.Kind)
	assert.Contains(t, lerr.Cause, "requested access")
}

func TestDecodeFileAccess_BadHexField(t *testing.T) {
	payload := `CreateFile:zz|0|0|0|0|0|0|0|0|0|0|C:\x`

	_, lerr := decodeFileAccess("1,"+payload, payload)
	require.NotNil(t, lerr)
	assert.Equal(t, KindFieldParse, lerr.Kind)
	assert.Contains(t, lerr.Cause, "process id")
}

func TestDecodeFileAccess_MissingOperationSeparator(t *testing.T) {
	payload := `CreateFile|1A|0|0`

	_, lerr := decodeFileAccess("1,"+payload, payload)
	require.NotNil(t, lerr)
	assert.Equal(t, KindFraming, lerr.Kind)
}

func TestDecodeFileAccess_ProcessCommandLineRejoin(t *testing.T) {
	// The command line itself contains the field separator; everything
	// after the fixed fields must be stitched back together.
	payload := `Process:1A|0|0|0|0|0|0|0|0|0|0|C:\tools\cl.exe|cl.exe /nologo|/O2|/c a.c`

	r, lerr := decodeFileAccess("1,"+payload, payload)
	require.Nil(t, lerr)

	assert.Equal(t, types.OpProcess, r.Operation)
	assert.Equal(t, `C:\tools\cl.exe`, r.Path)
	assert.Equal(t, "cl.exe /nologo|/O2|/c a.c", r.CommandLine)
	assert.Empty(t, r.EnumeratePattern)
}

func TestDecodeFileAccess_EnumeratePattern(t *testing.T) {
	tests := []struct {
		name        string
		requested   string
		wantPattern string
	}{
		{"kept for enumerate", "8", "*.obj"},
		{"dropped for read", "1", ""},
		{"dropped for enumeration probe", "10", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := `FindFirstFileEx:1A|` + tt.requested + `|0|0|0|0|0|0|0|0|0|C:\out|*.obj`
			r, lerr := decodeFileAccess("1,"+payload, payload)
			require.Nil(t, lerr)
			assert.Equal(t, tt.wantPattern, r.EnumeratePattern)
		})
	}
}

func TestDecodeFileAccess_TrailingFieldsIgnoredForOtherOps(t *testing.T) {
	payload := `CreateFile:1A|1|0|0|0|0|0|0|0|0|0|C:\x|junk|more`

	r, lerr := decodeFileAccess("1,"+payload, payload)
	require.Nil(t, lerr)
	assert.Empty(t, r.CommandLine)
	assert.Empty(t, r.EnumeratePattern)
}
