package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperationByName(t *testing.T) {
	op, ok := OperationByName("CreateFile")
	assert.True(t, ok)
	assert.Equal(t, OpCreateFile, op)

	op, ok = OperationByName("KAuthVNodeRead")
	assert.True(t, ok)
	assert.Equal(t, OpKAuthVNodeRead, op)

	op, ok = OperationByName("NoSuchOperation")
	assert.False(t, ok)
	assert.Equal(t, OpUnknown, op)
}

func TestOperationString_RoundTrips(t *testing.T) {
	for name, op := range operationNames {
		assert.Equal(t, name, op.String())
	}
	assert.Equal(t, "Unknown", OpUnknown.String())
}

func TestValidFileAccessStatus(t *testing.T) {
	assert.True(t, ValidFileAccessStatus(uint32(AccessAllowed)))
	assert.True(t, ValidFileAccessStatus(uint32(AccessDenied)))
	assert.True(t, ValidFileAccessStatus(uint32(AccessCannotDeterminePolicy)))
	assert.False(t, ValidFileAccessStatus(3))
	assert.False(t, ValidFileAccessStatus(0xFFFF))
}

func TestValidRequestedAccess(t *testing.T) {
	assert.True(t, ValidRequestedAccess(uint32(RequestNone)))
	assert.True(t, ValidRequestedAccess(uint32(RequestReadWrite)))
	assert.True(t, ValidRequestedAccess(uint32(RequestAll)))
	assert.False(t, ValidRequestedAccess(uint32(RequestAll)+1))
}

func TestFileAccessEquality(t *testing.T) {
	proc := &Process{PID: 1, Path: `C:\a.exe`}

	a := FileAccess{Operation: OpCreateFile, Process: proc, Path: `C:\f.txt`}
	b := FileAccess{Operation: OpCreateFile, Process: proc, Path: `C:\f.txt`}
	c := FileAccess{Operation: OpDeleteFile, Process: proc, Path: `C:\f.txt`}

	// Value equality over the full tuple; usable as a set key.
	assert.Equal(t, a, b)
	set := map[FileAccess]struct{}{a: {}, b: {}, c: {}}
	assert.Len(t, set, 2)
}

func TestFileAccessResolvedPath(t *testing.T) {
	expand := func(id PathID) (string, bool) {
		if id == 7 {
			return `C:\scope`, true
		}
		return "", false
	}

	withPath := FileAccess{Path: `C:\distinct`, ManifestPath: 7}
	assert.Equal(t, `C:\distinct`, withPath.ResolvedPath(expand))

	scopeOnly := FileAccess{ManifestPath: 7}
	assert.Equal(t, `C:\scope`, scopeOnly.ResolvedPath(expand))

	unknown := FileAccess{ManifestPath: 8}
	assert.Equal(t, "", unknown.ResolvedPath(expand))
}

func TestProcessHasStatistics(t *testing.T) {
	p := &Process{PID: 1}
	assert.False(t, p.HasStatistics())
}
