package paths

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapTable(t *testing.T) {
	table := NewMapTable()

	id := table.Add(`C:\out\a.txt`)
	assert.NotZero(t, id)

	// Same path in a different casing reuses the id.
	assert.Equal(t, id, table.Add(`C:\OUT\A.TXT`))

	path, ok := table.Expand(id)
	require.True(t, ok)
	assert.Equal(t, `C:\out\a.txt`, path)

	_, ok = table.Expand(9999)
	assert.False(t, ok)
}

func TestDirTranslator(t *testing.T) {
	tr := NewDirTranslator([]DirTranslation{
		{From: `B:\`, To: `C:\build\`},
		{From: `C:\build\cache\`, To: `D:\cache\`},
	})

	// First matching rule wins, case-insensitively.
	assert.Equal(t, `C:\build\obj\a.o`, tr.Translate(`b:\obj\a.o`))
	assert.Equal(t, `D:\cache\x`, tr.Translate(`C:\build\cache\x`))
	assert.Equal(t, `E:\other`, tr.Translate(`E:\other`))
}

func TestInterner_SharesOneInstance(t *testing.T) {
	in := NewInterner()

	first := in.Intern(`C:\Out\File.txt`)
	second := in.Intern(`c:\out\file.txt`)
	third := in.Intern(`C:\OUT\FILE.TXT`)

	// Every casing resolves to the first stored instance.
	assert.Equal(t, first, second)
	assert.Equal(t, first, third)
	assert.Equal(t, 1, in.Len())
}

func TestInterner_DistinctPaths(t *testing.T) {
	in := NewInterner()

	in.Intern(`C:\a`)
	in.Intern(`C:\b`)
	assert.Equal(t, 2, in.Len())
}
