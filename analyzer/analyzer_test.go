package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/aita/report"
	"github.com/yairfalse/aita/session"
)

// buildReport replays a small run: pid 0xA writes two forbidden paths
// and exits, pid 0xB reads one forbidden path and survives.
func buildReport(t *testing.T) *session.Report {
	t.Helper()

	b := session.NewBuilder()
	d := report.NewDispatcher(b)

	lines := []string{
		`1,Process:A|0|0|0|0|0|0|0|0|0|0|C:\build.exe|build.exe all`,
		`1,Process:B|0|0|0|0|0|0|0|0|0|0|C:\helper.exe|helper.exe`,
		`1,CreateFile:A|1|0|1|0|0|0|0|0|0|0|C:\in.txt`,
		`1,CreateFile:A|2|1|0|0|0|0|0|0|0|0|C:\etc\forbidden`,
		`1,CreateFile:A|2|1|0|0|0|0|0|0|0|0|C:\etc\shadow`,
		`1,CreateFile:B|1|1|0|0|0|0|0|0|0|0|C:\etc\forbidden`,
		`1,ProcessExit:A|0|0|0|0|0|0|0|0|0|0|x`,
		`5,4242|1|child.exe|C:\child.exe|1|0|0|0|0|0|0|child.exe run`,
	}
	for _, line := range lines {
		require.NoError(t, d.ProcessLine(line))
	}
	return b.Freeze()
}

func TestAnalyze_Summary(t *testing.T) {
	summary := New().Analyze(buildReport(t))

	assert.Equal(t, 2, summary.Processes)
	assert.Equal(t, []uint32{0xB}, summary.SurvivingPids)
	assert.False(t, summary.ReadWriteDowngraded)

	require.Len(t, summary.UnmonitoredChildren, 1)
	assert.Equal(t, uint64(4242), summary.UnmonitoredChildren[0].ProcessID)
}

func TestAnalyze_UnexpectedByPath(t *testing.T) {
	summary := New().Analyze(buildReport(t))

	// Same path denied for two distinct processes counts twice.
	require.Len(t, summary.UnexpectedByPath, 2)
	assert.Equal(t, PathHits{Path: `C:\etc\forbidden`, Hits: 2}, summary.UnexpectedByPath[0])
	assert.Equal(t, PathHits{Path: `C:\etc\shadow`, Hits: 1}, summary.UnexpectedByPath[1])
}

func TestAnalyze_RankProcesses(t *testing.T) {
	summary := New().Analyze(buildReport(t))

	require.Len(t, summary.TopProcesses, 2)

	first := summary.TopProcesses[0]
	assert.Equal(t, uint32(0xA), first.PID)
	assert.Equal(t, `C:\build.exe`, first.Path)
	assert.Equal(t, 3, first.Accesses)
	assert.Equal(t, 2, first.Unexpected)
	assert.False(t, first.Survived)

	second := summary.TopProcesses[1]
	assert.Equal(t, uint32(0xB), second.PID)
	assert.Equal(t, 1, second.Unexpected)
	assert.True(t, second.Survived)
}

func TestAnalyze_TopNBounds(t *testing.T) {
	a := &Analyzer{TopN: 1}
	summary := a.Analyze(buildReport(t))

	require.Len(t, summary.TopProcesses, 1)
	assert.Equal(t, uint32(0xA), summary.TopProcesses[0].PID)
}
