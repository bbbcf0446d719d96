package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/aita/report"
	"github.com/yairfalse/aita/session"
)

func frozenReport(t *testing.T) *session.Report {
	t.Helper()

	b := session.NewBuilder(session.WithAuditCollection(true))
	d := report.NewDispatcher(b)

	lines := []string{
		`1,Process:A|0|0|0|0|0|0|0|0|0|0|C:\build.exe|build.exe all`,
		`1,CreateFile:A|2|1|0|0|0|0|0|0|0|3|C:\etc\forbidden`,
		`1,ProcessExit:A|0|0|0|0|0|0|0|0|0|0|x`,
		`5,4242|1|child.exe|C:\child.exe|1|0|0|0|0|0|0|child.exe run`,
	}
	for _, line := range lines {
		require.NoError(t, d.ProcessLine(line))
	}
	return b.Freeze()
}

func TestStore_SaveAndGet(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	rep := frozenReport(t)
	recorded := time.Now()

	summary, err := store.SaveReport("run-001", recorded, rep)
	require.NoError(t, err)
	assert.Equal(t, "run-001", summary.ID)
	assert.Equal(t, 1, summary.Processes)
	assert.Equal(t, 1, summary.UnexpectedAccesses)
	assert.Equal(t, 3, summary.AuditAccesses)
	assert.Equal(t, 1, summary.FailedInjections)

	rec, err := store.GetSession("run-001")
	require.NoError(t, err)
	require.Len(t, rec.Processes, 1)
	assert.Equal(t, `C:\build.exe`, rec.Processes[0].Path)
	require.Len(t, rec.Unexpected, 1)
	assert.Equal(t, `C:\etc\forbidden`, rec.Unexpected[0].Path)
	assert.Equal(t, "CreateFile", rec.Unexpected[0].Operation)
	require.Len(t, rec.DetouringStatuses, 1)
	assert.Equal(t, uint64(4242), rec.DetouringStatuses[0].ProcessID)
}

func TestStore_GetMissingSession(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	_, err = store.GetSession("nope")
	assert.Error(t, err)
}

func TestStore_ListSessionsOrdered(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	rep := frozenReport(t)
	_, err = store.SaveReport("run-002", time.Now(), rep)
	require.NoError(t, err)
	_, err = store.SaveReport("run-001", time.Now(), rep)
	require.NoError(t, err)

	list := store.ListSessions()
	require.Len(t, list, 2)
	assert.Equal(t, "run-001", list[0].ID)
	assert.Equal(t, "run-002", list[1].ID)
}

func TestStore_IndexSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(dir)
	require.NoError(t, err)
	_, err = store.SaveReport("run-001", time.Now(), frozenReport(t))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewStore(dir)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	list := reopened.ListSessions()
	require.Len(t, list, 1)
	assert.Equal(t, "run-001", list[0].ID)
	assert.Equal(t, 1, list[0].UnexpectedAccesses)

	rev, err := reopened.Revision()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), rev)
}

func TestStore_RevisionCountsEveryWrite(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	rep := frozenReport(t)
	_, err = store.SaveReport("run-001", time.Now(), rep)
	require.NoError(t, err)
	_, err = store.SaveReport("run-001", time.Now(), rep) // overwrite still counts
	require.NoError(t, err)

	rev, err := store.Revision()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), rev)
}
