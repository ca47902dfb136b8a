package progress

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openLog(t *testing.T) *Log {
	t.Helper()
	l, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestAppendAndRecent(t *testing.T) {
	l := openLog(t)
	base := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, l.Append(Entry{Timestamp: base, Team: "default", Stage: "generate", Message: "初始化排班", Progress: Percent(10)}))
	require.NoError(t, l.Append(Entry{Timestamp: base.Add(time.Second), Team: "ops", Message: "其他团队"}))
	require.NoError(t, l.Append(Entry{
		Timestamp: base.Add(2 * time.Second),
		Message:   "保存排班版本",
		Progress:  Percent(150),
		Context:   map[string]any{"versionId": 7},
	}))

	all, err := l.Recent(0, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "初始化排班", all[0].Message)
	assert.Equal(t, 10, *all[0].Progress)
	assert.True(t, base.Equal(all[0].Timestamp))

	last := all[2]
	assert.Equal(t, DefaultTeam, last.Team)
	assert.Equal(t, 100, *last.Progress)
	assert.EqualValues(t, 7, last.Context["versionId"])

	own, err := l.Recent(100, "default")
	require.NoError(t, err)
	require.Len(t, own, 2)
	assert.Equal(t, "保存排班版本", own[1].Message)

	tail, err := l.Recent(1, "")
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, "保存排班版本", tail[0].Message)
}

func TestAppendRejectsEmptyMessage(t *testing.T) {
	l := openLog(t)
	assert.ErrorIs(t, l.Append(Entry{Message: "  "}), ErrEmptyMessage)
}

func TestRecentSkipsBrokenLines(t *testing.T) {
	l := openLog(t)
	require.NoError(t, l.Append(Entry{Message: "ok"}))

	f, err := os.OpenFile(l.Path(), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{broken\n\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	items, err := l.Recent(10, "")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "ok", items[0].Message)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, ClampLimit(0))
	assert.Equal(t, DefaultLimit, ClampLimit(-5))
	assert.Equal(t, 1, ClampLimit(1))
	assert.Equal(t, MaxLimit, ClampLimit(1000))
}
