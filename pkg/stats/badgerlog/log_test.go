package badgerlog_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramondl/httpserv/pkg/stats"
	"github.com/ramondl/httpserv/pkg/stats/badgerlog"
)

func TestLogStore_AppendDump(t *testing.T) {
	store, err := badgerlog.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	base := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	paths := []string{"/a", "/b", "/c"}
	for i, p := range paths {
		require.NoError(t, store.Append(stats.Entry{
			Time:   base.Add(time.Duration(i) * time.Minute),
			Method: "GET",
			Path:   p,
			Status: 200,
		}))
	}

	entries, err := store.Dump()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, p := range paths {
		assert.Equal(t, p, entries[i].Path)
	}
}

func TestLogStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := badgerlog.Open(dir)
	require.NoError(t, err)
	require.NoError(t, store.Append(stats.Entry{
		Time:   time.Now().UTC(),
		Method: "GET",
		Path:   "/before",
		Status: 200,
	}))
	require.NoError(t, store.Close())

	store, err = badgerlog.Open(dir)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Append(stats.Entry{
		Time:   time.Now().UTC(),
		Method: "GET",
		Path:   "/after",
		Status: 404,
	}))

	entries, err := store.Dump()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "/before", entries[0].Path)
	assert.Equal(t, "/after", entries[1].Path)
}

func TestLogStore_EmptyDump(t *testing.T) {
	store, err := badgerlog.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	entries, err := store.Dump()
	require.NoError(t, err)
	assert.Empty(t, entries)
}
