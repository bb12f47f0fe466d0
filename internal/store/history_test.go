package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *History {
	t.Helper()
	h, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })

	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	h.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return h
}

func TestRecord_SkipsUnchangedDigest(t *testing.T) {
	ctx := context.Background()
	h := openTest(t)

	changed, err := h.Record(ctx, Entry{Stack: "web", Digest: "aaa", Resources: 5})
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = h.Record(ctx, Entry{Stack: "web", Digest: "aaa", Resources: 5})
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = h.Record(ctx, Entry{Stack: "web", Digest: "bbb", Resources: 6})
	require.NoError(t, err)
	assert.True(t, changed)

	// Same digest as another stack's latest still counts as a change.
	changed, err = h.Record(ctx, Entry{Stack: "api", Digest: "bbb"})
	require.NoError(t, err)
	assert.True(t, changed)

	latest, err := h.Latest(ctx, "web")
	require.NoError(t, err)
	assert.Equal(t, "bbb", latest.Digest)
	assert.Equal(t, 6, latest.Resources)
	assert.Equal(t, time.Date(2026, 3, 1, 9, 2, 0, 0, time.UTC), latest.CreatedAt)
}

func TestLatest_NoHistory(t *testing.T) {
	h := openTest(t)
	_, err := h.Latest(context.Background(), "web")
	require.ErrorIs(t, err, ErrNoHistory)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	h := openTest(t)
	for _, e := range []Entry{
		{Stack: "web", Digest: "1"},
		{Stack: "api", Digest: "2"},
		{Stack: "web", Digest: "3"},
		{Stack: "web", Digest: "4"},
	} {
		_, err := h.Record(ctx, e)
		require.NoError(t, err)
	}

	all, err := h.List(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, "4", all[0].Digest)

	web, err := h.List(ctx, "web", 2)
	require.NoError(t, err)
	require.Len(t, web, 2)
	assert.Equal(t, "4", web[0].Digest)
	assert.Equal(t, "3", web[1].Digest)
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	h, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, h.Close())

	h, err = Open(context.Background(), path)
	require.NoError(t, err)
	defer h.Close()
	entries, err := h.List(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
