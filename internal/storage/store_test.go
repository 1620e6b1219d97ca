package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CollabBoard/internal/state"
)

func sampleLog() []state.LogEntry {
	l := state.NewOperationLog()
	l.AppendStroke(state.Stroke{ID: "a", AuthorID: "u1", Tool: state.ToolBrush, Color: "#e11d48", Width: 4,
		Points: []state.Point{state.Frac(0.1, 0.2, 1), state.Frac(0.3, 0.4, 2)}})
	l.AppendStroke(state.Stroke{ID: "b", AuthorID: "u2", Tool: state.ToolText, Text: "hi", Width: 4,
		Points: []state.Point{state.Abs(10, 20, 1)}})
	l.AppendUndo("b", "u1")
	return l.Entries()
}

// exerciseStore runs the behaviour every backend shares.
func exerciseStore(t *testing.T, s Store, room string) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Load(ctx, room)
	require.True(t, errors.Is(err, ErrNotFound), "unknown room: %v", err)

	entries := sampleLog()
	require.NoError(t, s.Save(ctx, room, entries[:2]))
	require.NoError(t, s.Save(ctx, room, entries))
	require.NoError(t, s.Save(ctx, room, entries), "saving the same log twice")

	got, err := s.Load(ctx, room)
	require.NoError(t, err)
	assert.Equal(t, entries, got)

	restored := state.RestoreLog(got)
	assert.Equal(t, uint64(4), restored.NextSeq())
	assert.Equal(t, map[string]struct{}{"a": {}}, state.ActiveSet(got))
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	exerciseStore(t, s, "main")

	got, err := s.Load(context.Background(), "main")
	require.NoError(t, err)
	got[0].Seq = 99
	again, _ := s.Load(context.Background(), "main")
	assert.Equal(t, uint64(1), again[0].Seq, "loaded slices are copies")
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, false)
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s, "main")
	_, err = os.Stat(filepath.Join(dir, "main.json"))
	assert.NoError(t, err)
}

func TestFileStoreEscapesRoomIDs(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, false)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(context.Background(), "../escape", sampleLog()))
	matches, _ := filepath.Glob(filepath.Join(dir, "*.json"))
	assert.Len(t, matches, 1, "file stays inside the data dir")
}

func TestFileStoreCompression(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	plain, err := NewFileStore(dir, false)
	require.NoError(t, err)
	require.NoError(t, plain.Save(ctx, "room", sampleLog()))
	plain.Close()

	packed, err := NewFileStore(dir, true)
	require.NoError(t, err)
	defer packed.Close()

	got, err := packed.Load(ctx, "room")
	require.NoError(t, err, "plain snapshot readable with compression on")
	assert.Len(t, got, 3)

	require.NoError(t, packed.Save(ctx, "room", sampleLog()))
	_, err = os.Stat(filepath.Join(dir, "room.json.zst"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "room.json"))
	assert.True(t, os.IsNotExist(err), "stale plain snapshot removed")

	exerciseStore(t, packed, "other")
}

func TestFileStoreCorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{nope"), 0o644))
	s, err := NewFileStore(dir, false)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Load(context.Background(), "bad")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	prefix := "collabboard:test:" + t.Name() + ":"
	s, err := DialRedis(ctx, addr, prefix)
	require.NoError(t, err)
	defer s.Close()

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	rdb.Del(ctx, prefix+"main")
	defer rdb.Del(ctx, prefix+"main")

	exerciseStore(t, s, "main")
	n, err := rdb.LLen(ctx, prefix+"main").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(3), n, "repeated saves append only new entries")
}
