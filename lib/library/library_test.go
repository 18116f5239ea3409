package library

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ValentinKolb/tKV/lib/codec"
	"github.com/ValentinKolb/tKV/lib/db/engines/maple"
	"github.com/ValentinKolb/tKV/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLibrary(t *testing.T) *Library {
	t.Helper()
	registry := store.NewRegistry(maple.NewEngine(nil))
	t.Cleanup(func() { _ = registry.Close() })
	return New(registry.Default(), codec.NewJSONCodec())
}

func writeFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestAddAndList(t *testing.T) {
	ctx := testCtx(t)
	lib := newLibrary(t)
	dir := t.TempDir()

	added, err := lib.Add(ctx, writeFile(t, dir, "b.wav", 10), writeFile(t, dir, "a.MP3", 20))
	require.NoError(t, err)
	require.Len(t, added, 2)

	list, err := lib.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a.MP3", list[0].Name)
	assert.Equal(t, "audio/mpeg", list[0].MimeType)
	assert.Equal(t, int64(20), list[0].Size)
	assert.Equal(t, "b.wav", list[1].Name)
	assert.Equal(t, "audio/wav", list[1].MimeType)
	assert.True(t, filepath.IsAbs(list[1].Path))
}

func TestAddRejectsUnsupportedFiles(t *testing.T) {
	ctx := testCtx(t)
	lib := newLibrary(t)
	dir := t.TempDir()

	_, err := lib.Add(ctx, writeFile(t, dir, "ok.mp3", 1), writeFile(t, dir, "notes.txt", 1))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = lib.Add(ctx, filepath.Join(dir, "missing.mp3"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	// nothing is stored if one path is rejected
	list, err := lib.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestReAddKeepsIdentity(t *testing.T) {
	ctx := testCtx(t)
	lib := newLibrary(t)
	path := writeFile(t, t.TempDir(), "song.mp3", 5)

	first, err := lib.Add(ctx, path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, make([]byte, 50), 0o644))
	second, err := lib.Add(ctx, path)
	require.NoError(t, err)

	assert.Equal(t, first[0].ID, second[0].ID)
	h, err := lib.Get(ctx, "song.mp3")
	require.NoError(t, err)
	assert.Equal(t, int64(50), h.Size)
	assert.Equal(t, first[0].ID, h.ID)
}

func TestRemove(t *testing.T) {
	ctx := testCtx(t)
	lib := newLibrary(t)
	path := writeFile(t, t.TempDir(), "song.wav", 5)

	_, err := lib.Add(ctx, path)
	require.NoError(t, err)
	require.NoError(t, lib.Remove(ctx, "song.wav"))

	_, err = lib.Get(ctx, "song.wav")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, lib.Remove(ctx, "song.wav"), ErrNotFound)

	// the file itself stays
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpenVerifiesPermission(t *testing.T) {
	ctx := testCtx(t)
	lib := newLibrary(t)
	path := writeFile(t, t.TempDir(), "gone.mp3", 5)

	_, err := lib.Add(ctx, path)
	require.NoError(t, err)
	_, err = lib.Open(ctx, "gone.mp3")
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	_, err = lib.Open(ctx, "gone.mp3")
	assert.ErrorIs(t, err, ErrPermission)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestAddSameNameTwice(t *testing.T) {
	ctx := testCtx(t)
	lib := newLibrary(t)
	first := writeFile(t, filepath.Join(t.TempDir()), "x.mp3", 1)
	second := writeFile(t, filepath.Join(t.TempDir()), "x.mp3", 2)

	added, err := lib.Add(ctx, first, second)
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.Equal(t, second, added[0].Path)

	list, err := lib.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, added[0].ID, list[0].ID)
	assert.Equal(t, second, list[0].Path)
}
