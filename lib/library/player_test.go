//go:build unix

package library

import (
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlayerArgs(t *testing.T) {
	p, err := NewPlayer([]string{"ffplay", "-volume", "{volume}", "{path}"}, 0.25)
	require.NoError(t, err)
	assert.Equal(t, []string{"ffplay", "-volume", "25", "/a/b.mp3"}, p.args(FileHandle{Path: "/a/b.mp3"}))

	p, err = NewPlayer([]string{"aplay"}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"aplay", "/x.wav"}, p.args(FileHandle{Path: "/x.wav"}))

	_, err = NewPlayer(nil, 1)
	assert.Error(t, err)
	_, err = NewPlayer([]string{"aplay"}, 2)
	assert.Error(t, err)
}

func TestPlayerLifecycle(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	path := writeFile(t, t.TempDir(), "song.mp3", 1)
	h := FileHandle{Name: "song.mp3", Path: path}

	// the path becomes $0 of the script
	p, err := NewPlayer([]string{"sh", "-c", "sleep 30", "{path}"}, 0.5)
	require.NoError(t, err)

	_, err = p.TogglePause()
	assert.ErrorIs(t, err, ErrNotPlaying)

	done, err := p.Play(h)
	require.NoError(t, err)
	current, playing := p.Current()
	assert.True(t, playing)
	assert.Equal(t, "song.mp3", current.Name)

	paused, err := p.TogglePause()
	require.NoError(t, err)
	assert.True(t, paused)
	paused, err = p.TogglePause()
	require.NoError(t, err)
	assert.False(t, paused)

	// stopping a paused player must not hang
	_, err = p.TogglePause()
	require.NoError(t, err)
	require.NoError(t, p.Stop())

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("playback did not end after Stop")
	}
	_, playing = p.Current()
	assert.False(t, playing)
	assert.ErrorIs(t, p.Stop(), ErrNotPlaying)
}

func TestPlayerEndsOnItsOwn(t *testing.T) {
	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("true not available")
	}
	path := writeFile(t, t.TempDir(), "short.wav", 1)

	p, err := NewPlayer([]string{"true"}, 1)
	require.NoError(t, err)
	done, err := p.Play(FileHandle{Name: "short.wav", Path: path})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("playback did not end")
	}
	_, playing := p.Current()
	assert.False(t, playing)
}
