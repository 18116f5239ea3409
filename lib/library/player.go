package library

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// DefaultPlayer is the command used to play files. {volume} is replaced with the
// volume in percent and {path} with the path of the file; without a {path}
// placeholder the path is appended.
const DefaultPlayer = "ffplay -nodisp -autoexit -loglevel quiet -volume {volume} {path}"

var (
	ErrNotPlaying       = errors.New("nothing is playing")
	ErrPauseUnsupported = errors.New("pausing is not supported on this platform")
)

// Player plays handles through an external command, one file at a time.
type Player struct {
	command []string

	mu      sync.Mutex
	volume  float64
	cmd     *exec.Cmd
	current FileHandle
	paused  bool
	done    chan struct{}
}

// NewPlayer creates a player for the command (see DefaultPlayer) with a volume in [0, 1]
func NewPlayer(command []string, volume float64) (*Player, error) {
	if len(command) == 0 {
		return nil, errors.New("empty player command")
	}
	p := &Player{command: command}
	if err := p.SetVolume(volume); err != nil {
		return nil, err
	}
	return p, nil
}

// SetVolume sets the volume in [0, 1]. It applies from the next Play on.
func (p *Player) SetVolume(v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("volume must be in [0, 1], got %v", v)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = v
	return nil
}

func (p *Player) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// args builds the argument list for h
func (p *Player) args(h FileHandle) []string {
	volume := strconv.Itoa(int(p.volume*100 + 0.5))
	args := make([]string, 0, len(p.command)+1)
	hasPath := false
	for _, a := range p.command {
		if strings.Contains(a, "{path}") {
			hasPath = true
		}
		a = strings.ReplaceAll(a, "{volume}", volume)
		args = append(args, strings.ReplaceAll(a, "{path}", h.Path))
	}
	if !hasPath {
		args = append(args, h.Path)
	}
	return args
}

// Play stops the current playback and starts playing h.
// The returned channel is closed when the playback ends.
func (p *Player) Play(h FileHandle) (<-chan struct{}, error) {
	if err := VerifyPermission(h); err != nil {
		return nil, err
	}
	_ = p.Stop()

	p.mu.Lock()
	defer p.mu.Unlock()

	args := p.args(h)
	cmd := exec.Command(args[0], args[1:]...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting player %s: %w", args[0], err)
	}

	done := make(chan struct{})
	p.cmd, p.current, p.paused, p.done = cmd, h, false, done
	Logger.Infof("playing %s (pid %d)", h.Name, cmd.Process.Pid)

	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		if p.cmd == cmd {
			p.cmd, p.paused = nil, false
		}
		p.mu.Unlock()
		if err != nil {
			Logger.Debugf("player for %s exited: %v", h.Name, err)
		}
		close(done)
	}()
	return done, nil
}

// Current returns the handle that is playing
func (p *Player) Current() (FileHandle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, p.cmd != nil
}

// TogglePause pauses or resumes the playback and reports whether it is paused now.
func (p *Player) TogglePause() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil {
		return false, ErrNotPlaying
	}
	if err := signalPause(p.cmd.Process, !p.paused); err != nil {
		return p.paused, err
	}
	p.paused = !p.paused
	return p.paused, nil
}

// Stop ends the playback and waits for the command to exit
func (p *Player) Stop() error {
	p.mu.Lock()
	cmd, done := p.cmd, p.done
	p.cmd, p.paused = nil, false
	p.mu.Unlock()

	if cmd == nil {
		return ErrNotPlaying
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	<-done
	return nil
}
