package library

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ValentinKolb/tKV/lib/codec"
	"github.com/ValentinKolb/tKV/lib/store"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/sync/errgroup"
)

var Logger = logger.GetLogger("library")

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrNotFound        = errors.New("file not found in library")
	ErrPermission      = errors.New("file is not readable")
)

// Extensions maps the accepted file extensions to their mime type
var Extensions = map[string]string{
	".mp3": "audio/mpeg",
	".wav": "audio/wav",
}

// FileHandle is the persisted reference to an audio file. The library stores
// handles keyed by Name, so adding a file with the same name replaces the handle.
type FileHandle struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"modTime"`
	MimeType string    `json:"mimeType"`
	AddedAt  time.Time `json:"addedAt"`
}

func (h FileHandle) String() string {
	return fmt.Sprintf("%s (%s, %d bytes)", h.Name, h.MimeType, h.Size)
}

// Library keeps the handles of the audio files the user added.
type Library struct {
	files *store.Store[FileHandle]
}

// New creates a library on top of the collection of the accessor
func New(a *store.Accessor, c codec.ICodec) *Library {
	return &Library{files: store.NewStore[FileHandle](a, c)}
}

// NewHandle stats path and builds a handle for it. Only .mp3 and .wav files are accepted.
func NewHandle(path string) (FileHandle, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return FileHandle{}, fmt.Errorf("resolving %s: %w", path, err)
	}

	mime, ok := Extensions[strings.ToLower(filepath.Ext(abs))]
	if !ok {
		return FileHandle{}, fmt.Errorf("%s: %w (accepted: .mp3, .wav)", path, ErrUnsupportedType)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return FileHandle{}, fmt.Errorf("adding %s: %w", path, err)
	}
	if info.IsDir() {
		return FileHandle{}, fmt.Errorf("%s is a directory: %w", path, ErrUnsupportedType)
	}

	return FileHandle{
		ID:       uuid.New(),
		Name:     info.Name(),
		Path:     abs,
		Size:     info.Size(),
		ModTime:  info.ModTime(),
		MimeType: mime,
		AddedAt:  time.Now(),
	}, nil
}

// Add stores a handle for every path. All paths are checked before anything is
// written; the handles are then stored concurrently, one transaction each.
// Paths that share a file name collapse into one handle for the last of them.
func (l *Library) Add(ctx context.Context, paths ...string) ([]FileHandle, error) {
	handles := make([]FileHandle, 0, len(paths))
	index := make(map[string]int, len(paths))
	for _, p := range paths {
		h, err := NewHandle(p)
		if err != nil {
			return nil, err
		}
		// handles are keyed by name, the last path with a name wins
		if i, ok := index[h.Name]; ok {
			Logger.Warningf("%s replaces %s in the same add", h.Path, handles[i].Path)
			handles[i] = h
			continue
		}
		index[h.Name] = len(handles)
		handles = append(handles, h)
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := range handles {
		i := i
		g.Go(func() error {
			h := &handles[i]
			// re-adding keeps the identity of the existing handle
			if old, found, err := l.files.Get(ctx, h.Name); err != nil {
				return err
			} else if found {
				h.ID, h.AddedAt = old.ID, old.AddedAt
			}
			if err := l.files.Set(ctx, h.Name, *h); err != nil {
				return fmt.Errorf("storing %s: %w", h.Name, err)
			}
			Logger.Infof("added %s (%s)", h.Name, h.Path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return handles, nil
}

// List returns all handles ordered by name
func (l *Library) List(ctx context.Context) ([]FileHandle, error) {
	handles, err := l.files.Values(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i].Name < handles[j].Name })
	return handles, nil
}

// Get returns the handle stored under name
func (l *Library) Get(ctx context.Context, name string) (FileHandle, error) {
	h, found, err := l.files.Get(ctx, name)
	if err != nil {
		return FileHandle{}, err
	}
	if !found {
		return FileHandle{}, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return h, nil
}

// Remove deletes the handle stored under name. The file itself is not touched.
func (l *Library) Remove(ctx context.Context, name string) error {
	if _, err := l.Get(ctx, name); err != nil {
		return err
	}
	return l.files.Delete(ctx, name)
}

// Open returns the handle stored under name after checking that the file can still be read.
func (l *Library) Open(ctx context.Context, name string) (FileHandle, error) {
	h, err := l.Get(ctx, name)
	if err != nil {
		return FileHandle{}, err
	}
	if err := VerifyPermission(h); err != nil {
		return FileHandle{}, err
	}
	return h, nil
}

// VerifyPermission checks that the file of the handle still exists and is readable.
func VerifyPermission(h FileHandle) error {
	f, err := os.Open(h.Path)
	if err != nil {
		Logger.Warningf("no read access to %s: %v", h.Path, err)
		return fmt.Errorf("%s: %w: %w", h.Name, ErrPermission, err)
	}
	return f.Close()
}
