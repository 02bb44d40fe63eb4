// Package projectstore saves, loads and lists canvas projects.
//
// A project named N lives in {base}/{N}.fsk. The file is the brotli stream of
// the document's JSON encoding. The store keeps no state besides the base
// directory and codec settings, both fixed at construction; calls may run
// concurrently without coordination.
package projectstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"github.com/folish/folish/pkg/canvas"
	"github.com/folish/folish/pkg/codec"
	"github.com/folish/folish/pkg/config"
	"github.com/folish/folish/pkg/logging"
)

// Extension is the project file extension. Changing it breaks every
// existing project directory.
const Extension = "fsk"

const fileSuffix = "." + Extension

// Store is a directory of project files.
type Store struct {
	dir    string
	codec  *codec.Codec
	logger *logging.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithCodec overrides the compressor settings.
func WithCodec(c *codec.Codec) Option {
	return func(s *Store) {
		s.codec = c
	}
}

// WithLogger sets the logger used for save/load events and skipped entries.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// New opens the project directory dir, creating it if needed.
func New(dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: empty base directory", ErrStoreInit)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s: %w", ErrStoreInit, dir, err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("%w: create %s: %w", ErrStoreInit, abs, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %w", ErrStoreInit, abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrStoreInit, abs)
	}

	s := &Store{
		dir:    abs,
		codec:  codec.Default(),
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewFromConfig resolves the base directory and codec settings from cfg.
// Extra options are applied after the configured ones.
func NewFromConfig(cfg *config.Config, opts ...Option) (*Store, error) {
	dir, err := cfg.ResolveBaseDir()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreInit, err)
	}
	all := append([]Option{WithCodec(codec.New(cfg.CodecOptions()))}, opts...)
	return New(dir, all...)
}

// Dir returns the absolute base directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file path for a project name without touching the disk.
func (s *Store) Path(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	resolved := filepath.Join(s.dir, name+fileSuffix)
	if filepath.Dir(resolved) != s.dir {
		return "", fmt.Errorf("%w: %q escapes the project directory", ErrInvalidName, name)
	}
	return resolved, nil
}

// ValidateName rejects names that are not a single, plain file name
// component: empty names, "." and "..", path separators and NUL bytes.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidName)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	case strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: %q contains a NUL byte", ErrInvalidName, name)
	}
	return nil
}

// Save encodes, compresses and writes doc as project name, replacing any
// existing project of that name. It returns the absolute path written.
//
// The bytes go to a temporary sibling file that is renamed into place, so a
// failed save never damages the previously saved project.
func (s *Store) Save(name string, doc canvas.State) (string, error) {
	const op = "save"

	path, err := s.Path(name)
	if err != nil {
		return "", &OpError{Op: op, Name: name, Stage: StageResolve, Err: err}
	}

	text, err := canvas.Encode(doc)
	if err != nil {
		return "", &OpError{Op: op, Name: name, Stage: StageEncode, Err: err}
	}

	data, err := s.codec.Compress(text)
	if err != nil {
		return "", &OpError{Op: op, Name: name, Stage: StageCompress, Err: err}
	}

	if err := writeFileAtomic(path, data); err != nil {
		return "", &OpError{Op: op, Name: name, Stage: StageWrite, Kind: ErrIO, Err: err}
	}

	s.logger.Infof("saved %q (%d bytes json, %d bytes on disk) to %s", name, len(text), len(data), path)
	return path, nil
}

// Load reads project name. It fails with ErrNotFound when no file exists,
// codec.ErrCorrupt when the stream is damaged and canvas.ErrFormat when the
// document does not decode.
func (s *Store) Load(name string) (canvas.State, error) {
	const op = "load"

	path, err := s.Path(name)
	if err != nil {
		return canvas.State{}, &OpError{Op: op, Name: name, Stage: StageResolve, Err: err}
	}

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return canvas.State{}, &OpError{Op: op, Name: name, Stage: StageRead, Kind: ErrNotFound}
	case err != nil:
		return canvas.State{}, &OpError{Op: op, Name: name, Stage: StageRead, Kind: ErrIO, Err: err}
	case info.IsDir():
		return canvas.State{}, &OpError{Op: op, Name: name, Stage: StageRead, Kind: ErrNotFound,
			Err: fmt.Errorf("%s is a directory", path)}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		kind := ErrIO
		if errors.Is(err, fs.ErrNotExist) {
			// Removed between the stat and the read
			kind = ErrNotFound
		}
		return canvas.State{}, &OpError{Op: op, Name: name, Stage: StageRead, Kind: kind, Err: err}
	}

	text, err := s.codec.DecompressString(data)
	if err != nil {
		return canvas.State{}, &OpError{Op: op, Name: name, Stage: StageDecompress, Err: err}
	}

	doc, err := canvas.Decode([]byte(text))
	if err != nil {
		return canvas.State{}, &OpError{Op: op, Name: name, Stage: StageDecode, Err: err}
	}

	s.logger.Debugf("loaded %q from %s", name, path)
	return doc, nil
}

// List returns the names of all projects in ascending order. Directories,
// files with other extensions and entries that cannot be inspected are
// skipped.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, &OpError{Op: "list", Stage: StageScan, Kind: ErrIO, Err: err}
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		fileName := e.Name()
		if !strings.HasSuffix(fileName, fileSuffix) {
			continue
		}
		name := strings.TrimSuffix(fileName, fileSuffix)
		if name == "" {
			// A bare ".fsk" maps to the empty name, which ValidateName rejects,
			// so it could never be loaded.
			continue
		}
		// Stat follows symlinks so that links to project files are listed
		info, err := os.Stat(filepath.Join(s.dir, fileName))
		if err != nil {
			s.logger.Debugf("skipping unreadable entry %s: %v", fileName, err)
			continue
		}
		if info.IsDir() {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ListMatching returns the project names matching a glob pattern such as
// "draft-*" or "{a,b}*", in ascending order.
func (s *Store) ListMatching(pattern string) ([]string, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, &OpError{Op: "list", Stage: StageResolve, Kind: ErrInvalidPattern, Err: err}
	}
	names, err := s.List()
	if err != nil {
		return nil, err
	}
	matched := names[:0]
	for _, name := range names {
		if g.Match(name) {
			matched = append(matched, name)
		}
	}
	return matched, nil
}

// Info describes a project file on disk.
type Info struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// Stat returns file information for project name.
func (s *Store) Stat(name string) (Info, error) {
	const op = "stat"

	path, err := s.Path(name)
	if err != nil {
		return Info{}, &OpError{Op: op, Name: name, Stage: StageResolve, Err: err}
	}
	fi, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return Info{}, &OpError{Op: op, Name: name, Stage: StageRead, Kind: ErrNotFound}
	case err != nil:
		return Info{}, &OpError{Op: op, Name: name, Stage: StageRead, Kind: ErrIO, Err: err}
	case fi.IsDir():
		return Info{}, &OpError{Op: op, Name: name, Stage: StageRead, Kind: ErrNotFound,
			Err: fmt.Errorf("%s is a directory", path)}
	}
	return Info{Name: name, Path: path, Size: fi.Size(), ModTime: fi.ModTime()}, nil
}
