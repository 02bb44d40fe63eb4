package projectstore

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/folish/folish/pkg/canvas"
	"github.com/folish/folish/pkg/codec"
	"github.com/folish/folish/pkg/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func drawing() canvas.State {
	doc := canvas.New()
	doc.Strokes["s1"] = canvas.Stroke{
		ID:        "s1",
		Points:    []canvas.Point{{X: 1, Y: 2}, {X: 3, Y: 4}, {X: 5, Y: 6}},
		Color:     "#ff0000",
		Width:     3,
		LayerID:   canvas.DefaultLayerID,
		Timestamp: 1718000000000,
	}
	doc.Layers[0].StrokeIDs = []string{"s1"}
	doc.Camera = canvas.Camera{X: 12, Y: -8, Zoom: 2}
	return doc
}

func tempFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	var temps []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), tempSuffix) {
			temps = append(temps, e.Name())
		}
	}
	return temps
}

func TestSaveLoadRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		doc  canvas.State
	}{
		{name: "drawing", doc: drawing()},
		{name: "new document", doc: canvas.New()},
		{name: "empty collections", doc: canvas.State{Layers: []canvas.Layer{}, Strokes: map[string]canvas.Stroke{}}},
	}

	s := newTestStore(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := s.Save(tt.name, tt.doc)
			if err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			if want := filepath.Join(s.Dir(), tt.name+".fsk"); path != want {
				t.Errorf("Expected path %s, got %s", want, path)
			}

			got, err := s.Load(tt.name)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.doc) {
				t.Errorf("Round trip mismatch:\n got  %+v\n want %+v", got, tt.doc)
			}
		})
	}
}

func TestSaveOverwrites(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Save("doc", canvas.New()); err != nil {
		t.Fatalf("first Save failed: %v", err)
	}
	if _, err := s.Save("doc", drawing()); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	got, err := s.Load("doc")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Stats().Strokes != 1 {
		t.Errorf("Expected the second save to win, got %+v", got.Stats())
	}
	if temps := tempFiles(t, s.Dir()); len(temps) != 0 {
		t.Errorf("Expected no temp files, found %v", temps)
	}
}

func TestSaveWritesBrotliOfJSON(t *testing.T) {
	s := newTestStore(t)
	doc := drawing()

	path, err := s.Save("doc", doc)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	text, err := codec.Default().DecompressString(raw)
	if err != nil {
		t.Fatalf("file is not a brotli stream: %v", err)
	}
	want, err := canvas.Encode(doc)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if text != string(want) {
		t.Errorf("Expected file to hold %s, got %s", want, text)
	}
}

func TestLoadNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Load("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
	var opErr *OpError
	if !errors.As(err, &opErr) || opErr.Name != "missing" || opErr.Op != "load" {
		t.Errorf("Expected OpError naming the project, got %#v", err)
	}

	if err := os.Mkdir(filepath.Join(s.Dir(), "folder.fsk"), 0o750); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}
	if _, err := s.Load("folder"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for a directory, got %v", err)
	}
}

func TestLoadDamagedFiles(t *testing.T) {
	s := newTestStore(t)
	c := codec.Default()

	good, err := c.Compress([]byte(`{"layers":[]}`))
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	saved, err := s.Save("source", drawing())
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	full, err := os.ReadFile(saved)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	notJSON, err := c.Compress([]byte("hello, world"))
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	badUTF8, err := c.Compress([]byte{0xff, 0xfe, 0xfd})
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}

	tests := []struct {
		name    string
		content []byte
		wantErr error
		stage   Stage
	}{
		{name: "plain text", content: []byte("this is not compressed"), wantErr: codec.ErrCorrupt, stage: StageDecompress},
		{name: "empty file", content: []byte{}, wantErr: codec.ErrCorrupt, stage: StageDecompress},
		{name: "truncated", content: full[:len(full)/2], wantErr: codec.ErrCorrupt, stage: StageDecompress},
		{name: "invalid utf-8", content: badUTF8, wantErr: codec.ErrEncoding, stage: StageDecompress},
		{name: "not json", content: notJSON, wantErr: canvas.ErrFormat, stage: StageDecode},
		{name: "missing fields", content: good, wantErr: canvas.ErrFormat, stage: StageDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name := strings.ReplaceAll(tt.name, " ", "-")
			if err := os.WriteFile(filepath.Join(s.Dir(), name+".fsk"), tt.content, 0o600); err != nil {
				t.Fatalf("WriteFile failed: %v", err)
			}

			doc, err := s.Load(name)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected %v, got %v", tt.wantErr, err)
			}
			var opErr *OpError
			if !errors.As(err, &opErr) || opErr.Stage != tt.stage {
				t.Errorf("Expected stage %s, got %#v", tt.stage, err)
			}
			if !reflect.DeepEqual(doc, canvas.State{}) {
				t.Errorf("Expected zero document on failure, got %+v", doc)
			}
		})
	}
}

func TestSaveEncodeFailureKeepsPreviousFile(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Save("doc", drawing()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	bad := drawing()
	st := bad.Strokes["s1"]
	st.Width = float32(math.NaN())
	bad.Strokes["s1"] = st

	_, err := s.Save("doc", bad)
	if !errors.Is(err, canvas.ErrEncode) {
		t.Fatalf("Expected canvas.ErrEncode, got %v", err)
	}

	got, err := s.Load("doc")
	if err != nil {
		t.Fatalf("Load after failed save: %v", err)
	}
	if !reflect.DeepEqual(got, drawing()) {
		t.Errorf("Previous project was modified by a failed save")
	}
	if temps := tempFiles(t, s.Dir()); len(temps) != 0 {
		t.Errorf("Expected no temp files, found %v", temps)
	}
}

func TestSaveWriteFailureCleansUp(t *testing.T) {
	s := newTestStore(t)

	// A directory in the way makes the final rename fail
	blocker := filepath.Join(s.Dir(), "blocked.fsk")
	if err := os.Mkdir(blocker, 0o750); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}

	_, err := s.Save("blocked", drawing())
	if !errors.Is(err, ErrIO) {
		t.Fatalf("Expected ErrIO, got %v", err)
	}
	var opErr *OpError
	if !errors.As(err, &opErr) || opErr.Stage != StageWrite {
		t.Errorf("Expected write stage, got %#v", err)
	}
	if temps := tempFiles(t, s.Dir()); len(temps) != 0 {
		t.Errorf("Expected temp file to be removed, found %v", temps)
	}
}

func TestInvalidNames(t *testing.T) {
	s := newTestStore(t)
	names := []string{"", ".", "..", "../escape", "a/b", `a\b`, "nul\x00byte"}

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Save(name, canvas.New()); !errors.Is(err, ErrInvalidName) {
				t.Errorf("Save(%q): expected ErrInvalidName, got %v", name, err)
			}
			if _, err := s.Load(name); !errors.Is(err, ErrInvalidName) {
				t.Errorf("Load(%q): expected ErrInvalidName, got %v", name, err)
			}
			if _, err := s.Stat(name); !errors.Is(err, ErrInvalidName) {
				t.Errorf("Stat(%q): expected ErrInvalidName, got %v", name, err)
			}
		})
	}

	entries, err := os.ReadDir(filepath.Dir(s.Dir()))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".fsk") {
			t.Errorf("File escaped the project directory: %s", e.Name())
		}
	}
}

func TestNamesWithSpacesAndDots(t *testing.T) {
	s := newTestStore(t)
	for _, name := range []string{"my drawing", "v1.2", "..hidden", "ünïcode"} {
		if _, err := s.Save(name, canvas.New()); err != nil {
			t.Fatalf("Save(%q) failed: %v", name, err)
		}
		if _, err := s.Load(name); err != nil {
			t.Errorf("Load(%q) failed: %v", name, err)
		}
	}
}

func TestList(t *testing.T) {
	s := newTestStore(t)

	names, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("Expected empty list, got %v", names)
	}

	for _, name := range []string{"b", "a", "c"} {
		if _, err := s.Save(name, canvas.New()); err != nil {
			t.Fatalf("Save(%q) failed: %v", name, err)
		}
	}
	if err := os.WriteFile(filepath.Join(s.Dir(), "notes.txt"), []byte("x"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(s.Dir(), ".fsk"), []byte("x"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := os.Mkdir(filepath.Join(s.Dir(), "folder.fsk"), 0o750); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}
	if err := os.Symlink(filepath.Join(s.Dir(), "gone.fsk"), filepath.Join(s.Dir(), "dangling.fsk")); err != nil {
		t.Fatalf("Symlink failed: %v", err)
	}

	names, err = s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(names, want) {
		t.Errorf("Expected %v, got %v", want, names)
	}
}

func TestListScanFailure(t *testing.T) {
	s := newTestStore(t)
	if err := os.RemoveAll(s.Dir()); err != nil {
		t.Fatalf("RemoveAll failed: %v", err)
	}

	_, err := s.List()
	if !errors.Is(err, ErrIO) {
		t.Fatalf("Expected ErrIO, got %v", err)
	}
}

func TestListMatching(t *testing.T) {
	s := newTestStore(t)
	for _, name := range []string{"draft-1", "draft-2", "final", "autosave"} {
		if _, err := s.Save(name, canvas.New()); err != nil {
			t.Fatalf("Save(%q) failed: %v", name, err)
		}
	}

	tests := []struct {
		pattern string
		want    []string
	}{
		{pattern: "*", want: []string{"autosave", "draft-1", "draft-2", "final"}},
		{pattern: "draft-*", want: []string{"draft-1", "draft-2"}},
		{pattern: "{final,autosave}", want: []string{"autosave", "final"}},
		{pattern: "nothing*", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			got, err := s.ListMatching(tt.pattern)
			if err != nil {
				t.Fatalf("ListMatching failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}

	if _, err := s.ListMatching("[unclosed"); !errors.Is(err, ErrInvalidPattern) {
		t.Errorf("Expected ErrInvalidPattern, got %v", err)
	}
}

func TestStat(t *testing.T) {
	s := newTestStore(t)
	path, err := s.Save("doc", drawing())
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := s.Stat("doc")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Name != "doc" || info.Path != path || info.Size <= 0 || info.ModTime.IsZero() {
		t.Errorf("Unexpected info: %+v", info)
	}

	if _, err := s.Stat("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestConcurrentSaveAndLoad(t *testing.T) {
	s := newTestStore(t)
	docs := []canvas.State{canvas.New(), drawing()}
	if _, err := s.Save("shared", docs[0]); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 64)

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				if _, err := s.Save("shared", docs[(w+i)%2]); err != nil {
					errs <- err
					return
				}
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				got, err := s.Load("shared")
				if err != nil {
					errs <- err
					return
				}
				if !reflect.DeepEqual(got, docs[0]) && !reflect.DeepEqual(got, docs[1]) {
					errs <- errors.New("loaded a document that was never saved")
					return
				}
			}
		}()
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent access: %v", err)
	}
	if temps := tempFiles(t, s.Dir()); len(temps) != 0 {
		t.Errorf("Expected no temp files, found %v", temps)
	}
}

func TestNewErrors(t *testing.T) {
	if _, err := New(""); !errors.Is(err, ErrStoreInit) {
		t.Errorf("Expected ErrStoreInit for empty dir, got %v", err)
	}

	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := New(file); !errors.Is(err, ErrStoreInit) {
		t.Errorf("Expected ErrStoreInit for a file, got %v", err)
	}
	if _, err := New(filepath.Join(file, "below")); !errors.Is(err, ErrStoreInit) {
		t.Errorf("Expected ErrStoreInit below a file, got %v", err)
	}
}

func TestNewCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "canvases")
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if s.Dir() != dir {
		t.Errorf("Expected dir %s, got %s", dir, s.Dir())
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("Expected directory to exist: %v", err)
	}
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.BaseDir = filepath.Join(t.TempDir(), "projects")
	cfg.Compression.Quality = 1

	s, err := NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewFromConfig failed: %v", err)
	}
	if s.Dir() != cfg.BaseDir {
		t.Errorf("Expected dir %s, got %s", cfg.BaseDir, s.Dir())
	}
	if got := s.codec.Options().Quality; got != 1 {
		t.Errorf("Expected quality 1, got %d", got)
	}

	doc := drawing()
	if _, err := s.Save("doc", doc); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	// Files written at any quality decode with the default codec
	other, err := New(cfg.BaseDir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	got, err := other.Load("doc")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(got, doc) {
		t.Errorf("Round trip across codec settings mismatch")
	}
}

func TestOpErrorMessage(t *testing.T) {
	err := &OpError{Op: "load", Name: "doc", Stage: StageRead, Kind: ErrNotFound}
	want := `projectstore: load "doc": read: projectstore: project not found`
	if err.Error() != want {
		t.Errorf("Expected %q, got %q", want, err.Error())
	}
}
