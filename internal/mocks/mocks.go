package mocks

import (
	"context"
	"encoding/json"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Skryldev/audiobatch/domain/ports"
)

// MockFFmpegExecutor is a test double for ports.FFmpegExecutor. It is safe
// for concurrent use.
type MockFFmpegExecutor struct {
	ExecuteFunc    func(ctx context.Context, args []string) error
	ProbeFunc      func(ctx context.Context, inputPath string) ([]byte, error)
	HasEncoderFunc func(ctx context.Context, name string) (bool, error)

	mu             sync.Mutex
	executedArgs   [][]string
	encoderQueries []string
}

func (m *MockFFmpegExecutor) Execute(ctx context.Context, args []string) error {
	m.mu.Lock()
	m.executedArgs = append(m.executedArgs, append([]string(nil), args...))
	m.mu.Unlock()
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, args)
	}
	return nil
}

func (m *MockFFmpegExecutor) Probe(ctx context.Context, inputPath string) ([]byte, error) {
	if m.ProbeFunc != nil {
		return m.ProbeFunc(ctx, inputPath)
	}
	return DefaultProbeResponse(), nil
}

func (m *MockFFmpegExecutor) HasEncoder(ctx context.Context, name string) (bool, error) {
	m.mu.Lock()
	m.encoderQueries = append(m.encoderQueries, name)
	m.mu.Unlock()
	if m.HasEncoderFunc != nil {
		return m.HasEncoderFunc(ctx, name)
	}
	return false, nil
}

func (m *MockFFmpegExecutor) Binary() string { return "ffmpeg" }

// ExecutedArgs returns a copy of every Execute argument list.
func (m *MockFFmpegExecutor) ExecutedArgs() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string(nil), m.executedArgs...)
}

// EncoderQueries returns every encoder name passed to HasEncoder.
func (m *MockFFmpegExecutor) EncoderQueries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.encoderQueries...)
}

// DefaultProbeResponse is a stereo mp3 with tags in mixed case and an
// embedded cover.
func DefaultProbeResponse() []byte {
	resp := map[string]interface{}{
		"format": map[string]interface{}{
			"duration":    "120.5",
			"format_name": "mp3",
			"tags": map[string]string{
				"TITLE":    "Blue in Green",
				"Artist":   "Miles Davis",
				"album":    "Kind of Blue",
				"encoder":  "LAME3.100",
				"iTunNORM": "0000",
				"LYRICS":   "instrumental",
				"track":    "3/5",
				"comment":  "ripped",
			},
		},
		"streams": []map[string]interface{}{
			{
				"index":       0,
				"codec_type":  "audio",
				"codec_name":  "mp3",
				"sample_rate": "44100",
				"channels":    2,
			},
			{
				"index":       1,
				"codec_type":  "video",
				"codec_name":  "mjpeg",
				"disposition": map[string]int{"attached_pic": 1},
			},
		},
	}
	b, _ := json.Marshal(resp)
	return b
}

// OutputPath returns the last argument of an ffmpeg argument list.
func OutputPath(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[len(args)-1]
}

// InputPath returns the argument following the first -i.
func InputPath(args []string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == "-i" {
			return args[i+1]
		}
	}
	return ""
}

// MemStorage is an in-memory ports.StorageProvider. Paths are cleaned
// with filepath.Clean; directories are implied by file paths and MkdirAll.
type MemStorage struct {
	mu    sync.Mutex
	files map[string][]byte
	dirs  map[string]bool

	// Failure injection, keyed by cleaned path.
	ListErr  map[string]error
	MkdirErr map[string]error

	writes int
	mkdirs int
}

func NewMemStorage() *MemStorage {
	return &MemStorage{
		files:    map[string][]byte{},
		dirs:     map[string]bool{},
		ListErr:  map[string]error{},
		MkdirErr: map[string]error{},
	}
}

// Put seeds a file without counting it as a write.
func (s *MemStorage) Put(p string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p = filepath.Clean(p)
	s.files[p] = data
	s.addParents(p)
}

func (s *MemStorage) addParents(p string) {
	for dir := filepath.Dir(p); ; dir = filepath.Dir(dir) {
		s.dirs[dir] = true
		if parent := filepath.Dir(dir); parent == dir {
			return
		}
	}
}

// Files returns all file paths in sorted order.
func (s *MemStorage) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.files))
	for p := range s.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Mutations counts WriteFile and MkdirAll calls.
func (s *MemStorage) Mutations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes + s.mkdirs
}

func (s *MemStorage) List(_ context.Context, dir string) ([]ports.DirEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dir = filepath.Clean(dir)
	if err := s.ListErr[dir]; err != nil {
		return nil, err
	}
	if !s.dirs[dir] {
		return nil, &fs.PathError{Op: "readdir", Path: dir, Err: fs.ErrNotExist}
	}
	seen := map[string]bool{}
	var out []ports.DirEntry
	add := func(p string, isDir bool) {
		if filepath.Dir(p) != dir || p == dir {
			return
		}
		name := filepath.Base(p)
		if seen[name] {
			return
		}
		seen[name] = true
		out = append(out, ports.DirEntry{Name: name, IsDir: isDir})
	}
	for p := range s.dirs {
		add(p, true)
	}
	for p := range s.files {
		add(p, false)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemStorage) Exists(_ context.Context, p string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p = filepath.Clean(p)
	_, ok := s.files[p]
	return ok || s.dirs[p], nil
}

func (s *MemStorage) MkdirAll(_ context.Context, dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dir = filepath.Clean(dir)
	s.mkdirs++
	for d := dir; ; d = filepath.Dir(d) {
		if err := s.MkdirErr[d]; err != nil {
			return err
		}
		if filepath.Dir(d) == d {
			break
		}
	}
	s.dirs[dir] = true
	s.addParents(dir)
	return nil
}

func (s *MemStorage) ReadFile(_ context.Context, p string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.files[filepath.Clean(p)]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: p, Err: fs.ErrNotExist}
	}
	return b, nil
}

func (s *MemStorage) WriteFile(_ context.Context, p string, data []byte, _ fs.FileMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p = filepath.Clean(p)
	s.writes++
	s.files[p] = append([]byte(nil), data...)
	s.addParents(p)
	return nil
}

func (s *MemStorage) Size(_ context.Context, p string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.files[filepath.Clean(p)]
	if !ok {
		return 0, &fs.PathError{Op: "stat", Path: p, Err: fs.ErrNotExist}
	}
	return int64(len(b)), nil
}

func (s *MemStorage) Remove(_ context.Context, p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, filepath.Clean(p))
	return nil
}

// Rel is a slash-separated path relative to root, for readable assertions.
func Rel(root, p string) string {
	r, err := filepath.Rel(root, p)
	if err != nil {
		return p
	}
	return path.Clean(strings.ReplaceAll(r, string(filepath.Separator), "/"))
}
