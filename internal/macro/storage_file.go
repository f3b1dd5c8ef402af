package macro

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// maxRotatedFiles bounds how many rotated JSONL files are kept, matching the
// teacher's flight-recorder rotation policy.
const maxRotatedFiles = 3

// FileStorage is the default MacroStorage implementation: a rotating,
// append-only JSONL file per "generation", one save per line, guarded by a
// mutex around the open *os.File + json.Encoder pair. Reads reconstruct the
// in-memory index by replaying every kept file.
type FileStorage struct {
	mu       sync.Mutex
	basePath string
	file     *os.File
	encoder  *json.Encoder
}

// NewFileStorage opens (or creates) the macro storage directory at dir.
func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create macro storage dir: %w", err)
	}
	fs := &FileStorage{basePath: filepath.Join(dir, "macros.jsonl")}
	if err := fs.open(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (s *FileStorage) open() error {
	f, err := os.OpenFile(s.basePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open macro storage file: %w", err)
	}
	s.file = f
	s.encoder = json.NewEncoder(f)
	return nil
}

// rotate closes the current file, renames it with a timestamp suffix, prunes
// old rotations beyond maxRotatedFiles, and opens a fresh file — the same
// rotate-then-create idiom the teacher's Recorder uses.
func (s *FileStorage) rotate() error {
	if s.file != nil {
		_ = s.file.Close()
	}

	rotated := fmt.Sprintf("%s.%d", s.basePath, time.Now().UnixNano())
	if _, err := os.Stat(s.basePath); err == nil {
		if err := os.Rename(s.basePath, rotated); err != nil {
			return fmt.Errorf("rotate macro storage file: %w", err)
		}
	}

	matches, _ := filepath.Glob(s.basePath + ".*")
	sort.Strings(matches)
	for len(matches) > maxRotatedFiles {
		_ = os.Remove(matches[0])
		matches = matches[1:]
	}

	return s.open()
}

type fileRecord struct {
	Op        string    `json:"op"` // "save" or "delete"
	Recording Recording `json:"recording,omitempty"`
	ID        string    `json:"id,omitempty"`
}

// Save appends a save record. Rotates when the active file exceeds 5MB.
func (s *FileStorage) Save(rec Recording) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if info, err := s.file.Stat(); err == nil && info.Size() > 5<<20 {
		if err := s.rotate(); err != nil {
			return err
		}
	}

	return s.encoder.Encode(fileRecord{Op: "save", Recording: rec})
}

// Delete appends a tombstone record; List/Get replay records in order so a
// later delete shadows an earlier save.
func (s *FileStorage) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.replayLocked()
	if err != nil {
		return false, err
	}
	if _, ok := existing[id]; !ok {
		return false, nil
	}
	if err := s.encoder.Encode(fileRecord{Op: "delete", ID: id}); err != nil {
		return false, err
	}
	return true, nil
}

// Update loads the current recording, applies mutate, and re-saves it.
func (s *FileStorage) Update(id string, mutate func(*Recording)) (bool, error) {
	s.mu.Lock()
	existing, err := s.replayLocked()
	s.mu.Unlock()
	if err != nil {
		return false, err
	}
	rec, ok := existing[id]
	if !ok {
		return false, nil
	}
	mutate(&rec)
	if err := s.Save(rec); err != nil {
		return false, err
	}
	return true, nil
}

func (s *FileStorage) Get(id string) (*Recording, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, err := s.replayLocked()
	if err != nil {
		return nil, false, err
	}
	rec, ok := existing[id]
	if !ok {
		return nil, false, nil
	}
	return &rec, true, nil
}

func (s *FileStorage) List() ([]Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, err := s.replayLocked()
	if err != nil {
		return nil, err
	}
	out := make([]Recording, 0, len(existing))
	for _, rec := range existing {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

// replayLocked rebuilds the current id->recording index by reading every
// kept rotation in chronological order, then the active file. Caller must
// hold s.mu.
func (s *FileStorage) replayLocked() (map[string]Recording, error) {
	index := make(map[string]Recording)

	files, _ := filepath.Glob(s.basePath + ".*")
	sort.Strings(files)
	files = append(files, s.basePath)

	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 10<<20)
		for scanner.Scan() {
			var rec fileRecord
			if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
				continue
			}
			switch rec.Op {
			case "save":
				index[rec.Recording.ID] = rec.Recording
			case "delete":
				delete(index, rec.ID)
			}
		}
		f.Close()
	}

	return index, nil
}

// Close releases the active file handle.
func (s *FileStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}
