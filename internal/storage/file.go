package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/jobradar/jobradar/internal/types"
)

// FileStorage writes jobs as newline-delimited JSON (one job per line)
// to a local file, for offline runs and runs without a Mongo URI
// configured. Job is a fixed struct rather than an arbitrary field bag,
// so a single streaming JSON-lines writer covers what the teacher split
// across JSON/JSONL/CSV variants.
type FileStorage struct {
	path   string
	file   *os.File
	enc    *json.Encoder
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewFileStorage creates a JSON-lines file storage at outputPath,
// truncating any existing file.
func NewFileStorage(outputPath string, logger *slog.Logger) (*FileStorage, error) {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}

	return &FileStorage{
		path:   outputPath,
		file:   f,
		enc:    json.NewEncoder(f),
		logger: logger.With("component", "file_storage"),
	}, nil
}

func (s *FileStorage) Name() string { return "file" }

// Store appends each job as one JSON line. FileStorage has no notion of
// "by id" upsert since it only ever appends — a later reader is expected
// to key on the last line seen per id, matching how the orchestrator
// deduplicates within a single run before jobs ever reach storage.
func (s *FileStorage) Store(jobs []*types.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range jobs {
		if err := s.enc.Encode(job); err != nil {
			return fmt.Errorf("encode job %q: %w", job.ID, err)
		}
		s.count++
	}
	return nil
}

func (s *FileStorage) Close() error {
	s.logger.Info("file storage closed", "path", s.path, "jobs", s.count)
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}
