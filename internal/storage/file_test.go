package storage

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/jobradar/jobradar/internal/types"
)

func TestFileStorageWritesOneJSONLinePerJob(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.jsonl")
	s, err := NewFileStorage(path, slog.Default())
	if err != nil {
		t.Fatalf("NewFileStorage: %v", err)
	}

	job, err := types.NewJob("1", "Support Specialist", "Acme Corp", "", "test")
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}

	if err := s.Store([]*types.Job{job}); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lines := 0
	var decoded types.Job
	for scanner.Scan() {
		lines++
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Fatalf("decode line: %v", err)
		}
	}
	if lines != 1 {
		t.Fatalf("expected 1 line, got %d", lines)
	}
	if decoded.Title != "Support Specialist" {
		t.Fatalf("unexpected decoded job: %+v", decoded)
	}
}
