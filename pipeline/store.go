package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aluiziolira/go-fetch-images/models"
	"github.com/aluiziolira/go-fetch-images/parser"
)

// ImageStore persists fetched images into one output directory, skipping
// payloads whose fingerprint is already in the directory's ledger.
type ImageStore struct {
	dir    string
	ledger *DuplicateLedger
}

// NewImageStore creates dir if needed and binds it to ledger.
func NewImageStore(dir string, ledger *DuplicateLedger) (*ImageStore, error) {
	if ledger == nil {
		return nil, fmt.Errorf("ledger is nil")
	}
	if err := EnsureDir(dir); err != nil {
		return nil, err
	}
	return &ImageStore{dir: dir, ledger: ledger}, nil
}

// Open prepares dir and its ledger and returns a store ready for Commit.
func Open(dir, ledgerName string, cacheSize int) (*ImageStore, error) {
	if err := EnsureDir(dir); err != nil {
		return nil, err
	}
	ledger, err := NewDuplicateLedger(dir, ledgerName, cacheSize)
	if err != nil {
		return nil, err
	}
	return NewImageStore(dir, ledger)
}

// EnsureDir creates dir and any missing parents.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ErrStorage{Op: "create directory", Path: dir, Err: err}
	}
	return nil
}

// Dir returns the output directory.
func (s *ImageStore) Dir() string {
	return s.dir
}

// Ledger returns the ledger guarding this directory.
func (s *ImageStore) Ledger() *DuplicateLedger {
	return s.ledger
}

// Commit records body's fingerprint and writes it under a name derived from
// sourceURL. A payload already in the ledger is skipped without touching the
// disk. Files with the same derived name are overwritten, except the ledger
// itself.
func (s *ImageStore) Commit(body []byte, sourceURL, contentType string, index int) (models.CommitResult, error) {
	fingerprint := Fingerprint(body)
	filename := parser.FilenameFor(sourceURL, contentType, index)
	// The ledger shares the directory; an image must never take its name.
	if strings.EqualFold(filename, filepath.Base(s.ledger.Path())) {
		filename = parser.FallbackFilename(contentType, index)
	}
	result := models.CommitResult{
		Filename:    filename,
		Fingerprint: fingerprint,
		Size:        len(body),
	}

	duplicate, err := s.ledger.CheckAndRecord(fingerprint)
	if err != nil {
		return result, err
	}
	if duplicate {
		result.Kind = models.CommitDuplicate
		return result, nil
	}

	path := filepath.Join(s.dir, filename)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return result, ErrStorage{Op: "write image", Path: path, Err: err}
	}

	result.Kind = models.CommitStored
	result.Path = path
	return result, nil
}
