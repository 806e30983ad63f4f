package pipeline

import (
	"bufio"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Fingerprint returns the lowercase hex MD5 digest of body. It is used only
// for duplicate detection.
func Fingerprint(body []byte) string {
	sum := md5.Sum(body)
	return hex.EncodeToString(sum[:])
}

// DuplicateLedger is the append-only set of fingerprints stored for one
// output directory, one hex digest per line.
//
// Entries are never removed, so a fingerprint seen once stays valid and the
// in-memory cache only ever holds confirmed members. Misses always go back to
// the file.
type DuplicateLedger struct {
	path  string
	mu    sync.Mutex
	known *lru.Cache[string, struct{}]
}

// NewDuplicateLedger opens (creating if needed) the ledger file name inside
// dir. The directory must already exist.
func NewDuplicateLedger(dir, name string, cacheSize int) (*DuplicateLedger, error) {
	if cacheSize <= 0 {
		cacheSize = 1
	}
	cache, err := lru.New[string, struct{}](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create ledger cache: %w", err)
	}

	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return nil, ErrStorage{Op: "open ledger", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return nil, ErrStorage{Op: "close ledger", Path: path, Err: err}
	}

	return &DuplicateLedger{path: path, known: cache}, nil
}

// Path returns the location of the sidecar file.
func (l *DuplicateLedger) Path() string {
	return l.path
}

// Contains reports whether fingerprint has been recorded.
func (l *DuplicateLedger) Contains(fingerprint string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.containsLocked(normalizeFingerprint(fingerprint))
}

// Record appends fingerprint to the ledger. It does not check for an
// existing entry; use CheckAndRecord for that.
func (l *DuplicateLedger) Record(fingerprint string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.recordLocked(normalizeFingerprint(fingerprint))
}

// CheckAndRecord records fingerprint unless it is already present and
// reports whether it was a duplicate. The check and the append happen under
// one lock, which serializes callers within this process only.
func (l *DuplicateLedger) CheckAndRecord(fingerprint string) (bool, error) {
	fingerprint = normalizeFingerprint(fingerprint)

	l.mu.Lock()
	defer l.mu.Unlock()

	found, err := l.containsLocked(fingerprint)
	if err != nil {
		return false, err
	}
	if found {
		return true, nil
	}
	return false, l.recordLocked(fingerprint)
}

// Fingerprints returns every entry in file order, duplicates included.
func (l *DuplicateLedger) Fingerprints() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []string
	err := l.scanLocked(func(fp string) bool {
		out = append(out, fp)
		return true
	})
	return out, err
}

func (l *DuplicateLedger) containsLocked(fingerprint string) (bool, error) {
	if fingerprint == "" {
		return false, nil
	}
	if l.known.Contains(fingerprint) {
		return true, nil
	}

	found := false
	err := l.scanLocked(func(fp string) bool {
		if fp == fingerprint {
			found = true
			return false
		}
		return true
	})
	if err != nil {
		return false, err
	}
	if found {
		l.known.Add(fingerprint, struct{}{})
	}
	return found, nil
}

func (l *DuplicateLedger) recordLocked(fingerprint string) error {
	if fingerprint == "" {
		return ErrStorage{Op: "append ledger", Path: l.path, Err: errors.New("empty fingerprint")}
	}

	f, err := os.OpenFile(l.path, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return ErrStorage{Op: "open ledger", Path: l.path, Err: err}
	}

	line := fingerprint + "\n"
	if missing, err := missingTrailingNewline(f); err != nil {
		f.Close()
		return ErrStorage{Op: "inspect ledger", Path: l.path, Err: err}
	} else if missing {
		line = "\n" + line
	}

	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return ErrStorage{Op: "append ledger", Path: l.path, Err: err}
	}
	if err := f.Close(); err != nil {
		return ErrStorage{Op: "close ledger", Path: l.path, Err: err}
	}

	l.known.Add(fingerprint, struct{}{})
	return nil
}

func (l *DuplicateLedger) scanLocked(visit func(string) bool) error {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return ErrStorage{Op: "read ledger", Path: l.path, Err: err}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fp := normalizeFingerprint(scanner.Text())
		if fp == "" {
			continue
		}
		if !visit(fp) {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return ErrStorage{Op: "read ledger", Path: l.path, Err: err}
	}
	return nil
}

func missingTrailingNewline(f *os.File) (bool, error) {
	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return false, nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	return last[0] != '\n', nil
}

func normalizeFingerprint(fp string) string {
	return strings.ToLower(strings.TrimSpace(fp))
}
