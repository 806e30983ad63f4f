package pipeline

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aluiziolira/go-fetch-images/models"
)

func openTestStore(t *testing.T, dir string) *ImageStore {
	t.Helper()
	store, err := Open(dir, ".image_hashes.txt", 16)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store
}

func imageFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.Name() == ".image_hashes.txt" {
			continue
		}
		names = append(names, entry.Name())
	}
	return names
}

func TestCommitStoresThenSkipsDuplicate(t *testing.T) {
	dir := t.TempDir()
	store := openTestStore(t, dir)
	body := []byte("GIF89a-pixels")

	first, err := store.Commit(body, "https://example.test/cat.gif", "image/gif", 1)
	if err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if first.Kind != models.CommitStored {
		t.Fatalf("first kind = %s, want stored", first.Kind)
	}
	if first.Path != filepath.Join(dir, "cat.gif") {
		t.Fatalf("path = %q", first.Path)
	}

	second, err := store.Commit(body, "https://mirror.test/other-name.gif", "image/gif", 2)
	if err != nil {
		t.Fatalf("second commit: %v", err)
	}
	if second.Kind != models.CommitDuplicate {
		t.Fatalf("second kind = %s, want duplicate", second.Kind)
	}
	if second.Path != "" {
		t.Fatalf("duplicate should not report a path, got %q", second.Path)
	}

	if files := imageFiles(t, dir); len(files) != 1 || files[0] != "cat.gif" {
		t.Fatalf("files = %v, want [cat.gif]", files)
	}
	stored, err := os.ReadFile(first.Path)
	if err != nil {
		t.Fatalf("read stored: %v", err)
	}
	if !bytes.Equal(stored, body) {
		t.Fatalf("stored bytes differ")
	}
}

func TestCommitSynthesizesFilename(t *testing.T) {
	dir := t.TempDir()
	store := openTestStore(t, dir)

	result, err := store.Commit([]byte("webp"), "https://example.test/avatar", "image/webp", 7)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if result.Filename != "downloaded_image_7.webp" {
		t.Fatalf("filename = %q", result.Filename)
	}
	if _, err := os.Stat(filepath.Join(dir, "downloaded_image_7.webp")); err != nil {
		t.Fatalf("stored file missing: %v", err)
	}
}

func TestCommitOverwritesOnNameCollision(t *testing.T) {
	dir := t.TempDir()
	store := openTestStore(t, dir)

	if _, err := store.Commit([]byte("first"), "https://a.test/logo.png", "image/png", 1); err != nil {
		t.Fatalf("commit first: %v", err)
	}
	if _, err := store.Commit([]byte("second"), "https://b.test/logo.png", "image/png", 2); err != nil {
		t.Fatalf("commit second: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "logo.png"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "second" {
		t.Fatalf("logo.png = %q, want second", data)
	}
	all, _ := store.Ledger().Fingerprints()
	if len(all) != 2 {
		t.Fatalf("ledger entries = %d, want 2", len(all))
	}
}

func TestCommitReportsStorageError(t *testing.T) {
	dir := t.TempDir()
	store := openTestStore(t, dir)
	// A directory squatting on the target name makes the write fail.
	if err := os.Mkdir(filepath.Join(dir, "blocked.png"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	_, err := store.Commit([]byte("x"), "https://example.test/blocked.png", "image/png", 1)
	var storage ErrStorage
	if !errors.As(err, &storage) {
		t.Fatalf("err = %v, want ErrStorage", err)
	}
	if storage.Op != "write image" {
		t.Fatalf("op = %q", storage.Op)
	}
}

func TestOpenCreatesOutputDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "Fetched_Images")
	store := openTestStore(t, dir)
	if store.Dir() != dir {
		t.Fatalf("dir = %q", store.Dir())
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("output dir not created: %v", err)
	}
}

func TestCommitNeverOverwritesLedger(t *testing.T) {
	dir := t.TempDir()
	store := openTestStore(t, dir)
	first := []byte("image-a")

	if _, err := store.Commit(first, "https://host.test/a.png", "image/png", 1); err != nil {
		t.Fatalf("commit a.png: %v", err)
	}

	tests := []struct {
		url   string
		body  string
		index int
		want  string
	}{
		{url: "https://host.test/.image_hashes.txt", body: "image-b", index: 2, want: "downloaded_image_2.png"},
		{url: "https://host.test/.IMAGE_HASHES.TXT", body: "image-c", index: 3, want: "downloaded_image_3.png"},
	}
	for _, tt := range tests {
		result, err := store.Commit([]byte(tt.body), tt.url, "image/png", tt.index)
		if err != nil {
			t.Fatalf("commit %s: %v", tt.url, err)
		}
		if result.Kind != models.CommitStored || result.Filename != tt.want {
			t.Fatalf("commit %s = %s as %q, want stored as %q", tt.url, result.Kind, result.Filename, tt.want)
		}
		data, err := os.ReadFile(filepath.Join(dir, tt.want))
		if err != nil || string(data) != tt.body {
			t.Fatalf("%s = %q (%v), want %q", tt.want, data, err, tt.body)
		}
	}

	reopened := openTestStore(t, dir)
	again, err := reopened.Commit(first, "https://host.test/a-copy.png", "image/png", 4)
	if err != nil {
		t.Fatalf("recommit: %v", err)
	}
	if again.Kind != models.CommitDuplicate {
		t.Fatalf("recommit kind = %s, want duplicate", again.Kind)
	}

	all, err := reopened.Ledger().Fingerprints()
	if err != nil {
		t.Fatalf("fingerprints: %v", err)
	}
	want := []string{Fingerprint(first), Fingerprint([]byte("image-b")), Fingerprint([]byte("image-c"))}
	if len(all) != len(want) {
		t.Fatalf("ledger = %v, want %v", all, want)
	}
	for i := range want {
		if all[i] != want[i] {
			t.Fatalf("ledger[%d] = %q, want %q", i, all[i], want[i])
		}
	}
	if files := imageFiles(t, dir); len(files) != 3 {
		t.Fatalf("files = %v, want a.png and two synthesized names", files)
	}
}
