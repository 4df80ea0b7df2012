package storage

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
)

func TestSaveEnforcesExtension(t *testing.T) {
	s := New(t.TempDir(), 1, []string{".zip"})
	_, err := s.Save("payload.exe", strings.NewReader("data"))
	var badExt ErrBadExtension
	if !errors.As(err, &badExt) {
		t.Fatalf("expected extension error, got %v", err)
	}
	if _, err := s.Save("payload.ZIP", strings.NewReader("data")); err != nil {
		t.Fatalf("expected case-insensitive match: %v", err)
	}
}

func TestSaveEnforcesSizeLimit(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, 1, []string{".zip"})
	big := bytes.Repeat([]byte("x"), (1<<20)+1)
	_, err := s.Save("big.zip", bytes.NewReader(big))
	var tooLarge ErrTooLarge
	if !errors.As(err, &tooLarge) {
		t.Fatalf("expected size error, got %v", err)
	}
	// no partial file left behind
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty dir, found %d entries", len(entries))
	}
}

func TestSaveGeneratesUniqueNames(t *testing.T) {
	s := New(t.TempDir(), 1, []string{".zip"})
	p1, err := s.Save("work.zip", strings.NewReader("one"))
	if err != nil {
		t.Fatal(err)
	}
	p2, err := s.Save("work.zip", strings.NewReader("two"))
	if err != nil {
		t.Fatal(err)
	}
	if p1 == p2 {
		t.Fatalf("expected distinct stored paths")
	}
	if err := s.Remove(p1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := s.Remove(p1); err != nil {
		t.Fatalf("remove twice: %v", err)
	}
}
