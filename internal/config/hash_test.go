package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestComputeBlake3Hash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, nil, 0600); err != nil {
		t.Fatal(err)
	}

	got, err := ComputeBlake3Hash(path)
	if err != nil {
		t.Fatalf("ComputeBlake3Hash() failed: %v", err)
	}
	// BLAKE3 of the empty input.
	want := "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262"
	if got != want {
		t.Fatalf("ComputeBlake3Hash() = %s, want %s", got, want)
	}
}

func TestComputeBlake3HashMissingFile(t *testing.T) {
	if _, err := ComputeBlake3Hash(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestFingerprint(t *testing.T) {
	fp, err := Defaults().Fingerprint()
	if err != nil || fp != "" {
		t.Fatalf("Defaults().Fingerprint() = %q, %v; want empty, nil", fp, err)
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: debug\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	a, err := cfg.Fingerprint()
	if err != nil {
		t.Fatalf("Fingerprint() failed: %v", err)
	}
	if err := os.WriteFile(path, []byte("log:\n  level: warn\n"), 0600); err != nil {
		t.Fatal(err)
	}
	b, err := cfg.Fingerprint()
	if err != nil {
		t.Fatalf("Fingerprint() failed: %v", err)
	}
	if len(a) != 64 || a == b {
		t.Fatalf("expected distinct 64-char fingerprints, got %q and %q", a, b)
	}
}
