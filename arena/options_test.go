package arena

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv("PROTOARENA_MIN_BLOCK_SIZE", "16384")
	t.Setenv("PROTOARENA_LOG_LEVEL", "debug")

	opts, err := OptionsFromEnv()
	if err != nil {
		t.Fatalf("options from env: %v", err)
	}
	if len(opts) != 2 {
		t.Fatalf("got %d options, want block size and logger", len(opts))
	}
	a := New(opts...)
	defer a.Release()
	if a.MinBlockSize() != 16384 {
		t.Errorf("MinBlockSize() = %d, want 16384", a.MinBlockSize())
	}
}

func TestOptionsFromEnvRejectsBadValue(t *testing.T) {
	t.Setenv("PROTOARENA_MIN_BLOCK_SIZE", "-1")
	if _, err := OptionsFromEnv(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestOptionsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arena.toml")
	if err := os.WriteFile(path, []byte("min_block_size = 512\nlog_level = \"bogus\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	opts, err := OptionsFromFile(path)
	if err != nil {
		t.Fatalf("options from file: %v", err)
	}
	// An unknown level keeps the package logger.
	if len(opts) != 1 {
		t.Fatalf("got %d options, want only block size", len(opts))
	}
	a := New(opts...)
	defer a.Release()
	if a.MinBlockSize() != 512 {
		t.Errorf("MinBlockSize() = %d, want 512", a.MinBlockSize())
	}
}

func TestOptionsIgnoreInvalidValues(t *testing.T) {
	a := New(WithMinBlockSize(0), WithAllocator(nil), WithLogger(nil))
	defer a.Release()
	if a.MinBlockSize() != DefaultMinBlockSize {
		t.Errorf("MinBlockSize() = %d, want %d", a.MinBlockSize(), DefaultMinBlockSize)
	}
}
