package weft

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHandleCleanCommandFallsBackToConfigFetchDir(t *testing.T) {
	dir := t.TempDir()
	tempDb := filepath.Join(dir, "package.conf")
	if err := os.MkdirAll(tempDb, 0o755); err != nil {
		t.Fatal(err)
	}

	withStdin(t, "y\n")
	cfg := &Config{FetchDir: dir}
	if err := handleCleanCommand(nil, cfg); err != nil {
		t.Fatalf("handleCleanCommand: %v", err)
	}

	if _, err := os.Stat(tempDb); !os.IsNotExist(err) {
		t.Errorf("expected temp package db removed, stat err: %v", err)
	}
}

func TestHandleCleanCommandNoopWithoutFlagsOrConfig(t *testing.T) {
	if err := handleCleanCommand(nil, &Config{}); err != nil {
		t.Fatalf("handleCleanCommand: %v", err)
	}
}
