package weft

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestScriptBufferRenderHeader(t *testing.T) {
	sb := NewScriptBuffer()
	rendered := sb.Render()
	if !strings.HasPrefix(rendered, "#!/bin/sh\nset -e\n") {
		t.Errorf("Render() missing expected header, got: %q", rendered)
	}
}

func TestScriptBufferCommandQuoting(t *testing.T) {
	sb := NewScriptBuffer()
	sb.Command("echo", "it's fine")
	rendered := sb.Render()
	if !strings.Contains(rendered, `echo 'it'\''s fine'`) {
		t.Errorf("expected single-quote-escaped argument, got: %q", rendered)
	}
}

func TestScriptBufferCdSetEnvCommentBlank(t *testing.T) {
	sb := NewScriptBuffer()
	sb.Cd("/tmp/build")
	sb.SetEnv("CC", "gcc")
	sb.Comment("unit: foo-1.0:lib")
	sb.Blank()
	sb.Command("ghc", "--version")
	rendered := sb.Render()

	for _, want := range []string{
		"cd '/tmp/build'",
		"export CC='gcc'",
		"# unit: foo-1.0:lib",
		"ghc '--version'",
	} {
		if !strings.Contains(rendered, want) {
			t.Errorf("rendered script missing %q, got:\n%s", want, rendered)
		}
	}
}

func TestScriptBufferAppendToFileCreatesExecutable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "build.sh")

	sb := NewScriptBuffer()
	sb.Command("true")
	if err := sb.AppendToFile(path); err != nil {
		t.Fatalf("AppendToFile: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm()&0o100 == 0 {
		t.Error("expected script file to be executable")
	}

	sb2 := NewScriptBuffer()
	sb2.Command("echo", "second")
	if err := sb2.AppendToFile(path); err != nil {
		t.Fatalf("second AppendToFile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "true") || !strings.Contains(string(data), "echo 'second'") {
		t.Errorf("expected both appended scripts concatenated, got:\n%s", data)
	}
}
