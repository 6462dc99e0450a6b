package weft

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigParsesKeyValueFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weft.conf")
	contents := "# comment\n\nWEFT_MIRROR=https://mirror.example\nWEFT_ASYNC = \"4\"\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Values["WEFT_MIRROR"] != "https://mirror.example" {
		t.Errorf("WEFT_MIRROR = %q", cfg.Values["WEFT_MIRROR"])
	}
	if cfg.Values["WEFT_ASYNC"] != "4" {
		t.Errorf("WEFT_ASYNC = %q, want unquoted 4", cfg.Values["WEFT_ASYNC"])
	}
}

func TestLoadConfigMissingFileIsNotAnError(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "does-not-exist.conf"))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if len(cfg.Values) != 0 {
		t.Errorf("expected no file-sourced values, got %v", cfg.Values)
	}
}

func TestMergeEnvOverridesPrefersEnvironment(t *testing.T) {
	t.Setenv("WEFT_MIRROR", "https://env-mirror.example")
	cfg := &Config{Values: map[string]string{"WEFT_MIRROR": "https://file-mirror.example"}}
	mergeEnvOverrides(cfg)
	if cfg.Values["WEFT_MIRROR"] != "https://env-mirror.example" {
		t.Errorf("WEFT_MIRROR = %q, want env override to win", cfg.Values["WEFT_MIRROR"])
	}
}

func TestInitConfigPopulatesResolvedFields(t *testing.T) {
	cfg := &Config{Values: map[string]string{
		"WEFT_FETCH_DIR":   "/var/cache/weft",
		"WEFT_INSTALL_DIR": "/opt/weft",
		"WEFT_PREFIX":      "/usr",
		"WEFT_ASYNC":       "8",
		"WEFT_MIRROR":      "https://mirror.example",
		"WEFT_CACHE_REMOTE": "weft-plans",
	}}
	initConfig(cfg)

	if cfg.FetchDir != "/var/cache/weft" {
		t.Errorf("FetchDir = %q", cfg.FetchDir)
	}
	if cfg.InstallDir != "/opt/weft" {
		t.Errorf("InstallDir = %q", cfg.InstallDir)
	}
	if cfg.Prefix != "/usr" {
		t.Errorf("Prefix = %q", cfg.Prefix)
	}
	if cfg.AsyncJobs != 8 {
		t.Errorf("AsyncJobs = %d, want 8", cfg.AsyncJobs)
	}
	if cfg.Mirror != "https://mirror.example" {
		t.Errorf("Mirror = %q", cfg.Mirror)
	}
	if cfg.CacheRemote != "weft-plans" {
		t.Errorf("CacheRemote = %q", cfg.CacheRemote)
	}
}

func TestInitConfigIgnoresUnparseableAsyncValue(t *testing.T) {
	cfg := &Config{Values: map[string]string{"WEFT_ASYNC": "not-a-number"}}
	initConfig(cfg)
	if cfg.AsyncJobs != 0 {
		t.Errorf("AsyncJobs = %d, want unchanged 0 for unparseable value", cfg.AsyncJobs)
	}
}
