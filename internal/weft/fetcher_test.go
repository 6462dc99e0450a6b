package weft

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFetcherUnitDirLayout(t *testing.T) {
	f := NewFetcher(context.Background(), "/fetch")
	got := f.unitDir("foo", "1.0")
	want := filepath.Join("/fetch", "foo-1.0")
	if got != want {
		t.Errorf("unitDir = %q, want %q", got, want)
	}
}

func TestEnsureFetchedSkipsAlreadyPresentDirectory(t *testing.T) {
	fetchDir := t.TempDir()
	f := NewFetcher(context.Background(), fetchDir)

	existing := f.unitDir("foo", "1.0")
	if err := os.MkdirAll(existing, 0o755); err != nil {
		t.Fatal(err)
	}

	plan := CabalPlan{
		ConfiguredPlanUnit(ConfiguredUnit{PuId: "u1", PuPkgName: "foo", PuVersion: "1.0", PuPkgSrc: RemoteSrc()}),
	}
	// No source URL recorded; if the fetcher tried to fetch this unit it
	// would fail on the missing-URL check, so a nil error here proves the
	// fetch-idempotence skip fired.
	if err := f.EnsureFetched(plan, nil); err != nil {
		t.Fatalf("EnsureFetched: %v", err)
	}
}

func TestEnsureFetchedSkipsLocalUnits(t *testing.T) {
	fetchDir := t.TempDir()
	f := NewFetcher(context.Background(), fetchDir)

	plan := CabalPlan{
		ConfiguredPlanUnit(ConfiguredUnit{PuId: "u1", PuPkgName: "foo", PuVersion: "1.0", PuPkgSrc: LocalSrc("/srv/foo")}),
	}
	if err := f.EnsureFetched(plan, nil); err != nil {
		t.Fatalf("EnsureFetched: %v", err)
	}
}

func TestEnsureFetchedMissingURLIsIOFailure(t *testing.T) {
	fetchDir := t.TempDir()
	f := NewFetcher(context.Background(), fetchDir)

	plan := CabalPlan{
		ConfiguredPlanUnit(ConfiguredUnit{PuId: "u1", PuPkgName: "foo", PuVersion: "1.0", PuPkgSrc: RemoteSrc()}),
	}
	err := f.EnsureFetched(plan, map[UnitId]string{})
	if err == nil {
		t.Fatal("expected error for missing source URL")
	}
	if _, ok := err.(*IOFailure); !ok {
		t.Errorf("expected *IOFailure, got %T: %v", err, err)
	}
}

func TestEnsureFetchedUsesNativeToolPrimaryPath(t *testing.T) {
	fetchDir := t.TempDir()
	toolPath := filepath.Join(t.TempDir(), "fake-cabal")
	script := "#!/bin/sh\n" +
		"shift\n" +
		"nv=\"$1\"\n" +
		"shift 2\n" +
		"destdir=\"$1\"\n" +
		"mkdir -p \"$destdir/$nv\"\n" +
		"touch \"$destdir/$nv/marker\"\n"
	if err := os.WriteFile(toolPath, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	f := NewFetcher(context.Background(), fetchDir)
	f.Runner = NewProcessRunner(context.Background())
	f.NativeTool = toolPath

	plan := CabalPlan{
		ConfiguredPlanUnit(ConfiguredUnit{PuId: "u1", PuPkgName: "foo", PuVersion: "1.0", PuPkgSrc: RemoteSrc()}),
	}
	// No source URL is recorded; a successful fetch proves the native path
	// ran and that http fallback was never needed.
	if err := f.EnsureFetched(plan, nil); err != nil {
		t.Fatalf("EnsureFetched: %v", err)
	}
	if _, err := os.Stat(filepath.Join(fetchDir, "foo-1.0", "marker")); err != nil {
		t.Errorf("expected native unpack to materialize foo-1.0, stat err: %v", err)
	}
}

func TestEnsureFetchedFallsBackToHTTPWhenNativeToolFails(t *testing.T) {
	fetchDir := t.TempDir()
	toolPath := filepath.Join(t.TempDir(), "fake-cabal")
	if err := os.WriteFile(toolPath, []byte("#!/bin/sh\nexit 1\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	f := NewFetcher(context.Background(), fetchDir)
	f.Runner = NewProcessRunner(context.Background())
	f.NativeTool = toolPath

	plan := CabalPlan{
		ConfiguredPlanUnit(ConfiguredUnit{PuId: "u1", PuPkgName: "foo", PuVersion: "1.0", PuPkgSrc: RemoteSrc()}),
	}
	err := f.EnsureFetched(plan, map[UnitId]string{})
	if err == nil {
		t.Fatal("expected error once both the native tool and the URL fallback fail")
	}
	if _, ok := err.(*IOFailure); !ok {
		t.Errorf("expected *IOFailure from the http fallback, got %T: %v", err, err)
	}
}

func TestCandidateURLsPrefersMirror(t *testing.T) {
	f := &Fetcher{Mirror: "https://mirror.example/pkgs/"}
	got := f.candidateURLs("https://origin.example/foo-1.0.tar.gz")
	want := []string{"https://mirror.example/pkgs/foo-1.0.tar.gz", "https://origin.example/foo-1.0.tar.gz"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("candidateURLs = %v, want %v", got, want)
	}
}

func TestCandidateURLsNoMirrorIsJustOrigin(t *testing.T) {
	f := &Fetcher{}
	got := f.candidateURLs("https://origin.example/foo-1.0.tar.gz")
	if len(got) != 1 || got[0] != "https://origin.example/foo-1.0.tar.gz" {
		t.Errorf("candidateURLs = %v", got)
	}
}

func TestStripFirstComponent(t *testing.T) {
	cases := map[string]string{
		"foo-1.0/src/Main.hs": "src/Main.hs",
		"./foo-1.0/foo.cabal": "foo.cabal",
		"foo-1.0":             "",
	}
	for in, want := range cases {
		if got := stripFirstComponent(in); got != want {
			t.Errorf("stripFirstComponent(%q) = %q, want %q", in, got, want)
		}
	}
}

func writeTarGz(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	gw := gzip.NewWriter(f)
	defer gw.Close()
	tw := tar.NewWriter(gw)
	defer tw.Close()

	for name, content := range entries {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content))}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
}

func TestExtractArchiveStripsLeadingComponent(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "src.tar.gz")
	writeTarGz(t, archive, map[string]string{
		"foo-1.0/foo.cabal":   "name: foo",
		"foo-1.0/src/Main.hs": "main = return ()",
	})

	outDir := filepath.Join(dir, "out")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := extractArchive(archive, outDir); err != nil {
		t.Fatalf("extractArchive: %v", err)
	}

	for _, want := range []string{"foo.cabal", filepath.Join("src", "Main.hs")} {
		if _, err := os.Stat(filepath.Join(outDir, want)); err != nil {
			t.Errorf("expected extracted file %s, stat err: %v", want, err)
		}
	}
}

func TestExtractArchiveRejectsZipSlip(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.tar.gz")
	writeTarGz(t, archive, map[string]string{
		"foo-1.0/../../evil.txt": "pwned",
	})

	outDir := filepath.Join(dir, "out")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := extractArchive(archive, outDir); err == nil {
		t.Fatal("expected zip-slip path to be rejected")
	}
}
