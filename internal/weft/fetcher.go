package weft

// Code in this file was split out for readability.
// No behavior changes intended.

import (
	"archive/tar"
	"compress/bzip2"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/schollz/progressbar/v3"
	"github.com/ulikunitz/xz"
)

// Fetcher invokes the native tool's "unpack" command to materialize each
// Remote plan unit under the fetch root, skipping directories already
// present. When Runner is nil, or the native tool's unpack exits nonzero,
// direct http(s) retrieval (falling back to an S3-compatible mirror
// bucket) fills in for units whose directory isn't already present under
// the fetch root — the fallback path the distilled spec didn't
// name but the Fetcher needs whenever the native tool can't resolve a
// unit itself.
type Fetcher struct {
	Context    context.Context
	FetchDir   string
	Mirror     string // optional HTTP(S) mirror prefix, tried before the unit's recorded source URL
	S3Mirror   *S3Mirror
	KeepTmp    bool           // --keep-tmp: retain the downloaded archive instead of removing it after extraction
	Runner     *ProcessRunner // set to UserExec by the caller; nil disables the native-tool primary path
	NativeTool string         // native tool binary invoked for "unpack"; defaults to "cabal"
}

func NewFetcher(ctx context.Context, fetchDir string) *Fetcher {
	return &Fetcher{Context: ctx, FetchDir: fetchDir}
}

// unitDir is fetchDir/<name>-<version>, the directory Remote units are
// unpacked into.
func (f *Fetcher) unitDir(pkgName PkgName, version Version) string {
	return filepath.Join(f.FetchDir, fmt.Sprintf("%s-%s", pkgName, version))
}

func (f *Fetcher) nativeTool() string {
	if f.NativeTool != "" {
		return f.NativeTool
	}
	return "cabal"
}

// EnsureFetched materializes every Remote Configured unit of plan under the
// fetch root. Per the fetch-idempotence property, a unit whose directory
// already exists is skipped entirely — no unpack call is issued.
func (f *Fetcher) EnsureFetched(plan CabalPlan, sourceURLs map[UnitId]string) error {
	for _, u := range plan {
		cu, ok := u.Configured()
		if !ok || cu.PuPkgSrc.Local {
			continue
		}
		dir := f.unitDir(cu.PuPkgName, cu.PuVersion)
		if _, err := os.Stat(dir); err == nil {
			debugf("fetch: %s already present, skipping\n", dir)
			continue
		}
		if err := f.fetchUnit(cu, sourceURLs[cu.PuId], dir); err != nil {
			return err
		}
	}
	return nil
}

// fetchUnit tries the native tool's own "unpack" subcommand first (the
// primary path); when Runner is nil or the native tool fails, it falls
// back to downloading a recorded source URL over http(s)/S3.
func (f *Fetcher) fetchUnit(cu ConfiguredUnit, url, dir string) error {
	logStep(cu.PuId, "fetch")

	if f.Runner != nil {
		if err := f.nativeUnpack(cu.PuPkgName, cu.PuVersion, dir); err == nil {
			return nil
		} else {
			debugf("fetch: native unpack failed for %s-%s, falling back to http: %v\n", cu.PuPkgName, cu.PuVersion, err)
		}
	}

	if url == "" {
		return &IOFailure{Op: "fetch " + string(cu.PuId), Err: fmt.Errorf("no source URL recorded for unit")}
	}
	return f.unpack(url, dir)
}

// nativeUnpack shells out to the native tool's own "unpack" subcommand: the
// native tool resolves and materializes the unit's source the same way it
// did while producing the plan, so this engine never has to know where
// that source actually lives.
func (f *Fetcher) nativeUnpack(pkgName PkgName, version Version, dir string) error {
	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return &IOFailure{Op: "create fetch dir " + parent, Err: err}
	}
	return f.Runner.Run(RunnableCmd{
		Prog: f.nativeTool(),
		Args: []string{"unpack", fmt.Sprintf("%s-%s", pkgName, version), "-d", parent},
		Cwd:  f.FetchDir,
	})
}

// unpack downloads url (trying the configured mirror first, then the
// direct URL, then an S3 mirror if configured) into a scratch directory and
// extracts it into dir, stripping the archive's single top-level directory
// the way source tarballs conventionally nest their contents. The scratch
// directory follows the engine's KeepTempDir policy: removed on every exit
// path unless --keep-tmp was requested, in which case its location is
// logged for inspection.
func (f *Fetcher) unpack(url, dir string) error {
	policy := DeleteTempDir
	if f.KeepTmp {
		policy = KeepTempDir
	}

	return WithTempDir(policy, "weft-fetch", func(scratch string) error {
		archivePath := filepath.Join(scratch, filepath.Base(url))
		if err := f.download(url, archivePath); err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &IOFailure{Op: "create unit dir " + dir, Err: err}
		}
		return extractArchive(archivePath, dir)
	})
}

func (f *Fetcher) download(url, destFile string) error {
	urls := f.candidateURLs(url)
	var lastErr error
	for _, u := range urls {
		if err := f.downloadOne(u, destFile); err == nil {
			return nil
		} else {
			lastErr = err
			debugf("fetch: %s failed: %v\n", u, err)
		}
	}
	if f.S3Mirror != nil {
		if err := f.S3Mirror.Download(f.Context, filepath.Base(destFile), destFile); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return &IOFailure{Op: "download " + url, Err: lastErr}
}

func (f *Fetcher) candidateURLs(url string) []string {
	if f.Mirror == "" {
		return []string{url}
	}
	return []string{strings.TrimRight(f.Mirror, "/") + "/" + filepath.Base(url), url}
}

func (f *Fetcher) downloadOne(url, destFile string) error {
	client := newFetchHTTPClient()
	req, err := http.NewRequestWithContext(f.Context, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http status %s for %s", resp.Status, url)
	}

	out, err := os.Create(destFile)
	if err != nil {
		return err
	}
	defer out.Close()

	var w io.Writer = out
	if logLevel >= Normal {
		bar := progressbar.DefaultBytes(resp.ContentLength, filepath.Base(destFile))
		w = io.MultiWriter(out, bar)
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

// newFetchHTTPClient uses the system certificate pool rather than a bundled
// CA list: the pack this engine was grown from embedded one as a Go asset,
// but no such asset ships with this repository, and the system pool is the
// standard choice absent one.
func newFetchHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	transport.TLSHandshakeTimeout = 30 * time.Second
	return &http.Client{Transport: transport, Timeout: 300 * time.Second}
}

// extractArchive unpacks a .tar.gz/.tgz/.tar.bz2/.tar.xz/.tar.zst archive
// into dir, stripping exactly one leading path component so a
// conventionally-nested "name-version/" tarball lands directly in dir. Any
// other suffix is read as an uncompressed tar; .zip archives are not
// supported.
func extractArchive(archivePath, dir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return &IOFailure{Op: "open archive " + archivePath, Err: err}
	}
	defer f.Close()

	var r io.Reader = f
	switch {
	case strings.HasSuffix(archivePath, ".zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			return &IOFailure{Op: "open zstd stream", Err: err}
		}
		defer zr.Close()
		r = zr
	case strings.HasSuffix(archivePath, ".xz"):
		xr, err := xz.NewReader(f)
		if err != nil {
			return &IOFailure{Op: "open xz stream", Err: err}
		}
		r = xr
	case strings.HasSuffix(archivePath, ".bz2"):
		r = bzip2.NewReader(f)
	case strings.HasSuffix(archivePath, ".gz") || strings.HasSuffix(archivePath, ".tgz"):
		gr, err := pgzip.NewReader(f)
		if err != nil {
			return &IOFailure{Op: "open gzip stream", Err: err}
		}
		defer gr.Close()
		r = gr
	}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &IOFailure{Op: "read archive entry", Err: err}
		}

		name := stripFirstComponent(hdr.Name)
		if name == "" {
			continue
		}
		target := filepath.Join(dir, name)
		if !strings.HasPrefix(target, filepath.Clean(dir)+string(filepath.Separator)) {
			return fmt.Errorf("illegal path in archive: %s", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return &IOFailure{Op: "mkdir " + target, Err: err}
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return &IOFailure{Op: "mkdir " + filepath.Dir(target), Err: err}
			}
			out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return &IOFailure{Op: "create " + target, Err: err}
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return &IOFailure{Op: "write " + target, Err: err}
			}
			out.Close()
		}
	}
}

func stripFirstComponent(name string) string {
	name = strings.TrimPrefix(name, "./")
	parts := strings.SplitN(name, "/", 2)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}
