package weft

// Code in this file was split out for readability.
// No behavior changes intended.

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ulikunitz/xz"
	"lukechampine.com/blake3"
)

// planCacheDir is the on-disk root for cached plan blobs, overridable via
// WEFT_CACHE_DIR.
var planCacheDir = filepath.Join(os.TempDir(), "weft", ".weft-plan-cache")

// PlanCache persists serialized plan blobs, xz-compressed and named by the
// BLAKE3 digest of their uncompressed contents, optionally mirroring each
// entry to an S3-compatible bucket for reuse across machines.
type PlanCache struct {
	Dir    string
	Remote *S3Mirror
}

func NewPlanCache() *PlanCache {
	return &PlanCache{Dir: planCacheDir}
}

// digest returns the hex BLAKE3 digest of data — the content address used
// to name cache entries.
func digest(data []byte) string {
	h := blake3.New(32, nil)
	h.Write(data)
	return fmt.Sprintf("%x", h.Sum(nil))
}

func (c *PlanCache) entryPath(dig string) string {
	return filepath.Join(c.Dir, dig+".plan.xz")
}

// Put xz-compresses blob and writes it under its content digest, returning
// the digest so callers can key later lookups (and, with --cache-remote
// configured, uploads the compressed entry to the mirror bucket).
func (c *PlanCache) Put(ctx context.Context, blob []byte) (string, error) {
	dig := digest(blob)
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return "", &IOFailure{Op: "create plan cache dir", Err: err}
	}

	path := c.entryPath(dig)
	f, err := os.Create(path)
	if err != nil {
		return "", &IOFailure{Op: "create plan cache entry", Err: err}
	}
	defer f.Close()

	xw, err := xz.NewWriter(f)
	if err != nil {
		return "", &IOFailure{Op: "open xz writer", Err: err}
	}
	if _, err := xw.Write(blob); err != nil {
		return "", &IOFailure{Op: "write plan cache entry", Err: err}
	}
	if err := xw.Close(); err != nil {
		return "", &IOFailure{Op: "close xz writer", Err: err}
	}

	if c.Remote != nil {
		if err := c.Remote.Upload(ctx, dig+".plan.xz", path); err != nil {
			debugf("plan cache: remote mirror upload failed: %v\n", err)
		}
	}
	return dig, nil
}

// Get retrieves and decompresses the plan blob for dig, falling back to the
// remote mirror (if configured) when no local entry exists.
func (c *PlanCache) Get(ctx context.Context, dig string) ([]byte, error) {
	path := c.entryPath(dig)
	if _, err := os.Stat(path); err != nil {
		if c.Remote == nil {
			return nil, &IOFailure{Op: "read plan cache entry", Err: err}
		}
		if err := os.MkdirAll(c.Dir, 0o755); err != nil {
			return nil, &IOFailure{Op: "create plan cache dir", Err: err}
		}
		if err := c.Remote.Download(ctx, dig+".plan.xz", path); err != nil {
			return nil, &IOFailure{Op: "fetch plan cache entry from mirror", Err: err}
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &IOFailure{Op: "open plan cache entry", Err: err}
	}
	defer f.Close()

	xr, err := xz.NewReader(f)
	if err != nil {
		return nil, &IOFailure{Op: "open xz reader", Err: err}
	}
	return io.ReadAll(xr)
}

// S3Mirror is a thin wrapper over the AWS SDK's S3 client, used both by
// PlanCache (plan blob mirroring) and Fetcher (source tarball fallback).
type S3Mirror struct {
	Bucket string
	client *s3.Client
}

// NewS3Mirror loads credentials/region from the default AWS config chain
// (environment, shared config file, or instance/task role) and targets
// bucket for subsequent Upload/Download calls.
func NewS3Mirror(ctx context.Context, bucket string) (*S3Mirror, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, &IOFailure{Op: "load AWS config", Err: err}
	}
	return &S3Mirror{Bucket: bucket, client: s3.NewFromConfig(cfg)}, nil
}

func (m *S3Mirror) Upload(ctx context.Context, key, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.Bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	return err
}

func (m *S3Mirror) Download(ctx context.Context, key, localPath string) error {
	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return err
	}
	defer out.Body.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, out.Body)
	return err
}
