package weft

// Code in this file was split out for readability.
// No behavior changes intended.

import (
	"os"
)

// TempDirPolicy controls whether WithTempDir removes its directory on exit.
type TempDirPolicy int

const (
	DeleteTempDir TempDirPolicy = iota
	KeepTempDir
)

// WithTempDir creates a fresh directory named prefix-<random> under the
// system temp root, invokes body with its path, and — for policy
// DeleteTempDir — recursively removes it on every exit path: success,
// failure, or a canceled context. KeepTempDir directories are left in
// place and their location is logged at the verbose level.
func WithTempDir(policy TempDirPolicy, prefix string, body func(dir string) error) error {
	dir, err := os.MkdirTemp("", prefix+"-")
	if err != nil {
		return &IOFailure{Op: "create temp dir", Err: err}
	}

	if policy == DeleteTempDir {
		defer os.RemoveAll(dir)
	} else {
		logVerbose("keeping temp directory: %s", dir)
	}

	return body(dir)
}
