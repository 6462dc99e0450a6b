package weft

// Code in this file was split out for readability.
// No behavior changes intended.

import (
	"os"
	"path/filepath"
)

// PkgDbManager maintains the two package databases live for the duration
// of a buildPlan call: a temp DB rooted alongside the fetched sources, and
// the final DB rooted under the install prefix. It is stateless beyond
// these two paths — concurrent staging of different packages is safe, and
// concurrent registration into the same database file is prevented by the
// executor's scheduling, not by this manager.
type PkgDbManager struct {
	Dirs PkgDbDirs
}

// PreparePkgDb computes tempPkgDbDir = fetchDir/package.conf and
// finalPkgDbDir = installDir/package.conf, removes a stale tempPkgDbDir if
// present (swallowing removal errors, per the engine's cleanup policy —
// a subsequent create will either succeed or surface a clearer error), and
// creates both directories.
func PreparePkgDb(fetchDir, installDir string) (*PkgDbManager, error) {
	dirs := PkgDbDirs{
		TempPkgDbDir:  filepath.Join(fetchDir, "package.conf"),
		FinalPkgDbDir: filepath.Join(installDir, "package.conf"),
	}

	os.RemoveAll(dirs.TempPkgDbDir)

	if err := os.MkdirAll(dirs.TempPkgDbDir, 0o755); err != nil {
		return nil, &IOFailure{Op: "create temp package db", Err: err}
	}
	if err := os.MkdirAll(dirs.FinalPkgDbDir, 0o755); err != nil {
		return nil, &IOFailure{Op: "create final package db", Err: err}
	}
	return &PkgDbManager{Dirs: dirs}, nil
}

// registrationFile names the per-UnitId registration file a unit's
// register step writes into tempPkgDbDir. Distinct files per UnitId are
// what makes concurrent registration of different units into the same
// temp DB collision-free.
func (m *PkgDbManager) registrationFile(id UnitId) string {
	return filepath.Join(m.Dirs.TempPkgDbDir, string(id)+".conf")
}

// StageRegistration moves the registration files belonging to a
// fully-built package from tempPkgDbDir into finalPkgDbDir. Scheduled by
// the executor to run per-package-serial, after a package's last unit
// completes its register step.
func (m *PkgDbManager) StageRegistration(unitIds []UnitId) error {
	for _, id := range unitIds {
		src := m.registrationFile(id)
		if _, err := os.Stat(src); err != nil {
			continue // library-less units (exe/test/bench) never register
		}
		dst := filepath.Join(m.Dirs.FinalPkgDbDir, filepath.Base(src))
		if err := os.Rename(src, dst); err != nil {
			return &IOFailure{Op: "stage registration for " + string(id), Err: err}
		}
	}
	return nil
}

// RegisteredUnits lists the UnitIds with a staged registration file in
// finalPkgDbDir, used by tests and by S1-style assertions about the final
// database's contents.
func (m *PkgDbManager) RegisteredUnits() ([]UnitId, error) {
	entries, err := os.ReadDir(m.Dirs.FinalPkgDbDir)
	if err != nil {
		return nil, &IOFailure{Op: "read final package db", Err: err}
	}
	out := make([]UnitId, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		const suffix = ".conf"
		if len(name) > len(suffix) && name[len(name)-len(suffix):] == suffix {
			out = append(out, UnitId(name[:len(name)-len(suffix)]))
		}
	}
	return out, nil
}
