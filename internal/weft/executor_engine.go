package weft

// Code in this file was split out for readability.
// No behavior changes intended.

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// BuildStrategy selects one of the three ways the Executor drives a tagged
// plan to completion.
type BuildStrategy int

const (
	TopoSortStrategy BuildStrategy = iota
	AsyncStrategy
	ScriptStrategy
)

// Executor takes a tagged, sorted unit list and a BuildStrategy and drives
// it to completion, enforcing the happens-before graph from §4.8: within a
// unit, configure/build/copy/register run in order; across units, a
// dependency's build script completes before its dependent's starts, and a
// package's setup script completes before any of that package's units
// start configuring.
type Executor struct {
	Context    context.Context
	FetchDir   string
	Dest       DestDir
	ArgsFunc   UnitArgsFunc
	Strategy   BuildStrategy
	AsyncJobs  int    // meaningful iff Strategy == AsyncStrategy; <=0 means unbounded
	ScriptPath string // meaningful iff Strategy == ScriptStrategy
	Runner     *ProcessRunner
	Board      *StatusBoard // optional; meaningful iff Strategy == AsyncStrategy
	KeepTempDb bool         // --keep-tmp: skip removing tempPkgDbDir once the run finishes
}

func NewExecutor(ctx context.Context) *Executor {
	return &Executor{Context: ctx, Runner: NewProcessRunner(ctx), Strategy: TopoSortStrategy}
}

// BuildPlan sorts, tags and executes plan under the Executor's configured
// strategy, returning the first failure encountered. On success, the temp
// package database is removed unless KeepTempDb is set or the strategy is
// ScriptStrategy — its registration files have already been staged into
// the final database by then.
func (e *Executor) BuildPlan(plan CabalPlan) error {
	db, err := PreparePkgDb(e.FetchDir, e.Dest.InstallDir())
	if err != nil {
		return err
	}

	sorter := NewPlanSorter()
	sorted, err := sorter.Sort(plan)
	if err != nil {
		return err
	}

	tagger := NewSetupTagger()
	tagged := tagger.Tag(sorted)

	planIndex := make(map[UnitId]PlanUnit, len(plan))
	for _, u := range plan {
		planIndex[u.Id()] = u
	}

	var runErr error
	switch e.Strategy {
	case ScriptStrategy:
		runErr = e.runScript(tagged, db, planIndex)
	case AsyncStrategy:
		runErr = e.runAsync(tagged, db, planIndex)
	default:
		runErr = e.runTopoSort(tagged, db, planIndex)
	}

	if runErr == nil && e.Strategy != ScriptStrategy && !e.KeepTempDb {
		os.RemoveAll(db.Dirs.TempPkgDbDir)
	} else if e.KeepTempDb {
		logVerbose("keeping temp package database: %s", db.Dirs.TempPkgDbDir)
	}
	return runErr
}

// exeDepsPATH resolves the Open Question from §9: a unit whose
// puExeDepends is non-empty gets the installed bin directory of each
// exe-dependency unit's package prepended to its PATH, so its build
// scripts can find tool executables built earlier in the same run.
func (e *Executor) exeDepsPATH(u ConfiguredUnit) []string {
	if len(u.PuExeDepends) == 0 {
		return nil
	}
	dirs := make([]string, 0, len(u.PuExeDepends))
	seen := make(map[string]bool)
	binDir := filepath.Join(e.Dest.InstallDir(), "bin")
	if !seen[binDir] {
		dirs = append(dirs, binDir)
		seen[binDir] = true
	}
	return dirs
}

// buildLogPath is the gzip-compressed per-unit build log written under
// Async: fetchDir/<name>-<version>/.weft-build-<cid>.log.gz.
func (e *Executor) buildLogPath(u ConfiguredUnit) string {
	return filepath.Join(e.FetchDir, fmt.Sprintf("%s-%s", u.PuPkgName, u.PuVersion), fmt.Sprintf(".weft-build-%s.log.gz", u.PuId))
}

// openBuildLog creates (or truncates) a unit's gzip build log. The caller
// closes both the gzip writer and the underlying file.
func (e *Executor) openBuildLog(u ConfiguredUnit) (*os.File, *gzip.Writer, error) {
	path := e.buildLogPath(u)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, &IOFailure{Op: "create log dir for " + path, Err: err}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, &IOFailure{Op: "create build log " + path, Err: err}
	}
	return f, gzip.NewWriter(f), nil
}

func (e *Executor) setBoardState(id UnitId, state UnitState) {
	if e.Board != nil {
		e.Board.SetState(id, state)
	}
}

func (e *Executor) newCompiler(db *PkgDbManager, planIndex map[UnitId]PlanUnit, sem Semaphore, scriptOut *ScriptBuffer) *UnitCompiler {
	return &UnitCompiler{
		FetchDir:  e.FetchDir,
		Dest:      e.Dest,
		PkgDb:     db,
		ArgsFunc:  e.ArgsFunc,
		PlanIndex: planIndex,
		Runner:    e.Runner,
		Sem:       sem,
		ScriptOut: scriptOut,
	}
}

// runTopoSort executes the tagged sequence strictly sequentially: no
// tokens are required.
func (e *Executor) runTopoSort(tagged []TaggedUnit, db *PkgDbManager, planIndex map[UnitId]PlanUnit) error {
	compiler := e.newCompiler(db, planIndex, NoneSemaphore(), nil)
	allUnits, remaining := unitsPerPackage(tagged)

	for _, t := range tagged {
		if t.IsSetupOwner() {
			logStep(t.Unit.PuId, "setup")
			if err := compiler.CompileSetup(t.Unit); err != nil {
				return err
			}
		}
		logStep(t.Unit.PuId, "build")
		if err := compiler.CompileUnit(t.Unit, t.IsSetupOwner(), e.exeDepsPATH(t.Unit)); err != nil {
			return err
		}

		key := pkgNodeKey{t.Unit.PuPkgName, t.Unit.PuVersion}
		remaining[key]--
		if remaining[key] == 0 {
			if err := db.StageRegistration(allUnits[key]); err != nil {
				return err
			}
		}
	}
	return nil
}

// runScript walks the tagged list in order, building each unit's
// setup-script (if owner) and build-script into its own buffer and merging
// it into the top-level buffer, then appends the result to the file at
// e.ScriptPath. No external commands run.
func (e *Executor) runScript(tagged []TaggedUnit, db *PkgDbManager, planIndex map[UnitId]PlanUnit) error {
	buf := NewScriptBuffer()

	for _, t := range tagged {
		unitBuf := newScriptBlock()
		compiler := e.newCompiler(db, planIndex, nil, unitBuf)

		if t.IsSetupOwner() {
			if err := compiler.CompileSetup(t.Unit); err != nil {
				return err
			}
		}
		if err := compiler.CompileUnit(t.Unit, t.IsSetupOwner(), e.exeDepsPATH(t.Unit)); err != nil {
			return err
		}
		buf.Append(unitBuf)
	}
	return buf.AppendToFile(e.ScriptPath)
}

// pkgNodeKey identifies one package node in the Async dual-DAG.
type pkgNodeKey struct {
	name    PkgName
	version Version
}

// runAsync builds the dual DAG described in §4.8/§9 — one package node per
// distinct package (the setup compile) and one unit node per Configured
// unit — as a fixed point over two maps: every task handle is allocated
// first, then each task's body (which awaits handles from both maps) is
// launched, so the mutual recursion between package and unit tasks never
// becomes a runtime cycle.
func (e *Executor) runAsync(tagged []TaggedUnit, db *PkgDbManager, planIndex map[UnitId]PlanUnit) error {
	sem := NewSemaphore(e.AsyncJobs)
	compiler := e.newCompiler(db, planIndex, sem, nil)

	type taskHandle struct {
		done chan struct{}
		err  error
	}

	pkgTasks := make(map[pkgNodeKey]*taskHandle)
	unitTasks := make(map[UnitId]*taskHandle)
	owners := make(map[pkgNodeKey]ConfiguredUnit)
	unitsByPkg := make(map[pkgNodeKey][]UnitId)

	// Fixed point, pass 1: allocate every handle up front.
	for _, t := range tagged {
		key := pkgNodeKey{t.Unit.PuPkgName, t.Unit.PuVersion}
		unitTasks[t.Unit.PuId] = &taskHandle{done: make(chan struct{})}
		unitsByPkg[key] = append(unitsByPkg[key], t.Unit.PuId)
		if t.IsSetupOwner() {
			pkgTasks[key] = &taskHandle{done: make(chan struct{})}
			owners[key] = t.Unit
		}
	}

	await := func(id UnitId) error {
		h, ok := unitTasks[id]
		if !ok {
			return nil // PreExisting or out-of-plan: treated as already complete
		}
		<-h.done
		return h.err
	}
	awaitPkg := func(key pkgNodeKey) error {
		h, ok := pkgTasks[key]
		if !ok {
			return nil
		}
		<-h.done
		return h.err
	}

	var wg sync.WaitGroup
	var firstErrOnce sync.Once
	var firstErr error
	recordErr := func(err error) {
		if err == nil {
			return
		}
		firstErrOnce.Do(func() { firstErr = err })
	}

	// Fixed point, pass 2: launch package node bodies.
	for key, h := range pkgTasks {
		key, h := key, h
		owner := owners[key]
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer close(h.done)
			for _, dep := range owner.PuSetupDepends {
				if err := await(dep); err != nil {
					h.err = err
					return
				}
			}
			if e.Board == nil {
				logStep(owner.PuId, "setup")
			}
			h.err = compiler.CompileSetup(owner)
			recordErr(h.err)
		}()
	}

	// Fixed point, pass 2 (continued): launch unit node bodies.
	for _, t := range tagged {
		t := t
		key := pkgNodeKey{t.Unit.PuPkgName, t.Unit.PuVersion}
		h := unitTasks[t.Unit.PuId]
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer close(h.done)

			if err := awaitPkg(key); err != nil {
				h.err = err
				return
			}
			for _, dep := range t.Unit.PuDepends {
				if err := await(dep); err != nil {
					h.err = err
					return
				}
			}
			for _, dep := range t.Unit.PuExeDepends {
				if err := await(dep); err != nil {
					h.err = err
					return
				}
			}
			e.setBoardState(t.Unit.PuId, Running)
			if e.Board == nil {
				logStep(t.Unit.PuId, "build")
			}

			logFile, gz, logErr := e.openBuildLog(t.Unit)
			if logErr != nil {
				h.err = logErr
				recordErr(h.err)
				e.setBoardState(t.Unit.PuId, Failed)
				return
			}
			unitCompiler := *compiler
			unitCompiler.LogWriter = gz

			h.err = unitCompiler.CompileUnit(t.Unit, t.IsSetupOwner(), e.exeDepsPATH(t.Unit))
			gz.Close()
			logFile.Close()
			recordErr(h.err)
			if h.err != nil {
				logVerbose("build log for %s: %s", t.Unit.PuId, e.buildLogPath(t.Unit))
				e.setBoardState(t.Unit.PuId, Failed)
			} else {
				e.setBoardState(t.Unit.PuId, Done)
			}
		}()
	}

	wg.Wait()

	if firstErr != nil {
		return firstErr
	}

	// Stage registrations per package now that every unit has finished.
	for key, ids := range unitsByPkg {
		if err := db.StageRegistration(ids); err != nil {
			return fmt.Errorf("stage registration for %s-%s: %w", key.name, key.version, err)
		}
	}
	return nil
}

// unitsPerPackage groups tagged units by package, returning both the full
// membership (for staging) and a mutable remaining-count used by
// runTopoSort to detect "last unit of the package".
func unitsPerPackage(tagged []TaggedUnit) (map[pkgNodeKey][]UnitId, map[pkgNodeKey]int) {
	all := make(map[pkgNodeKey][]UnitId)
	for _, t := range tagged {
		key := pkgNodeKey{t.Unit.PuPkgName, t.Unit.PuVersion}
		all[key] = append(all[key], t.Unit.PuId)
	}
	remaining := make(map[pkgNodeKey]int, len(all))
	for key, ids := range all {
		remaining[key] = len(ids)
	}
	return all, remaining
}
