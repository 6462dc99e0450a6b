package weft

// Code in this file was split out for readability.
// No behavior changes intended.

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// UnitCompiler assembles, for a single unit, the Setup-driver compile
// script (setup owners only) and the fixed four-step configure/build/
// copy/register build script, and emits each either to a ProcessRunner
// (direct mode) or a ScriptBuffer (script mode).
type UnitCompiler struct {
	FetchDir  string
	Dest      DestDir
	PkgDb     *PkgDbManager
	ArgsFunc  UnitArgsFunc
	PlanIndex map[UnitId]PlanUnit // full plan, for resolving dependency component names

	// Direct mode: Runner and Sem are set, ScriptOut is nil.
	Runner *ProcessRunner
	Sem    Semaphore

	// Script mode: ScriptOut is set, Runner is nil.
	ScriptOut *ScriptBuffer

	// LogWriter, when set, receives a unit's combined stdout/stderr instead
	// of the inherited terminal streams. The Async strategy sets this to a
	// gzip-compressed per-unit log so concurrently-running units don't
	// interleave their output on the shared terminal.
	LogWriter io.Writer
}

// sourceDir resolves where a unit's Setup.hs/.lhs and sources live: the
// unit's recorded path if Local, otherwise fetchDir/<name>-<version>.
func (c *UnitCompiler) sourceDir(pkgName PkgName, version Version, src PkgSrc) string {
	if src.Local {
		return src.Path
	}
	return filepath.Join(c.FetchDir, fmt.Sprintf("%s-%s", pkgName, version))
}

// dependencyComponentName resolves a dependency UnitId to the
// "component-name" string required by --dependency=<name>=<UnitId>.
// PreExisting units contribute their package name as an implicit library
// component name, matching how the native tool names system-installed libs.
func (c *UnitCompiler) dependencyComponentName(id UnitId) string {
	u, ok := c.PlanIndex[id]
	if !ok {
		return string(id)
	}
	if cu, isConfigured := u.Configured(); isConfigured {
		return cu.PuComponentName.String()
	}
	return string(u.PkgName())
}

// emit runs prog/args in cwd either directly (via the ProcessRunner) or by
// appending the invocation to the script buffer. In script mode a non-empty
// extraPATH becomes a PATH assignment prefixed to that one command line.
func (c *UnitCompiler) emit(cwd, prog string, args []string, extraPATH []string) error {
	if c.ScriptOut != nil {
		c.ScriptOut.Cd(cwd)
		if len(extraPATH) > 0 {
			sep := pathListSeparator()
			c.ScriptOut.lines = append(c.ScriptOut.lines,
				"PATH="+shellQuote(strings.Join(extraPATH, sep))+sep+`"$PATH" `+joinCmdline(prog, args))
			return nil
		}
		c.ScriptOut.Command(prog, args...)
		return nil
	}
	return c.Runner.Run(RunnableCmd{
		Prog:      prog,
		Args:      args,
		Cwd:       cwd,
		ExtraPATH: extraPATH,
		Sem:       c.Sem,
		Stdout:    c.LogWriter,
		Stderr:    c.LogWriter,
	})
}

// CompileSetup builds the setup owner's Setup driver from Setup.hs (or
// Setup.lhs) in its source directory, consulting tempPkgDbDir for the
// compiler invocation's own dependency resolution.
func (c *UnitCompiler) CompileSetup(owner ConfiguredUnit) error {
	dir := c.sourceDir(owner.PuPkgName, owner.PuVersion, owner.PuPkgSrc)

	if c.ScriptOut != nil {
		c.ScriptOut.Blank()
		c.ScriptOut.Comment(fmt.Sprintf("setup compile: %s-%s", owner.PuPkgName, owner.PuVersion))
	}

	args := []string{
		"--make",
		"-package-db", c.PkgDb.Dirs.TempPkgDbDir,
		"-o", "Setup",
		"Setup",
	}
	return c.emit(dir, "ghc", args, nil)
}

// CompileUnit runs the fixed configure / build / copy / register sequence
// for one unit in its source directory. extraPATH augments PATH for units
// whose puExeDepends is non-empty, per the engine's PATH-injection policy.
func (c *UnitCompiler) CompileUnit(u ConfiguredUnit, setupScript bool, extraPATH []string) error {
	dir := c.sourceDir(u.PuPkgName, u.PuVersion, u.PuPkgSrc)
	args := c.ArgsFunc.ArgsFor(u)

	if c.ScriptOut != nil {
		c.ScriptOut.Blank()
		c.ScriptOut.Comment(fmt.Sprintf("%s-%s:%s", u.PuPkgName, u.PuVersion, u.PuComponentName))
	}

	setupProg := filepath.Join(dir, "Setup")
	if c.ScriptOut != nil {
		setupProg = "./Setup"
	}

	// 1. configure
	configureArgs := []string{
		"configure",
		"--prefix=" + c.Dest.Prefix,
		"--cid=" + string(u.PuId),
		"--package-db=" + c.PkgDb.Dirs.TempPkgDbDir,
		u.PuComponentName.Kind.componentFlag() + "=" + u.PuComponentName.Name,
	}
	for _, dep := range u.PuDepends {
		configureArgs = append(configureArgs, "--dependency="+c.dependencyComponentName(dep)+"="+string(dep))
	}
	for _, dep := range u.PuExeDepends {
		configureArgs = append(configureArgs, "--dependency="+c.dependencyComponentName(dep)+"="+string(dep))
	}
	configureArgs = append(configureArgs, u.PuFlags.sortedAssignments()...)
	configureArgs = append(configureArgs, args.ConfigureArgs...)

	if err := c.emit(dir, setupProg, configureArgs, extraPATH); err != nil {
		return err
	}

	// 2. build
	buildArgs := append([]string{"build"}, args.BuildArgs...)
	if err := c.emit(dir, setupProg, buildArgs, extraPATH); err != nil {
		return err
	}

	// 3. copy
	copyArgs := []string{"copy", "--destdir=" + c.Dest.StagingDir}
	if err := c.emit(dir, setupProg, copyArgs, extraPATH); err != nil {
		return err
	}

	// 4. register, library-bearing units only
	if u.PuComponentName.Kind == Lib || u.PuComponentName.Kind == FLib {
		pkgConfFile := filepath.Join(c.PkgDb.Dirs.TempPkgDbDir, string(u.PuId)+".pkg-config")

		genArgs := []string{"register", "--gen-pkg-config=" + pkgConfFile}
		if err := c.emit(dir, setupProg, genArgs, extraPATH); err != nil {
			return err
		}

		registerArgs := append([]string{"register", "--package-db=" + c.PkgDb.Dirs.TempPkgDbDir, pkgConfFile}, args.RegisterArgs...)
		if err := c.emit(dir, "ghc-pkg", registerArgs, extraPATH); err != nil {
			return err
		}
	}

	return nil
}
