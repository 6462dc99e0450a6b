package weft

// Code in this file was split out for readability.
// No behavior changes intended.

import (
	"fmt"
	"path/filepath"
	"strings"
)

// PkgName, UnitId, Version and FlagName are opaque text-backed identifiers.
// Equality and hashing follow their string contents.
type PkgName string
type UnitId string
type Version string
type FlagName string

// ComponentKind is the closed set of buildable component shapes.
type ComponentKind int

const (
	Lib ComponentKind = iota
	FLib
	Exe
	Test
	Bench
	Setup
)

func (k ComponentKind) String() string {
	switch k {
	case Lib:
		return "lib"
	case FLib:
		return "flib"
	case Exe:
		return "exe"
	case Test:
		return "test"
	case Bench:
		return "bench"
	case Setup:
		return "setup"
	default:
		return "unknown"
	}
}

// componentFlag maps a ComponentKind to the native tool's Setup configure flag.
func (k ComponentKind) componentFlag() string {
	switch k {
	case Lib:
		return "--lib"
	case FLib:
		return "--flib"
	case Exe:
		return "--exe"
	case Test:
		return "--test"
	case Bench:
		return "--bench"
	default:
		return ""
	}
}

// ComponentName names one buildable component of a package.
type ComponentName struct {
	Kind ComponentKind
	Name string
}

func (c ComponentName) String() string {
	if c.Name == "" {
		return c.Kind.String()
	}
	return fmt.Sprintf("%s:%s", c.Kind, c.Name)
}

// PkgSrc distinguishes a unit built in place at a filesystem path from one
// that must be fetched into the fetch root under <name>-<version>.
type PkgSrc struct {
	Local bool
	Path  string // valid iff Local
}

func LocalSrc(path string) PkgSrc { return PkgSrc{Local: true, Path: path} }
func RemoteSrc() PkgSrc           { return PkgSrc{Local: false} }

// FlagTri is a tri-state flag assignment.
type FlagTri int

const (
	FlagUnset FlagTri = iota
	FlagOn
	FlagOff
)

func (t FlagTri) marker() string {
	switch t {
	case FlagOn:
		return "+"
	case FlagOff:
		return "-"
	default:
		return ""
	}
}

// FlagSpec is a tri-state mapping from flag name to assignment.
type FlagSpec map[FlagName]FlagTri

// Empty reports whether every flag in the spec is unset.
func (f FlagSpec) Empty() bool {
	for _, v := range f {
		if v != FlagUnset {
			return false
		}
	}
	return true
}

// sortedAssignments renders non-unset flags as "+flag"/"-flag" strings in a
// stable order (by flag name) for deterministic command lines.
func (f FlagSpec) sortedAssignments() []string {
	names := make([]string, 0, len(f))
	for name, tri := range f {
		if tri != FlagUnset {
			names = append(names, string(name))
		}
	}
	// simple insertion sort; flag counts per unit are tiny
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j-1] > names[j]; j-- {
			names[j-1], names[j] = names[j], names[j-1]
		}
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, f[FlagName(n)].marker()+n)
	}
	return out
}

// PkgSpec is a version constraint string paired with a flag assignment.
// A PkgSpec is "empty" iff its flag spec has no non-unset entries.
type PkgSpec struct {
	Constraint string
	Flags      FlagSpec
}

func (s PkgSpec) Empty() bool { return s.Flags.Empty() }

// UnitSpecs maps a seed package name to its source, spec and requested
// components.
type UnitSpecs map[PkgName]UnitSpecEntry

type UnitSpecEntry struct {
	Src        PkgSrc
	Spec       PkgSpec
	Components map[ComponentName]struct{}
}

// PkgSpecs maps a package name to a bare constraint/flag pin, used for
// freeze-file entries that carry no source or component information.
type PkgSpecs map[PkgName]PkgSpec

// AllowNewerPair is a (depender, dependee) pair; PkgName("*") on both sides
// denotes the universal allow-newer directive.
type AllowNewerPair struct {
	Depender PkgName
	Dependee PkgName
}

const AllowNewerWildcard PkgName = "*"

type AllowNewer map[AllowNewerPair]struct{}

func (a AllowNewer) Universal() bool {
	_, ok := a[AllowNewerPair{Depender: AllowNewerWildcard, Dependee: AllowNewerWildcard}]
	return ok
}

// ConfiguredUnit is a single plan entry produced by the external planner.
type ConfiguredUnit struct {
	PuId            UnitId
	PuPkgName       PkgName
	PuVersion       Version
	PuComponentName ComponentName
	PuPkgSrc        PkgSrc
	PuSetupDepends  []UnitId
	PuDepends       []UnitId // library dependencies
	PuExeDepends    []UnitId // build-tool dependencies
	PuFlags         FlagSpec
}

// allDeps returns the full dependency closure edges out of this unit, used
// by PlanSorter to build the dependency graph.
func (u ConfiguredUnit) allDeps() []UnitId {
	out := make([]UnitId, 0, len(u.PuSetupDepends)+len(u.PuDepends)+len(u.PuExeDepends))
	out = append(out, u.PuSetupDepends...)
	out = append(out, u.PuDepends...)
	out = append(out, u.PuExeDepends...)
	return out
}

// PlanUnit is a tagged variant distinguishing a unit the engine must compile
// from one already present in some system package database.
type PlanUnit struct {
	preExisting bool

	// valid iff !preExisting
	configured ConfiguredUnit

	// valid iff preExisting
	preId       UnitId
	prePkgName  PkgName
	preVersion  Version
	preDepends  []UnitId
}

func ConfiguredPlanUnit(u ConfiguredUnit) PlanUnit {
	return PlanUnit{preExisting: false, configured: u}
}

func PreExistingPlanUnit(id UnitId, name PkgName, version Version, depends []UnitId) PlanUnit {
	return PlanUnit{preExisting: true, preId: id, prePkgName: name, preVersion: version, preDepends: depends}
}

func (p PlanUnit) IsPreExisting() bool { return p.preExisting }

func (p PlanUnit) Configured() (ConfiguredUnit, bool) {
	if p.preExisting {
		return ConfiguredUnit{}, false
	}
	return p.configured, true
}

func (p PlanUnit) Id() UnitId {
	if p.preExisting {
		return p.preId
	}
	return p.configured.PuId
}

func (p PlanUnit) PkgName() PkgName {
	if p.preExisting {
		return p.prePkgName
	}
	return p.configured.PuPkgName
}

func (p PlanUnit) Version() Version {
	if p.preExisting {
		return p.preVersion
	}
	return p.configured.PuVersion
}

// CabalPlan is the ordered sequence of plan units as produced by the
// external planner (pre-sort order; PlanSorter re-orders it).
type CabalPlan []PlanUnit

// dummyUnitName is the planner's synthetic seed placeholder, elided by
// SetupTagger and never compiled, scripted or registered.
const dummyUnitName = "dummy-package"

func isDummyUnit(name PkgName) bool {
	return strings.HasPrefix(string(name), dummyUnitName)
}

// DestDir holds the three correlated paths of a build's staging layout.
// installDir is the literal textual join of destDir and prefix: on every
// target, prefix is absolute, so the join drops prefix's leading separator
// before appending it under destDir.
type DestDir struct {
	Prefix     string
	StagingDir string
}

// NewDestDir canonicalizes prefix and destDir and validates both are
// absolute, per the DestDir invariant.
func NewDestDir(prefix, stagingDir string) (DestDir, error) {
	if !filepath.IsAbs(prefix) {
		return DestDir{}, fmt.Errorf("destdir: prefix %q must be absolute", prefix)
	}
	if !filepath.IsAbs(stagingDir) {
		return DestDir{}, fmt.Errorf("destdir: destDir %q must be absolute", stagingDir)
	}
	prefix = filepath.Clean(prefix)
	stagingDir = filepath.Clean(stagingDir)
	return DestDir{Prefix: prefix, StagingDir: stagingDir}, nil
}

// InstallDir is destDir ⧺ prefix, joined textually rather than via
// filepath.Join so an absolute prefix lands under destDir instead of
// replacing it.
func (d DestDir) InstallDir() string {
	trimmed := strings.TrimPrefix(d.Prefix, string(filepath.Separator))
	return filepath.Join(d.StagingDir, trimmed)
}

// PkgDbDirs names the two package databases live for the duration of a
// buildPlan call.
type PkgDbDirs struct {
	TempPkgDbDir  string
	FinalPkgDbDir string
}

// UnitArgs is the three caller-supplied, opaque-to-the-engine argument
// lists appended verbatim to the configure, build-tool, and register
// invocations for one unit.
type UnitArgs struct {
	ConfigureArgs []string
	BuildArgs     []string
	RegisterArgs  []string
}

// UnitArgsFunc supplies per-unit arguments; modeled as a single-method
// interface so callers can inject either a pure function or stateful logic.
type UnitArgsFunc interface {
	ArgsFor(u ConfiguredUnit) UnitArgs
}

// UnitArgsFuncOf adapts a plain function to UnitArgsFunc.
type UnitArgsFuncOf func(ConfiguredUnit) UnitArgs

func (f UnitArgsFuncOf) ArgsFor(u ConfiguredUnit) UnitArgs { return f(u) }

// NoUnitArgs is the zero-value UnitArgsFunc: no extra arguments for any unit.
var NoUnitArgs UnitArgsFunc = UnitArgsFuncOf(func(ConfiguredUnit) UnitArgs { return UnitArgs{} })
