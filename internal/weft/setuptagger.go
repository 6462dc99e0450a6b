package weft

// Code in this file was split out for readability.
// No behavior changes intended.

// TaggedUnit pairs a sorted Configured unit with the UnitId of its
// package's setup owner — None (the zero UnitId) for the owner itself.
type TaggedUnit struct {
	Unit       ConfiguredUnit
	SetupOwner UnitId // "" means this unit IS the setup owner
}

func (t TaggedUnit) IsSetupOwner() bool { return t.SetupOwner == "" }

// SetupTagger walks a PlanSorter-produced sequence and marks exactly one
// unit per package as the setup owner responsible for building that
// package's Setup driver.
type SetupTagger struct{}

func NewSetupTagger() *SetupTagger { return &SetupTagger{} }

type pkgKey struct {
	name    PkgName
	version Version
}

// Tag drops the planner's synthetic dummy seed unit and returns the
// remaining units paired with their setup owner. Because sorted is already
// reverse-topological and setup dependencies always precede their
// dependents, the first unit seen for a package is guaranteed to precede
// every other unit of that package.
func (t *SetupTagger) Tag(sorted []ConfiguredUnit) []TaggedUnit {
	owners := make(map[pkgKey]UnitId)
	out := make([]TaggedUnit, 0, len(sorted))

	for _, u := range sorted {
		if isDummyUnit(u.PuPkgName) {
			continue
		}
		key := pkgKey{u.PuPkgName, u.PuVersion}
		owner, seen := owners[key]
		if !seen {
			owners[key] = u.PuId
			out = append(out, TaggedUnit{Unit: u, SetupOwner: ""})
			continue
		}
		out = append(out, TaggedUnit{Unit: u, SetupOwner: owner})
	}
	return out
}
