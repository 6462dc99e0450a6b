package weft

// Code in this file was split out for readability.
// No behavior changes intended.

import (
	"encoding/json"
	"fmt"
	"os"
)

// planUnitDTO is the on-disk shape of one PlanUnit. PlanUnit itself carries
// unexported fields to keep its two variants from being constructed
// incorrectly outside this package, so the plan blob format goes through
// this DTO rather than marshaling PlanUnit directly.
//
// encoding/json is used here rather than a third-party codec: this is a
// private on-disk struct with no wire-compatibility or performance
// requirement, and the plan blob's useful properties (content-addressing,
// compression, remote mirroring) are already carried by PlanCache around
// the serialized bytes, not by the encoding itself.
type planUnitDTO struct {
	PreExisting bool    `json:"preExisting"`
	Id          UnitId  `json:"id"`
	PkgName     PkgName `json:"pkgName"`
	Version     Version `json:"version"`

	// valid iff !PreExisting
	ComponentKind ComponentKind  `json:"componentKind,omitempty"`
	ComponentName string         `json:"componentName,omitempty"`
	PkgSrcLocal   bool           `json:"pkgSrcLocal,omitempty"`
	PkgSrcPath    string         `json:"pkgSrcPath,omitempty"`
	SetupDepends  []UnitId       `json:"setupDepends,omitempty"`
	Depends       []UnitId       `json:"depends,omitempty"`
	ExeDepends    []UnitId       `json:"exeDepends,omitempty"`
	Flags         map[string]int `json:"flags,omitempty"`

	// valid iff PreExisting
	PreDepends []UnitId `json:"preDepends,omitempty"`
}

func toDTO(p PlanUnit) planUnitDTO {
	if p.IsPreExisting() {
		return planUnitDTO{
			PreExisting: true,
			Id:          p.Id(),
			PkgName:     p.PkgName(),
			Version:     p.Version(),
			PreDepends:  p.preDepends,
		}
	}
	cu, _ := p.Configured()
	flags := make(map[string]int, len(cu.PuFlags))
	for name, tri := range cu.PuFlags {
		flags[string(name)] = int(tri)
	}
	return planUnitDTO{
		PreExisting:   false,
		Id:            cu.PuId,
		PkgName:       cu.PuPkgName,
		Version:       cu.PuVersion,
		ComponentKind: cu.PuComponentName.Kind,
		ComponentName: cu.PuComponentName.Name,
		PkgSrcLocal:   cu.PuPkgSrc.Local,
		PkgSrcPath:    cu.PuPkgSrc.Path,
		SetupDepends:  cu.PuSetupDepends,
		Depends:       cu.PuDepends,
		ExeDepends:    cu.PuExeDepends,
		Flags:         flags,
	}
}

func fromDTO(d planUnitDTO) PlanUnit {
	if d.PreExisting {
		return PreExistingPlanUnit(d.Id, d.PkgName, d.Version, d.PreDepends)
	}
	flags := make(FlagSpec, len(d.Flags))
	for name, tri := range d.Flags {
		flags[FlagName(name)] = FlagTri(tri)
	}
	return ConfiguredPlanUnit(ConfiguredUnit{
		PuId:            d.Id,
		PuPkgName:       d.PkgName,
		PuVersion:       d.Version,
		PuComponentName: ComponentName{Kind: d.ComponentKind, Name: d.ComponentName},
		PuPkgSrc:        PkgSrc{Local: d.PkgSrcLocal, Path: d.PkgSrcPath},
		PuSetupDepends:  d.SetupDepends,
		PuDepends:       d.Depends,
		PuExeDepends:    d.ExeDepends,
		PuFlags:         flags,
	})
}

// SerializePlan renders plan into the plan blob format persisted by
// PlanCache and written to --plan-out.
func SerializePlan(plan CabalPlan) ([]byte, error) {
	dtos := make([]planUnitDTO, 0, len(plan))
	for _, u := range plan {
		dtos = append(dtos, toDTO(u))
	}
	data, err := json.MarshalIndent(dtos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serialize plan: %w", err)
	}
	return data, nil
}

// DeserializePlan parses a plan blob produced by SerializePlan (directly,
// or after a PlanCache round trip).
func DeserializePlan(data []byte) (CabalPlan, error) {
	var dtos []planUnitDTO
	if err := json.Unmarshal(data, &dtos); err != nil {
		return nil, fmt.Errorf("deserialize plan: %w", err)
	}
	plan := make(CabalPlan, 0, len(dtos))
	for _, d := range dtos {
		plan = append(plan, fromDTO(d))
	}
	return plan, nil
}

// LoadPlanFile reads and deserializes a plan blob from path.
func LoadPlanFile(path string) (CabalPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &IOFailure{Op: "read plan file " + path, Err: err}
	}
	return DeserializePlan(data)
}

// SavePlanFile serializes and writes plan to path.
func SavePlanFile(path string, plan CabalPlan) error {
	data, err := SerializePlan(plan)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &IOFailure{Op: "write plan file " + path, Err: err}
	}
	return nil
}
