package weft

// Code in this file was split out for readability.
// No behavior changes intended.

// PlanSorter turns a CabalPlan into a reverse-topological order over its
// Configured units: every unit appears after all of the units it depends
// on. PreExisting units are dropped from the graph entirely (they're
// already installed, so nothing needs to wait on them as graph nodes) but
// remain valid dependency targets — an edge pointing at one is simply
// omitted rather than treated as missing.
type PlanSorter struct{}

func NewPlanSorter() *PlanSorter { return &PlanSorter{} }

// Sort returns the Configured units of plan in reverse-topological order,
// breaking ties by first appearance in plan (a stable sort). It fails with
// *PlanCyclic if the dependency edges form a cycle, or *DanglingDep if a
// dependency UnitId resolves to neither a Configured nor a PreExisting unit.
func (s *PlanSorter) Sort(plan CabalPlan) ([]ConfiguredUnit, error) {
	byId := make(map[UnitId]PlanUnit, len(plan))
	order := make(map[UnitId]int, len(plan))
	for i, u := range plan {
		byId[u.Id()] = u
		order[u.Id()] = i
	}

	// Validate every dependency edge resolves somewhere in the plan.
	for _, u := range plan {
		cu, ok := u.Configured()
		if !ok {
			continue
		}
		for _, dep := range cu.allDeps() {
			if _, ok := byId[dep]; !ok {
				return nil, &DanglingDep{From: cu.PuId, To: dep}
			}
		}
	}

	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[UnitId]int, len(plan))
	result := make([]ConfiguredUnit, 0, len(plan))
	stack := make([]UnitId, 0, len(plan))

	var visit func(id UnitId) error
	visit = func(id UnitId) error {
		switch state[id] {
		case done:
			return nil
		case inStack:
			cycle := append(append([]UnitId{}, stack...), id)
			return &PlanCyclic{Cycle: cycle}
		}

		u, ok := byId[id]
		if !ok {
			return nil // PreExisting targets outside the plan are tolerated defensively
		}
		cu, isConfigured := u.Configured()
		if !isConfigured {
			state[id] = done
			return nil // PreExisting: not a graph node, nothing to recurse into
		}

		state[id] = inStack
		stack = append(stack, id)

		// Stable order: visit dependencies in their order of first
		// appearance in the plan.
		deps := cu.allDeps()
		sortByFirstAppearance(deps, order)
		for _, dep := range deps {
			if err := visit(dep); err != nil {
				return err
			}
		}

		stack = stack[:len(stack)-1]
		state[id] = done
		result = append(result, cu)
		return nil
	}

	// Visit Configured units in their original plan order for determinism.
	ids := make([]UnitId, 0, len(plan))
	for _, u := range plan {
		if _, ok := u.Configured(); ok {
			ids = append(ids, u.Id())
		}
	}
	for _, id := range ids {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// sortByFirstAppearance stably reorders ids so ties in recursion order
// follow the units' original plan position.
func sortByFirstAppearance(ids []UnitId, order map[UnitId]int) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && order[ids[j-1]] > order[ids[j]]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}
