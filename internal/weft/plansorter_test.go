package weft

import "testing"

func cu(id UnitId, deps ...UnitId) ConfiguredUnit {
	return ConfiguredUnit{
		PuId:            id,
		PuPkgName:       PkgName(id),
		PuVersion:       "1.0",
		PuComponentName: ComponentName{Kind: Lib},
		PuDepends:       deps,
	}
}

func TestPlanSorterReverseTopologicalOrder(t *testing.T) {
	// a depends on b depends on c: reverse-topological order is c, b, a.
	plan := CabalPlan{
		ConfiguredPlanUnit(cu("a", "b")),
		ConfiguredPlanUnit(cu("b", "c")),
		ConfiguredPlanUnit(cu("c")),
	}
	sorted, err := NewPlanSorter().Sort(plan)
	if err != nil {
		t.Fatalf("Sort: %v", err)
	}
	ids := make([]UnitId, len(sorted))
	for i, u := range sorted {
		ids[i] = u.PuId
	}
	want := []UnitId{"c", "b", "a"}
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("position %d: got %s, want %s", i, ids[i], want[i])
		}
	}
}

func TestPlanSorterDetectsCycle(t *testing.T) {
	plan := CabalPlan{
		ConfiguredPlanUnit(cu("a", "b")),
		ConfiguredPlanUnit(cu("b", "a")),
	}
	_, err := NewPlanSorter().Sort(plan)
	if err == nil {
		t.Fatal("expected PlanCyclic error")
	}
	if _, ok := err.(*PlanCyclic); !ok {
		t.Errorf("expected *PlanCyclic, got %T: %v", err, err)
	}
}

func TestPlanSorterDanglingDep(t *testing.T) {
	plan := CabalPlan{
		ConfiguredPlanUnit(cu("a", "missing")),
	}
	_, err := NewPlanSorter().Sort(plan)
	if err == nil {
		t.Fatal("expected DanglingDep error")
	}
	if _, ok := err.(*DanglingDep); !ok {
		t.Errorf("expected *DanglingDep, got %T: %v", err, err)
	}
}

func TestPlanSorterDropsPreExistingFromGraphButKeepsAsTarget(t *testing.T) {
	plan := CabalPlan{
		ConfiguredPlanUnit(cu("a", "sys")),
		PreExistingPlanUnit("sys", "syspkg", "9.0", nil),
	}
	sorted, err := NewPlanSorter().Sort(plan)
	if err != nil {
		t.Fatalf("Sort: %v", err)
	}
	if len(sorted) != 1 || sorted[0].PuId != "a" {
		t.Errorf("expected only the Configured unit in output, got %v", sorted)
	}
}

func TestPlanSorterStableTieBreakByFirstAppearance(t *testing.T) {
	// both b and c are independent leaves depended on by a, in that order.
	plan := CabalPlan{
		ConfiguredPlanUnit(cu("a", "b", "c")),
		ConfiguredPlanUnit(cu("b")),
		ConfiguredPlanUnit(cu("c")),
	}
	sorted, err := NewPlanSorter().Sort(plan)
	if err != nil {
		t.Fatalf("Sort: %v", err)
	}
	ids := make([]UnitId, len(sorted))
	for i, u := range sorted {
		ids[i] = u.PuId
	}
	want := []UnitId{"b", "c", "a"}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("position %d: got %s, want %s (full: %v)", i, ids[i], want[i], ids)
		}
	}
}
