package naming

import (
	stderrors "errors"
	"testing"
)

func tableOf(instances ...Instance) *InstanceTable {
	return &InstanceTable{
		Key:       NewServiceKey("orders", "", "public"),
		Instances: instances,
		Revision:  1,
	}
}

func TestSelectorRoundRobinFairness(t *testing.T) {
	s := NewSelector()
	table := tableOf(testInstances(3)...)

	// K consecutive calls visit each eligible instance exactly once, in
	// table order.
	for round := 0; round < 2; round++ {
		for i := 0; i < 3; i++ {
			inst, err := s.Select(table, StrategyRoundRobin, nil)
			if err != nil {
				t.Fatalf("Select: %v", err)
			}
			if want := table.Instances[i].InstanceID; inst.InstanceID != want {
				t.Errorf("round %d call %d: got %s, want %s", round, i, inst.InstanceID, want)
			}
		}
	}
}

func TestSelectorRoundRobinSkipsIneligible(t *testing.T) {
	s := NewSelector()
	instances := testInstances(3)
	instances[1].Healthy = false
	table := tableOf(instances...)

	seen := map[string]int{}
	for i := 0; i < 4; i++ {
		inst, err := s.Select(table, StrategyRoundRobin, nil)
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		seen[inst.InstanceID]++
	}
	if seen["b"] != 0 {
		t.Error("unhealthy instance was selected")
	}
	if seen["a"] != 2 || seen["c"] != 2 {
		t.Errorf("uneven distribution: %v", seen)
	}
}

func TestSelectorRoundRobinCursorSurvivesShrink(t *testing.T) {
	s := NewSelector()
	big := tableOf(testInstances(5)...)
	for i := 0; i < 4; i++ {
		if _, err := s.Select(big, StrategyRoundRobin, nil); err != nil {
			t.Fatalf("Select: %v", err)
		}
	}

	// The persisted cursor exceeds the shrunken set; it must clamp into
	// range rather than fail or skip.
	small := tableOf(testInstances(2)...)
	inst, err := s.Select(small, StrategyRoundRobin, nil)
	if err != nil {
		t.Fatalf("Select after shrink: %v", err)
	}
	if inst.InstanceID != "a" && inst.InstanceID != "b" {
		t.Errorf("selected %s, not in shrunken set", inst.InstanceID)
	}
}

func TestSelectorExclusion(t *testing.T) {
	s := NewSelector()
	table := tableOf(testInstances(3)...)
	excluded := map[string]struct{}{"a": {}, "c": {}}

	for i := 0; i < 3; i++ {
		inst, err := s.Select(table, StrategyRoundRobin, excluded)
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		if inst.InstanceID != "b" {
			t.Errorf("selected excluded instance %s", inst.InstanceID)
		}
	}
}

func TestSelectorNoAvailable(t *testing.T) {
	s := NewSelector()

	if _, err := s.Select(nil, StrategyRoundRobin, nil); !stderrors.Is(err, ErrNoAvailableInstance) {
		t.Errorf("nil table: err = %v", err)
	}

	table := tableOf(Instance{InstanceID: "a", Healthy: false, Enabled: true})
	if _, err := s.Select(table, StrategyRoundRobin, nil); !stderrors.Is(err, ErrNoAvailableInstance) {
		t.Errorf("all ineligible: err = %v", err)
	}

	table = tableOf(testInstances(2)...)
	excluded := map[string]struct{}{"a": {}, "b": {}}
	if _, err := s.Select(table, StrategyRandom, excluded); !stderrors.Is(err, ErrNoAvailableInstance) {
		t.Errorf("all excluded: err = %v", err)
	}
}

func TestSelectorRandomOnlyPicksEligible(t *testing.T) {
	s := NewSelector()
	instances := testInstances(3)
	instances[2].Enabled = false
	table := tableOf(instances...)

	for i := 0; i < 50; i++ {
		inst, err := s.Select(table, StrategyRandom, nil)
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		if inst.InstanceID == "c" {
			t.Fatal("disabled instance was selected")
		}
	}
}

func TestSelectorWeightedRandomExcludesZeroWeight(t *testing.T) {
	s := NewSelector()
	instances := testInstances(2)
	instances[0].Weight = 0
	table := tableOf(instances...)

	for i := 0; i < 50; i++ {
		inst, err := s.Select(table, StrategyWeightedRandom, nil)
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		if inst.InstanceID == "a" {
			t.Fatal("zero-weight instance won a weighted draw")
		}
	}
}

func TestSelectorWeightedRandomAllZeroWeights(t *testing.T) {
	s := NewSelector()
	instances := testInstances(2)
	instances[0].Weight = 0
	instances[1].Weight = 0
	table := tableOf(instances...)

	if _, err := s.Select(table, StrategyWeightedRandom, nil); !stderrors.Is(err, ErrNoAvailableInstance) {
		t.Errorf("all zero weights: err = %v", err)
	}
}
