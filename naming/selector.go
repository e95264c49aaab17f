package naming

import (
	"math/rand/v2"
	"sync"
)

// Strategy names a load-balancing policy.
type Strategy string

const (
	// StrategyRoundRobin cycles through eligible instances in table order.
	StrategyRoundRobin Strategy = "round_robin"
	// StrategyRandom picks uniformly among eligible instances.
	StrategyRandom Strategy = "random"
	// StrategyWeightedRandom picks with probability proportional to weight;
	// zero-weight instances never win a draw.
	StrategyWeightedRandom Strategy = "weighted_random"
)

// Selector chooses one instance from a table snapshot. Selection is pure
// apart from the round-robin cursor, which persists per (key, strategy)
// across table replacements and is clamped when the eligible set shrinks.
type Selector struct {
	mu       sync.Mutex
	rrCursor map[string]int
}

// NewSelector returns a selector with empty round-robin state.
func NewSelector() *Selector {
	return &Selector{rrCursor: make(map[string]int)}
}

// Select picks an instance from table under strategy, skipping excluded
// instance IDs. Returns ErrNoAvailableInstance when filtering leaves
// nothing. Candidate order is the table's delivery order, never re-sorted.
func (s *Selector) Select(table *InstanceTable, strategy Strategy, excluded map[string]struct{}) (Instance, error) {
	if table == nil {
		return Instance{}, ErrNoAvailableInstance
	}

	candidates := make([]Instance, 0, len(table.Instances))
	for _, inst := range table.Instances {
		if !inst.Eligible() {
			continue
		}
		if _, skip := excluded[inst.InstanceID]; skip {
			continue
		}
		candidates = append(candidates, inst)
	}
	if len(candidates) == 0 {
		return Instance{}, ErrNoAvailableInstance
	}

	switch strategy {
	case StrategyRandom:
		return candidates[rand.IntN(len(candidates))], nil
	case StrategyWeightedRandom:
		return weightedPick(candidates)
	default:
		return s.roundRobin(table.Key, strategy, candidates), nil
	}
}

func (s *Selector) roundRobin(key ServiceKey, strategy Strategy, candidates []Instance) Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	cursorKey := key.String() + "|" + string(strategy)
	idx := s.rrCursor[cursorKey] % len(candidates)
	s.rrCursor[cursorKey] = idx + 1
	return candidates[idx]
}

func weightedPick(candidates []Instance) (Instance, error) {
	var total float64
	for _, inst := range candidates {
		if inst.Weight > 0 {
			total += inst.Weight
		}
	}
	if total <= 0 {
		return Instance{}, ErrNoAvailableInstance
	}
	r := rand.Float64() * total
	last := candidates[0]
	for _, inst := range candidates {
		if inst.Weight <= 0 {
			continue
		}
		last = inst
		r -= inst.Weight
		if r < 0 {
			return inst, nil
		}
	}
	return last, nil
}
