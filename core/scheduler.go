package core

import (
	"math/rand/v2"

	"github.com/signalsfoundry/epidemic-simulator/model"
)

// Scheduler activates every tracked entity once per tick in a fresh uniform
// random order. It keeps no ordering state between ticks.
type Scheduler struct {
	entities []model.Entity
}

// NewScheduler tracks the given entities.
func NewScheduler(entities ...model.Entity) *Scheduler {
	return &Scheduler{entities: append([]model.Entity(nil), entities...)}
}

// Add tracks another entity.
func (s *Scheduler) Add(e model.Entity) {
	s.entities = append(s.entities, e)
}

// Len returns the number of tracked entities.
func (s *Scheduler) Len() int { return len(s.entities) }

// Order returns a uniformly random permutation of the tracked entities.
func (s *Scheduler) Order(rng *rand.Rand) []model.Entity {
	perm := rng.Perm(len(s.entities))
	out := make([]model.Entity, len(perm))
	for i, j := range perm {
		out[i] = s.entities[j]
	}
	return out
}

// Activate runs fn on each entity in a fresh random order, stopping at the
// first error.
func (s *Scheduler) Activate(rng *rand.Rand, fn func(model.Entity) error) error {
	for _, e := range s.Order(rng) {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}
