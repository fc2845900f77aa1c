package core

import (
	"fmt"

	"github.com/signalsfoundry/epidemic-simulator/model"
)

// stepPerson advances one person by one tick and counts them in tally.
//
// Living persons first refresh their quarantine flag from the release
// schedule and, when movement is enabled and they are free, step to a random
// adjacent cell. Compartment logic then dispatches on the compartment held at
// activation time; the order of the branches below is authoritative.
func (s *Simulation) stepPerson(p *model.Person, tally *Tally) error {
	from := p.Compartment
	if from != model.Dead {
		s.updateQuarantine(p)
		if s.cfg.Movement && !p.AtHome {
			to := s.world.Grid.RandomAdjacent(s.rng, p.Pos)
			s.world.Grid.Move(p, to)
			p.Pos = to
		}
	}

	switch from {
	case model.Susceptible:
		tally.Add(model.Susceptible)
		s.expose(p)

	case model.Exposed:
		tally.Add(model.Exposed)
		p.InfectionTimeline++
		if bernoulli(s.rng, progressionProb(s.cfg.Disease.ExposedPeriod, s.interval, p.InfectionTimeline)) {
			p.Compartment = model.InfectiousSymptomatic
		} else {
			p.Compartment = model.InfectiousAsymptomatic
		}

	case model.InfectiousSymptomatic, model.InfectiousAsymptomatic:
		p.InfectionTimeline++
		tally.Add(from)
		period := s.cfg.Disease.AsymptomaticPeriod
		if from == model.InfectiousSymptomatic {
			period = s.cfg.Disease.SymptomaticPeriod
		}
		if bernoulli(s.rng, progressionProb(period, s.interval, p.InfectionTimeline)) {
			p.Compartment = s.resolve(p, from)
		}

	case model.Recovered, model.Dead:
		tally.Add(from)

	default:
		return fmt.Errorf("%w: person %d has unknown compartment %v", ErrInvariantViolation, p.ID, from)
	}

	if p.Compartment != from {
		if !model.CanTransition(from, p.Compartment) {
			return fmt.Errorf("%w: person %d moved %v -> %v", ErrInvariantViolation, p.ID, from, p.Compartment)
		}
		s.world.Registry.PublishTransition(s.tick, p, from)
	}
	return nil
}

// expose checks the neighborhood of a susceptible person. The first
// infectious neighbor whose transmission draw succeeds exposes them; at most
// one exposure happens per tick.
func (s *Simulation) expose(p *model.Person) {
	for _, e := range s.world.Grid.Neighbors(p.Pos, s.cfg.IncludeCenter) {
		other, ok := e.(*model.Person)
		if !ok || other == p || !other.Compartment.IsInfectious() {
			continue
		}
		prob := s.cfg.Disease.Transmission.Prob(p.Risk, other.Compartment == model.InfectiousSymptomatic)
		if bernoulli(s.rng, prob) {
			p.Compartment = model.Exposed
			p.InfectionTimeline = 0
			return
		}
	}
}

// resolve picks the terminal compartment for a person leaving an infectious
// stage. Only symptomatic cases can die unless AsymptomaticDeath is set.
func (s *Simulation) resolve(p *model.Person, from model.Compartment) model.Compartment {
	if from == model.InfectiousAsymptomatic && !s.cfg.AsymptomaticDeath {
		return model.Recovered
	}
	if bernoulli(s.rng, s.cfg.Disease.Death.Prob(p.Risk)) {
		return model.Dead
	}
	return model.Recovered
}

func (s *Simulation) updateQuarantine(p *model.Person) {
	if !s.cfg.HouseQuarantine {
		p.AtHome = false
		return
	}
	p.AtHome = !s.release.PersonReleased(s.tick, p.ID)
}

// stepHouse refreshes the visual "people home" flag of a house.
func (s *Simulation) stepHouse(h *model.House) {
	if !s.cfg.HouseQuarantine {
		h.PeopleHome = false
		return
	}
	h.PeopleHome = !s.release.HouseReleased(s.tick, h.ID)
}
