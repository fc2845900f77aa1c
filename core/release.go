package core

import (
	"fmt"
	"strings"

	"github.com/signalsfoundry/epidemic-simulator/kb"
	"github.com/signalsfoundry/epidemic-simulator/model"
)

// ReleaseStrategy governs when quarantined persons and houses regain mobility.
type ReleaseStrategy string

const (
	// ReleaseEveryone releases every person at tick 0.
	ReleaseEveryone ReleaseStrategy = "everyone"
	// ReleaseLowRiskIndividuals releases low-risk persons at tick 0 and
	// high-risk persons at the second release.
	ReleaseLowRiskIndividuals ReleaseStrategy = "low-risk-individuals"
	// ReleaseLowRiskHouses releases members of low-risk houses at tick 0 and
	// members of high-risk houses at the second release.
	ReleaseLowRiskHouses ReleaseStrategy = "low-risk-houses"
	// ReleaseRandomGroupOfHouses releases the first half of houses (in
	// creation order, which is random) at tick 0 and the rest at the second
	// release.
	ReleaseRandomGroupOfHouses ReleaseStrategy = "random-group-of-houses"
	// ReleaseRandomIndividualHouses releases one house per mobility interval
	// in creation order, starting at tick 0.
	ReleaseRandomIndividualHouses ReleaseStrategy = "random-individual-houses"
)

// ReleaseStrategies lists the strategies in their canonical order.
var ReleaseStrategies = []ReleaseStrategy{
	ReleaseEveryone,
	ReleaseLowRiskIndividuals,
	ReleaseLowRiskHouses,
	ReleaseRandomGroupOfHouses,
	ReleaseRandomIndividualHouses,
}

var releaseAliases = map[string]ReleaseStrategy{
	"everyone release":         ReleaseEveryone,
	"low risk individuals":     ReleaseLowRiskIndividuals,
	"low risk houses":          ReleaseLowRiskHouses,
	"random group of houses":   ReleaseRandomGroupOfHouses,
	"random individual houses": ReleaseRandomIndividualHouses,
}

// ParseReleaseStrategy accepts either the canonical kebab-case name or the
// display name ("Low risk houses").
func ParseReleaseStrategy(s string) (ReleaseStrategy, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, r := range ReleaseStrategies {
		if string(r) == name {
			return r, nil
		}
	}
	if r, ok := releaseAliases[name]; ok {
		return r, nil
	}
	return "", fmt.Errorf("%w: unknown release strategy %q", ErrInvalidConfig, s)
}

// ReleaseSubject describes the person or house a release decision is about.
type ReleaseSubject struct {
	IsHouse    bool
	HouseIndex int // creation order of the (owning) house
	NumHouses  int
	HouseRisk  model.RiskGroup
	PersonRisk model.RiskGroup
}

// ReleasePolicy is the configured strategy plus its timing constants.
type ReleasePolicy struct {
	Strategy          ReleaseStrategy
	MobilityInterval  int
	SecondReleaseTick int
}

// NewReleasePolicy derives the second release tick from weeks and interval.
func NewReleasePolicy(strategy ReleaseStrategy, mobilityInterval, weeksToSecondRelease int) ReleasePolicy {
	return ReleasePolicy{
		Strategy:          strategy,
		MobilityInterval:  mobilityInterval,
		SecondReleaseTick: weeksToSecondRelease * 7 * mobilityInterval,
	}
}

// ReleaseTick returns the first tick at which the subject is free.
func (p ReleasePolicy) ReleaseTick(s ReleaseSubject) int {
	switch p.Strategy {
	case ReleaseLowRiskIndividuals:
		risk := s.PersonRisk
		if s.IsHouse {
			risk = s.HouseRisk
		}
		if risk == model.LowRisk {
			return 0
		}
		return p.SecondReleaseTick
	case ReleaseLowRiskHouses:
		if s.HouseRisk == model.LowRisk {
			return 0
		}
		return p.SecondReleaseTick
	case ReleaseRandomGroupOfHouses:
		if s.HouseIndex < s.NumHouses/2 {
			return 0
		}
		return p.SecondReleaseTick
	case ReleaseRandomIndividualHouses:
		return s.HouseIndex * p.MobilityInterval
	default:
		return 0
	}
}

// Released reports whether the subject is out of quarantine at tick. Release
// is monotonic: once released, a subject stays released.
func (p ReleasePolicy) Released(tick int, s ReleaseSubject) bool {
	return tick >= p.ReleaseTick(s)
}

// ReleaseSchedule is the release-tick table for one world, keyed by house
// and person identity. It is computed once from the policy.
type ReleaseSchedule struct {
	policy  ReleasePolicy
	houses  map[model.HouseID]int
	persons map[model.PersonID]int
}

// NewReleaseSchedule evaluates the policy for every house and person in reg.
func NewReleaseSchedule(policy ReleasePolicy, reg *kb.Registry) *ReleaseSchedule {
	s := &ReleaseSchedule{
		policy:  policy,
		houses:  make(map[model.HouseID]int, reg.NumHouses()),
		persons: make(map[model.PersonID]int, reg.NumPersons()),
	}
	numHouses := reg.NumHouses()
	for i, h := range reg.Houses() {
		subject := ReleaseSubject{
			IsHouse:    true,
			HouseIndex: i,
			NumHouses:  numHouses,
			HouseRisk:  h.Risk(),
		}
		s.houses[h.ID] = policy.ReleaseTick(subject)

		for _, pid := range h.Members {
			p := reg.Person(pid)
			subject.IsHouse = false
			subject.PersonRisk = p.Risk
			s.persons[pid] = policy.ReleaseTick(subject)
		}
	}
	return s
}

// Policy returns the policy the schedule was built from.
func (s *ReleaseSchedule) Policy() ReleasePolicy { return s.policy }

// HouseReleaseTick returns the release tick of a house.
func (s *ReleaseSchedule) HouseReleaseTick(id model.HouseID) (int, bool) {
	t, ok := s.houses[id]
	return t, ok
}

// PersonReleaseTick returns the release tick of a person.
func (s *ReleaseSchedule) PersonReleaseTick(id model.PersonID) (int, bool) {
	t, ok := s.persons[id]
	return t, ok
}

// HouseReleased reports whether the house is released at tick. Unknown
// houses are never released.
func (s *ReleaseSchedule) HouseReleased(tick int, id model.HouseID) bool {
	t, ok := s.houses[id]
	return ok && tick >= t
}

// PersonReleased reports whether the person is released at tick. Unknown
// persons are never released.
func (s *ReleaseSchedule) PersonReleased(tick int, id model.PersonID) bool {
	t, ok := s.persons[id]
	return ok && tick >= t
}
