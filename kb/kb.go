package kb

import (
	"errors"
	"fmt"

	"github.com/signalsfoundry/epidemic-simulator/model"
)

var (
	// ErrHouseExists indicates a house with the same ID is already registered.
	ErrHouseExists = errors.New("house already exists")
	// ErrHouseNotFound indicates a requested house was not found.
	ErrHouseNotFound = errors.New("house not found")
	// ErrPersonExists indicates a person with the same ID is already registered.
	ErrPersonExists = errors.New("person already exists")
	// ErrPersonNotFound indicates a requested person was not found.
	ErrPersonNotFound = errors.New("person not found")
	// ErrRegistrySealed is returned for membership changes after Seal.
	ErrRegistrySealed = errors.New("registry is sealed")
)

// EventType indicates what kind of change happened in the registry.
type EventType int

const (
	EventTransition EventType = iota
)

// Event is emitted to subscribers when a person changes compartment.
type Event struct {
	Type   EventType
	Tick   int
	From   model.Compartment
	Person model.Person
}

// Registry maps households to their members. Membership is built once during
// world initialization and frozen by Seal.
//
// A Registry belongs to a single run and is not safe for concurrent use.
type Registry struct {
	houses     map[model.HouseID]*model.House
	houseOrder []model.HouseID

	persons     map[model.PersonID]*model.Person
	personOrder []model.PersonID

	sealed bool

	nextSub int
	subs    map[int]func(Event)
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		houses:  make(map[model.HouseID]*model.House),
		persons: make(map[model.PersonID]*model.Person),
		subs:    make(map[int]func(Event)),
	}
}

// AddHouse registers a new, empty house.
func (r *Registry) AddHouse(h *model.House) error {
	if r.sealed {
		return ErrRegistrySealed
	}
	if _, exists := r.houses[h.ID]; exists {
		return fmt.Errorf("%w: %d", ErrHouseExists, h.ID)
	}
	// store pointer so the simulation updates houses in place
	r.houses[h.ID] = h
	r.houseOrder = append(r.houseOrder, h.ID)
	return nil
}

// AddPerson registers p as a member of p.House and refreshes the house risk
// classification.
func (r *Registry) AddPerson(p *model.Person) error {
	if r.sealed {
		return ErrRegistrySealed
	}
	if _, exists := r.persons[p.ID]; exists {
		return fmt.Errorf("%w: %d", ErrPersonExists, p.ID)
	}
	h, ok := r.houses[p.House]
	if !ok {
		return fmt.Errorf("%w: %d for person %d", ErrHouseNotFound, p.House, p.ID)
	}
	r.persons[p.ID] = p
	r.personOrder = append(r.personOrder, p.ID)
	h.Members = append(h.Members, p.ID)
	if p.Risk == model.HighRisk {
		h.HighRisk = true
	}
	return nil
}

// Seal freezes membership. Subsequent AddHouse/AddPerson calls fail.
func (r *Registry) Seal() { r.sealed = true }

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool { return r.sealed }

// House returns the house with the given ID, or nil if not found.
func (r *Registry) House(id model.HouseID) *model.House {
	return r.houses[id]
}

// Person returns the person with the given ID, or nil if not found.
func (r *Registry) Person(id model.PersonID) *model.Person {
	return r.persons[id]
}

// Houses returns all houses in creation order.
func (r *Registry) Houses() []*model.House {
	res := make([]*model.House, 0, len(r.houseOrder))
	for _, id := range r.houseOrder {
		res = append(res, r.houses[id])
	}
	return res
}

// Persons returns all persons in creation order.
func (r *Registry) Persons() []*model.Person {
	res := make([]*model.Person, 0, len(r.personOrder))
	for _, id := range r.personOrder {
		res = append(res, r.persons[id])
	}
	return res
}

// Members returns the persons belonging to the given house.
func (r *Registry) Members(id model.HouseID) ([]*model.Person, error) {
	h, ok := r.houses[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrHouseNotFound, id)
	}
	res := make([]*model.Person, 0, len(h.Members))
	for _, pid := range h.Members {
		res = append(res, r.persons[pid])
	}
	return res, nil
}

// HouseIndex returns the creation index of a house, or -1 if unknown.
func (r *Registry) HouseIndex(id model.HouseID) int {
	for i, hid := range r.houseOrder {
		if hid == id {
			return i
		}
	}
	return -1
}

// NumHouses returns the number of registered houses.
func (r *Registry) NumHouses() int { return len(r.houseOrder) }

// NumPersons returns the number of registered persons.
func (r *Registry) NumPersons() int { return len(r.personOrder) }

// Validate checks the household invariants: every person belongs to exactly
// one existing house that lists them, and each house's risk classification
// matches its members.
func (r *Registry) Validate() error {
	seen := make(map[model.PersonID]model.HouseID, len(r.persons))
	for _, hid := range r.houseOrder {
		h := r.houses[hid]
		highRisk := false
		for _, pid := range h.Members {
			p, ok := r.persons[pid]
			if !ok {
				return fmt.Errorf("house %d lists %w: %d", hid, ErrPersonNotFound, pid)
			}
			if prev, dup := seen[pid]; dup {
				return fmt.Errorf("person %d is a member of houses %d and %d", pid, prev, hid)
			}
			seen[pid] = hid
			if p.House != hid {
				return fmt.Errorf("person %d points at house %d but is listed by house %d", pid, p.House, hid)
			}
			if p.Risk == model.HighRisk {
				highRisk = true
			}
		}
		if highRisk != h.HighRisk {
			return fmt.Errorf("house %d risk classification %v does not match members", hid, h.HighRisk)
		}
	}
	if len(seen) != len(r.persons) {
		return fmt.Errorf("%d persons have no household", len(r.persons)-len(seen))
	}
	return nil
}

// PublishTransition notifies subscribers that p left compartment from.
func (r *Registry) PublishTransition(tick int, p *model.Person, from model.Compartment) {
	if len(r.subs) == 0 {
		return
	}
	event := Event{
		Type:   EventTransition,
		Tick:   tick,
		From:   from,
		Person: *p, // copy so subscribers cannot mutate run state
	}
	for id := 0; id < r.nextSub; id++ {
		if sub, ok := r.subs[id]; ok {
			sub(event)
		}
	}
}

// Subscribe registers a callback for registry events. It returns an unsubscribe function.
func (r *Registry) Subscribe(fn func(Event)) (unsubscribe func()) {
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	return func() {
		delete(r.subs, id)
	}
}
