// Package mover provides the transition rules that advance walker states.
//
// SNSMover implements the one-dimensional exclusion process with a particle
// reservoir at each end of the lattice. Register via the package's init(),
// which sets sim.NewMoverFunc.
package mover

import (
	"fmt"

	"github.com/dmc-sim/dmc-sim/sim"
)

// SNSMover performs single-site moves of the open-boundary exclusion process.
//
// A move draws a site index in [0, L+1]. Index L stands for the left
// reservoir, which acts on site 0; index L+1 for the right reservoir, which
// acts on site L-1. Every other index is a bulk site: an occupied site tries
// to hop its particle to an empty neighbour, an empty site tries to pull a
// particle in from a neighbour. A second uniform draw picks the direction and
// a third accepts against the precomputed rate ratio.
//
// Thread-safety: safe to share across walkers of one rank (parameters only).
type SNSMover struct {
	l           int
	rates       sim.TransitionRates
	lr          float64 // lmc / rmc
	rl          float64 // rmc / lmc
	initial     int
	reweighting Reweighter
}

// NewSNSMover creates an SNSMover from run parameters.
// Returns ErrConfiguration for a dimension other than 1.
func NewSNSMover(params *sim.RunParameters) (*SNSMover, error) {
	if params.Lattice.Dimension != 1 {
		return nil, fmt.Errorf("%w: dimension mismatch: sns mover needs dimension 1, got %d",
			sim.ErrConfiguration, params.Lattice.Dimension)
	}
	if params.Lattice.Length < 2 {
		return nil, fmt.Errorf("%w: sns mover needs a lattice of length >= 2, got %d",
			sim.ErrConfiguration, params.Lattice.Length)
	}
	initial := params.InitialParticleCount()
	if initial < 0 || initial > params.Lattice.Length {
		return nil, fmt.Errorf("%w: cannot place %d particles on %d sites",
			sim.ErrConfiguration, initial, params.Lattice.Length)
	}
	rw, err := NewReweighter(params.Reweighting)
	if err != nil {
		return nil, err
	}
	rates := params.TransitionRates()
	return &SNSMover{
		l:           params.Lattice.Length,
		rates:       rates,
		lr:          rates.LMC / rates.RMC,
		rl:          rates.RMC / rates.LMC,
		initial:     initial,
		reweighting: rw,
	}, nil
}

// Length returns the number of physical lattice sites.
func (m *SNSMover) Length() int { return m.l }

// InitialParticles returns the number of particles Initialize places.
func (m *SNSMover) InitialParticles() int { return m.initial }

// Initialize clears the state and places InitialParticles() particles on
// distinct sites chosen by rejection sampling, with ids 0..n-1.
func (m *SNSMover) Initialize(state *sim.WalkerState, rng sim.RandomSource) error {
	state.Clear()
	for pp := 0; pp < m.initial; {
		site := sim.At(rng.Intn(m.l))
		if _, taken := state.Occupied(site); taken {
			continue
		}
		state.Place(site, pp)
		pp++
	}
	state.NextParticleID = m.initial
	state.BeginStep()
	return nil
}

// Move performs one elementary transition and applies the step's weight factor.
func (m *SNSMover) Move(state *sim.WalkerState, rng sim.RandomSource) error {
	state.BeginStep()

	x := rng.Intn(m.l + 2)
	rd := rng.Float64()
	hop := 0

	switch {
	case x == m.l:
		hop = m.leftReservoir(state, rng, rd)
	case x == m.l+1:
		hop = m.rightReservoir(state, rng, rd)
	default:
		site := sim.At(x)
		if _, ok := state.Occupied(site); ok {
			hop = m.hop(state, rng, rd, x)
		} else if state.ParticleCount() > 0 {
			hop = m.pull(state, rng, rd, x)
		}
	}

	state.DQ.X = hop
	state.Q.X += hop
	state.Accepted = hop != 0
	state.LTime++

	state.DWeight = m.reweighting.Factor(state)
	return state.Weight.MultUpdate(state.DWeight)
}

// leftReservoir removes a particle from site 0 towards the left reservoir or
// injects one from it.
func (m *SNSMover) leftReservoir(state *sim.WalkerState, rng sim.RandomSource, rd float64) int {
	edge := sim.At(0)
	ar := rng.Float64()
	_, present := state.Occupied(edge)
	if rd < m.rates.LeftRemove {
		if present && ar < m.lr {
			state.Remove(edge)
			return -1
		}
		return 0
	}
	if !present && ar < m.rl {
		state.Place(edge, state.NextParticleID)
		state.NextParticleID++
		return 1
	}
	return 0
}

// rightReservoir removes a particle from site L-1 towards the right reservoir
// or injects one from it.
func (m *SNSMover) rightReservoir(state *sim.WalkerState, rng sim.RandomSource, rd float64) int {
	edge := sim.At(m.l - 1)
	ar := rng.Float64()
	_, present := state.Occupied(edge)
	if rd < m.rates.RightRemove {
		if present && ar < m.rl {
			state.Remove(edge)
			return 1
		}
		return 0
	}
	if !present && ar < m.lr {
		state.Place(edge, state.NextParticleID)
		state.NextParticleID++
		return -1
	}
	return 0
}

// hop moves the particle at x to an empty neighbour. Never leaves [0, L).
func (m *SNSMover) hop(state *sim.WalkerState, rng sim.RandomSource, rd float64, x int) int {
	ar := rng.Float64()
	if rd < m.rates.LeftMove {
		to := sim.At(x - 1)
		if _, blocked := state.Occupied(to); !blocked && x != 0 && ar < m.lr {
			state.Relocate(sim.At(x), to)
			return -1
		}
		return 0
	}
	to := sim.At(x + 1)
	if _, blocked := state.Occupied(to); !blocked && x != m.l-1 && ar < m.rl {
		state.Relocate(sim.At(x), to)
		return 1
	}
	return 0
}

// pull moves a particle from a neighbour into the empty site x.
func (m *SNSMover) pull(state *sim.WalkerState, rng sim.RandomSource, rd float64, x int) int {
	ar := rng.Float64()
	if rd < m.rates.LeftMove {
		from := sim.At(x + 1)
		if _, ok := state.Occupied(from); ok && ar < m.lr {
			state.Relocate(from, sim.At(x))
			return -1
		}
		return 0
	}
	from := sim.At(x - 1)
	if _, ok := state.Occupied(from); ok && ar < m.rl {
		state.Relocate(from, sim.At(x))
		return 1
	}
	return 0
}
