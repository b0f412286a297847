package sim

import (
	"fmt"
	"sort"
)

// Site is a lattice coordinate. The exclusion model only uses X; Y and Z keep
// the coordinate shape shared with higher-dimensional lattices.
type Site struct {
	X, Y, Z int
}

// At returns the 1D site at position x.
func At(x int) Site {
	return Site{X: x}
}

// WalkerState is the mutable per-trajectory state of one walker.
//
// Thread-safety: NOT thread-safe. A WalkerState is owned by exactly one Walker
// at a time; branching transfers ownership or deep-copies, never aliases.
type WalkerState struct {
	occupancy     map[Site]int // site -> particle id
	particleCount int

	Weight  Weight
	DWeight float64 // factor applied by the most recent move

	LTime    int64 // local step counter
	DQ       Site  // displacement of the most recent move
	Q        Site  // displacement integrated over the walker's life
	Accepted bool  // whether the most recent move changed the occupancy

	NextParticleID int
	Lineage        int    // ID of the walker this state descends from
	Serial         uint64 // unique per state instance on a worker; fresh for every clone
}

// NewWalkerState creates an empty state with the given initial weight and lineage.
func NewWalkerState(weight float64, lineage int) *WalkerState {
	return &WalkerState{
		occupancy: make(map[Site]int),
		Weight:    NewWeight(weight),
		DWeight:   1,
		Lineage:   lineage,
	}
}

// Clear empties the occupancy map and resets counters and displacements.
// Weight, Lineage and Serial are left alone.
func (s *WalkerState) Clear() {
	clear(s.occupancy)
	s.particleCount = 0
	s.NextParticleID = 0
	s.LTime = 0
	s.DQ = Site{}
	s.Q = Site{}
	s.Accepted = false
}

// BeginStep resets the per-step accumulators before a move.
func (s *WalkerState) BeginStep() {
	s.DQ = Site{}
	s.Accepted = false
}

// ParticleCount returns the number of particles on the lattice.
func (s *WalkerState) ParticleCount() int {
	return s.particleCount
}

// Occupancy exposes the occupancy map for read access.
// Mutations must go through Place, Remove and Relocate so the particle count stays consistent.
func (s *WalkerState) Occupancy() map[Site]int {
	return s.occupancy
}

// Occupied reports whether a particle sits at site, and its id.
func (s *WalkerState) Occupied(site Site) (int, bool) {
	id, ok := s.occupancy[site]
	return id, ok
}

// Place puts particle id at an empty site.
// Panics if the site is already occupied.
func (s *WalkerState) Place(site Site, id int) {
	if _, ok := s.occupancy[site]; ok {
		panic(fmt.Sprintf("WalkerState.Place: site %v already occupied", site))
	}
	s.occupancy[site] = id
	s.particleCount++
}

// Remove deletes the particle at site and returns its id.
// Panics if the site is empty.
func (s *WalkerState) Remove(site Site) int {
	id, ok := s.occupancy[site]
	if !ok {
		panic(fmt.Sprintf("WalkerState.Remove: site %v is empty", site))
	}
	delete(s.occupancy, site)
	s.particleCount--
	return id
}

// Relocate moves the particle at from to the empty site to, keeping its id.
func (s *WalkerState) Relocate(from, to Site) {
	id := s.Remove(from)
	s.Place(to, id)
}

// Sites returns the occupied sites ordered by X (then Y, Z).
func (s *WalkerState) Sites() []Site {
	sites := make([]Site, 0, len(s.occupancy))
	for site := range s.occupancy {
		sites = append(sites, site)
	}
	sort.Slice(sites, func(i, j int) bool {
		a, b := sites[i], sites[j]
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Z < b.Z
	})
	return sites
}

// CopyFrom overwrites s with a deep copy of src, reusing s's map storage.
// Serial is not copied; the caller assigns a fresh one.
func (s *WalkerState) CopyFrom(src *WalkerState) {
	if s.occupancy == nil {
		s.occupancy = make(map[Site]int, len(src.occupancy))
	} else {
		clear(s.occupancy)
	}
	for site, id := range src.occupancy {
		s.occupancy[site] = id
	}
	s.particleCount = src.particleCount
	s.Weight = src.Weight
	s.DWeight = src.DWeight
	s.LTime = src.LTime
	s.DQ = src.DQ
	s.Q = src.Q
	s.Accepted = src.Accepted
	s.NextParticleID = src.NextParticleID
	s.Lineage = src.Lineage
}

// Clone returns a deep copy with its own occupancy map.
func (s *WalkerState) Clone() *WalkerState {
	c := &WalkerState{}
	c.CopyFrom(s)
	c.Serial = s.Serial
	return c
}

// CheckInvariants verifies the occupancy model against a lattice of length l:
// the particle count equals the map size, every site lies in [0, l), and no
// particle id is used twice.
func (s *WalkerState) CheckInvariants(l int) error {
	if s.particleCount != len(s.occupancy) {
		return fmt.Errorf("particle count %d != occupied sites %d", s.particleCount, len(s.occupancy))
	}
	seen := make(map[int]Site, len(s.occupancy))
	for site, id := range s.occupancy {
		if site.X < 0 || site.X >= l || site.Y != 0 || site.Z != 0 {
			return fmt.Errorf("site %v outside lattice of length %d", site, l)
		}
		if other, dup := seen[id]; dup {
			return fmt.Errorf("particle id %d at both %v and %v", id, other, site)
		}
		seen[id] = site
	}
	return nil
}
