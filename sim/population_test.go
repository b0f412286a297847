package sim

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmc-sim/dmc-sim/sim/internal/testutil"
)

var testBranching = BranchingConfig{MinWeight: DefaultMinWeight, MaxWeight: DefaultMaxWeight}

// newWeightedPopulation builds one walker per weight; walker i holds a single
// particle at site i so states can be told apart after branching.
func newWeightedPopulation(t *testing.T, weights []float64) *Population {
	t.Helper()
	walkers := make([]*Walker, len(weights))
	for i, wt := range weights {
		s := NewWalkerState(wt, i)
		s.Place(At(i), 0)
		s.NextParticleID = 1
		walkers[i] = NewWalker(i, s, testutil.ConstantSource{}, nil)
	}
	return NewPopulation(walkers)
}

func lineages(p *Population) []int {
	out := make([]int, p.Len())
	for i, w := range p.Walkers() {
		out[i] = w.State.Lineage
	}
	return out
}

func assertCanonical(t *testing.T, p *Population) {
	t.Helper()
	for _, w := range p.Walkers() {
		assert.Equal(t, CanonicalWeight, w.State.Weight.Value(), "walker %d", w.ID)
	}
}

func assertNoAliasing(t *testing.T, p *Population) {
	t.Helper()
	seen := make(map[*WalkerState]bool, p.Len())
	serials := make(map[uint64]bool, p.Len())
	for _, w := range p.Walkers() {
		assert.False(t, seen[w.State], "state held by two slots")
		assert.False(t, serials[w.State.Serial], "serial %d reused", w.State.Serial)
		seen[w.State] = true
		serials[w.State.Serial] = true
	}
}

func TestPopulation_Branch_RemovesZeroWeightAndClonesHeaviest(t *testing.T) {
	// GIVEN four walkers with weights [0, 1, 1, 2]
	p := newWeightedPopulation(t, []float64{0, 1, 1, 2})
	before := []*WalkerState{p.At(0).State, p.At(1).State, p.At(2).State, p.At(3).State}

	// WHEN branching with u = 0.5
	res, err := p.Branch(testutil.ConstantSource{Float: 0.5}, testBranching)
	require.NoError(t, err)

	// THEN the zero-weight walker is gone and the heaviest cloned once
	assert.Equal(t, []int{0, 1, 1, 2}, res.Copies)
	assert.Equal(t, []int{1, 2, 3, 3}, lineages(p))
	assert.Equal(t, 4, p.Len())
	assert.Equal(t, 1, res.Culled)
	assert.Equal(t, 1, res.Cloned)
	assert.Equal(t, 3, res.Survivors)
	assert.Equal(t, 4, res.Before)
	assert.Equal(t, 4, res.After)
	assertCanonical(t, p)
	assertNoAliasing(t, p)

	// AND every lineage keeps its particle data
	assert.Equal(t, []Site{At(1)}, p.At(0).State.Sites())
	assert.Equal(t, []Site{At(2)}, p.At(1).State.Sites())
	assert.Equal(t, []Site{At(3)}, p.At(2).State.Sites())
	assert.Equal(t, []Site{At(3)}, p.At(3).State.Sites())

	// AND survivors move into the first copy while the clone recycles the culled state
	assert.Same(t, before[1], p.At(0).State)
	assert.Same(t, before[3], p.At(2).State)
	assert.Same(t, before[0], p.At(3).State)

	// AND walker slots keep their identity
	for i, w := range p.Walkers() {
		assert.Equal(t, i, w.ID)
	}
}

func TestPopulation_Branch_CloneIsIndependent(t *testing.T) {
	p := newWeightedPopulation(t, []float64{0, 1, 1, 2})
	_, err := p.Branch(testutil.ConstantSource{Float: 0.5}, testBranching)
	require.NoError(t, err)

	// WHEN the clone moves its particle
	p.At(3).State.Relocate(At(3), At(4))

	// THEN the parent copy is unaffected
	assert.Equal(t, []Site{At(3)}, p.At(2).State.Sites())
	assert.Equal(t, []Site{At(4)}, p.At(3).State.Sites())
}

func TestPopulation_Branch_EqualWeightsKeepEveryWalker(t *testing.T) {
	p := newWeightedPopulation(t, []float64{3, 3, 3, 3, 3})
	for _, u := range []float64{0, 0.3, 0.999} {
		res, err := p.Branch(testutil.ConstantSource{Float: u}, testBranching)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 1, 1, 1, 1}, res.Copies, "u=%v", u)
		assert.Equal(t, 0, res.Culled)
		assert.Equal(t, 0, res.Cloned)
		assert.InDelta(t, 1.0, res.MaxNormalizedWeight, 1e-12)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, lineages(p))
	assertCanonical(t, p)
}

func TestPopulation_Branch_DominantWalkerTakesOver(t *testing.T) {
	// GIVEN one walker a thousand times heavier than the rest
	p := newWeightedPopulation(t, []float64{1, 1, 1, 1000})

	res, err := p.Branch(testutil.ConstantSource{Float: 0.5}, BranchingConfig{MinWeight: DefaultMinWeight, MaxWeight: 2})
	require.NoError(t, err)

	// THEN it is reported as dominant and fills the population
	assert.Equal(t, 1, res.Dominant)
	assert.InDelta(t, 4000.0/1003, res.MaxNormalizedWeight, 1e-12)
	assert.Equal(t, []int{0, 0, 0, 4}, res.Copies)
	assert.Equal(t, []int{3, 3, 3, 3}, lineages(p))
	assert.Equal(t, 3, res.Culled)
	assert.Equal(t, 3, res.Cloned)
	assertNoAliasing(t, p)
}

func TestPopulation_Branch_NearZeroWeightIsCulled(t *testing.T) {
	p := newWeightedPopulation(t, []float64{1e-20, 1, 1, 1})

	res, err := p.Branch(testutil.ConstantSource{Float: 0.5}, testBranching)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2, 1}, res.Copies)
	assert.Equal(t, []int{1, 2, 2, 3}, lineages(p))
}

func TestPopulation_Branch_ExtremeWeightsDoNotOverflow(t *testing.T) {
	// GIVEN weights far outside the float64 range
	p := newWeightedPopulation(t, []float64{1, 1})
	for i := 0; i < 400; i++ {
		require.NoError(t, p.At(0).State.Weight.MultUpdate(1e10))
		require.NoError(t, p.At(1).State.Weight.MultUpdate(1e10))
	}
	require.True(t, math.IsInf(p.At(0).State.Weight.Value(), 1))

	// WHEN branching
	res, err := p.Branch(testutil.ConstantSource{Float: 0.5}, testBranching)

	// THEN normalisation in log space treats them as equal
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1}, res.Copies)
	assertCanonical(t, p)
}

func TestPopulation_Branch_CollapseLeavesPopulationUnchanged(t *testing.T) {
	p := newWeightedPopulation(t, []float64{0, 0, 0})

	_, err := p.Branch(testutil.ConstantSource{Float: 0.5}, testBranching)

	assert.True(t, errors.Is(err, ErrPopulationCollapse), "got %v", err)
	assert.Equal(t, []int{0, 1, 2}, lineages(p))
	assert.True(t, p.At(0).State.Weight.IsZero())
}

func TestPopulation_Branch_NonFiniteWeightIsAnomaly(t *testing.T) {
	p := newWeightedPopulation(t, []float64{1, 1})
	p.At(1).State.Weight = Weight{mant: math.NaN()}

	_, err := p.Branch(testutil.ConstantSource{Float: 0.5}, testBranching)

	assert.True(t, errors.Is(err, ErrNumericAnomaly), "got %v", err)
	assert.Equal(t, []int{0, 1}, lineages(p))
}

func TestPopulation_Branch_RandomWeightsPreserveSizeAndOwnership(t *testing.T) {
	// GIVEN a population branched repeatedly with random weights
	rng := rand.New(rand.NewSource(3))
	p := newWeightedPopulation(t, make([]float64, 16))
	for i := range p.Walkers() {
		p.At(i).State.Weight.Reset(1)
	}

	for round := 0; round < 50; round++ {
		for _, w := range p.Walkers() {
			require.NoError(t, w.State.Weight.MultUpdate(math.Exp(3*rng.NormFloat64())))
		}
		res, err := p.Branch(rng, testBranching)
		require.NoError(t, err)

		// THEN the size and copy total are preserved and no state is shared
		sum := 0
		for _, c := range res.Copies {
			sum += c
		}
		assert.Equal(t, 16, sum)
		assert.Equal(t, 16, p.Len())
		assert.Equal(t, res.Culled, res.Cloned)
		assertCanonical(t, p)
		assertNoAliasing(t, p)
		for _, w := range p.Walkers() {
			assert.NoError(t, w.State.CheckInvariants(16))
		}
	}
}

func TestPopulation_ResetWeightsAndSerials(t *testing.T) {
	p := newWeightedPopulation(t, []float64{2, 5})
	assert.Equal(t, uint64(1), p.At(0).State.Serial)
	assert.Equal(t, uint64(2), p.At(1).State.Serial)

	p.ResetWeights()
	assertCanonical(t, p)

	assert.Panics(t, func() { NewPopulation(nil) })
}

func TestPopulation_Branch_DrawNextToOneKeepsCopiesValid(t *testing.T) {
	// GIVEN random weight vectors, some ending in a zero weight, and a comb
	// draw one ulp below 1
	rng := rand.New(rand.NewSource(11))
	u := testutil.ConstantSource{Float: math.Nextafter(1, 0)}

	for trial := 0; trial < 200; trial++ {
		n := 2 + rng.Intn(30)
		weights := make([]float64, n)
		for i := range weights {
			weights[i] = rng.Float64() * math.Pow(10, float64(rng.Intn(7)-3))
		}
		if trial%2 == 0 {
			weights[n-1] = 0
		}
		weights[rng.Intn(n-1)] += 1
		p := newWeightedPopulation(t, weights)

		// WHEN branching
		var res BranchResult
		var err error
		require.NotPanics(t, func() { res, err = p.Branch(u, testBranching) }, "trial %d weights %v", trial, weights)
		require.NoError(t, err)

		// THEN every count is non-negative, the counts sum to n and zero
		// weights receive no copies
		sum := 0
		for i, c := range res.Copies {
			assert.GreaterOrEqual(t, c, 0, "trial %d slot %d", trial, i)
			if weights[i] == 0 {
				assert.Equal(t, 0, c, "trial %d slot %d has zero weight", trial, i)
			}
			sum += c
		}
		assert.Equal(t, n, sum, "trial %d", trial)
		assert.Equal(t, n, p.Len())
		assertNoAliasing(t, p)
	}
}
