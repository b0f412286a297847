package sim

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// RunParameters is the top-level run configuration.
// Loaded from YAML via LoadRunParameters(path).
type RunParameters struct {
	Lattice          LatticeConfig     `yaml:"lattice"`
	Walkers          int               `yaml:"walkers"` // per worker rank
	Steps            StepConfig        `yaml:"steps"`
	Seed             int64             `yaml:"seed"` // WallClockSeed (-1) = derive from wall clock
	Beta             float64           `yaml:"beta"`
	Rates            RateConfig        `yaml:"rates"`
	InitialParticles *int              `yaml:"initial_particles,omitempty"`
	Mover            string            `yaml:"mover"`
	Reweighting      ReweightingConfig `yaml:"reweighting"`
	Branching        BranchingConfig   `yaml:"branching"`
	Observables      []ObservableSpec  `yaml:"observables"`
	ObservableParams ObservableParams  `yaml:"observable_params"`
	LogFile          string            `yaml:"log_file"`   // per-rank file is "<log_file>_<rank>"
	OutputDir        string            `yaml:"output_dir"` // coordinator CSV reports; empty disables
}

// LatticeConfig describes the lattice geometry.
type LatticeConfig struct {
	Length    int `yaml:"length"`
	Dimension int `yaml:"dimension"`
}

// StepConfig holds the step counts of the run.
type StepConfig struct {
	Equilibration int64 `yaml:"equilibration"`
	Production    int64 `yaml:"production"`
	Bins          int   `yaml:"bins"`
	BranchEvery   int64 `yaml:"branch_every"`
}

// RateConfig holds the branch-selection probabilities of the transition rule.
type RateConfig struct {
	LeftRemove  float64 `yaml:"left_remove"`
	RightRemove float64 `yaml:"right_remove"`
	LeftMove    float64 `yaml:"left_move"`
	LeftInsert  float64 `yaml:"left_insert"`
	RightInsert float64 `yaml:"right_insert"`
}

// ReweightingConfig selects the per-step weight factor applied by the mover.
type ReweightingConfig struct {
	Kind string  `yaml:"kind"` // "none" (default) or "current-tilt"
	Bias float64 `yaml:"bias"`
}

// BranchingConfig holds the population-control thresholds, expressed on the
// normalised weight (mean 1 across the worker's population).
type BranchingConfig struct {
	MinWeight float64 `yaml:"min_weight"` // below: culled
	MaxWeight float64 `yaml:"max_weight"` // above: reported as dominant
}

// ObservableSpec names one observable to collect.
type ObservableSpec struct {
	Kind string `yaml:"kind"`
	Name string `yaml:"name"`
}

// ObservableParams tunes observable kinds that need extra parameters.
type ObservableParams struct {
	MaxLag         int     `yaml:"max_lag"`
	WeightBinWidth float64 `yaml:"weight_bin_width"`
}

// TransitionRates are the rates derived once from the run parameters.
// LMC = exp(beta), RMC = exp(-beta).
type TransitionRates struct {
	LMC, RMC    float64
	LeftRemove  float64
	RightRemove float64
	LeftMove    float64
	LeftInsert  float64
	RightInsert float64
}

// Defaults applied by LoadRunParameters for fields left unset.
const (
	DefaultMinWeight      = 1.0e-8
	DefaultMaxWeight      = 1.0e8
	DefaultMaxLag         = 16
	DefaultWeightBinWidth = 0.1
)

// Valid value registries. Shared by Validate() and the factories in
// sim/mover and sim/observable so setup and validation never disagree.
var (
	ValidMovers = map[string]bool{"sns": true}

	ValidReweightings = map[string]bool{"": true, "none": true, "current-tilt": true}

	ValidObservableKinds = map[string]bool{
		"basic": true, "density": true, "q-histogram": true, "w-histogram": true,
		"autocorr": true, "autocorr-full": true, "autocorr-i": true,
		"p-histogram": true, "clone-multiplicity": true,
	}
)

// legacyNames maps the names used by older run files to canonical names.
var legacyNames = map[string]string{
	"SNSMover":     "sns",
	"Basic":        "basic",
	"Density":      "density",
	"Qhistogram":   "q-histogram",
	"Whistogram":   "w-histogram",
	"AutoCorr":     "autocorr",
	"AutoCorrFull": "autocorr-full",
	"AutoCorrI":    "autocorr-i",
	"Phistogram":   "p-histogram",
	"CloneMult":    "clone-multiplicity",
}

// UpgradeLegacyNames rewrites legacy mover and observable names in place.
// Idempotent. Emits a logrus warning for every mapped name.
func UpgradeLegacyNames(p *RunParameters) {
	if name, ok := legacyNames[p.Mover]; ok {
		logrus.Warnf("deprecated mover name %q auto-mapped to %q; update your run file", p.Mover, name)
		p.Mover = name
	}
	for i := range p.Observables {
		if kind, ok := legacyNames[p.Observables[i].Kind]; ok {
			logrus.Warnf("deprecated observable kind %q auto-mapped to %q; update your run file",
				p.Observables[i].Kind, kind)
			p.Observables[i].Kind = kind
		}
	}
}

// LoadRunParameters reads and parses a YAML run file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
// A missing or unparsable file is reported as ErrConfiguration.
func LoadRunParameters(path string) (*RunParameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading run file: %w: %w", ErrConfiguration, err)
	}
	return ParseRunParameters(data)
}

// ParseRunParameters parses YAML run parameters, upgrades legacy names and fills defaults.
// It does not validate; call Validate.
func ParseRunParameters(data []byte) (*RunParameters, error) {
	p := &RunParameters{Seed: WallClockSeed}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(p); err != nil {
		return nil, fmt.Errorf("parsing run file: %w: %w", ErrConfiguration, err)
	}
	UpgradeLegacyNames(p)
	p.applyDefaults()
	return p, nil
}

func (p *RunParameters) applyDefaults() {
	if p.Lattice.Dimension == 0 {
		p.Lattice.Dimension = 1
	}
	if p.Mover == "" {
		p.Mover = "sns"
	}
	if p.Branching.MinWeight == 0 {
		p.Branching.MinWeight = DefaultMinWeight
	}
	if p.Branching.MaxWeight == 0 {
		p.Branching.MaxWeight = DefaultMaxWeight
	}
	if p.ObservableParams.MaxLag == 0 {
		p.ObservableParams.MaxLag = DefaultMaxLag
	}
	if p.ObservableParams.WeightBinWidth == 0 {
		p.ObservableParams.WeightBinWidth = DefaultWeightBinWidth
	}
}

// Validate checks that all fields are valid. Errors wrap ErrConfiguration,
// or ErrUnknownStrategy for unrecognized mover/observable/reweighting names.
func (p *RunParameters) Validate() error {
	if p.Lattice.Dimension != 1 {
		return fmt.Errorf("%w: dimension mismatch: the exclusion model is 1D, got dimension %d",
			ErrConfiguration, p.Lattice.Dimension)
	}
	if p.Lattice.Length < 2 {
		return fmt.Errorf("%w: lattice.length must be >= 2, got %d", ErrConfiguration, p.Lattice.Length)
	}
	if p.Walkers < 1 {
		return fmt.Errorf("%w: walkers must be >= 1, got %d", ErrConfiguration, p.Walkers)
	}
	if p.Steps.Equilibration < 0 {
		return fmt.Errorf("%w: steps.equilibration must be non-negative, got %d", ErrConfiguration, p.Steps.Equilibration)
	}
	if p.Steps.Bins < 1 {
		return fmt.Errorf("%w: steps.bins must be >= 1, got %d", ErrConfiguration, p.Steps.Bins)
	}
	if p.Steps.Production < int64(p.Steps.Bins) {
		return fmt.Errorf("%w: steps.production (%d) must be >= steps.bins (%d)",
			ErrConfiguration, p.Steps.Production, p.Steps.Bins)
	}
	if p.Steps.BranchEvery < 1 {
		return fmt.Errorf("%w: steps.branch_every must be >= 1, got %d", ErrConfiguration, p.Steps.BranchEvery)
	}
	if p.Seed < WallClockSeed {
		return fmt.Errorf("%w: seed must be >= 0 or %d (wall clock), got %d", ErrConfiguration, WallClockSeed, p.Seed)
	}
	if err := validateFinite("beta", p.Beta); err != nil {
		return err
	}
	for name, v := range map[string]float64{
		"rates.left_remove":  p.Rates.LeftRemove,
		"rates.right_remove": p.Rates.RightRemove,
		"rates.left_move":    p.Rates.LeftMove,
		"rates.left_insert":  p.Rates.LeftInsert,
		"rates.right_insert": p.Rates.RightInsert,
	} {
		if err := validateProbability(name, v); err != nil {
			return err
		}
	}
	if n := p.InitialParticleCount(); n < 0 || n > p.Lattice.Length {
		return fmt.Errorf("%w: initial particle count %d outside [0, %d]", ErrConfiguration, n, p.Lattice.Length)
	}
	if !ValidMovers[p.Mover] {
		return fmt.Errorf("%w: mover %q; valid: sns", ErrUnknownStrategy, p.Mover)
	}
	if !ValidReweightings[p.Reweighting.Kind] {
		return fmt.Errorf("%w: reweighting %q; valid: none, current-tilt", ErrUnknownStrategy, p.Reweighting.Kind)
	}
	if err := validateFinite("reweighting.bias", p.Reweighting.Bias); err != nil {
		return err
	}
	if p.Branching.MinWeight < 0 || p.Branching.MinWeight >= 1 {
		return fmt.Errorf("%w: branching.min_weight must be in [0, 1), got %g", ErrConfiguration, p.Branching.MinWeight)
	}
	if p.Branching.MaxWeight <= 1 {
		return fmt.Errorf("%w: branching.max_weight must be > 1, got %g", ErrConfiguration, p.Branching.MaxWeight)
	}
	if p.ObservableParams.MaxLag < 0 {
		return fmt.Errorf("%w: observable_params.max_lag must be non-negative, got %d", ErrConfiguration, p.ObservableParams.MaxLag)
	}
	if !(p.ObservableParams.WeightBinWidth > 0) {
		return fmt.Errorf("%w: observable_params.weight_bin_width must be positive, got %g",
			ErrConfiguration, p.ObservableParams.WeightBinWidth)
	}
	names := make(map[string]bool, len(p.Observables))
	for i, o := range p.Observables {
		if !ValidObservableKinds[o.Kind] {
			return fmt.Errorf("%w: observables[%d]: kind %q", ErrUnknownStrategy, i, o.Kind)
		}
		if o.Name == "" {
			return fmt.Errorf("%w: observables[%d]: name is required", ErrConfiguration, i)
		}
		if names[o.Name] {
			return fmt.Errorf("%w: observables[%d]: duplicate name %q", ErrConfiguration, i, o.Name)
		}
		names[o.Name] = true
	}
	return nil
}

// TransitionRates derives the transition rates: LMC = exp(beta), RMC = exp(-beta).
func (p *RunParameters) TransitionRates() TransitionRates {
	return TransitionRates{
		LMC:         math.Exp(p.Beta),
		RMC:         math.Exp(-p.Beta),
		LeftRemove:  p.Rates.LeftRemove,
		RightRemove: p.Rates.RightRemove,
		LeftMove:    p.Rates.LeftMove,
		LeftInsert:  p.Rates.LeftInsert,
		RightInsert: p.Rates.RightInsert,
	}
}

// InitialParticleCount is the number of particles placed by Mover.Initialize:
// initial_particles when set, else (L/2) * (left_insert + right_insert) with
// integer division of L and truncation of the product.
func (p *RunParameters) InitialParticleCount() int {
	if p.InitialParticles != nil {
		return *p.InitialParticles
	}
	return int(float64(p.Lattice.Length/2) * (p.Rates.LeftInsert + p.Rates.RightInsert))
}

// DT is the time elapsed per move: 1/(L+2).
func (p *RunParameters) DT() float64 {
	return 1.0 / float64(p.Lattice.Length+2)
}

// TotalWalkers is the walker count summed over all worker ranks.
func (p *RunParameters) TotalWalkers(workers int) int {
	return workers * p.Walkers
}

// BlockTicks returns the number of production ticks in block b. The last block
// absorbs the remainder of Production / Bins.
func (p *RunParameters) BlockTicks(b int) int64 {
	per := p.Steps.Production / int64(p.Steps.Bins)
	if b == p.Steps.Bins-1 {
		return p.Steps.Production - per*int64(p.Steps.Bins-1)
	}
	return per
}

func validateFinite(name string, val float64) error {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return fmt.Errorf("%w: %s must be a finite number, got %f", ErrConfiguration, name, val)
	}
	return nil
}

func validateProbability(name string, val float64) error {
	if math.IsNaN(val) || val < 0 || val > 1 {
		return fmt.Errorf("%w: %s must be in [0, 1], got %f", ErrConfiguration, name, val)
	}
	return nil
}
