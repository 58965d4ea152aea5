package xp

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Strictness selects a preset for the anti-farming constants.
type Strictness string

const (
	StrictnessLenient  Strictness = "lenient"
	StrictnessBalanced Strictness = "balanced"
	StrictnessStrict   Strictness = "strict"
)

// MinutesRange bounds the duration a user may pick before starting a session.
type MinutesRange struct {
	Min int `yaml:"min" json:"min"`
	Max int `yaml:"max" json:"max"`
}

// Contains reports whether minutes lies within the range, inclusive.
func (r MinutesRange) Contains(minutes int) bool {
	return minutes >= r.Min && minutes <= r.Max
}

// Policy holds every tunable of the award algorithm. All fields are
// configuration; nothing in ComputeAward hardcodes a reference value.
type Policy struct {
	Strictness Strictness `yaml:"strictness" json:"strictness"`

	// Anti-farming.
	MinEffectiveMinutes       float64 `yaml:"minEffectiveMinutes" json:"minEffectiveMinutes"`
	ShortSessionDiminishK     float64 `yaml:"shortSessionDiminishK" json:"shortSessionDiminishK"`
	ShortSessionWindowMinutes int     `yaml:"shortSessionWindowMinutes" json:"shortSessionWindowMinutes"`
	ShortSessionCapPerWindow  int     `yaml:"shortSessionCapPerWindow" json:"shortSessionCapPerWindow"`

	// Award.
	BaseXPPerMinute          float64 `yaml:"baseXpPerMinute" json:"baseXpPerMinute"`
	TaskCompletionMultiplier float64 `yaml:"taskCompletionMultiplier" json:"taskCompletionMultiplier"`
	StreakBonusEnabled       bool    `yaml:"streakBonusEnabled" json:"streakBonusEnabled"`
	MaxStreakBonus           float64 `yaml:"maxStreakBonus" json:"maxStreakBonus"`
	StreakDivisor            float64 `yaml:"streakDivisor" json:"streakDivisor"`
	WorkBreakRatioEnabled    bool    `yaml:"workBreakRatioEnabled" json:"workBreakRatioEnabled"`
	IdealWorkBreakRatio      float64 `yaml:"idealWorkBreakRatio" json:"idealWorkBreakRatio"`
	MaxRatioBonus            float64 `yaml:"maxRatioBonus" json:"maxRatioBonus"`

	// Companion.
	PetXPRatio       float64 `yaml:"petXpRatio" json:"petXpRatio"`
	MaxPetMultiplier float64 `yaml:"maxPetMultiplier" json:"maxPetMultiplier"`

	// Penalties and validation.
	PenaltiesEnabled  bool    `yaml:"penaltiesEnabled" json:"penaltiesEnabled"`
	ManualStopPenalty int     `yaml:"manualStopPenalty" json:"manualStopPenalty"`
	LeavePenalty      int     `yaml:"leavePenalty" json:"leavePenalty"`
	TimeTolerance     float64 `yaml:"timeTolerance" json:"timeTolerance"`

	// Session limits.
	WorkMinutes  MinutesRange `yaml:"workMinutes" json:"workMinutes"`
	BreakMinutes MinutesRange `yaml:"breakMinutes" json:"breakMinutes"`
	HistoryLimit int          `yaml:"historyLimit" json:"historyLimit"`
}

// DefaultPolicy returns the balanced preset.
func DefaultPolicy() Policy {
	return Policy{
		Strictness:                StrictnessBalanced,
		MinEffectiveMinutes:       5,
		ShortSessionDiminishK:     3,
		ShortSessionWindowMinutes: 60,
		ShortSessionCapPerWindow:  6,
		BaseXPPerMinute:           10,
		TaskCompletionMultiplier:  2.0,
		StreakBonusEnabled:        true,
		MaxStreakBonus:            0.5,
		StreakDivisor:             20,
		WorkBreakRatioEnabled:     true,
		IdealWorkBreakRatio:       4,
		MaxRatioBonus:             0.2,
		PetXPRatio:                0.5,
		MaxPetMultiplier:          2.5,
		PenaltiesEnabled:          true,
		ManualStopPenalty:         10,
		LeavePenalty:              10,
		TimeTolerance:             0.2,
		WorkMinutes:               MinutesRange{Min: 1, Max: 120},
		BreakMinutes:              MinutesRange{Min: 1, Max: 60},
		HistoryLimit:              50,
	}
}

// PolicyFor returns the preset for the given strictness.
func PolicyFor(s Strictness) (Policy, error) {
	p := DefaultPolicy()
	switch s {
	case StrictnessBalanced, "":
	case StrictnessLenient:
		p.Strictness = StrictnessLenient
		p.MinEffectiveMinutes = 3
		p.ShortSessionDiminishK = 2
		p.ShortSessionCapPerWindow = 10
		p.ManualStopPenalty = 5
		p.LeavePenalty = 5
		p.TimeTolerance = 0.3
	case StrictnessStrict:
		p.Strictness = StrictnessStrict
		p.MinEffectiveMinutes = 10
		p.ShortSessionDiminishK = 5
		p.ShortSessionWindowMinutes = 90
		p.ShortSessionCapPerWindow = 4
		p.ManualStopPenalty = 20
		p.LeavePenalty = 20
		p.TimeTolerance = 0.1
	default:
		return Policy{}, fmt.Errorf("unknown strictness %q", s)
	}
	return p, nil
}

// LoadPolicy reads a YAML policy file and overlays it on base. Keys absent
// from the file keep their base value. A strictness key in the file selects
// that preset first, then the remaining keys are applied on top of it.
func LoadPolicy(path string, base Policy) (Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy file: %w", err)
	}

	var probe struct {
		Strictness Strictness `yaml:"strictness"`
	}
	if err := yaml.Unmarshal(raw, &probe); err != nil {
		return Policy{}, fmt.Errorf("parse policy file: %w", err)
	}
	p := base
	if probe.Strictness != "" && probe.Strictness != base.Strictness {
		p, err = PolicyFor(probe.Strictness)
		if err != nil {
			return Policy{}, err
		}
	}

	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Policy{}, fmt.Errorf("parse policy file: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}
