package scoring

import (
	"fmt"
	"math"
)

// Default similarity weights.
const (
	DefaultHandicapUnit       = 5.0
	DefaultSwingSpeedUnit     = 10.0
	DefaultSkillAdjacent      = 0.5
	DefaultSkillDistant       = 1.0
	DefaultBallFlightMismatch = 1.0

	// Typical attribute spans. A numeric contribution never exceeds span/unit.
	HandicapSpan   = 64.0 // -10..54
	SwingSpeedSpan = 70.0 // 60..130 mph
)

// Weights configures how attribute differences translate into distance.
type Weights struct {
	// HandicapUnit is the handicap difference worth one distance unit.
	HandicapUnit float64 `json:"handicap_unit"`
	// SwingSpeedUnit is the swing speed difference (mph) worth one distance unit.
	SwingSpeedUnit float64 `json:"swing_speed_unit"`
	// SkillAdjacent applies to neighbouring skill levels.
	SkillAdjacent float64 `json:"skill_adjacent"`
	// SkillDistant applies to skill levels two or more steps apart.
	SkillDistant float64 `json:"skill_distant"`
	// BallFlightMismatch applies to differing ball flights.
	BallFlightMismatch float64 `json:"ball_flight_mismatch"`
}

// DefaultWeights returns the standard weight set.
func DefaultWeights() Weights {
	return Weights{
		HandicapUnit:       DefaultHandicapUnit,
		SwingSpeedUnit:     DefaultSwingSpeedUnit,
		SkillAdjacent:      DefaultSkillAdjacent,
		SkillDistant:       DefaultSkillDistant,
		BallFlightMismatch: DefaultBallFlightMismatch,
	}
}

// Validate checks that every weight is positive and finite and that distant
// skill levels cost at least as much as adjacent ones.
func (w Weights) Validate() error {
	values := map[string]float64{
		"handicap_unit":        w.HandicapUnit,
		"swing_speed_unit":     w.SwingSpeedUnit,
		"skill_adjacent":       w.SkillAdjacent,
		"skill_distant":        w.SkillDistant,
		"ball_flight_mismatch": w.BallFlightMismatch,
	}
	for name, v := range values {
		if !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidWeights, name, v)
		}
	}
	if w.SkillDistant < w.SkillAdjacent {
		return fmt.Errorf("%w: skill_distant (%v) below skill_adjacent (%v)", ErrInvalidWeights, w.SkillDistant, w.SkillAdjacent)
	}
	return nil
}

func (w Weights) handicapMax() float64   { return HandicapSpan / w.HandicapUnit }
func (w Weights) swingSpeedMax() float64 { return SwingSpeedSpan / w.SwingSpeedUnit }

// MaxDistance is the sentinel distance for profiles with no attribute in
// common. It equals the sum of every per-attribute maximum.
func (w Weights) MaxDistance() float64 {
	return w.handicapMax() + w.swingSpeedMax() + w.SkillDistant + w.BallFlightMismatch
}
