// Package scoring measures how alike two golfers are and turns reviews into
// similarity-weighted ratings.
package scoring

import (
	"math"

	"github.com/okian/fairway/internal/domain/model"
)

// Option applies a configuration option to the Comparator.
type Option func(*Comparator)

// WithWeights replaces the default weights. Invalid weight sets are ignored.
func WithWeights(w Weights) Option {
	return func(c *Comparator) {
		if w.Validate() == nil {
			c.weights = w
		}
	}
}

// Comparator computes the distance between two player profiles. Lower is
// closer; zero means every jointly known attribute matches. It holds no
// mutable state and is safe for concurrent use.
type Comparator struct {
	weights Weights
}

// NewComparator creates a comparator with the default weights unless overridden.
func NewComparator(opts ...Option) *Comparator {
	c := &Comparator{weights: DefaultWeights()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Weights returns the weights in use.
func (c *Comparator) Weights() Weights {
	return c.weights
}

// MaxDistance returns the distance used when two profiles share no known attribute.
func (c *Comparator) MaxDistance() float64 {
	return c.weights.MaxDistance()
}

// Similarity sums the normalized per-attribute distances of a and b. Attributes
// unknown on either side are skipped, so the result is not an average.
func (c *Comparator) Similarity(a, b model.PlayerProfile) float64 {
	w := c.weights
	var (
		total   float64
		overlap int
	)

	// A non-finite handicap counts as unknown.
	if x, ok := a.Handicap.Get(); ok && finite(x) {
		if y, ok := b.Handicap.Get(); ok && finite(y) {
			total += math.Min(math.Abs(x-y)/w.HandicapUnit, w.handicapMax())
			overlap++
		}
	}

	if x, ok := a.SwingSpeedMph.Get(); ok {
		if y, ok := b.SwingSpeedMph.Get(); ok {
			total += math.Min(math.Abs(float64(x-y))/w.SwingSpeedUnit, w.swingSpeedMax())
			overlap++
		}
	}

	if x, ok := a.SkillLevel.Get(); ok {
		if y, ok := b.SkillLevel.Get(); ok {
			total += w.skillDistance(x, y)
			overlap++
		}
	}

	if x, ok := a.BallFlight.Get(); ok {
		if y, ok := b.BallFlight.Get(); ok {
			if x != y {
				total += w.BallFlightMismatch
			}
			overlap++
		}
	}

	if overlap == 0 {
		return w.MaxDistance()
	}
	return total
}

func (w Weights) skillDistance(a, b model.SkillLevel) float64 {
	steps := int(a) - int(b)
	if steps < 0 {
		steps = -steps
	}
	switch steps {
	case 0:
		return 0
	case 1:
		return w.SkillAdjacent
	default:
		return w.SkillDistant
	}
}

// Weight converts a distance into a review weight in (0, 1].
func Weight(distance float64) float64 {
	return 1 / (1 + distance)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
