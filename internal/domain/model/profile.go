// Package model contains domain models passed between layers.
package model

import "math"

// PlayerProfile describes a golfer, either the querying user or a past reviewer.
// Every attribute except the identity may be unknown.
type PlayerProfile struct {
	ID            string                `json:"id,omitempty"`
	Handicap      Optional[float64]     `json:"handicap"`
	SwingSpeedMph Optional[int]         `json:"swing_speed_mph"`
	SkillLevel    Optional[SkillLevel]  `json:"skill_level"`
	BallFlight    Optional[BallFlight]  `json:"ball_flight"`
	YearsPlaying  Optional[int]         `json:"years_playing"`
	BudgetRange   Optional[BudgetRange] `json:"budget_range"`
}

// ProfileOption sets one attribute of a PlayerProfile.
type ProfileOption func(*PlayerProfile)

// NewPlayerProfile returns a profile with every attribute unknown except those set by opts.
func NewPlayerProfile(id string, opts ...ProfileOption) PlayerProfile {
	p := PlayerProfile{ID: id}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// WithHandicap sets the handicap index. NaN and infinite values are ignored.
func WithHandicap(h float64) ProfileOption {
	return func(p *PlayerProfile) {
		if !math.IsNaN(h) && !math.IsInf(h, 0) {
			p.Handicap = Some(h)
		}
	}
}

// WithSwingSpeed sets the driver swing speed in mph.
func WithSwingSpeed(mph int) ProfileOption {
	return func(p *PlayerProfile) { p.SwingSpeedMph = Some(mph) }
}

// WithSkillLevel sets the skill level.
func WithSkillLevel(s SkillLevel) ProfileOption {
	return func(p *PlayerProfile) { p.SkillLevel = Some(s) }
}

// WithBallFlight sets the typical ball flight.
func WithBallFlight(b BallFlight) ProfileOption {
	return func(p *PlayerProfile) { p.BallFlight = Some(b) }
}

// WithYearsPlaying sets the years of experience. Negative values are ignored.
func WithYearsPlaying(years int) ProfileOption {
	return func(p *PlayerProfile) {
		if years >= 0 {
			p.YearsPlaying = Some(years)
		}
	}
}

// WithBudgetRange sets the budget bucket.
func WithBudgetRange(b BudgetRange) ProfileOption {
	return func(p *PlayerProfile) { p.BudgetRange = Some(b) }
}

// Empty reports whether no attribute is known.
func (p PlayerProfile) Empty() bool {
	return !p.Handicap.Present() &&
		!p.SwingSpeedMph.Present() &&
		!p.SkillLevel.Present() &&
		!p.BallFlight.Present() &&
		!p.YearsPlaying.Present() &&
		!p.BudgetRange.Present()
}
