package loadgen

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

const sourceName = "loadgen"

var (
	skillLevels = []string{"Beginner", "Intermediate", "Advanced", "Professional"}
	ballFlights = []string{"Draw", "Fade", "Straight", "Hook", "Slice"}
	budgets     = []string{"under-300", "300-500", "500-1000", "1000-2000", "over-2000"}
)

// generator builds submissions from a fixed pool of synthetic reviewers so
// that reviewers recur across clubs.
type generator struct {
	rng       *rand.Rand
	clubIDs   []string
	reviewers []Reviewer
	runID     string
}

func newGenerator(seed uint64, clubIDs []string, runID string) *generator {
	g := &generator{
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		clubIDs: clubIDs,
		runID:   runID,
	}
	for i := range 25 {
		g.reviewers = append(g.reviewers, g.reviewer(i))
	}
	return g
}

func (g *generator) reviewer(i int) Reviewer {
	skill := g.rng.IntN(len(skillLevels))
	// Handicaps shrink with skill: beginners around 28, professionals around 0.
	handicap := math.Round((28-float64(skill)*9+g.rng.NormFloat64()*3)*10) / 10
	profile := map[string]any{
		"handicap":        handicap,
		"swing_speed_mph": 80 + skill*10 + g.rng.IntN(10),
		"skill_level":     skillLevels[skill],
		"ball_flight":     ballFlights[g.rng.IntN(len(ballFlights))],
	}
	// Sources rarely expose everything.
	if g.rng.IntN(3) == 0 {
		delete(profile, "swing_speed_mph")
	}
	if g.rng.IntN(2) == 0 {
		profile["budget_range"] = budgets[g.rng.IntN(len(budgets))]
	}
	return Reviewer{
		ExternalID:  fmt.Sprintf("%s-golfer-%02d", g.runID, i),
		DisplayName: fmt.Sprintf("Load Golfer %02d", i),
		Profile:     profile,
	}
}

// submission returns the i-th submission. Every tenth one is anonymous.
func (g *generator) submission(i int) Submission {
	rating := math.Round((2.5+g.rng.Float64()*2.5)*2) / 2
	s := Submission{
		Source:           sourceName,
		ExternalReviewID: fmt.Sprintf("%s-%06d", g.runID, i),
		ClubID:           g.clubIDs[g.rng.IntN(len(g.clubIDs))],
		Rating:           rating,
		ReviewedAt:       time.Now().UTC().Add(-time.Duration(g.rng.IntN(365*24)) * time.Hour).Truncate(time.Second),
	}
	if i%10 != 9 {
		r := g.reviewers[g.rng.IntN(len(g.reviewers))]
		s.Reviewer = &r
	}
	return s
}

func (g *generator) generate(n int) []Submission {
	out := make([]Submission, n)
	for i := range out {
		out[i] = g.submission(i)
	}
	return out
}
