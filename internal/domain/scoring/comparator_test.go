package scoring_test

import (
	"errors"
	"math"
	"testing"

	model "github.com/okian/fairway/internal/domain/model"
	scoring "github.com/okian/fairway/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func sampleProfiles() []model.PlayerProfile {
	return []model.PlayerProfile{
		model.NewPlayerProfile("empty"),
		model.NewPlayerProfile("a", model.WithHandicap(14)),
		model.NewPlayerProfile("b", model.WithHandicap(-4.2), model.WithSwingSpeed(118)),
		model.NewPlayerProfile("c", model.WithSwingSpeed(85), model.WithSkillLevel(model.Beginner)),
		model.NewPlayerProfile("d", model.WithSkillLevel(model.Professional), model.WithBallFlight(model.Draw)),
		model.NewPlayerProfile("e",
			model.WithHandicap(22.7),
			model.WithSwingSpeed(78),
			model.WithSkillLevel(model.Intermediate),
			model.WithBallFlight(model.Slice),
		),
		model.NewPlayerProfile("f", model.WithBallFlight(model.Fade), model.WithYearsPlaying(30)),
	}
}

func TestComparator_Similarity(t *testing.T) {
	Convey("Given a comparator with default weights", t, func() {
		c := scoring.NewComparator()

		Convey("When comparing profiles in both directions", func() {
			profiles := sampleProfiles()

			Convey("Then the distance is symmetric and non-negative", func() {
				for _, a := range profiles {
					for _, b := range profiles {
						So(c.Similarity(a, b), ShouldEqual, c.Similarity(b, a))
						So(c.Similarity(a, b), ShouldBeGreaterThanOrEqualTo, 0)
					}
				}
			})
		})

		Convey("When comparing a profile with itself", func() {
			p := model.NewPlayerProfile("p",
				model.WithHandicap(9.1),
				model.WithSwingSpeed(101),
				model.WithSkillLevel(model.Advanced),
				model.WithBallFlight(model.Straight),
			)

			Convey("Then the distance is zero", func() {
				So(c.Similarity(p, p), ShouldEqual, 0)
			})
		})

		Convey("When each attribute differs on its own", func() {
			base := model.NewPlayerProfile("x", model.WithHandicap(10))

			Convey("Then handicap costs one unit per 5 strokes", func() {
				other := model.NewPlayerProfile("y", model.WithHandicap(20))
				So(c.Similarity(base, other), ShouldAlmostEqual, 2.0, 1e-12)
			})

			Convey("Then swing speed costs one unit per 10 mph", func() {
				a := model.NewPlayerProfile("a", model.WithSwingSpeed(90))
				b := model.NewPlayerProfile("b", model.WithSwingSpeed(105))
				So(c.Similarity(a, b), ShouldAlmostEqual, 1.5, 1e-12)
			})

			Convey("Then adjacent skill levels cost less than distant ones", func() {
				beginner := model.NewPlayerProfile("a", model.WithSkillLevel(model.Beginner))
				intermediate := model.NewPlayerProfile("b", model.WithSkillLevel(model.Intermediate))
				pro := model.NewPlayerProfile("c", model.WithSkillLevel(model.Professional))
				So(c.Similarity(beginner, intermediate), ShouldEqual, scoring.DefaultSkillAdjacent)
				So(c.Similarity(beginner, pro), ShouldEqual, scoring.DefaultSkillDistant)
				So(c.Similarity(beginner, intermediate), ShouldBeLessThan, c.Similarity(beginner, pro))
			})

			Convey("Then a different ball flight costs a fixed amount", func() {
				a := model.NewPlayerProfile("a", model.WithBallFlight(model.Draw))
				b := model.NewPlayerProfile("b", model.WithBallFlight(model.Hook))
				So(c.Similarity(a, b), ShouldEqual, scoring.DefaultBallFlightMismatch)
			})
		})

		Convey("When a stored handicap is not finite", func() {
			user := model.NewPlayerProfile("u", model.WithHandicap(12), model.WithSkillLevel(model.Intermediate))
			broken := model.PlayerProfile{ID: "r", Handicap: model.Some(math.NaN()), SkillLevel: model.Some(model.Intermediate)}
			infinite := model.PlayerProfile{ID: "i", Handicap: model.Some(math.Inf(1))}

			Convey("Then the handicap is skipped and the distance stays finite", func() {
				d := c.Similarity(user, broken)
				So(math.IsNaN(d), ShouldBeFalse)
				So(d, ShouldEqual, 0)
				So(c.Similarity(broken, user), ShouldEqual, d)
				So(c.Similarity(user, infinite), ShouldEqual, c.MaxDistance())
			})
		})

		Convey("When contributions are summed", func() {
			a := model.NewPlayerProfile("a", model.WithHandicap(10), model.WithSwingSpeed(90))
			b := model.NewPlayerProfile("b", model.WithHandicap(15), model.WithSwingSpeed(100))
			onlyHandicap := model.NewPlayerProfile("c", model.WithHandicap(15))

			Convey("Then they are added, not averaged", func() {
				So(c.Similarity(a, b), ShouldAlmostEqual, 2.0, 1e-12)
				So(c.Similarity(a, onlyHandicap), ShouldAlmostEqual, 1.0, 1e-12)
			})
		})

		Convey("When profiles share no known attribute", func() {
			a := model.NewPlayerProfile("a", model.WithHandicap(3))
			b := model.NewPlayerProfile("b", model.WithSwingSpeed(95), model.WithYearsPlaying(4))

			Convey("Then the maximum distance sentinel is returned", func() {
				So(c.Similarity(a, b), ShouldEqual, c.MaxDistance())
				So(c.Similarity(model.NewPlayerProfile("e1"), model.NewPlayerProfile("e2")), ShouldEqual, c.MaxDistance())
			})

			Convey("Then the sentinel exceeds any pair sharing a matching attribute", func() {
				worst := model.NewPlayerProfile("w1",
					model.WithHandicap(-10),
					model.WithSwingSpeed(60),
					model.WithSkillLevel(model.Beginner),
					model.WithBallFlight(model.Draw),
				)
				matchingFlightOnly := model.NewPlayerProfile("w2",
					model.WithHandicap(54),
					model.WithSwingSpeed(130),
					model.WithSkillLevel(model.Professional),
					model.WithBallFlight(model.Draw),
				)
				So(c.Similarity(worst, matchingFlightOnly), ShouldBeLessThan, c.MaxDistance())

				wild := model.NewPlayerProfile("w3", model.WithHandicap(400), model.WithSwingSpeed(900), model.WithSkillLevel(model.Beginner))
				So(c.Similarity(worst, wild), ShouldBeLessThan, c.MaxDistance())
			})
		})
	})
}

func TestComparator_Weights(t *testing.T) {
	Convey("Given alternative weight sets", t, func() {
		Convey("When a valid set is supplied", func() {
			w := scoring.DefaultWeights()
			w.HandicapUnit = 2.5
			c := scoring.NewComparator(scoring.WithWeights(w))

			Convey("Then it drives the distance", func() {
				a := model.NewPlayerProfile("a", model.WithHandicap(10))
				b := model.NewPlayerProfile("b", model.WithHandicap(15))
				So(c.Similarity(a, b), ShouldAlmostEqual, 2.0, 1e-12)
				So(c.Weights().HandicapUnit, ShouldEqual, 2.5)
			})
		})

		Convey("When an invalid set is supplied", func() {
			w := scoring.DefaultWeights()
			w.SwingSpeedUnit = 0
			So(errors.Is(w.Validate(), scoring.ErrInvalidWeights), ShouldBeTrue)

			c := scoring.NewComparator(scoring.WithWeights(w))

			Convey("Then the defaults are kept", func() {
				So(c.Weights(), ShouldResemble, scoring.DefaultWeights())
			})
		})

		Convey("When distant skill costs less than adjacent skill", func() {
			w := scoring.DefaultWeights()
			w.SkillDistant = 0.1
			So(errors.Is(w.Validate(), scoring.ErrInvalidWeights), ShouldBeTrue)
		})
	})
}

func TestWeight(t *testing.T) {
	Convey("Given distances in increasing order", t, func() {
		distances := []float64{0, 0.1, 0.5, 1, 2.5, 10, 21.8}

		Convey("Then weights strictly decrease and stay in (0, 1]", func() {
			So(scoring.Weight(0), ShouldEqual, 1.0)
			for i := 1; i < len(distances); i++ {
				So(scoring.Weight(distances[i]), ShouldBeLessThan, scoring.Weight(distances[i-1]))
				So(scoring.Weight(distances[i]), ShouldBeGreaterThan, 0)
			}
		})
	})
}
