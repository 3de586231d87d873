package scoring_test

import (
	"errors"
	"testing"

	model "github.com/okian/fairway/internal/domain/model"
	scoring "github.com/okian/fairway/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func reviewBy(id string, rating float64, profile *model.PlayerProfile) model.ResolvedReview {
	r := model.ResolvedReview{Review: model.Review{ID: id, ItemID: "item-a", Rating: rating}}
	if profile != nil {
		r.ProfileRef = model.Some(profile.ID)
		r.Profile = model.Some(*profile)
	}
	return r
}

func handicapper(id string, h float64) *model.PlayerProfile {
	p := model.NewPlayerProfile(id, model.WithHandicap(h))
	return &p
}

func TestAggregator_Aggregate(t *testing.T) {
	Convey("Given an aggregator with default weights", t, func() {
		agg := scoring.NewAggregator(nil)
		user := model.NewPlayerProfile("user", model.WithHandicap(14.0), model.WithSwingSpeed(92))

		Convey("When the review set is empty", func() {
			got, err := agg.Aggregate(nil, user)

			Convey("Then there is no evidence and a zero mean", func() {
				So(err, ShouldBeNil)
				So(got.EvidenceCount, ShouldEqual, 0)
				So(got.WeightedMeanRating, ShouldEqual, 0)
			})
		})

		Convey("When reviewers have different handicaps", func() {
			reviews := []model.ResolvedReview{
				reviewBy("r1", 4.0, handicapper("p1", 13.0)),
				reviewBy("r2", 5.0, handicapper("p2", 30.0)),
				reviewBy("r3", 3.0, handicapper("p3", 14.5)),
				reviewBy("r4", 4.5, handicapper("p4", 12.0)),
			}
			got, err := agg.Aggregate(reviews, user)

			Convey("Then similar reviewers dominate the mean", func() {
				So(err, ShouldBeNil)
				So(got.EvidenceCount, ShouldEqual, 4)

				w := []float64{
					scoring.Weight(1.0 / 5.0),
					scoring.Weight(16.0 / 5.0),
					scoring.Weight(0.5 / 5.0),
					scoring.Weight(2.0 / 5.0),
				}
				ratings := []float64{4.0, 5.0, 3.0, 4.5}
				var num, den float64
				for i := range w {
					num += w[i] * ratings[i]
					den += w[i]
				}
				So(got.WeightedMeanRating, ShouldAlmostEqual, num/den, 1e-9)
				So(got.WeightedMeanRating, ShouldBeLessThan, 4.125)
			})
		})

		Convey("When a review has no linked profile", func() {
			anonymous := reviewBy("anon", 1.0, nil)
			far := reviewBy("far", 5.0, &model.PlayerProfile{ID: "nothing-known"})
			got, err := agg.Aggregate([]model.ResolvedReview{anonymous, far}, user)

			Convey("Then it is kept at the maximum distance weight", func() {
				So(err, ShouldBeNil)
				So(got.EvidenceCount, ShouldEqual, 2)
				So(got.WeightedMeanRating, ShouldAlmostEqual, 3.0, 1e-12)
			})
		})

		Convey("When a profile reference no longer resolves", func() {
			dangling := model.ResolvedReview{Review: model.Review{
				ID: "r-dangling", ItemID: "item-a", Rating: 2.0, ProfileRef: model.Some("deleted-profile"),
			}}
			got, err := agg.Aggregate([]model.ResolvedReview{dangling}, user)

			Convey("Then the review still counts", func() {
				So(err, ShouldBeNil)
				So(got.EvidenceCount, ShouldEqual, 1)
				So(got.WeightedMeanRating, ShouldEqual, 2.0)
			})
		})

		Convey("When a rating is out of range", func() {
			for _, bad := range []float64{5.01, -0.1} {
				reviews := []model.ResolvedReview{
					reviewBy("ok", 4.0, handicapper("p1", 13.0)),
					reviewBy("bad", bad, handicapper("p2", 14.0)),
				}
				got, err := agg.Aggregate(reviews, user)

				So(errors.Is(err, scoring.ErrInvalidReviewData), ShouldBeTrue)
				So(errors.Is(err, model.ErrInvalidRating), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, `"bad"`)
				So(got, ShouldResemble, scoring.WeightedAggregate{})
			}
		})

		Convey("When ratings sit exactly on the bounds", func() {
			reviews := []model.ResolvedReview{
				reviewBy("low", 0.0, handicapper("p1", 14.0)),
				reviewBy("high", 5.0, handicapper("p2", 14.0)),
			}
			got, err := agg.Aggregate(reviews, user)

			Convey("Then they are accepted", func() {
				So(err, ShouldBeNil)
				So(got.WeightedMeanRating, ShouldAlmostEqual, 2.5, 1e-12)
			})
		})
	})
}
