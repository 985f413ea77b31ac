package recommender_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/assist/core/config"
	"basegraph.app/assist/internal/model"
	"basegraph.app/assist/internal/recommender"
)

var _ = Describe("Rank", func() {
	weights := config.DefaultPolicy().Ranking

	It("orders by composite score", func() {
		ranked := recommender.Rank([]model.CandidateScript{
			{ID: "low", Relevance: 0.2, SuccessRate: 0.2},
			{ID: "high", Relevance: 0.9, SuccessRate: 0.8, UsageCount: 10},
			{ID: "mid", Relevance: 0.6, SuccessRate: 0.5, UsageCount: 3},
		}, weights, 0)

		Expect(ranked).To(HaveLen(3))
		Expect([]string{ranked[0].ID, ranked[1].ID, ranked[2].ID}).To(Equal([]string{"high", "mid", "low"}))
		Expect(ranked[0].Score).To(BeNumerically("~", 0.6*0.9+0.3*0.8+0.1*1.0, 1e-9))
		Expect(ranked[0].Rank).To(Equal(1))
	})

	It("breaks ties by usage count, then id", func() {
		candidates := []model.CandidateScript{
			{ID: "c", Relevance: 0.5},
			{ID: "a", Relevance: 0.5},
			{ID: "b", Relevance: 0.5},
		}
		zeroUsage := config.RankingPolicy{Relevance: 1}

		ranked := recommender.Rank(candidates, zeroUsage, 0)
		Expect([]string{ranked[0].ID, ranked[1].ID, ranked[2].ID}).To(Equal([]string{"a", "b", "c"}))

		candidates[2].UsageCount = 7
		ranked = recommender.Rank(candidates, zeroUsage, 0)
		Expect(ranked[0].ID).To(Equal("b"))
	})

	It("is stable across repeated calls and truncates to count", func() {
		candidates := []model.CandidateScript{
			{ID: "x", Relevance: 0.7, UsageCount: 1},
			{ID: "y", Relevance: 0.7, UsageCount: 1},
			{ID: "z", Relevance: 0.9},
		}
		first := recommender.Rank(candidates, weights, 2)
		for range 5 {
			Expect(recommender.Rank(candidates, weights, 2)).To(Equal(first))
		}
		Expect(first).To(HaveLen(2))
	})

	It("scores non-finite signals as zero", func() {
		ranked := recommender.Rank([]model.CandidateScript{
			{ID: "nan", Relevance: math.NaN(), SuccessRate: math.Inf(1)},
			{ID: "ok", Relevance: 0.1},
		}, weights, 0)

		Expect([]string{ranked[0].ID, ranked[1].ID}).To(Equal([]string{"ok", "nan"}))
		Expect(ranked[1].Score).To(BeZero())
	})
})
