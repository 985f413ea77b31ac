package recommender

import (
	"math"
	"sort"

	"basegraph.app/assist/core/config"
	"basegraph.app/assist/internal/model"
)

// Rank scores candidates as a weighted sum of relevance, success rate and a usage
// signal, and returns the best count of them. Equal scores are ordered by usage count,
// then by id, so the same input always yields the same order.
func Rank(candidates []model.CandidateScript, w config.RankingPolicy, count int) []model.RankedScript {
	var maxUsage int64
	for _, c := range candidates {
		maxUsage = max(maxUsage, c.UsageCount)
	}

	ranked := make([]model.RankedScript, len(candidates))
	for i, c := range candidates {
		ranked[i] = model.RankedScript{
			CandidateScript: c,
			Score: w.Relevance*model.Clamp01(c.Relevance) +
				w.SuccessRate*model.Clamp01(c.SuccessRate) +
				w.Usage*usageSignal(c.UsageCount, maxUsage),
		}
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		x, y := ranked[a], ranked[b]
		if x.Score != y.Score {
			return x.Score > y.Score
		}
		if x.UsageCount != y.UsageCount {
			return x.UsageCount > y.UsageCount
		}
		return x.ID < y.ID
	})

	if count > 0 && len(ranked) > count {
		ranked = ranked[:count]
	}
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

func usageSignal(usage, maxUsage int64) float64 {
	if usage <= 0 || maxUsage <= 0 {
		return 0
	}
	return math.Log1p(float64(usage)) / math.Log1p(float64(maxUsage))
}
