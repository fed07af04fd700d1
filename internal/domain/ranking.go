package domain

import (
	"fmt"
	"math"
	"slices"
)

// Weights are the fixed per-dimension weights of the composite score.
// Redundancy is applied to (100 - redundancy) because lower is better.
type Weights struct {
	Density        float64
	Redundancy     float64
	TitleRelevance float64
	Originality    float64
}

// DefaultWeights returns the production weighting.
func DefaultWeights() Weights {
	return Weights{Density: 0.30, Redundancy: 0.25, TitleRelevance: 0.20, Originality: 0.25}
}

// Composite combines four dimension scores into one. The value is rounded to
// two decimals so that equal inputs always compare equal regardless of the
// order floating point terms were summed in.
func (w Weights) Composite(density, redundancy, titleRelevance, originality int) float64 {
	v := float64(density)*w.Density +
		float64(100-redundancy)*w.Redundancy +
		float64(titleRelevance)*w.TitleRelevance +
		float64(originality)*w.Originality
	return math.Round(v*100) / 100
}

// Tier is the recommendation derived from an item's rank.
type Tier string

const (
	TierBestChoice      Tier = "best choice"
	TierGoodAlternative Tier = "good alternative"
	TierConsiderIfNeed  Tier = "consider only if needed"
)

// TierForRank maps a 1-based rank onto its recommendation tier.
func TierForRank(rank int) Tier {
	switch rank {
	case 1:
		return TierBestChoice
	case 2:
		return TierGoodAlternative
	default:
		return TierConsiderIfNeed
	}
}

// RankedItem is the final, immutable record of one item.
type RankedItem struct {
	Item           Item           `json:"item"`
	Density        AnalyzerResult `json:"density"`
	Redundancy     AnalyzerResult `json:"redundancy"`
	TitleRelevance AnalyzerResult `json:"title_relevance"`
	Originality    AnalyzerResult `json:"originality"`
	Composite      float64        `json:"composite_score"`
	Rank           int            `json:"rank"`
	Tier           Tier           `json:"recommendation"`
}

// Degraded reports whether any of the four dimensions is a fallback.
func (r RankedItem) Degraded() bool {
	return r.Density.Failed || r.Redundancy.Failed || r.TitleRelevance.Failed || r.Originality.Failed
}

// Rank merges Stage1 and Stage2 results into ranked items. Items are sorted by
// composite score descending; ties keep input order. Ranks are dense and
// 1-based. Any dimension missing from the inputs is filled with its canonical
// fallback so every output carries all four scores.
//
// Rank is pure: identical inputs yield identical output.
func Rank(partials []PartialAnalysis, originality map[string]AnalyzerResult, w Weights) []RankedItem {
	ranked := make([]RankedItem, 0, len(partials))
	for _, p := range partials {
		ri := RankedItem{
			Item:           p.Item,
			Density:        resultOrFallback(p.Results, DimensionDensity),
			Redundancy:     resultOrFallback(p.Results, DimensionRedundancy),
			TitleRelevance: resultOrFallback(p.Results, DimensionTitleRelevance),
		}
		if o, ok := originality[p.Item.ID]; ok {
			ri.Originality = o
		} else {
			ri.Originality = OriginalityFallback()
		}
		ri.Composite = w.Composite(ri.Density.Score, ri.Redundancy.Score, ri.TitleRelevance.Score, ri.Originality.Score)
		ranked = append(ranked, ri)
	}

	slices.SortStableFunc(ranked, func(a, b RankedItem) int {
		switch {
		case a.Composite > b.Composite:
			return -1
		case a.Composite < b.Composite:
			return 1
		default:
			return 0
		}
	})

	for i := range ranked {
		ranked[i].Rank = i + 1
		ranked[i].Tier = TierForRank(i + 1)
	}
	return ranked
}

func resultOrFallback(results map[Dimension]AnalyzerResult, d Dimension) AnalyzerResult {
	if r, ok := results[d]; ok {
		return r
	}
	fb, _ := FallbackFor(d)
	return fb
}

const summaryTitleLimit = 50

// Summarize produces the one-paragraph run summary naming the item count, the
// top item's title and its density and originality scores.
func Summarize(ranked []RankedItem) string {
	if len(ranked) == 0 {
		return "No items were analyzed."
	}
	best := ranked[0]
	noun := "items"
	if len(ranked) == 1 {
		noun = "item"
	}
	return fmt.Sprintf("Analyzed %d %s. Top recommendation: %q with density score %d/100 and originality score %d/100.",
		len(ranked), noun, truncateRunes(best.Item.Title, summaryTitleLimit),
		best.Density.Score, best.Originality.Score)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
