package domain

import (
	"fmt"
)

// Notes and explanations carried by canonical fallback results.
const (
	// SingleItemNote marks the originality result of a run with exactly one item.
	SingleItemNote = "no comparison available"

	// AnalysisFailedExplanation is the title-relevance explanation used when
	// the analyzer could not produce a result.
	AnalysisFailedExplanation = "Analysis failed"
)

// DensityDetail is the dimension-specific payload of a density result.
type DensityDetail struct {
	FactsCount        int      `json:"facts_count"`
	InsightsPerMinute float64  `json:"insights_per_minute"`
	KeyFacts          []string `json:"key_facts"`
	Summary           string   `json:"summary"`
}

// RedundancyDetail is the dimension-specific payload of a redundancy result.
type RedundancyDetail struct {
	FillerPercentage     float64  `json:"filler_percentage"`
	RepetitionPercentage float64  `json:"repetition_percentage"`
	TangentPercentage    float64  `json:"tangent_percentage"`
	Examples             []string `json:"examples"`
	RegexFillers         []string `json:"regex_fillers,omitempty"`
}

// TitleDetail is the dimension-specific payload of a title-relevance result.
type TitleDetail struct {
	IsClickbait         bool     `json:"is_clickbait"`
	Explanation         string   `json:"explanation"`
	ClickbaitIndicators []string `json:"clickbait_indicators,omitempty"`
}

// OriginalityDetail is the dimension-specific payload of a comparison result.
type OriginalityDetail struct {
	UniqueAspects    []string `json:"unique_aspects"`
	CommonWithOthers []string `json:"common_with_others"`
	StandoutReason   string   `json:"standout_reason,omitempty"`
	Note             string   `json:"note,omitempty"`
}

// AnalyzerResult is the output of one analyzer for one item along one
// dimension. Exactly one detail pointer is set and it matches Dimension.
// Results are values and are never mutated once produced.
type AnalyzerResult struct {
	Dimension Dimension `json:"dimension"`

	// Score is bounded to [0, 100].
	Score int `json:"score"`

	// Failed is true when the result is a canonical fallback rather than a
	// genuine analyzer output.
	Failed bool `json:"failed"`

	Density     *DensityDetail     `json:"density,omitempty"`
	Redundancy  *RedundancyDetail  `json:"redundancy,omitempty"`
	Title       *TitleDetail       `json:"title,omitempty"`
	Originality *OriginalityDetail `json:"originality,omitempty"`
}

// Validate reports whether the result is structurally complete: the score is
// in range and the detail payload matches the dimension.
func (r AnalyzerResult) Validate() error {
	verr := NewValidationError(fmt.Sprintf("%s result", r.Dimension))
	if r.Score < 0 || r.Score > 100 {
		verr.AddError(fmt.Sprintf("score %d out of range [0,100]", r.Score))
	}

	var hasDetail bool
	switch r.Dimension {
	case DimensionDensity:
		hasDetail = r.Density != nil
	case DimensionRedundancy:
		hasDetail = r.Redundancy != nil
	case DimensionTitleRelevance:
		hasDetail = r.Title != nil
	case DimensionOriginality:
		hasDetail = r.Originality != nil
	default:
		verr.AddError("unknown dimension")
	}
	if r.Dimension != "" && !hasDetail {
		verr.AddError("missing detail payload")
	}

	if verr.HasErrors() {
		return fmt.Errorf("%w: %w", ErrInvalidResult, verr)
	}
	return nil
}

// DensityFallback is the canonical density result used when the analyzer is exhausted.
func DensityFallback() AnalyzerResult {
	return AnalyzerResult{
		Dimension: DimensionDensity,
		Score:     0,
		Failed:    true,
		Density:   &DensityDetail{KeyFacts: []string{}, Summary: ""},
	}
}

// RedundancyFallback is the canonical redundancy result used when the analyzer is exhausted.
func RedundancyFallback() AnalyzerResult {
	return AnalyzerResult{
		Dimension: DimensionRedundancy,
		Score:     0,
		Failed:    true,
		Redundancy: &RedundancyDetail{
			FillerPercentage:     10.0,
			RepetitionPercentage: 15.0,
			Examples:             []string{},
		},
	}
}

// TitleFallback is the canonical title-relevance result used when the analyzer is exhausted.
func TitleFallback() AnalyzerResult {
	return AnalyzerResult{
		Dimension: DimensionTitleRelevance,
		Score:     0,
		Failed:    true,
		Title:     &TitleDetail{IsClickbait: false, Explanation: AnalysisFailedExplanation},
	}
}

// SingleItemOriginality is assigned when a run has exactly one surviving item.
// The comparator is never invoked in that case, so the result is not a failure.
func SingleItemOriginality() AnalyzerResult {
	return AnalyzerResult{
		Dimension: DimensionOriginality,
		Score:     100,
		Originality: &OriginalityDetail{
			UniqueAspects:    []string{},
			CommonWithOthers: []string{},
			Note:             SingleItemNote,
		},
	}
}

// OriginalityFallback is assigned to an item the comparator omitted, or to
// every item when the comparator is exhausted.
func OriginalityFallback() AnalyzerResult {
	return AnalyzerResult{
		Dimension: DimensionOriginality,
		Score:     50,
		Failed:    true,
		Originality: &OriginalityDetail{
			UniqueAspects:    []string{},
			CommonWithOthers: []string{},
		},
	}
}

// FallbackFor returns the canonical fallback of a dimension. Originality
// returns the multi-item fallback.
func FallbackFor(d Dimension) (AnalyzerResult, error) {
	switch d {
	case DimensionDensity:
		return DensityFallback(), nil
	case DimensionRedundancy:
		return RedundancyFallback(), nil
	case DimensionTitleRelevance:
		return TitleFallback(), nil
	case DimensionOriginality:
		return OriginalityFallback(), nil
	default:
		return AnalyzerResult{}, fmt.Errorf("%w: %q", ErrUnknownDimension, d)
	}
}

// PartialAnalysis aggregates every Stage1 result of one item. Every
// Stage1 dimension has an entry, genuine or fallback.
type PartialAnalysis struct {
	Item    Item                         `json:"item"`
	Results map[Dimension]AnalyzerResult `json:"results"`
}

// Result returns the result recorded for d.
func (p PartialAnalysis) Result(d Dimension) (AnalyzerResult, bool) {
	r, ok := p.Results[d]
	return r, ok
}

// Degraded reports whether any recorded result is a fallback.
func (p PartialAnalysis) Degraded() bool {
	for _, r := range p.Results {
		if r.Failed {
			return true
		}
	}
	return false
}

// Summary returns the density summary, which feeds the comparator.
func (p PartialAnalysis) Summary() string {
	if r, ok := p.Results[DimensionDensity]; ok && r.Density != nil {
		return r.Density.Summary
	}
	return ""
}

// ComparisonReport is the full payload returned by the comparator: one
// originality result per item it is confident about, plus run-level notes.
type ComparisonReport struct {
	Results      map[string]AnalyzerResult `json:"results"`
	MostOriginal string                    `json:"most_original,omitempty"`
	Summary      string                    `json:"comparison_summary,omitempty"`
}
