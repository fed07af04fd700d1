package analyzers

import (
	"context"
	"errors"
	"math"

	"github.com/ahrav/go-vidrank/internal/domain"
	"github.com/ahrav/go-vidrank/internal/ports"
)

const defaultOriginality = 50.0

// ErrTooFewItems is returned when fewer than two items are compared.
var ErrTooFewItems = errors.New("comparison needs at least two items")

const originalitySystem = `You are a content comparison analyst. Compare multiple video summaries to identify which offers the most unique and original perspectives.

For each video, assess:
1. UNIQUE_ASPECTS - What insights/perspectives does this video offer that others don't?
2. COMMON_CONTENT - What content is shared across multiple videos?
3. ORIGINALITY_SCORE - How original is this video compared to the others? (0-100)

Consider:
- Unique examples or case studies
- Novel explanations or analogies
- Different angles on the topic
- Depth vs breadth of coverage

Return JSON:
{
    "videos": [
        {
            "video_id": "...",
            "originality_score": <0-100>,
            "unique_aspects": ["list of unique points"],
            "common_with_others": ["points shared with other videos"],
            "standout_reason": "Why this video stands out (or doesn't)"
        }
    ],
    "most_original": "<video_id of most original>",
    "comparison_summary": "Brief summary of how videos compare"
}`

const originalityPrompt = `Compare these videos for originality. All cover similar topics.
{{range $i, $v := .}}
Video {{add $i 1}}:
- ID: {{$v.ID}}
- Title: {{$v.Title}}
- Summary: {{if $v.Summary}}{{truncate $v.Summary 500}}{{else}}{{truncate (words $v.Transcript 300) 500}}{{end}}...
{{end}}
Which video offers the most original perspective? Return valid JSON only.`

type comparedVideo struct {
	VideoID          string   `json:"video_id"`
	OriginalityScore *float64 `json:"originality_score"`
	UniqueAspects    []string `json:"unique_aspects"`
	CommonWithOthers []string `json:"common_with_others"`
	StandoutReason   string   `json:"standout_reason"`
}

type comparisonResponse struct {
	Videos            []comparedVideo `json:"videos" validate:"required"`
	MostOriginal      string          `json:"most_original"`
	ComparisonSummary string          `json:"comparison_summary"`
}

// Comparator judges the originality of every item against the others in a
// single model call. Entries for unknown ids are ignored, and out-of-range
// scores are passed through for the engine to reject.
type Comparator struct {
	caller
}

var _ ports.Comparator = (*Comparator)(nil)

// NewComparator creates the originality comparator.
func NewComparator(client ports.LLMClient, opts Options) (*Comparator, error) {
	c, err := newCaller("originality", client, originalitySystem, originalityPrompt, opts)
	if err != nil {
		return nil, err
	}
	return &Comparator{caller: c}, nil
}

// Compare implements ports.Comparator.
func (c *Comparator) Compare(ctx context.Context, inputs []domain.ComparisonInput) (domain.ComparisonReport, error) {
	if len(inputs) < 2 {
		return domain.ComparisonReport{}, ErrTooFewItems
	}

	known := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		known[in.ID] = true
	}

	// Items without a summary fall back to the transcript head in the prompt.
	var resp comparisonResponse
	if err := c.completeJSON(ctx, inputs, &resp, nil); err != nil {
		return domain.ComparisonReport{}, err
	}

	report := domain.ComparisonReport{
		Results: make(map[string]domain.AnalyzerResult, len(resp.Videos)),
		Summary: resp.ComparisonSummary,
	}
	for _, v := range resp.Videos {
		if !known[v.VideoID] {
			c.opts.Logger.Debug("ignoring comparison for unknown item", "item_id", v.VideoID)
			continue
		}
		report.Results[v.VideoID] = domain.AnalyzerResult{
			Dimension: domain.DimensionOriginality,
			Score:     int(math.Round(orDefault(v.OriginalityScore, defaultOriginality))),
			Originality: &domain.OriginalityDetail{
				UniqueAspects:    nonNil(v.UniqueAspects),
				CommonWithOthers: nonNil(v.CommonWithOthers),
				StandoutReason:   v.StandoutReason,
			},
		}
	}
	if known[resp.MostOriginal] {
		report.MostOriginal = resp.MostOriginal
	}

	c.opts.Logger.Debug("comparison complete", "items", len(inputs), "scored", len(report.Results),
		"most_original", report.MostOriginal)
	return report, nil
}
