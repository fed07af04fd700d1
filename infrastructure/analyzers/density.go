package analyzers

import (
	"context"
	"sort"

	"github.com/ahrav/go-vidrank/internal/domain"
	"github.com/ahrav/go-vidrank/internal/ports"
)

const (
	densityMaxChars     = 15000
	densityTruncMarker  = "\n[... transcript truncated ...]"
	densityKeyFacts     = 5
	highValueImportance = 2
)

const densitySystem = `You are an expert content analyst. Your task is to extract key information from video transcripts and assess information density.

Analyze the transcript and identify:
1. KEY FACTS - Specific, verifiable pieces of information
2. CONCEPTS - Ideas or topics that are explained in depth
3. INSIGHTS - Actionable advice or unique perspectives

For each item, rate its importance (1-3):
- 1 = Basic/common knowledge
- 2 = Useful information
- 3 = High-value insight or unique perspective

Return your analysis as JSON with this exact structure:
{
    "facts": [
        {"text": "brief description", "category": "FACT|CONCEPT|INSIGHT", "importance": 1-3}
    ],
    "total_count": <number>,
    "high_value_count": <count of items with importance >= 2>,
    "summary": "2-3 sentence summary of key takeaways"
}

Be thorough but avoid counting filler content, greetings, or promotional material as facts.`

const densityPrompt = `Analyze this video transcript for information density.

Video Title: {{.Title}}
Duration: {{fixed .Minutes}} minutes
Word Count: {{.WordCount}} words

Transcript:
{{.Transcript}}

Extract all key facts, concepts, and insights. Return valid JSON only.`

type densityFact struct {
	Text       string  `json:"text"`
	Category   string  `json:"category"`
	Importance float64 `json:"importance" validate:"min=1,max=3"`
}

type densityResponse struct {
	Facts          []densityFact `json:"facts" validate:"dive"`
	TotalCount     *float64      `json:"total_count" validate:"required,min=0"`
	HighValueCount *float64      `json:"high_value_count" validate:"required,min=0"`
	Summary        string        `json:"summary"`
}

// fill clamps importances and derives missing counts from the fact list.
func (r *densityResponse) fill() {
	high := 0
	for i := range r.Facts {
		r.Facts[i].Importance = max(1, min(3, r.Facts[i].Importance))
		if r.Facts[i].Importance >= highValueImportance {
			high++
		}
	}
	if r.TotalCount == nil {
		n := float64(len(r.Facts))
		r.TotalCount = &n
	}
	if r.HighValueCount == nil {
		h := float64(high)
		r.HighValueCount = &h
	}
}

// Density scores how much information an item delivers per minute.
type Density struct {
	caller
}

var _ ports.Analyzer = (*Density)(nil)

// NewDensity creates the density analyzer.
func NewDensity(client ports.LLMClient, opts Options) (*Density, error) {
	c, err := newCaller("density", client, densitySystem, densityPrompt, opts)
	if err != nil {
		return nil, err
	}
	return &Density{caller: c}, nil
}

// Dimension implements ports.Analyzer.
func (d *Density) Dimension() domain.Dimension { return domain.DimensionDensity }

// Analyze implements ports.Analyzer.
func (d *Density) Analyze(ctx context.Context, item domain.Item) (domain.AnalyzerResult, error) {
	minutes := item.DurationMinutes()

	transcript := item.Transcript
	if truncated := truncateRunes(transcript, densityMaxChars); len(truncated) < len(transcript) {
		d.opts.Logger.Debug("transcript truncated", "analyzer", d.name, "item_id", item.ID, "chars", len(transcript))
		transcript = truncated + densityTruncMarker
	}

	var resp densityResponse
	err := d.completeJSON(ctx, struct {
		Title      string
		Minutes    float64
		WordCount  int
		Transcript string
	}{item.Title, minutes, item.WordCount, transcript}, &resp, resp.fill)
	if err != nil {
		return domain.AnalyzerResult{}, err
	}

	total := int(*resp.TotalCount)
	high := int(*resp.HighValueCount)
	ipm := round(float64(total)/minutes, 2)
	score := min(100, int(min(100, ipm*20)+float64(high)/float64(max(total, 1))*20))

	facts := make([]densityFact, len(resp.Facts))
	copy(facts, resp.Facts)
	sort.SliceStable(facts, func(i, j int) bool { return facts[i].Importance > facts[j].Importance })
	keyFacts := make([]string, 0, densityKeyFacts)
	for _, f := range facts {
		if len(keyFacts) == densityKeyFacts {
			break
		}
		keyFacts = append(keyFacts, f.Text)
	}

	d.opts.Logger.Debug("density analyzed", "item_id", item.ID, "score", score, "facts", total, "insights_per_minute", ipm)

	return domain.AnalyzerResult{
		Dimension: domain.DimensionDensity,
		Score:     score,
		Density: &domain.DensityDetail{
			FactsCount:        total,
			InsightsPerMinute: ipm,
			KeyFacts:          keyFacts,
			Summary:           resp.Summary,
		},
	}, nil
}
