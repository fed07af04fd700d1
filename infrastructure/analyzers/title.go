package analyzers

import (
	"context"
	"strings"

	"github.com/ahrav/go-vidrank/internal/domain"
	"github.com/ahrav/go-vidrank/internal/ports"
)

const (
	titlePreviewWords  = 500
	titleEdgeWords     = 200
	titleSummaryChars  = 2000
	clickbaitScoreCap  = 40
	defaultTitleFactor = 50.0
)

const titleSystem = `You are a content accuracy analyst. Your job is to assess how well a video's content matches its title.

Evaluate:
1. RELEVANCE - Does the content actually cover what the title promises?
2. COMPLETENESS - Is the topic fully addressed or just touched on?
3. CLICKBAIT - Is the title sensationalized or misleading?

Scoring:
- 90-100: Title perfectly matches content
- 70-89: Title mostly accurate with minor omissions
- 50-69: Title partially accurate, some misleading elements
- 30-49: Title is misleading or only briefly covers the topic
- 0-29: Title is clickbait or completely unrelated

Return JSON:
{
    "relevance_score": <0-100>,
    "completeness_score": <0-100>,
    "is_clickbait": <true/false>,
    "clickbait_indicators": ["list", "of", "issues"],
    "title_promise": "What the title implies",
    "content_delivery": "What was actually delivered",
    "explanation": "2-3 sentence explanation"
}`

const titlePrompt = `Analyze how well this video's content matches its title.

Video Title: {{.Title}}

Content Summary (from transcript):
{{.Summary}}

First 500 words of transcript:
{{.Preview}}

Does the content deliver on the title's promise? Return valid JSON only.`

type titleResponse struct {
	RelevanceScore      *float64 `json:"relevance_score" validate:"required,min=0,max=100"`
	CompletenessScore   *float64 `json:"completeness_score" validate:"required,min=0,max=100"`
	IsClickbait         bool     `json:"is_clickbait"`
	ClickbaitIndicators []string `json:"clickbait_indicators"`
	TitlePromise        string   `json:"title_promise"`
	ContentDelivery     string   `json:"content_delivery"`
	Explanation         string   `json:"explanation"`
}

func (r *titleResponse) fill() {
	def := defaultTitleFactor
	if r.RelevanceScore == nil {
		r.RelevanceScore = &def
	}
	if r.CompletenessScore == nil {
		r.CompletenessScore = &def
	}
}

// TitleRelevance scores how well an item delivers on its title and flags
// clickbait.
type TitleRelevance struct {
	caller
}

var _ ports.Analyzer = (*TitleRelevance)(nil)

// NewTitleRelevance creates the title-relevance analyzer.
func NewTitleRelevance(client ports.LLMClient, opts Options) (*TitleRelevance, error) {
	c, err := newCaller("title_relevance", client, titleSystem, titlePrompt, opts)
	if err != nil {
		return nil, err
	}
	return &TitleRelevance{caller: c}, nil
}

// Dimension implements ports.Analyzer.
func (t *TitleRelevance) Dimension() domain.Dimension { return domain.DimensionTitleRelevance }

// Analyze implements ports.Analyzer. The summary is built from the head and
// tail of the transcript.
func (t *TitleRelevance) Analyze(ctx context.Context, item domain.Item) (domain.AnalyzerResult, error) {
	return t.analyzeWithSummary(ctx, item, "")
}

// analyzeWithSummary scores the item against a precomputed content summary.
// An empty summary falls back to the transcript head and tail.
func (t *TitleRelevance) analyzeWithSummary(ctx context.Context, item domain.Item, summary string) (domain.AnalyzerResult, error) {
	words := strings.Fields(item.Transcript)
	if summary == "" {
		summary = edgeSummary(words)
	}

	var resp titleResponse
	err := t.completeJSON(ctx, struct {
		Title   string
		Summary string
		Preview string
	}{item.Title, truncateRunes(summary, titleSummaryChars), joinFirst(words, titlePreviewWords)}, &resp, resp.fill)
	if err != nil {
		return domain.AnalyzerResult{}, err
	}

	score := int(*resp.RelevanceScore*0.6 + *resp.CompletenessScore*0.4)
	if resp.IsClickbait {
		score = min(score, clickbaitScoreCap)
	}

	t.opts.Logger.Debug("title analyzed", "item_id", item.ID, "score", score, "clickbait", resp.IsClickbait)

	return domain.AnalyzerResult{
		Dimension: domain.DimensionTitleRelevance,
		Score:     score,
		Title: &domain.TitleDetail{
			IsClickbait:         resp.IsClickbait,
			Explanation:         resp.Explanation,
			ClickbaitIndicators: resp.ClickbaitIndicators,
		},
	}, nil
}

// edgeSummary stands in for a content summary: the first words, plus the
// last words when they do not overlap the first.
func edgeSummary(words []string) string {
	first := joinFirst(words, titleEdgeWords)
	last := ""
	if len(words) > 2*titleEdgeWords {
		last = strings.Join(words[len(words)-titleEdgeWords:], " ")
	}
	return "Beginning: " + first + "\n\nEnding: " + last
}

func joinFirst(words []string, n int) string {
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
