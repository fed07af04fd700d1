package analyzers

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/ahrav/go-vidrank/internal/domain"
	"github.com/ahrav/go-vidrank/internal/ports"
)

const (
	redundancyMaxChars    = 12000
	redundancyTruncMarker = "\n[... truncated ...]"
	redundancyExamples    = 3
	exampleMaxChars       = 100
	reportedFillers       = 5
	noRedundancyExample   = "No significant redundancy detected"

	// Near-duplicate detection.
	duplicateSimilarity = 0.9
	minSentenceWords    = 6
	chunkWords          = 12
	maxSentenceWords    = 40
	maxComparedSegments = 400
)

var fillerPatterns = compileFillers(
	`don'?t forget to (like|subscribe|hit)`,
	`hit that (bell|notification|like)`,
	`before we (begin|start|dive|get started)`,
	`let me know in the comments`,
	`without further ado`,
	`make sure (to|you) (subscribe|like)`,
	`if you enjoy(ed)? this`,
	`smash that like`,
	`welcome back to (my|the|this) channel`,
	`hey (guys|everyone|folks)`,
	`what'?s up (guys|everyone|folks)`,
	`in today'?s video`,
	`so yeah`,
	`you know what I mean`,
	`like I said`,
	`as I mentioned`,
)

func compileFillers(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

var sentenceEnd = regexp.MustCompile(`[.!?]+\s+|\n+`)

const redundancySystem = `You are a content quality analyst. Analyze the transcript for redundant or low-value content.

Identify:
1. REPETITION - Same concepts explained multiple times without adding new information
2. TANGENTS - Off-topic content unrelated to the video title
3. FILLER - Generic statements that don't add value (beyond obvious social media calls-to-action)

For each issue found, provide:
- type: "REPETITION" | "TANGENT" | "FILLER"
- example: A brief quote or description
- impact: "LOW" | "MEDIUM" | "HIGH"

Return JSON:
{
    "issues": [
        {"type": "...", "example": "...", "impact": "..."}
    ],
    "repetition_percentage": <estimated % of content that is repeated>,
    "tangent_percentage": <estimated % that is off-topic>,
    "filler_percentage": <estimated % that is filler>,
    "summary": "Brief assessment of content quality"
}

Be fair - some repetition for emphasis is acceptable. Focus on excessive or unnecessary redundancy.`

const redundancyPrompt = `Analyze this transcript for redundancy and filler content.

Video Title: {{.Title}}
Duration: {{fixed .Minutes}} minutes

Transcript:
{{.Transcript}}

Identify redundant content. Return valid JSON only.`

type redundancyIssue struct {
	Type    string `json:"type"`
	Example string `json:"example"`
	Impact  string `json:"impact"`
}

type redundancyResponse struct {
	Issues               []redundancyIssue `json:"issues"`
	RepetitionPercentage *float64          `json:"repetition_percentage" validate:"required,min=0,max=100"`
	TangentPercentage    *float64          `json:"tangent_percentage" validate:"required,min=0,max=100"`
	FillerPercentage     *float64          `json:"filler_percentage" validate:"required,min=0,max=100"`
	Summary              string            `json:"summary"`
}

func (r *redundancyResponse) fill() {
	zero := 0.0
	for _, p := range []**float64{&r.RepetitionPercentage, &r.TangentPercentage, &r.FillerPercentage} {
		if *p == nil {
			*p = &zero
		}
	}
}

// Redundancy scores filler, repetition and tangents. Lower scores are better.
// The model's estimates are combined with regex filler detection and a
// near-duplicate sentence measure computed locally.
type Redundancy struct {
	caller
}

var _ ports.Analyzer = (*Redundancy)(nil)

// NewRedundancy creates the redundancy analyzer.
func NewRedundancy(client ports.LLMClient, opts Options) (*Redundancy, error) {
	c, err := newCaller("redundancy", client, redundancySystem, redundancyPrompt, opts)
	if err != nil {
		return nil, err
	}
	return &Redundancy{caller: c}, nil
}

// Dimension implements ports.Analyzer.
func (r *Redundancy) Dimension() domain.Dimension { return domain.DimensionRedundancy }

// Analyze implements ports.Analyzer.
func (r *Redundancy) Analyze(ctx context.Context, item domain.Item) (domain.AnalyzerResult, error) {
	words := len(strings.Fields(item.Transcript))
	fillers := FindFillers(item.Transcript)

	transcript := item.Transcript
	if truncated := truncateRunes(transcript, redundancyMaxChars); len(truncated) < len(transcript) {
		transcript = truncated + redundancyTruncMarker
	}

	var resp redundancyResponse
	err := r.completeJSON(ctx, struct {
		Title      string
		Minutes    float64
		Transcript string
	}{item.Title, item.DurationMinutes(), transcript}, &resp, resp.fill)
	if err != nil {
		return domain.AnalyzerResult{}, err
	}

	regexPct := float64(len(fillers)) / max(float64(words)/10, 1) * 5
	filler := min(100, *resp.FillerPercentage+regexPct)
	repetition := max(*resp.RepetitionPercentage, duplicateShare(item.Transcript))
	tangent := *resp.TangentPercentage
	score := min(100, int(repetition*0.4+tangent*0.3+filler*0.3))

	examples := make([]string, 0, redundancyExamples)
	for _, issue := range resp.Issues {
		if len(examples) == redundancyExamples {
			break
		}
		if ex := strings.TrimSpace(issue.Example); ex != "" {
			examples = append(examples, truncateRunes(ex, exampleMaxChars))
		}
	}
	if len(examples) == 0 {
		examples = append(examples, noRedundancyExample)
	}

	if len(fillers) > reportedFillers {
		fillers = fillers[:reportedFillers]
	}

	r.opts.Logger.Debug("redundancy analyzed", "item_id", item.ID, "score", score,
		"repetition", repetition, "filler", filler)

	return domain.AnalyzerResult{
		Dimension: domain.DimensionRedundancy,
		Score:     score,
		Redundancy: &domain.RedundancyDetail{
			FillerPercentage:     round(filler, 1),
			RepetitionPercentage: round(repetition, 1),
			TangentPercentage:    round(tangent, 1),
			Examples:             examples,
			RegexFillers:         nonNil(fillers),
		},
	}, nil
}

// FindFillers returns every filler phrase matched in transcript, grouped by
// pattern in declaration order.
func FindFillers(transcript string) []string {
	var found []string
	for _, re := range fillerPatterns {
		found = append(found, re.FindAllString(transcript, -1)...)
	}
	return found
}

// duplicateShare returns the percentage of transcript segments that nearly
// repeat an earlier segment.
func duplicateShare(transcript string) float64 {
	segs := segments(transcript)
	if len(segs) < 2 {
		return 0
	}

	dups := 0
	for i := 1; i < len(segs); i++ {
		for j := 0; j < i; j++ {
			if similar(segs[i], segs[j]) {
				dups++
				break
			}
		}
	}
	return float64(dups) / float64(len(segs)) * 100
}

// segments splits transcript into folded sentences of at least
// minSentenceWords words. Unpunctuated runs are cut into fixed-size chunks.
func segments(transcript string) []string {
	// A Caser is stateful and cannot be shared between goroutines.
	fold := cases.Fold()
	var out []string
	for _, sentence := range sentenceEnd.Split(transcript, -1) {
		words := strings.Fields(fold.String(norm.NFKC.String(sentence)))
		if len(words) > maxSentenceWords {
			for start := 0; start < len(words); start += chunkWords {
				end := min(start+chunkWords, len(words))
				if end-start >= minSentenceWords {
					out = append(out, strings.Join(words[start:end], " "))
				}
			}
			continue
		}
		if len(words) >= minSentenceWords {
			out = append(out, strings.Join(words, " "))
		}
		if len(out) >= maxComparedSegments {
			break
		}
	}
	if len(out) > maxComparedSegments {
		out = out[:maxComparedSegments]
	}
	return out
}

func similar(a, b string) bool {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := max(la, lb)
	if longest == 0 {
		return true
	}
	// The distance is at least the length difference.
	if float64(abs(la-lb))/float64(longest) > 1-duplicateSimilarity {
		return false
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1-float64(dist)/float64(longest) >= duplicateSimilarity
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
