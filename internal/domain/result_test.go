package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalFallbacks(t *testing.T) {
	t.Run("density", func(t *testing.T) {
		r := DensityFallback()
		assert.Equal(t, DimensionDensity, r.Dimension)
		assert.Equal(t, 0, r.Score)
		assert.True(t, r.Failed)
		require.NotNil(t, r.Density)
		assert.Empty(t, r.Density.KeyFacts)
		assert.Empty(t, r.Density.Summary)
	})

	t.Run("redundancy", func(t *testing.T) {
		r := RedundancyFallback()
		assert.Equal(t, 0, r.Score)
		assert.True(t, r.Failed)
		require.NotNil(t, r.Redundancy)
		assert.Equal(t, 10.0, r.Redundancy.FillerPercentage)
		assert.Equal(t, 15.0, r.Redundancy.RepetitionPercentage)
		assert.Empty(t, r.Redundancy.Examples)
	})

	t.Run("title relevance", func(t *testing.T) {
		r := TitleFallback()
		assert.Equal(t, 0, r.Score)
		assert.True(t, r.Failed)
		require.NotNil(t, r.Title)
		assert.False(t, r.Title.IsClickbait)
		assert.Equal(t, "Analysis failed", r.Title.Explanation)
	})

	t.Run("single item originality", func(t *testing.T) {
		r := SingleItemOriginality()
		assert.Equal(t, 100, r.Score)
		assert.False(t, r.Failed)
		require.NotNil(t, r.Originality)
		assert.Equal(t, "no comparison available", r.Originality.Note)
	})

	t.Run("multi item originality", func(t *testing.T) {
		r := OriginalityFallback()
		assert.Equal(t, 50, r.Score)
		assert.True(t, r.Failed)
		require.NotNil(t, r.Originality)
		assert.Empty(t, r.Originality.UniqueAspects)
	})

	t.Run("every fallback validates", func(t *testing.T) {
		for _, d := range append(StageOneDimensions(), DimensionOriginality) {
			r, err := FallbackFor(d)
			require.NoError(t, err)
			assert.NoError(t, r.Validate(), string(d))
		}
		assert.NoError(t, SingleItemOriginality().Validate())
	})

	t.Run("unknown dimension", func(t *testing.T) {
		_, err := FallbackFor("vibes")
		assert.ErrorIs(t, err, ErrUnknownDimension)
	})
}

func TestAnalyzerResult_Validate(t *testing.T) {
	tests := []struct {
		name    string
		result  AnalyzerResult
		wantErr bool
	}{
		{"valid density", AnalyzerResult{Dimension: DimensionDensity, Score: 42, Density: &DensityDetail{}}, false},
		{"score too high", AnalyzerResult{Dimension: DimensionDensity, Score: 101, Density: &DensityDetail{}}, true},
		{"score negative", AnalyzerResult{Dimension: DimensionTitleRelevance, Score: -1, Title: &TitleDetail{}}, true},
		{"missing detail", AnalyzerResult{Dimension: DimensionRedundancy, Score: 5}, true},
		{"mismatched detail", AnalyzerResult{Dimension: DimensionOriginality, Score: 5, Density: &DensityDetail{}}, true},
		{"empty dimension", AnalyzerResult{Score: 5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.result.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidResult))
				var verr *ValidationError
				assert.True(t, errors.As(err, &verr))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestPartialAnalysis(t *testing.T) {
	p := PartialAnalysis{
		Item: Item{ID: "v1"},
		Results: map[Dimension]AnalyzerResult{
			DimensionDensity: {Dimension: DimensionDensity, Score: 70, Density: &DensityDetail{Summary: "key ideas"}},
		},
	}
	assert.False(t, p.Degraded())
	assert.Equal(t, "key ideas", p.Summary())

	_, ok := p.Result(DimensionRedundancy)
	assert.False(t, ok)

	p.Results[DimensionRedundancy] = RedundancyFallback()
	assert.True(t, p.Degraded())
}

func TestParseDimension(t *testing.T) {
	tests := []struct {
		in      string
		want    Dimension
		wantErr bool
	}{
		{"density", DimensionDensity, false},
		{" Redundancy ", DimensionRedundancy, false},
		{"title", DimensionTitleRelevance, false},
		{"title_relevance", DimensionTitleRelevance, false},
		{"originality", DimensionOriginality, false},
		{"speed", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDimension(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownDimension)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestItem(t *testing.T) {
	it := NewItem("abc", "Title", 20, "one two  three\nfour")
	assert.Equal(t, 4, it.WordCount)
	assert.Equal(t, 0.5, it.DurationMinutes())

	it = NewItem("abc", "Title", 600, "")
	assert.Equal(t, 0, it.WordCount)
	assert.Equal(t, 10.0, it.DurationMinutes())
}
