// Package domain holds the core types of the ranking engine: items, per-dimension
// analyzer results, the ranked output, and the error taxonomy shared by every
// stage. Nothing in this package performs I/O.
package domain

import (
	"strings"
)

// Dimension names one independent scoring axis.
type Dimension string

const (
	// DimensionDensity scores how much useful information an item carries per minute.
	DimensionDensity Dimension = "density"

	// DimensionRedundancy scores filler, repetition and tangents. Lower is better.
	DimensionRedundancy Dimension = "redundancy"

	// DimensionTitleRelevance scores how well an item delivers on its title.
	DimensionTitleRelevance Dimension = "title_relevance"

	// DimensionOriginality scores an item relative to every other item in the run.
	// It is only produced by the cross-item comparator.
	DimensionOriginality Dimension = "originality"
)

// StageOneDimensions returns the per-item dimensions analyzed before the barrier,
// in the order results are reported.
func StageOneDimensions() []Dimension {
	return []Dimension{DimensionDensity, DimensionRedundancy, DimensionTitleRelevance}
}

// ParseDimension maps a wire name onto a Dimension. "title" is accepted as an
// alias for title relevance.
func ParseDimension(s string) (Dimension, error) {
	switch Dimension(strings.ToLower(strings.TrimSpace(s))) {
	case DimensionDensity:
		return DimensionDensity, nil
	case DimensionRedundancy:
		return DimensionRedundancy, nil
	case DimensionTitleRelevance, "title":
		return DimensionTitleRelevance, nil
	case DimensionOriginality:
		return DimensionOriginality, nil
	default:
		return "", ErrUnknownDimension
	}
}

// Item is one content record being scored. Items are created by the fetch
// source before orchestration starts and are never mutated afterwards.
type Item struct {
	// ID uniquely identifies the item within a run.
	ID string `json:"id"`

	// Locator is the external reference the item was fetched from.
	Locator string `json:"locator,omitempty"`

	Title           string `json:"title"`
	DurationSeconds int    `json:"duration_seconds"`
	ThumbnailURL    string `json:"thumbnail_url,omitempty"`

	// Transcript is the raw content analyzed by every dimension.
	Transcript string `json:"-"`

	// WordCount is the number of whitespace separated words in Transcript.
	WordCount int `json:"word_count"`
}

// NewItem builds an Item and derives its word count from the transcript.
func NewItem(id, title string, durationSeconds int, transcript string) Item {
	return Item{
		ID:              id,
		Title:           title,
		DurationSeconds: durationSeconds,
		Transcript:      transcript,
		WordCount:       len(strings.Fields(transcript)),
	}
}

// DurationMinutes returns the item duration in minutes, floored at half a
// minute so per-minute rates stay finite for very short or unknown durations.
func (i Item) DurationMinutes() float64 {
	return max(float64(i.DurationSeconds)/60, 0.5)
}

// ComparisonInput is the view of one surviving item handed to the comparator.
type ComparisonInput struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Transcript string `json:"-"`

	// Summary is the optional precomputed summary, usually the density summary.
	Summary string `json:"summary,omitempty"`
}
