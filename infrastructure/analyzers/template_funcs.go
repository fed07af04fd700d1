package analyzers

import (
	"fmt"
	"text/template"
)

// templateFuncs returns the helpers available to every prompt template.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		// add converts 0-based indexes for display: {{add $i 1}}
		"add": func(a, b int) int {
			return a + b
		},

		// truncate cuts s to n runes without a marker: {{truncate .Summary 500}}
		"truncate": truncateRunes,

		// words keeps the first n words of s: {{words .Transcript 300}}
		"words": firstWords,

		// fixed formats f with one decimal: {{fixed .Minutes}}
		"fixed": func(f float64) string {
			return fmt.Sprintf("%.1f", f)
		},
	}
}
