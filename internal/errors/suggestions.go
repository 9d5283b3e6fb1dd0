// Package errors provides enhanced error messages with suggestions.
package errors

import (
	"fmt"
	"sort"
	"strings"
)

// SuggestiveError is an error that includes suggestions for fixing the problem.
type SuggestiveError struct {
	Message     string
	Suggestions []string
	HelpCommand string
}

func (e *SuggestiveError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nDid you mean one of these?\n")
		for _, s := range e.Suggestions {
			b.WriteString("  ")
			b.WriteString(s)
			b.WriteString("\n")
		}
	}

	if e.HelpCommand != "" {
		b.WriteString("\nRun '")
		b.WriteString(e.HelpCommand)
		b.WriteString("' for more information.")
	}

	return b.String()
}

// InvalidChoiceError creates an error for a value that is not one of the
// accepted choices. Close matches are offered first; hint is appended when
// nothing is close enough.
func InvalidChoiceError(setting, value string, choices []string, hint string) error {
	similar := findSimilar(value, choices, 3)
	if len(similar) == 0 && hint != "" {
		similar = []string{hint}
	}
	return &SuggestiveError{
		Message:     fmt.Sprintf("invalid %s %q", setting, value),
		Suggestions: similar,
	}
}

// MissingSettingError creates an error for a required configuration value
// that was not provided by flag, environment or config file.
func MissingSettingError(key, flag, env string) error {
	return &SuggestiveError{
		Message: fmt.Sprintf("%s is required", key),
		Suggestions: []string{
			fmt.Sprintf("Flag:        %s <value>", flag),
			fmt.Sprintf("Environment: %s=<value>", env),
			fmt.Sprintf("Config file: %s: <value>", key),
		},
		HelpCommand: "watchman init",
	}
}

// MissingFlagError creates an error for a missing required flag.
func MissingFlagError(flag, description string, examples []string) error {
	return &SuggestiveError{
		Message:     fmt.Sprintf("%s is required", flag),
		Suggestions: examples,
	}
}

// findSimilar finds strings similar to target using Levenshtein distance.
func findSimilar(target string, candidates []string, maxDistance int) []string {
	type match struct {
		value    string
		distance int
	}

	var matches []match
	targetLower := strings.ToLower(target)

	for _, c := range candidates {
		cLower := strings.ToLower(c)
		d := levenshtein(targetLower, cLower)
		if d <= maxDistance {
			matches = append(matches, match{value: c, distance: d})
		}
	}

	// Closest first
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].distance < matches[j].distance
	})

	var result []string
	for i := 0; i < len(matches) && i < 3; i++ {
		result = append(result, matches[i].value)
	}

	return result
}

// levenshtein calculates the Levenshtein distance between two strings.
func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

func min3(a, b, c int) int {
	if a < b {
		if a < c {
			return a
		}
		return c
	}
	if b < c {
		return b
	}
	return c
}
