package agent

import (
	"encoding/json"
	"regexp"
	"strings"
)

// fencePattern matches a markdown ```json ... ``` or bare ``` ... ``` block.
var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// trailingCommaPattern strips a trailing comma before a closing brace or
// bracket, the most common malformed-JSON artifact in LLM output.
var trailingCommaPattern = regexp.MustCompile(`,(\s*[}\]])`)

// candidate is one balanced JSON object found in free-form text, scored for
// the tie-break rule in extractJSON.
type candidate struct {
	value    map[string]any
	size     int
	hasKey   bool
	startPos int
}

// ExtractJSON is a best-effort parser that tolerates markdown code fences,
// trailing commas, and multiple candidate JSON objects in free-form LLM
// output (extract_json, spec.md §4.4). priorityKey, if non-empty, names a
// key whose presence should win over a merely-larger candidate (e.g.
// "test_cases"). Returns nil, false for unparseable input; it never
// returns an error, since malformed LLM output must not fail the handler.
//
// Tie-break, in order: candidates containing priorityKey win over those
// without it; among the remaining candidates the largest key set wins;
// ties resolve to the first candidate encountered in the source text (see
// DESIGN.md Open Question 1).
func ExtractJSON(text string, priorityKey string) (map[string]any, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}

	if obj, ok := tryParseObject(text); ok {
		return obj, true
	}

	for _, m := range fencePattern.FindAllStringSubmatch(text, -1) {
		if obj, ok := tryParseObject(strings.TrimSpace(m[1])); ok {
			return obj, true
		}
	}

	if obj, ok := extractBalancedCandidates(text, priorityKey); ok {
		return obj, true
	}

	cleaned := trailingCommaPattern.ReplaceAllString(text, "$1")
	if obj, ok := tryParseObject(cleaned); ok {
		return obj, true
	}

	return nil, false
}

func tryParseObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, false
	}
	return obj, true
}

// extractBalancedCandidates scans text for every top-level `{...}` span
// (brace-balanced, string- and escape-aware so braces inside string values
// don't confuse the scan), parses each as JSON, and applies the
// size/priority-key/first-encountered tie-break.
func extractBalancedCandidates(text string, priorityKey string) (map[string]any, bool) {
	var candidates []candidate

	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		span, ok := balancedSpan(text, i)
		if !ok {
			continue
		}
		obj, ok := tryParseObject(span)
		if !ok || len(obj) == 0 {
			continue
		}
		_, hasKey := obj[priorityKey]
		candidates = append(candidates, candidate{
			value:    obj,
			size:     len(obj),
			hasKey:   priorityKey != "" && hasKey,
			startPos: i,
		})
	}

	if len(candidates) == 0 {
		return nil, false
	}

	if priorityKey != "" {
		var withKey []candidate
		for _, c := range candidates {
			if c.hasKey {
				withKey = append(withKey, c)
			}
		}
		if len(withKey) > 0 {
			return bestBySize(withKey).value, true
		}
	}

	return bestBySize(candidates).value, true
}

// bestBySize returns the largest candidate, preferring the first-encountered
// on a size tie (candidates is in ascending startPos order already).
func bestBySize(candidates []candidate) candidate {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.size > best.size {
			best = c
		}
	}
	return best
}

// balancedSpan returns the substring of text starting at the '{' at index
// start and ending at its matching '}', tracking quoted-string and escape
// state so braces inside string values are ignored.
func balancedSpan(text string, start int) (string, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && c == '{':
			depth++
		case !inString && c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
