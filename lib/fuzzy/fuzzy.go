// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

// Package fuzzy wraps fzf's own fuzzy matcher for vmctl's "ps --pick"
// operator flow, the same role the teacher's lib/tui.FuzzyMatch plays
// for its ticket picker (lib/ticketui/fuzzy.go delegates to it). vmd's
// pack copy did not retain lib/tui's FuzzyMatch source itself, so this
// package re-derives the thin wrapper directly against fzf's
// algo.FuzzyMatchV2 rather than depending on an unavailable teacher
// helper.
package fuzzy

import (
	"sort"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

// Match is one candidate string scored against a pattern.
type Match struct {
	Text  string
	Score int
	Start int
	End   int
}

// Rank fuzzy-matches pattern against every candidate, dropping
// non-matches, and returns the matches sorted best-first.
func Rank(candidates []string, pattern string) []Match {
	if pattern == "" {
		out := make([]Match, len(candidates))
		for i, c := range candidates {
			out[i] = Match{Text: c, Start: -1, End: -1}
		}
		return out
	}

	runes := []rune(pattern)
	slab := util.MakeSlab(100*1024, 2048)
	var matches []Match
	for _, candidate := range candidates {
		chars := util.RunesToChars([]rune(candidate))
		result, _ := algo.FuzzyMatchV2(false, true, true, &chars, runes, false, slab)
		if result.Start < 0 {
			continue
		}
		matches = append(matches, Match{Text: candidate, Score: result.Score, Start: result.Start, End: result.End})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	return matches
}
