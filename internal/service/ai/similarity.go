package ai

import (
	"math"
	"sort"
	"strings"

	"github.com/jiralite/api/internal/domain"
)

const (
	duplicateWindow    = 50
	duplicateThreshold = 0.5
	maxDuplicates      = 3
)

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = struct{}{}
	}
	return set
}

// titleSimilarity is word-overlap similarity: shared words over the larger
// word set. Two empty titles score zero.
func titleSimilarity(a, b string) float64 {
	wordsA := wordSet(a)
	wordsB := wordSet(b)
	if len(wordsA) == 0 && len(wordsB) == 0 {
		return 0
	}
	overlap := 0
	for w := range wordsA {
		if _, ok := wordsB[w]; ok {
			overlap++
		}
	}
	larger := len(wordsA)
	if len(wordsB) > larger {
		larger = len(wordsB)
	}
	return float64(overlap) / float64(larger)
}

// FindDuplicates scores title against up to 50 candidates and returns at
// most the 3 closest matches strictly above the 50% threshold, as rounded
// percentages.
func FindDuplicates(title string, candidates []domain.IssueRef) []domain.SimilarIssue {
	if len(candidates) > duplicateWindow {
		candidates = candidates[:duplicateWindow]
	}
	similar := make([]domain.SimilarIssue, 0)
	for _, c := range candidates {
		score := titleSimilarity(title, c.Title)
		if score > duplicateThreshold {
			similar = append(similar, domain.SimilarIssue{
				ID:         c.ID,
				Title:      c.Title,
				Similarity: math.Round(score*10000) / 100,
			})
		}
	}
	sort.SliceStable(similar, func(i, j int) bool {
		return similar[i].Similarity > similar[j].Similarity
	})
	if len(similar) > maxDuplicates {
		similar = similar[:maxDuplicates]
	}
	return similar
}
