package usecase

import (
	"sort"

	"PaperDigest/internal/domain"
)

// Select ranks candidates by cached score, descending, and returns the first
// quota articles whose ids are absent from seen. An unscored candidate ranks
// with an effective score of zero: it sinks below scored work but stays
// eligible. Ties keep the input order, which FilterRecent has already
// arranged newest first, so equal scores prefer the more recent article.
func Select(candidates []domain.Article, scores map[string]int, seen map[string]struct{}, quota int) []domain.Article {
	ranked := make([]domain.Article, len(candidates))
	copy(ranked, candidates)

	sort.SliceStable(ranked, func(i, j int) bool {
		return effectiveScore(ranked[i], scores) > effectiveScore(ranked[j], scores)
	})

	selected := make([]domain.Article, 0, quota)
	for _, article := range ranked {
		if article.ID == "" {
			continue
		}
		if _, published := seen[article.ID]; published {
			continue
		}
		selected = append(selected, article)
		if len(selected) == quota {
			break
		}
	}
	return selected
}

func effectiveScore(article domain.Article, scores map[string]int) int {
	if score, ok := scores[article.ID]; ok {
		return score
	}
	return 0
}
