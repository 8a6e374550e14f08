package usecase

import (
	"sort"
	"time"

	"PaperDigest/internal/domain"
)

// FilterRecent keeps articles whose publication date parses as a full
// calendar day inside the trailing window ending at day, both bounds
// inclusive. Articles with missing or unparseable dates cannot prove recency
// and are dropped. Survivors come back newest first; articles sharing a date
// keep their input order.
func FilterRecent(articles []domain.Article, day time.Time, windowDays int) []domain.Article {
	// Normalized dates are all YYYY-MM-DD, so string order is date order.
	upper := day.Format(domain.DayFormat)
	lower := day.AddDate(0, 0, -windowDays).Format(domain.DayFormat)

	recent := make([]domain.Article, 0, len(articles))
	for _, article := range articles {
		if _, ok := article.PublishedDay(); !ok {
			continue
		}
		if article.Published < lower || article.Published > upper {
			continue
		}
		recent = append(recent, article)
	}

	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].Published > recent[j].Published
	})
	return recent
}
