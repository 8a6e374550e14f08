package usecase

import (
	"fmt"
	"strings"
	"time"

	"PaperDigest/internal/domain"
)

// digestTitleLimit caps how many titles the notification quotes.
const digestTitleLimit = 5

// BuildDigest renders the notification subject and body for a day's
// selection. An empty selection still produces a message, so operators can
// tell "ran, nothing qualified" from "did not run".
func BuildDigest(siteTitle string, day time.Time, articles []domain.Article, siteURL string) (string, string) {
	date := day.Format(domain.DayFormat)

	if len(articles) == 0 {
		subject := fmt.Sprintf("%s %s: no new papers", siteTitle, date)
		body := "No articles passed selection today."
		if siteURL != "" {
			body += "\n\n" + siteURL
		}
		return subject, body
	}

	subject := fmt.Sprintf("%s %s: %d new papers", siteTitle, date, len(articles))

	var b strings.Builder
	for i, article := range articles {
		if i == digestTitleLimit {
			fmt.Fprintf(&b, "and %d more\n", len(articles)-digestTitleLimit)
			break
		}
		if article.Score != nil {
			fmt.Fprintf(&b, "- %s (score %d)\n", article.Title, *article.Score)
		} else {
			fmt.Fprintf(&b, "- %s\n", article.Title)
		}
	}
	if siteURL != "" {
		fmt.Fprintf(&b, "\nRead: %s", siteURL)
	}

	return subject, strings.TrimRight(b.String(), "\n")
}
