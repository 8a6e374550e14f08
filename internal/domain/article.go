package domain

import "time"

// DayFormat is the canonical calendar-day layout used by snapshots and state files.
const DayFormat = "2006-01-02"

// Article is a core entity describing one scientific publication. The JSON
// shape is the on-disk snapshot record.
type Article struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Abstract  string   `json:"abstract"`
	Authors   []string `json:"authors"`
	Published string   `json:"published"`
	Journal   string   `json:"journal"`
	URL       string   `json:"url"`
	Score     *int     `json:"score,omitempty"`
	Summary   *Summary `json:"summary,omitempty"`
}

// PublishedDay parses the normalized publication date. The second return is
// false when the date is absent or not a full calendar day.
func (a Article) PublishedDay() (time.Time, bool) {
	day, err := time.Parse(DayFormat, a.Published)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

// Scored reports whether a relevance score is attached.
func (a Article) Scored() bool {
	return a.Score != nil
}

// Summary is the structured digest produced by the summary oracle.
type Summary struct {
	LocalizedTitle string `json:"localized_title"`
	ToolType       string `json:"tool_type"`
	Design         string `json:"design"`
	Functions      string `json:"functions"`
	KeyResults     string `json:"key_results"`
}

// Empty reports whether every summary field is blank.
func (s Summary) Empty() bool {
	return s.LocalizedTitle == "" && s.ToolType == "" && s.Design == "" &&
		s.Functions == "" && s.KeyResults == ""
}
