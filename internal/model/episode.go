// Package model defines the core data types shared across the recommendation
// pipeline: episodes, embeddings, engagements, configuration, and sessions.
package model

import "time"

// EpisodeScores holds the four 0-4 quality signals a provider attaches to
// an episode. A missing or null Credibility is treated as 0 per spec.
type EpisodeScores struct {
	Credibility   int `json:"credibility"`
	Insight       int `json:"insight"`
	Information   int `json:"information"`
	Entertainment int `json:"entertainment"`
}

// EpisodeSeries identifies the show/series an episode belongs to, used for
// diversity constraints. Episodes with no series share the zero value,
// which the diversity selector treats as its own anonymous bucket.
type EpisodeSeries struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// EpisodeCategories holds the category taxonomy for an episode.
// Major[0], when present, is the primary category used for cold-start
// bucketing.
type EpisodeCategories struct {
	Major         []string `json:"major"`
	Subcategories []string `json:"subcategories,omitempty"`
}

// Episode is a single podcast episode as seen by the ranking pipeline.
// Providers are responsible for mapping their own storage shape onto this
// struct; nothing downstream of the Episode Provider interface knows about
// any other representation.
type Episode struct {
	ID          string            `json:"id"`
	ContentID   string            `json:"content_id,omitempty"`
	Title       string            `json:"title"`
	PublishedAt time.Time         `json:"published_at"`
	Scores      EpisodeScores     `json:"scores"`
	Series      EpisodeSeries     `json:"series"`
	Categories  EpisodeCategories `json:"categories"`
	KeyInsight  string            `json:"key_insight,omitempty"`
}

// PrimaryCategory returns the first major category, or "" if the episode
// has none.
func (e Episode) PrimaryCategory() string {
	if len(e.Categories.Major) == 0 {
		return ""
	}
	return e.Categories.Major[0]
}

// CombinedScore is credibility + insight, the Stage A combined-floor input.
// The quality numerator weights credibility by the credibility multiplier
// instead (see scoreutil.QualityScore).
func (e Episode) CombinedScore() int {
	return e.Scores.Credibility + e.Scores.Insight
}

// ResolutionIDs returns the id and, if present, the content id — the pair
// used everywhere an "id or content_id" lookup/exclusion check applies.
func (e Episode) ResolutionIDs() []string {
	if e.ContentID == "" || e.ContentID == e.ID {
		return []string{e.ID}
	}
	return []string{e.ID, e.ContentID}
}

// Badge names derived from an episode's scores.
const (
	BadgeHighInsight     = "high_insight"
	BadgeHighCredibility = "high_credibility"
	BadgeDataRich        = "data_rich"
	BadgeEngaging        = "engaging"
)

// ScoredEpisode pairs an Episode with the scores computed for it during a
// single ranking pass, plus any derived presentation data.
type ScoredEpisode struct {
	Episode         Episode  `json:"episode"`
	SimilarityScore float64  `json:"similarity_score"`
	QualityScore    float64  `json:"quality_score"`
	RecencyScore    float64  `json:"recency_score"`
	FinalScore      float64  `json:"final_score"`
	Badges          []string `json:"badges,omitempty"`
	QueuePosition   int      `json:"queue_position"`
}
