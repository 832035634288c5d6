package ranking

import "github.com/serafis/podreco/internal/model"

// Badges derives up to two presentation badges from an episode's scores
//. A score
// of 3 or higher on the matching dimension earns its badge; badges beyond
// the first two are dropped, insight and credibility taking priority as
// in the source ordering.
func Badges(ep model.Episode) []string {
	var badges []string
	if ep.Scores.Insight >= 3 {
		badges = append(badges, model.BadgeHighInsight)
	}
	if ep.Scores.Credibility >= 3 {
		badges = append(badges, model.BadgeHighCredibility)
	}
	if ep.Scores.Information >= 3 {
		badges = append(badges, model.BadgeDataRich)
	}
	if ep.Scores.Entertainment >= 3 {
		badges = append(badges, model.BadgeEngaging)
	}
	if len(badges) > 2 {
		badges = badges[:2]
	}
	return badges
}
