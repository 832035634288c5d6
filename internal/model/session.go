package model

import (
	"time"

	"github.com/serafis/podreco/internal/config"
)

// Session is a recommendation session with its pre-computed ranked queue.
// The queue is built once at CreateSession and never re-ranked; LoadMore and
// Engage only mutate the index/id sets below.
type Session struct {
	SessionID          string
	Queue              []ScoredEpisode
	ShownIndices       map[int]struct{}
	EngagedIDs         map[string]struct{}
	ExcludedIDs        map[string]struct{}
	CreatedAt          time.Time
	LastAccessedAt     time.Time
	ColdStart          bool
	UserVectorEpisodes int
	Config             config.RecommendationConfig
}

// ShownCount returns how many queue entries have been returned to the caller
// so far across all LoadMore calls.
func (s *Session) ShownCount() int {
	return len(s.ShownIndices)
}

// Exhausted reports whether every entry in the queue has been shown.
func (s *Session) Exhausted() bool {
	return len(s.ShownIndices) >= len(s.Queue)
}
