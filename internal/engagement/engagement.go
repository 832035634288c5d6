// Package engagement implements the Engagement Store collaborator
//: an in-memory implementation for tests and small
// deployments, and a Postgres-backed implementation with buffered writes
// for production use.
package engagement

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/serafis/podreco/internal/model"
)

// ErrNotFound is returned by DeleteEngagement when the named engagement
// does not exist for the user.
var ErrNotFound = errors.New("engagement: not found")

// maxStoredEngagementsForRanking caps how many persisted engagements
// GetEngagementsForRanking returns, cap 500").
const maxStoredEngagementsForRanking = 500

// Store is the read/write contract over engagement history.
type Store interface {
	// GetEngagementsForRanking returns the user's persisted engagements
	// (newest-first, capped) when userID is non-empty; otherwise it
	// returns requestEngagements verbatim.
	GetEngagementsForRanking(ctx context.Context, userID string, requestEngagements []model.Engagement) ([]model.Engagement, error)
	// RecordEngagement persists one engagement. No-op if userID is empty.
	RecordEngagement(ctx context.Context, userID string, e model.Engagement) error
	// DeleteEngagement removes one engagement by its opaque ID, returning
	// false if it didn't exist for the user.
	DeleteEngagement(ctx context.Context, userID, engagementID string) (bool, error)
	// DeleteAllEngagements removes every persisted engagement for the
	// user — a bulk-reset endpoint for clearing a listener's history.
	DeleteAllEngagements(ctx context.Context, userID string) error
}

// sortNewestFirst orders engagements by timestamp descending, matching
// GetEngagementsForRanking's and GetEngagementsForRanking's contract.
func sortNewestFirst(engagements []model.Engagement) {
	sort.SliceStable(engagements, func(i, j int) bool {
		return engagements[i].Timestamp.After(engagements[j].Timestamp)
	})
}

func resolveForRanking(userID string, requestEngagements, stored []model.Engagement) []model.Engagement {
	if userID == "" {
		return requestEngagements
	}
	out := make([]model.Engagement, len(stored))
	copy(out, stored)
	sortNewestFirst(out)
	if len(out) > maxStoredEngagementsForRanking {
		out = out[:maxStoredEngagementsForRanking]
	}
	return out
}

// stampTimestamp fills in Timestamp with now when the caller didn't
// provide one, mirroring record_engagement's optional `timestamp` param.
func stampTimestamp(e model.Engagement, now time.Time) model.Engagement {
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	return e
}
