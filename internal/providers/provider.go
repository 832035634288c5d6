// Package providers implements the Episode Provider collaborator: a file-backed implementation holding the full catalog in RAM, and a
// document-store-backed implementation over modernc.org/sqlite for
// deployments that paginate rather than load everything at once.
package providers

import (
	"context"
	"errors"

	"github.com/serafis/podreco/internal/model"
)

// ErrEpisodeNotFound is returned by GetEpisode when neither id nor
// content_id matches.
var ErrEpisodeNotFound = errors.New("providers: episode not found")

// Query narrows GetEpisodes. A non-empty EpisodeIDs takes precedence over
// the other fields.
type Query struct {
	Limit      int
	Offset     int
	Since      *int64 // unix seconds, inclusive
	Until      *int64 // unix seconds, inclusive
	EpisodeIDs []string
}

// EpisodeProvider is the read contract over the episode catalog.
type EpisodeProvider interface {
	// GetEpisodes returns episodes newest-first, or exactly the episodes
	// named by Query.EpisodeIDs when set (order irrelevant in that case).
	GetEpisodes(ctx context.Context, q Query) ([]model.Episode, error)
	// GetEpisode resolves either an id or a content_id.
	GetEpisode(ctx context.Context, idOrContentID string) (model.Episode, error)
	// GetEpisodeByContentIDMap returns every episode that declares a
	// content_id, keyed by it.
	GetEpisodeByContentIDMap(ctx context.Context) (map[string]model.Episode, error)
}
