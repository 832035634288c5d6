package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/serafis/podreco/internal/model"
)

// FileProvider holds the full catalog in RAM, loaded once from a JSON file
// of `[]model.Episode`. This is the file-backed provider implementation,
// suited to small or static catalogs.
type FileProvider struct {
	mu          sync.RWMutex
	byID        map[string]model.Episode
	byContentID map[string]model.Episode
	newestFirst []model.Episode
}

// LoadFileProvider reads and indexes the catalog from path.
func LoadFileProvider(path string) (*FileProvider, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("providers: read catalog file %q: %w", path, err)
	}
	var episodes []model.Episode
	if err := json.Unmarshal(raw, &episodes); err != nil {
		return nil, fmt.Errorf("providers: parse catalog file %q: %w", path, err)
	}
	return NewFileProvider(episodes), nil
}

// NewFileProvider indexes an already-loaded catalog slice.
func NewFileProvider(episodes []model.Episode) *FileProvider {
	p := &FileProvider{
		byID:        make(map[string]model.Episode, len(episodes)),
		byContentID: make(map[string]model.Episode, len(episodes)),
	}
	p.reindex(episodes)
	return p
}

// Replace swaps in a new catalog snapshot atomically, for deployments that
// periodically reload from disk.
func (p *FileProvider) Replace(episodes []model.Episode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reindex(episodes)
}

func (p *FileProvider) reindex(episodes []model.Episode) {
	byID := make(map[string]model.Episode, len(episodes))
	byContentID := make(map[string]model.Episode, len(episodes))
	sorted := make([]model.Episode, len(episodes))
	copy(sorted, episodes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PublishedAt.After(sorted[j].PublishedAt) })

	for _, ep := range episodes {
		byID[ep.ID] = ep
		if ep.ContentID != "" {
			byContentID[ep.ContentID] = ep
		}
	}
	p.byID = byID
	p.byContentID = byContentID
	p.newestFirst = sorted
}

func (p *FileProvider) GetEpisodes(ctx context.Context, q Query) ([]model.Episode, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(q.EpisodeIDs) > 0 {
		out := make([]model.Episode, 0, len(q.EpisodeIDs))
		for _, id := range q.EpisodeIDs {
			if ep, ok := p.lookupLocked(id); ok {
				out = append(out, ep)
			}
		}
		return out, nil
	}

	var out []model.Episode
	for _, ep := range p.newestFirst {
		if q.Since != nil && ep.PublishedAt.Unix() < *q.Since {
			continue
		}
		if q.Until != nil && ep.PublishedAt.Unix() > *q.Until {
			continue
		}
		out = append(out, ep)
	}

	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return nil, nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (p *FileProvider) GetEpisode(ctx context.Context, idOrContentID string) (model.Episode, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if ep, ok := p.lookupLocked(idOrContentID); ok {
		return ep, nil
	}
	return model.Episode{}, ErrEpisodeNotFound
}

func (p *FileProvider) lookupLocked(idOrContentID string) (model.Episode, bool) {
	if ep, ok := p.byID[idOrContentID]; ok {
		return ep, true
	}
	ep, ok := p.byContentID[idOrContentID]
	return ep, ok
}

func (p *FileProvider) GetEpisodeByContentIDMap(ctx context.Context) (map[string]model.Episode, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]model.Episode, len(p.byContentID))
	for k, v := range p.byContentID {
		out[k] = v
	}
	return out, nil
}
