package ranking

import (
	"log/slog"

	"github.com/serafis/podreco/internal/scoreutil"
)

// neutralSimilarity is returned whenever no real signal is available.
// An alternative such as 0.0 or the population mean could work instead;
// 0.5 is used here and not revisited.
const neutralSimilarity = 0.5

// ResolveSimilarity implements the three-step similarity resolution
// order. similarityByID is the map returned by an ANN query, or nil when
// no vector store query ran for this request.
func ResolveSimilarity(episodeID, contentID string, similarityByID map[string]float64, userVector []float32, embeddingsByEpisodeID map[string][]float32, logger *slog.Logger) float64 {
	if similarityByID != nil {
		if sim, ok := lookupByIDOrContentID(similarityByID, episodeID, contentID); ok {
			return scoreutil.Clamp01(sim)
		}
		if logger != nil {
			logger.Warn("similarity missing in ANN query results", "episode_id", episodeID, "content_id", contentID)
		}
		return neutralSimilarity
	}

	if userVector == nil {
		// Case 1: no engagements, no category anchor — no semantic signal.
		return neutralSimilarity
	}

	episodeVector, ok := lookupVectorByIDOrContentID(embeddingsByEpisodeID, episodeID, contentID)
	if !ok {
		if logger != nil {
			logger.Warn("episode embedding missing for similarity resolution", "episode_id", episodeID, "content_id", contentID)
		}
		return neutralSimilarity
	}

	return scoreutil.Clamp01(scoreutil.CosineSimilarity(userVector, episodeVector))
}

func lookupByIDOrContentID(m map[string]float64, id, contentID string) (float64, bool) {
	if v, ok := m[id]; ok {
		return v, true
	}
	if contentID != "" {
		if v, ok := m[contentID]; ok {
			return v, true
		}
	}
	return 0, false
}

func lookupVectorByIDOrContentID(m map[string][]float32, id, contentID string) ([]float32, bool) {
	if v, ok := m[id]; ok && len(v) > 0 {
		return v, true
	}
	if contentID != "" {
		if v, ok := m[contentID]; ok && len(v) > 0 {
			return v, true
		}
	}
	return nil, false
}
