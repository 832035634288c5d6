// Package embedding defines the canonical embed-text formula and the
// Provider interface used to turn that text into vectors.
package embedding

import "strings"

// StrategyVersion is an opaque marker that, when changed, forces
// regeneration of every namespace keyed on it. Bump this whenever EmbedText's formula changes.
const StrategyVersion = "1.1"

// Model and Dimensions are the declared constants for the strategy's
// default embedding backend.
const (
	Model      = "text-embedding-3-small"
	Dimensions = 1536
)

// embeddable is the minimal shape EmbedText needs from an Episode, kept
// narrow so callers building a user-activity vector at request time (not
// just pre-computed episode embeddings) can reuse the same function.
type embeddable struct {
	Title      string
	KeyInsight string
}

// EmbedText generates the canonical embedding input for an episode:
// "{title}. {key_insight}", with no truncation. When both are empty (the
// formula collapses to a bare "."), it returns a fixed placeholder. This
// formula must stay identical for episode
// embeddings and user-vector text — changing it requires bumping
// StrategyVersion.
func EmbedText(title, keyInsight string) string {
	e := embeddable{Title: title, KeyInsight: keyInsight}
	text := strings.TrimSpace(e.Title + ". " + e.KeyInsight)
	if text == "" || text == "." {
		if e.Title != "" {
			return e.Title
		}
		return "Untitled episode"
	}
	return text
}
