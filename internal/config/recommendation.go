package config

import (
	"fmt"
	"math"
)

// RecommendationConfig holds the tunable parameters of the ranking
// pipeline: Stage A candidate pre-selection, Stage B blended scoring, and
// the diversity selectors. Unlike Config, this is not read from the
// process environment — callers construct it directly or via FromGroups,
// mirroring the original pipeline's config.json-backed, server-owned
// tunables.
type RecommendationConfig struct {
	// Stage A: candidate pool pre-selection.
	CredibilityFloor   int
	CombinedFloor      int
	FreshnessWindowDays int
	CandidatePoolSize  int

	// Stage B: blended scoring.
	UserVectorLimit int

	// Scoring weights; must sum to 1.0 within epsilon.
	WeightSimilarity float64
	WeightQuality    float64
	WeightRecency    float64

	// Quality scoring.
	CredibilityMultiplier float64
	MaxQualityScore       float64

	// Recency scoring.
	RecencyLambda float64

	// Engagement type weights. Any type not present here defaults to 1.0
	// (see EngagementWeight).
	EngagementWeightBookmark float64
	EngagementWeightClick    float64

	// Category anchor blend: (1-α)*engagement_mean + α*anchor.
	CategoryAnchorWeight float64

	// Series diversity (in-processing selection loop).
	MaxEpisodesPerSeries int
	SeriesPenaltyAlpha   float64
	NoAdjacentSameSeries bool

	// Cold-start category diversity.
	MinPerCategory       int
	ColdStartWindowSize  int
}

// DefaultRecommendationConfig returns the pipeline's baseline tunables,
// matching the original algorithm's DEFAULT_CONFIG.
func DefaultRecommendationConfig() RecommendationConfig {
	return RecommendationConfig{
		CredibilityFloor:         2,
		CombinedFloor:            5,
		FreshnessWindowDays:      90,
		CandidatePoolSize:        150,
		UserVectorLimit:          10,
		WeightSimilarity:         0.55,
		WeightQuality:            0.30,
		WeightRecency:            0.15,
		CredibilityMultiplier:    1.5,
		MaxQualityScore:          10.0,
		RecencyLambda:            0.03,
		EngagementWeightBookmark: 2.0,
		EngagementWeightClick:    1.0,
		CategoryAnchorWeight:     0.15,
		MaxEpisodesPerSeries:     2,
		SeriesPenaltyAlpha:       0.7,
		NoAdjacentSameSeries:     false,
		MinPerCategory:           1,
		ColdStartWindowSize:      10,
	}
}

// StageAGroup, StageBGroup, EngagementWeightsGroup, CategoryAnchorGroup,
// and SeriesDiversityGroup mirror the nested JSON groups the original
// config dict accepts, so callers loading config from a document store or
// API payload can build a RecommendationConfig the same way the Python
// from_dict() does — by merging named groups onto the defaults.
type StageAGroup struct {
	CredibilityFloor    *int
	CombinedFloor       *int
	FreshnessWindowDays *int
	CandidatePoolSize   *int
}

type StageBGroup struct {
	UserVectorLimit       *int
	WeightSimilarity      *float64
	WeightQuality         *float64
	WeightRecency         *float64
	CredibilityMultiplier *float64
	MaxQualityScore       *float64
	RecencyLambda         *float64
}

type EngagementWeightsGroup struct {
	Bookmark *float64
	Click    *float64
}

type CategoryAnchorGroup struct {
	Weight *float64
}

type SeriesDiversityGroup struct {
	MaxPerSeries *int
	PenaltyAlpha *float64
}

// FromGroups builds a RecommendationConfig starting from
// DefaultRecommendationConfig and overlaying whichever groups are
// non-nil, then validates the result. This is the Go analogue of the
// original pipeline's RecommendationConfig.from_dict.
func FromGroups(stageA *StageAGroup, stageB *StageBGroup, engagement *EngagementWeightsGroup, anchor *CategoryAnchorGroup, series *SeriesDiversityGroup) (RecommendationConfig, error) {
	cfg := DefaultRecommendationConfig()

	if stageA != nil {
		if stageA.CredibilityFloor != nil {
			cfg.CredibilityFloor = *stageA.CredibilityFloor
		}
		if stageA.CombinedFloor != nil {
			cfg.CombinedFloor = *stageA.CombinedFloor
		}
		if stageA.FreshnessWindowDays != nil {
			cfg.FreshnessWindowDays = *stageA.FreshnessWindowDays
		}
		if stageA.CandidatePoolSize != nil {
			cfg.CandidatePoolSize = *stageA.CandidatePoolSize
		}
	}
	if stageB != nil {
		if stageB.UserVectorLimit != nil {
			cfg.UserVectorLimit = *stageB.UserVectorLimit
		}
		if stageB.WeightSimilarity != nil {
			cfg.WeightSimilarity = *stageB.WeightSimilarity
		}
		if stageB.WeightQuality != nil {
			cfg.WeightQuality = *stageB.WeightQuality
		}
		if stageB.WeightRecency != nil {
			cfg.WeightRecency = *stageB.WeightRecency
		}
		if stageB.CredibilityMultiplier != nil {
			cfg.CredibilityMultiplier = *stageB.CredibilityMultiplier
		}
		if stageB.MaxQualityScore != nil {
			cfg.MaxQualityScore = *stageB.MaxQualityScore
		}
		if stageB.RecencyLambda != nil {
			cfg.RecencyLambda = *stageB.RecencyLambda
		}
	}
	if engagement != nil {
		if engagement.Bookmark != nil {
			cfg.EngagementWeightBookmark = *engagement.Bookmark
		}
		if engagement.Click != nil {
			cfg.EngagementWeightClick = *engagement.Click
		}
	}
	if anchor != nil && anchor.Weight != nil {
		cfg.CategoryAnchorWeight = *anchor.Weight
	}
	if series != nil {
		if series.MaxPerSeries != nil {
			cfg.MaxEpisodesPerSeries = *series.MaxPerSeries
		}
		if series.PenaltyAlpha != nil {
			cfg.SeriesPenaltyAlpha = *series.PenaltyAlpha
		}
	}

	if err := cfg.Validate(); err != nil {
		return RecommendationConfig{}, err
	}
	return cfg, nil
}

// EngagementWeight returns the configured weight for an engagement type,
// defaulting to 1.0 for any type outside {bookmark, click}.
func (c RecommendationConfig) EngagementWeight(engagementType string) float64 {
	switch engagementType {
	case "bookmark":
		return c.EngagementWeightBookmark
	case "click":
		return c.EngagementWeightClick
	default:
		return 1.0
	}
}

// Validate enforces the one invariant the original pipeline enforces at
// construction time: the three Stage B weights must sum to 1.0 within a
// 0.01 epsilon. This is fatal, matching weights_sum_to_one in the source.
func (c RecommendationConfig) Validate() error {
	total := c.WeightSimilarity + c.WeightQuality + c.WeightRecency
	if math.Abs(total-1.0) > 0.01 {
		return fmt.Errorf("config: scoring weights must sum to 1.0, got %.4f", total)
	}
	return nil
}
