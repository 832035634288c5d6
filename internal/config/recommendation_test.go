package config

import "testing"

func TestDefaultRecommendationConfigValid(t *testing.T) {
	cfg := DefaultRecommendationConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateRejectsWeightsNotSummingToOne(t *testing.T) {
	cfg := DefaultRecommendationConfig()
	cfg.WeightSimilarity = 0.9
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for weights not summing to 1.0")
	}
}

func TestValidateToleratesEpsilon(t *testing.T) {
	cfg := DefaultRecommendationConfig()
	cfg.WeightSimilarity += 0.005
	cfg.WeightQuality -= 0.005
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sum within epsilon should validate: %v", err)
	}
}

func TestEngagementWeightDefaultsToOne(t *testing.T) {
	cfg := DefaultRecommendationConfig()
	if got := cfg.EngagementWeight("bookmark"); got != 2.0 {
		t.Errorf("bookmark weight = %v, want 2.0", got)
	}
	if got := cfg.EngagementWeight("click"); got != 1.0 {
		t.Errorf("click weight = %v, want 1.0", got)
	}
	if got := cfg.EngagementWeight("listen"); got != 1.0 {
		t.Errorf("unknown type weight = %v, want default 1.0", got)
	}
}

func TestFromGroupsOverlaysOntoDefaults(t *testing.T) {
	floor := 3
	weight := 0.2
	cfg, err := FromGroups(
		&StageAGroup{CredibilityFloor: &floor},
		nil, nil,
		&CategoryAnchorGroup{Weight: &weight},
		nil,
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.CredibilityFloor != 3 {
		t.Errorf("CredibilityFloor = %d, want 3", cfg.CredibilityFloor)
	}
	if cfg.CategoryAnchorWeight != 0.2 {
		t.Errorf("CategoryAnchorWeight = %v, want 0.2", cfg.CategoryAnchorWeight)
	}
	// Unspecified fields fall through to defaults.
	if cfg.CombinedFloor != DefaultRecommendationConfig().CombinedFloor {
		t.Errorf("CombinedFloor should fall back to default")
	}
}

func TestFromGroupsRejectsInvalidWeights(t *testing.T) {
	bad := 0.9
	_, err := FromGroups(nil, &StageBGroup{WeightSimilarity: &bad}, nil, nil, nil)
	if err == nil {
		t.Fatal("expected validation error from FromGroups")
	}
}
