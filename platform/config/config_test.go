package config

import (
	"os"
	"testing"
)

func TestScoringWeightsValidate(t *testing.T) {
	cases := []struct {
		name    string
		weights ScoringWeights
		wantErr bool
	}{
		{"defaults", defaultWeights(), false},
		{"exact sum", ScoringWeights{Engagement: 0.2, Source: 0.2, Value: 0.2, Velocity: 0.2, Fit: 0.2}, false},
		{"sum too low", ScoringWeights{Engagement: 0.2, Source: 0.2, Value: 0.2, Velocity: 0.2, Fit: 0.1}, true},
		{"sum too high", ScoringWeights{Engagement: 0.5, Source: 0.2, Value: 0.2, Velocity: 0.2, Fit: 0.2}, true},
		{"negative weight", ScoringWeights{Engagement: 1.2, Source: -0.2, Value: 0.4, Velocity: 0.3, Fit: 0.3}, true},
	}

	for _, tc := range cases {
		err := tc.weights.Validate()
		if tc.wantErr && err == nil {
			t.Errorf("%s: expected error, got nil", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("%s: unexpected error: %v", tc.name, err)
		}
	}
}

func TestLoadRejectsBadWeightFile(t *testing.T) {
	dir := t.TempDir()
	file := dir + "/scoring.yaml"
	content := []byte("weights:\n  engagement: 0.9\n  source: 0.9\n  value: 0.1\n  velocity: 0.1\n  fit: 0.1\n")
	if err := os.WriteFile(file, content, 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("SCORING_CONFIG_FILE", file)

	if _, err := Load(); err == nil {
		t.Fatal("expected Load to reject weights that do not sum to 1.0")
	}
}

func TestLoadAppliesTuningFile(t *testing.T) {
	dir := t.TempDir()
	file := dir + "/scoring.yaml"
	content := []byte("tuning:\n  hot_threshold: 80\n  warm_threshold: 55\n  cool_threshold: 35\n  reason_high: 75\n  risk_low: 30\n  engagement_saturation: 10\n  stall_multiplier: 1.5\n")
	if err := os.WriteFile(file, content, 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("SCORING_CONFIG_FILE", file)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Tuning.HotThreshold != 80 {
		t.Errorf("hot threshold = %d, want 80", cfg.Tuning.HotThreshold)
	}
	if cfg.Weights != defaultWeights() {
		t.Errorf("weights changed by tuning-only file: %+v", cfg.Weights)
	}
}
