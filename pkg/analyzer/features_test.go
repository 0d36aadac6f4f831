package analyzer

import (
	"strings"
	"testing"
)

func TestExtractFeaturesActionVerbs(t *testing.T) {
	features := extractFeatures("Implement user login. Add an export button.")

	if len(features) < 2 {
		t.Fatalf("expected at least 2 features, got %v", features)
	}
	joined := strings.Join(features, "|")
	if !strings.Contains(joined, "user login") {
		t.Errorf("expected a user login feature, got %v", features)
	}
}

func TestExtractFeaturesBullets(t *testing.T) {
	text := "Tasks:\n- first deliverable item\n- second deliverable item\n* third deliverable item\n1. fourth deliverable item"
	features := extractFeatures(text)

	if len(features) != 4 {
		t.Errorf("expected 4 bullet features, got %d: %v", len(features), features)
	}
}

func TestExtractFeaturesDeduplicates(t *testing.T) {
	text := "Add user login. Add user login. Add user login."
	features := extractFeatures(text)

	if len(features) != 1 {
		t.Errorf("expected 1 deduplicated feature, got %d: %v", len(features), features)
	}
}

func TestExtractFeaturesStopWords(t *testing.T) {
	// "make sure" is not an action verb and "it" alone is connective noise.
	features := extractFeatures("Create it")

	for _, f := range features {
		if stopWords[f] {
			t.Errorf("stop word %q leaked into features", f)
		}
	}
}

func TestExtractFeaturesSyntheticListItem(t *testing.T) {
	features := extractFeatures("Handle parsing, validation, formatting and output.")

	found := false
	for _, f := range features {
		if f == "multiple-listed-items" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected synthetic multiple-listed-items feature, got %v", features)
	}
}

func TestExtractFeaturesEmptyInput(t *testing.T) {
	if features := extractFeatures(""); len(features) != 0 {
		t.Errorf("expected no features for empty input, got %v", features)
	}
}

func TestNormalizeFeatureLengthWindow(t *testing.T) {
	if got := normalizeFeature("ab"); got != "" {
		t.Errorf("short phrase should be rejected, got %q", got)
	}
	if got := normalizeFeature(strings.Repeat("x", 200)); got != "" {
		t.Errorf("long phrase should be rejected, got %q", got)
	}
	if got := normalizeFeature("  User Login.  "); got != "user login" {
		t.Errorf("normalizeFeature = %q, want %q", got, "user login")
	}
}
